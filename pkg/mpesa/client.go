// Package mpesa talks to the Safaricom Daraja API: credential grant, STK push
// and STK push status query, plus parsing of the asynchronous callback.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// errorCode values Daraja returns on the query endpoint
	codeRequestProcessing = "500.001.1001"
	codeInvalidCheckout   = "400.002.02"
)

var (
	ErrRejected          = errors.New("mpesa: push request rejected")
	ErrRequestProcessing = errors.New("mpesa: request is still being processed")
	ErrUnknownCheckout   = errors.New("mpesa: checkout request id not recognized")
)

// APIError is a non-200 answer from Daraja.
type APIError struct {
	StatusCode   int    `json:"-"`
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa api: status %d code=%s %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          *Code  `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Result converts a query answer into the same shape a callback produces.
// ok is false while the gateway has no final result, including result codes
// that are not known to be final.
func (q *STKQueryResponse) Result() (res *Result, ok bool) {
	if q.ResultCode == nil {
		return nil, false
	}
	code := int(*q.ResultCode)
	if !IsFinalQueryCode(code) {
		return nil, false
	}
	return &Result{
		CheckoutRequestID: q.CheckoutRequestID,
		ResultCode:        code,
		ResultDesc:        q.ResultDesc,
		Success:           code == ResultCodeSuccess,
	}, true
}

// Gateway is the subset of Daraja the payment service depends on.
type Gateway interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	QueryStatus(ctx context.Context, req STKQueryRequest) (*STKQueryResponse, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
	logger  *zap.Logger
}

var _ Gateway = (*Client)(nil)

func NewClient(baseURL string, tokens oauth2.TokenSource, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, http: httpClient, tokens: tokens, logger: logger}
}

// STKPush submits a signed push request. A response without a checkout id or
// with a non-zero ResponseCode counts as a rejection.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	var out STKPushResponse
	if err := c.post(ctx, stkPushPath, req, &out); err != nil {
		if errors.Is(err, ErrAuth) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if out.CheckoutRequestID == "" || (out.ResponseCode != "" && out.ResponseCode != "0") {
		return nil, fmt.Errorf("%w: response_code=%q %s", ErrRejected, out.ResponseCode, out.ResponseDescription)
	}
	c.logger.Info("[mpesa] stk push accepted",
		zap.String("checkout_request_id", out.CheckoutRequestID),
		zap.String("merchant_request_id", out.MerchantRequestID),
		zap.String("account_reference", req.AccountReference),
		zap.Int64("amount", req.Amount))
	return &out, nil
}

// QueryStatus asks Daraja for the state of a push. ErrRequestProcessing means
// the payer has not answered yet; ErrUnknownCheckout means the id is not known.
func (c *Client) QueryStatus(ctx context.Context, req STKQueryRequest) (*STKQueryResponse, error) {
	var out STKQueryResponse
	if err := c.post(ctx, stkQueryPath, req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode {
			case codeRequestProcessing:
				return nil, ErrRequestProcessing
			case codeInvalidCheckout:
				return nil, fmt.Errorf("%w: %s", ErrUnknownCheckout, req.CheckoutRequestID)
			}
		}
		return nil, err
	}
	if out.CheckoutRequestID == "" {
		out.CheckoutRequestID = req.CheckoutRequestID
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	tok, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mpesa %s: %w", path, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	c.logger.Debug("[mpesa] response", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.ByteString("body", respBody))
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = string(respBody)
		}
		return apiErr
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("mpesa %s: decode: %w", path, err)
	}
	return nil
}
