package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	paymentsReferenceIndex = "reference_id-index"
	paymentsStatusIndex    = "status-index"

	// itemTimeLayout is fixed width so stored timestamps sort as strings.
	itemTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// DynamoAPI is the subset of the DynamoDB client the payment store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type paymentRequestItem struct {
	CheckoutRequestID  string              `dynamodbav:"checkout_request_id"`
	MerchantRequestID  string              `dynamodbav:"merchant_request_id,omitempty"`
	Purpose            string              `dynamodbav:"purpose"`
	Amount             int64               `dynamodbav:"amount"`
	PhoneNumber        string              `dynamodbav:"phone_number"`
	Status             string              `dynamodbav:"status"`
	PayerEmail         string              `dynamodbav:"payer_email,omitempty"`
	ReferenceID        string              `dynamodbav:"reference_id"`
	PackageName        string              `dynamodbav:"package_name,omitempty"`
	Timestamp          string              `dynamodbav:"timestamp"`
	PendingUser        *models.PendingUser `dynamodbav:"pending_user,omitempty"`
	MpesaReceiptNumber string              `dynamodbav:"mpesa_receipt_number,omitempty"`
	TransactionDate    string              `dynamodbav:"transaction_date,omitempty"`
	PaidAmount         int64               `dynamodbav:"paid_amount,omitempty"`
	ResultCode         *int                `dynamodbav:"result_code,omitempty"`
	ResultDesc         string              `dynamodbav:"result_desc,omitempty"`
	ReconciledAt       string              `dynamodbav:"reconciled_at,omitempty"`
	CreatedAt          string              `dynamodbav:"created_at"`
	UpdatedAt          string              `dynamodbav:"updated_at"`
}

// PaymentDynamoRepository stores payment requests in DynamoDB.
//
// Table requirements:
//   - PK: checkout_request_id (string)
//   - GSI: reference_id-index (PK: reference_id, SK: timestamp)
//   - GSI: status-index (PK: status, SK: created_at)
type PaymentDynamoRepository struct {
	ddb       DynamoAPI
	tableName string
	now       func() time.Time
}

func NewPaymentDynamoRepository(ddb DynamoAPI, tableName string) *PaymentDynamoRepository {
	return &PaymentDynamoRepository{ddb: ddb, tableName: tableName, now: time.Now}
}

func (r *PaymentDynamoRepository) Create(ctx context.Context, p *models.PaymentRequest) error {
	now := r.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	av, err := attributevalue.MarshalMap(toPaymentRequestItem(p))
	if err != nil {
		return err
	}
	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "checkout_request_id",
		},
	})
	return err
}

func (r *PaymentDynamoRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.PaymentRequest, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            checkoutKey(checkoutID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it paymentRequestItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return fromPaymentRequestItem(it), nil
}

func (r *PaymentDynamoRepository) FindByPackage(ctx context.Context, packageID, timestamp string) (*models.PaymentRequest, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(paymentsReferenceIndex),
		KeyConditionExpression: aws.String("reference_id = :ref AND #ts = :ts"),
		FilterExpression:       aws.String("purpose = :purpose"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref":     &types.AttributeValueMemberS{Value: packageID},
			":ts":      &types.AttributeValueMemberS{Value: timestamp},
			":purpose": &types.AttributeValueMemberS{Value: domain.PurposeGenericPackage},
		},
	})
	if err != nil {
		return nil, err
	}
	list, err := unmarshalPaymentItems(out.Items)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	latest := list[0]
	for _, p := range list[1:] {
		if p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return &latest, nil
}

// Transition applies the terminal state only while the item is still pending.
func (r *PaymentDynamoRepository) Transition(ctx context.Context, checkoutID string, s models.Settlement) (bool, error) {
	var txDate string
	if s.TransactionDate != nil {
		txDate = s.TransactionDate.UTC().Format(itemTimeLayout)
	}
	_, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 checkoutKey(checkoutID),
		UpdateExpression:    aws.String("SET #status = :status, mpesa_receipt_number = :receipt, transaction_date = :txdate, paid_amount = :paid, result_code = :code, result_desc = :desc, updated_at = :now"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: s.Status},
			":pending": &types.AttributeValueMemberS{Value: domain.PaymentStatusPending},
			":receipt": &types.AttributeValueMemberS{Value: s.MpesaReceiptNumber},
			":txdate":  &types.AttributeValueMemberS{Value: txDate},
			":paid":    &types.AttributeValueMemberN{Value: strconv.FormatInt(s.PaidAmount, 10)},
			":code":    &types.AttributeValueMemberN{Value: strconv.Itoa(s.ResultCode)},
			":desc":    &types.AttributeValueMemberS{Value: s.ResultDesc},
			":now":     &types.AttributeValueMemberS{Value: s.SettledAt.UTC().Format(itemTimeLayout)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PaymentDynamoRepository) MarkReconciled(ctx context.Context, checkoutID string, at time.Time) error {
	_, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 checkoutKey(checkoutID),
		UpdateExpression:    aws.String("SET reconciled_at = :at"),
		ConditionExpression: aws.String("attribute_exists(checkout_request_id) AND attribute_not_exists(reconciled_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberS{Value: at.UTC().Format(itemTimeLayout)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}

func (r *PaymentDynamoRepository) ListUnreconciled(ctx context.Context, settledBefore time.Time, limit int) ([]models.PaymentRequest, error) {
	var list []models.PaymentRequest
	for _, status := range []string{domain.PaymentStatusCompleted, domain.PaymentStatusFailed} {
		items, err := r.queryStatus(ctx, status, limit-len(list), &dynamodb.QueryInput{
			KeyConditionExpression: aws.String("#status = :status"),
			FilterExpression:       aws.String("attribute_not_exists(reconciled_at) AND updated_at < :before"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: status},
				":before": &types.AttributeValueMemberS{Value: settledBefore.UTC().Format(itemTimeLayout)},
			},
		})
		if err != nil {
			return nil, err
		}
		list = append(list, items...)
		if len(list) >= limit {
			break
		}
	}
	return list, nil
}

func (r *PaymentDynamoRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentRequest, error) {
	return r.queryStatus(ctx, domain.PaymentStatusPending, limit, &dynamodb.QueryInput{
		KeyConditionExpression: aws.String("#status = :status AND created_at < :before"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: domain.PaymentStatusPending},
			":before": &types.AttributeValueMemberS{Value: createdBefore.UTC().Format(itemTimeLayout)},
		},
	})
}

// queryStatus pages through the status index until limit items are collected.
func (r *PaymentDynamoRepository) queryStatus(ctx context.Context, status string, limit int, in *dynamodb.QueryInput) ([]models.PaymentRequest, error) {
	in.TableName = aws.String(r.tableName)
	in.IndexName = aws.String(paymentsStatusIndex)
	in.ExpressionAttributeNames = map[string]string{"#status": "status"}
	var list []models.PaymentRequest
	for len(list) < limit {
		out, err := r.ddb.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items, err := unmarshalPaymentItems(out.Items)
		if err != nil {
			return nil, err
		}
		list = append(list, items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func checkoutKey(checkoutID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"checkout_request_id": &types.AttributeValueMemberS{Value: checkoutID},
	}
}

func unmarshalPaymentItems(raw []map[string]types.AttributeValue) ([]models.PaymentRequest, error) {
	list := make([]models.PaymentRequest, 0, len(raw))
	for _, av := range raw {
		var it paymentRequestItem
		if err := attributevalue.UnmarshalMap(av, &it); err != nil {
			return nil, err
		}
		list = append(list, *fromPaymentRequestItem(it))
	}
	return list, nil
}

func toPaymentRequestItem(p *models.PaymentRequest) paymentRequestItem {
	it := paymentRequestItem{
		CheckoutRequestID:  p.CheckoutRequestID,
		MerchantRequestID:  p.MerchantRequestID,
		Purpose:            p.Purpose,
		Amount:             p.Amount,
		PhoneNumber:        p.PhoneNumber,
		Status:             p.Status,
		PayerEmail:         p.PayerEmail,
		ReferenceID:        p.ReferenceID,
		PackageName:        p.PackageName,
		Timestamp:          p.Timestamp,
		PendingUser:        p.PendingUser,
		MpesaReceiptNumber: p.MpesaReceiptNumber,
		PaidAmount:         p.PaidAmount,
		ResultCode:         p.ResultCode,
		ResultDesc:         p.ResultDesc,
		CreatedAt:          p.CreatedAt.UTC().Format(itemTimeLayout),
		UpdatedAt:          p.UpdatedAt.UTC().Format(itemTimeLayout),
	}
	if p.TransactionDate != nil {
		it.TransactionDate = p.TransactionDate.UTC().Format(itemTimeLayout)
	}
	if p.ReconciledAt != nil {
		it.ReconciledAt = p.ReconciledAt.UTC().Format(itemTimeLayout)
	}
	return it
}

func fromPaymentRequestItem(it paymentRequestItem) *models.PaymentRequest {
	created, _ := time.Parse(itemTimeLayout, it.CreatedAt)
	updated, _ := time.Parse(itemTimeLayout, it.UpdatedAt)
	p := &models.PaymentRequest{
		CheckoutRequestID:  it.CheckoutRequestID,
		MerchantRequestID:  it.MerchantRequestID,
		Purpose:            it.Purpose,
		Amount:             it.Amount,
		PhoneNumber:        it.PhoneNumber,
		Status:             it.Status,
		PayerEmail:         it.PayerEmail,
		ReferenceID:        it.ReferenceID,
		PackageName:        it.PackageName,
		Timestamp:          it.Timestamp,
		PendingUser:        it.PendingUser,
		MpesaReceiptNumber: it.MpesaReceiptNumber,
		PaidAmount:         it.PaidAmount,
		ResultCode:         it.ResultCode,
		ResultDesc:         it.ResultDesc,
		CreatedAt:          created,
		UpdatedAt:          updated,
	}
	if t, err := time.Parse(itemTimeLayout, it.TransactionDate); err == nil {
		p.TransactionDate = &t
	}
	if t, err := time.Parse(itemTimeLayout, it.ReconciledAt); err == nil {
		p.ReconciledAt = &t
	}
	return p
}
