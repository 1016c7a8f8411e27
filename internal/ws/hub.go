package ws

import (
	"context"
	"encoding/json"
	"sync"

	"beautymart/internal/events"
)

// Client is one WebSocket connection watching a single checkout.
type Client struct {
	CheckoutRequestID string
	Send              chan []byte
	Hub               *Hub // set so Close() can unregister
	mu                sync.Mutex
	closed            bool
}

func NewClient(checkoutID string) *Client {
	return &Client{CheckoutRequestID: checkoutID, Send: make(chan []byte, 16)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// Hub fans settled payments out to the clients watching their checkout id.
type Hub struct {
	mu         sync.RWMutex
	byCheckout map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byCheckout: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byCheckout[c.CheckoutRequestID] == nil {
		h.byCheckout[c.CheckoutRequestID] = make(map[*Client]struct{})
	}
	h.byCheckout[c.CheckoutRequestID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byCheckout[c.CheckoutRequestID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byCheckout, c.CheckoutRequestID)
		}
	}
}

func (h *Hub) subscribers(checkoutID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.byCheckout[checkoutID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	return clients
}

// Broadcast sends payload to every client watching checkoutID. Slow clients drop the message.
func (h *Hub) Broadcast(checkoutID string, payload interface{}) {
	data, _ := json.Marshal(payload)
	for _, c := range h.subscribers(checkoutID) {
		c.deliver(data)
	}
}

// PaymentSettled pushes the final state and ends the stream for that checkout.
func (h *Hub) PaymentSettled(_ context.Context, ev events.PaymentSettled) {
	h.Broadcast(ev.CheckoutRequestID, StatusMessage{
		Type:               "settled",
		CheckoutRequestID:  ev.CheckoutRequestID,
		Status:             ev.Status,
		MpesaReceiptNumber: ev.MpesaReceiptNumber,
		ResultDesc:         ev.ResultDesc,
	})
	for _, c := range h.subscribers(ev.CheckoutRequestID) {
		c.Close()
	}
}

func (h *Hub) ClientCount(checkoutID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byCheckout[checkoutID])
}

func (c *Client) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// StatusMessage is the frame written to payment watchers.
type StatusMessage struct {
	Type               string `json:"type"` // status | settled
	CheckoutRequestID  string `json:"checkoutRequestId"`
	Status             string `json:"status"`
	MpesaReceiptNumber string `json:"mpesaReceiptNumber,omitempty"`
	ResultDesc         string `json:"resultDesc,omitempty"`
}
