package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"beautymart/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PaymentLookup returns the stored payment request for a checkout id.
type PaymentLookup interface {
	Get(ctx context.Context, checkoutID string) (*models.PaymentRequest, error)
}

// UpgradePaymentWS streams the status of one checkout. The current state is
// sent on connect; if it is already terminal the stream ends right away.
func UpgradePaymentWS(payments PaymentLookup, hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		checkoutID := c.Param("checkoutRequestId")
		// registered before the read so a settlement landing in between is not lost
		client := NewClient(checkoutID)
		hub.Register(client)
		defer client.Close()

		p, err := payments.Get(c.Request.Context(), checkoutID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment request not found"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("[ws] upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		data, _ := json.Marshal(StatusMessage{
			Type:               "status",
			CheckoutRequestID:  checkoutID,
			Status:             p.Status,
			MpesaReceiptNumber: p.MpesaReceiptNumber,
			ResultDesc:         p.ResultDesc,
		})
		client.deliver(data)
		if p.IsTerminal() {
			client.Close()
		}
		go func() {
			readPump(conn)
			client.Close()
		}()
		writePump(client, conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn) {
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
