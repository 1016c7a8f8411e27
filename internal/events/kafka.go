package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes settled payments to a topic keyed by checkout id, so
// every event for one payment lands on the same partition.
type KafkaPublisher struct {
	writer   *kafka.Writer
	logger   *zap.Logger
	inflight sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Async:        true,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			if err != nil {
				logger.Error("[events] payment settled not delivered",
					zap.String("topic", msg.Topic),
					zap.String("checkout_request_id", string(msg.Key)),
					zap.Error(err))
				continue
			}
			logger.Debug("[events] payment settled delivered",
				zap.String("topic", msg.Topic),
				zap.String("checkout_request_id", string(msg.Key)))
		}
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish hands the event to the writer. Delivery itself is asynchronous and
// its outcome is logged by the writer's completion hook; the returned error
// only covers encoding and partition lookup.
func (p *KafkaPublisher) Publish(ctx context.Context, ev PaymentSettled) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payment settled event: %w", err)
	}
	produceCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, kafka.Message{
		Key:   []byte(ev.CheckoutRequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "event_type", Value: []byte("payment.settled")},
		},
	}); err != nil {
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	return nil
}

// PaymentSettled publishes in the background so a slow or unreachable broker
// never holds up settlement. Failures are logged.
func (p *KafkaPublisher) PaymentSettled(ctx context.Context, ev PaymentSettled) {
	ctx = context.WithoutCancel(ctx)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if err := p.Publish(ctx, ev); err != nil {
			p.logger.Error("[events] publish payment settled",
				zap.String("checkout_request_id", ev.CheckoutRequestID),
				zap.Error(err))
			return
		}
		p.logger.Debug("[events] payment settled queued",
			zap.String("checkout_request_id", ev.CheckoutRequestID),
			zap.String("event_id", ev.EventID))
	}()
}

// Close waits for queued publishes and flushes the writer.
func (p *KafkaPublisher) Close() error {
	p.inflight.Wait()
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
