package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"commerce-core/models"

	"github.com/segmentio/kafka-go"
)

// PaymentConsumer feeds gateway outcomes from the payment events topic into
// the order ledger.
type PaymentConsumer struct {
	reader *kafka.Reader
	orders *OrderService
	topic  string
	group  string
}

func NewPaymentConsumer(brokers []string, topic, groupID string, orders *OrderService) *PaymentConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	log.Printf("[PaymentConsumer] initialized topic=%s group=%s brokers=%v", topic, groupID, brokers)
	return &PaymentConsumer{reader: r, orders: orders, topic: topic, group: groupID}
}

func (pc *PaymentConsumer) Start(ctx context.Context) {
	log.Printf("[PaymentConsumer] listening topic=%s group=%s", pc.topic, pc.group)

	for {
		m, err := pc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("❌ [PaymentConsumer] read error: %v", err)
			continue
		}

		var evt models.PaymentEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil {
			log.Printf("❌ [PaymentConsumer] invalid JSON: %v payload=%s", err, string(m.Value))
			continue
		}
		if evt.OrderID == "" || evt.Type == "" {
			log.Printf("❌ [PaymentConsumer] missing fields: order_id=%q type=%q", evt.OrderID, evt.Type)
			continue
		}

		log.Printf("ℹ️  [PaymentConsumer] received event: order_id=%s type=%s", evt.OrderID, evt.Type)

		if err := pc.orders.HandlePaymentEvent(ctx, evt); err != nil {
			// A denial is the expected outcome of a failed payment, not a
			// processing error.
			if errors.Is(err, models.ErrPaymentDenied) {
				continue
			}
			log.Printf("❌ [PaymentConsumer] failed to apply event for order=%s: %v", evt.OrderID, err)
		}
	}
}

func (pc *PaymentConsumer) Close() error {
	log.Printf("[PaymentConsumer] closing reader topic=%s group=%s", pc.topic, pc.group)
	return pc.reader.Close()
}
