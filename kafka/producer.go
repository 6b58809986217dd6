package kafka

import (
	"context"
	"encoding/json"
	"log"

	"commerce-core/models"

	"github.com/segmentio/kafka-go"
)

// ProducerAPI is what the services need from the event producer.
type ProducerAPI interface {
	PublishOrderEvent(evt models.OrderEvent) error
}

type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[KafkaProducer] initialized topic=%s brokers=%v", topic, brokers)
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) PublishOrderEvent(evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		log.Printf("❌ [KafkaProducer] failed to publish %s order=%s topic=%s err=%v", evt.Type, evt.OrderID, p.topic, err)
		return err
	}
	log.Printf("✅ [KafkaProducer] %s published order=%s status=%s topic=%s", evt.Type, evt.OrderID, evt.Status, p.topic)
	return nil
}

func (p *Producer) Close() error {
	log.Printf("[KafkaProducer] closing writer topic=%s", p.topic)
	return p.writer.Close()
}
