package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/strafford/commissary/internal/port"
)

// KafkaPublisher emits post-commit audit events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)
