package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Publisher отправляет события заказов в Kafka. Нулевой издатель (nil)
// безопасен: публикация превращается в no-op, брокер не обязателен.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher создаёт издателя событий для указанных брокеров.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish публикует событие заказа. Все события одного заказа попадают
// в одну партицию.
func (p *Publisher) Publish(ctx context.Context, orderID int64, eventType string, payload any) error {
	if p == nil {
		return nil
	}

	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   PartitionKey(orderID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// Close закрывает соединение с брокером.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
