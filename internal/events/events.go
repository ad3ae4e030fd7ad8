// Package events публикует доменные события заказов в Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Типы публикуемых событий.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusUpdated = "OrderStatusUpdated"
)

// DefaultTopic — топик, в который публикуются все события заказов.
const DefaultTopic = "orders.events"

// Envelope — общая обёртка события заказа.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

// ItemLine — позиция заказа в событии.
type ItemLine struct {
	ProductID  int64 `json:"product_id"`
	Quantity   int64 `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

// OrderCreatedPayload — полезная нагрузка события создания заказа.
type OrderCreatedPayload struct {
	OrderID    int64      `json:"order_id"`
	Username   string     `json:"username"`
	Items      []ItemLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

// OrderStatusUpdatedPayload — полезная нагрузка события смены статуса.
type OrderStatusUpdatedPayload struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// NewEnvelope заворачивает полезную нагрузку в обёртку с идентификатором
// события и временем возникновения.
func NewEnvelope(eventType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "ecommerce-system",
		Payload:      raw,
	}, nil
}

// PartitionKey — ключ партиционирования: все события одного заказа
// сохраняют порядок.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
