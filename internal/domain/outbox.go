package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxProcessed  OutboxStatus = "PROCESSED"
)

type OutboxEventType string

const (
	EventProductIndexed OutboxEventType = "product.indexed"
	EventProductDeleted OutboxEventType = "product.deleted"
)

// IndexEvent тело события об изменении индекса, публикуемого в Kafka
type IndexEvent struct {
	EventID    string          `json:"event_id"`
	EventType  OutboxEventType `json:"event_type"`
	ProductID  int64           `json:"product_id"`
	VectorID   string          `json:"vector_id"`
	ShopID     *int64          `json:"shop_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewIndexEvent(eventType OutboxEventType, productID int64, shopID *int64) *IndexEvent {
	return &IndexEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		ProductID:  productID,
		VectorID:   VectorID(productID),
		ShopID:     shopID,
		OccurredAt: time.Now().UTC(),
	}
}

// OutboxEvent запись таблицы outbox_events
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	ProductID   int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
