package converter

import "time"

// MetadataModel представляет запись таблицы product_metadata.
// Массивы хранятся в виде JSON-текста.
type MetadataModel struct {
	ProductID int64     `db:"product_id"`
	Name      string    `db:"name"`
	Price     int64     `db:"price"`
	ImageKey  string    `db:"image_key"`
	Colors    *string   `db:"colors"`
	Occasions *string   `db:"occasions"`
	Tags      *string   `db:"tags"`
	ShopID    *int64    `db:"shop_id"`
	IndexedAt time.Time `db:"indexed_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	ProductID   int64      `db:"product_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
