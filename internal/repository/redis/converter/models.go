package converter

import "time"

// MetadataRedisModel представление метаданных товара в кэше.
type MetadataRedisModel struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	ImageKey  string    `json:"image_key"`
	Colors    []string  `json:"colors,omitempty"`
	Occasions []string  `json:"occasions,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	ShopID    *int64    `json:"shop_id,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
