package domain

import "time"

// Band полоса похожести результата поиска
type Band string

const (
	BandExact   Band = "exact"
	BandSimilar Band = "similar"
)

// VectorMatch совпадение из векторного индекса
type VectorMatch struct {
	ProductID int64
	Score     float32
	Payload   Payload
}

// SearchFilter фильтр поиска по полям payload (равенство значению)
type SearchFilter map[string]any

// SearchHit совпадение, обогащенное метаданными товара
type SearchHit struct {
	ProductID int64
	Score     float32
	Metadata  *ProductMetadata
}

// IndexStats статистика векторного индекса
type IndexStats struct {
	Count      uint64
	Dimensions uint64
	Status     string
}

// IndexedVector точка индекса без вектора: идентификатор и время индексации из payload
type IndexedVector struct {
	ProductID int64
	IndexedAt time.Time
}
