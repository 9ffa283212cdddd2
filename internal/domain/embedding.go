package domain

import (
	"math"
	"strconv"
	"time"
)

// Payload описывает фильтруемые поля точки в векторном индексе
type Payload map[string]any

// Embedding представляет нормализованный вектор изображения товара
type Embedding struct {
	ProductID   int64
	Vector      []float32
	Model       string
	GeneratedAt time.Time
}

func NewEmbedding(productID int64, vector []float32, model string) *Embedding {
	return &Embedding{
		ProductID:   productID,
		Vector:      vector,
		Model:       model,
		GeneratedAt: time.Now().UTC(),
	}
}

// IndexPoint точка векторного индекса: вектор товара и его payload.
type IndexPoint struct {
	ProductID int64
	Vector    []float32
	Payload   Payload
}

func NewIndexPoint(productID int64, vector []float32, payload Payload) *IndexPoint {
	return &IndexPoint{
		ProductID: productID,
		Vector:    vector,
		Payload:   payload,
	}
}

// NewPayload собирает payload точки из метаданных товара.
// В индекс попадают только поля, по которым допускается фильтрация.
func NewPayload(meta *ProductMetadata, model string) Payload {
	payload := Payload{
		"product_id": meta.ProductID,
		"name":       meta.Name,
		"price":      meta.Price,
		"model":      model,
		"indexed_at": time.Now().UTC().Unix(),
	}

	if meta.ShopID != nil {
		payload["shop_id"] = *meta.ShopID
	}
	if len(meta.Colors) > 0 {
		payload["colors"] = toAnySlice(meta.Colors)
	}
	if len(meta.Occasions) > 0 {
		payload["occasions"] = toAnySlice(meta.Occasions)
	}
	if len(meta.Tags) > 0 {
		payload["tags"] = toAnySlice(meta.Tags)
	}

	return payload
}

// VectorID возвращает идентификатор вектора товара в индексе.
func VectorID(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

// Normalize возвращает копию вектора единичной длины.
// Нулевой вектор возвращается без изменений.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	copy(out, v)

	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}

	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}

	return out
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}
