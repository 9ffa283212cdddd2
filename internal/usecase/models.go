package usecase

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// INDEX USECASE

// IndexProductReq запрос на индексацию одного товара.
// Должен быть задан ровно один из ImageURL и ImageBase64.
type IndexProductReq struct {
	ProductID   int64
	Name        string
	Price       int64
	ImageURL    string
	ImageBase64 string
	Colors      []string
	Occasions   []string
	Tags        []string
	ShopID      *int64
}

type IndexProductRes struct {
	ProductID int64
	VectorID  string
	IndexedAt time.Time
}

type DeleteProductRes struct {
	ProductID int64
	Deleted   bool
}

const BatchSourceCatalog = "catalog"

type BatchIndexReq struct {
	Source string
	Limit  int
	Offset int
	ShopID *int64
}

// SEARCH USECASE

// SearchReq запрос поиска. Незаданный TopK заменяется значением по умолчанию.
type SearchReq struct {
	ImageURL    string
	ImageBase64 string
	TopK        *int
	Threshold   *float32
	Filters     map[string]any
}

type SearchRes struct {
	Exact        []domain.SearchHit
	Similar      []domain.SearchHit
	SearchTime   time.Duration
	TotalIndexed uint64
	Degraded     bool // хранилище метаданных недоступно, результаты неполные
}

// STATS USECASE

type StatsRes struct {
	TotalIndexed    uint64
	LastIndexedAt   *time.Time
	VectorizeStatus string
	MetadataRows    int64
}

// INFRASTUCTURE

type ListProductsReq struct {
	Limit  int
	Offset int
	ShopID *int64
}

// EmbedItem изображение товара для пакетной векторизации.
type EmbedItem struct {
	ProductID int64
	Image     []byte
}

// EmbedResult результат векторизации одного товара: либо Embedding, либо Err.
type EmbedResult struct {
	ProductID int64
	Embedding *domain.Embedding
	Err       error
}

type WriteRawMessageReq struct {
	ProductID int64
	Payload   []byte
}

// REPOSITORIES

// UpsertBatchRes результат пакетной записи в векторный индекс по чанкам.
type UpsertBatchRes struct {
	Chunks       int
	FailedChunks int
	Upserted     int
	Failed       map[int64]error // ID точек из неудачных чанков
}

type ScrollIDsRes struct {
	Points []domain.IndexedVector
	Next   *int64
}

// MAPPERS

func NewIndexProductRes(productID int64, indexedAt time.Time) *IndexProductRes {
	return &IndexProductRes{
		ProductID: productID,
		VectorID:  domain.VectorID(productID),
		IndexedAt: indexedAt,
	}
}

func NewListProductsReq(limit, offset int, shopID *int64) *ListProductsReq {
	return &ListProductsReq{
		Limit:  limit,
		Offset: offset,
		ShopID: shopID,
	}
}

func NewWriteRawMessageReq(productID int64, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ProductID: productID,
		Payload:   payload,
	}
}

func NewUpsertBatchRes() *UpsertBatchRes {
	return &UpsertBatchRes{Failed: make(map[int64]error)}
}
