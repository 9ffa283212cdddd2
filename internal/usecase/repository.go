package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// MetadataRepository хранилище метаданных товаров (PostgreSQL или SQLite).
type MetadataRepository interface {
	Upsert(ctx context.Context, meta *domain.ProductMetadata) (*domain.ProductMetadata, error)
	Get(ctx context.Context, productID int64) (*domain.ProductMetadata, error)
	GetBatch(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error)
	Delete(ctx context.Context, productID int64) (bool, error)
	Count(ctx context.Context, shopID *int64) (int64, error)
	LastIndexedAt(ctx context.Context) (*time.Time, error)
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// VectorRepository векторный индекс эмбеддингов.
type VectorRepository interface {
	Upsert(ctx context.Context, point *domain.IndexPoint) error
	UpsertBatch(ctx context.Context, points []domain.IndexPoint) (*UpsertBatchRes, error)
	Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.VectorMatch, error)
	Delete(ctx context.Context, ids ...int64) error
	Stats(ctx context.Context) (*domain.IndexStats, error)
	ScrollIDs(ctx context.Context, offset *int64, limit int) (*ScrollIDsRes, error)
	Existing(ctx context.Context, ids []int64) (map[int64]bool, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Get(ctx context.Context, key string, maxSize int64) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// CacheRepository кэш метаданных товаров для обогащения результатов поиска.
type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error)
	// SetProducts перезаписывает записи: так индексация сразу публикует сохраненную версию.
	SetProducts(ctx context.Context, products []*domain.ProductMetadata) error
	// AddProducts кладет только отсутствующие ключи и не затирает записи, уже обновленные индексацией.
	AddProducts(ctx context.Context, products []*domain.ProductMetadata) error
	DeleteProducts(ctx context.Context, ids []int64) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	ReleaseStale(ctx context.Context, olderThanSeconds int) (int64, error)
}

// TokenCache хранит один access token провайдера эмбеддингов.
// Get возвращает nil без ошибки, если токена нет.
type TokenCache interface {
	Get(ctx context.Context) (*domain.AccessToken, error)
	Set(ctx context.Context, token *domain.AccessToken) error
}
