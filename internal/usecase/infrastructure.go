package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type EmbeddingInfra interface {
	Embed(ctx context.Context, productID int64, image []byte) (*domain.Embedding, error)
	EmbedBatch(ctx context.Context, items []EmbedItem) []EmbedResult
}

type ImageAcquirer interface {
	Acquire(ctx context.Context, src domain.ImageSource) (*domain.AcquiredImage, error)
}

type CatalogInfra interface {
	ListProducts(ctx context.Context, req *ListProductsReq) (*domain.CatalogPage, error)
}

type ImagesInfra interface {
	UploadImage(ctx context.Context, productID int64, image *domain.AcquiredImage) (string, error)
	CleanupImages(keys []string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
