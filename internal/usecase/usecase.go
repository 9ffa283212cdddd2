package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type IndexUC interface {
	IndexProduct(ctx context.Context, req *IndexProductReq) (*IndexProductRes, error)
	DeleteProduct(ctx context.Context, productID int64) (*DeleteProductRes, error)
	BatchIndex(ctx context.Context, req *BatchIndexReq) (*domain.BatchIndexReport, error)
}

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
}

type StatsUC interface {
	Stats(ctx context.Context) (*StatsRes, error)
}

type ReconcileUC interface {
	Reconcile(ctx context.Context) (*domain.ReconcileReport, error)
}
