package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// nopCache заменяет кэш метаданных, когда Redis отключен.
type nopCache struct{}

func (nopCache) GetProducts(context.Context, []int64) (map[int64]*domain.ProductMetadata, error) {
	return map[int64]*domain.ProductMetadata{}, nil
}

func (nopCache) SetProducts(context.Context, []*domain.ProductMetadata) error { return nil }

func (nopCache) AddProducts(context.Context, []*domain.ProductMetadata) error { return nil }

func (nopCache) DeleteProducts(context.Context, []int64) error { return nil }
