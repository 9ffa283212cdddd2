package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const cacheFillTimeout = 500 * time.Millisecond

// MetadataReader читает метаданные через кэш: промахи добираются одним запросом к хранилищу
// и в фоне кладутся в кэш. Ошибки кэша не мешают чтению из хранилища.
// Фоновое заполнение не перезаписывает ключи: прочитанная до переиндексации версия
// не должна вытеснить записанную индексацией.
type MetadataReader struct {
	metaRepo  MetadataRepository
	cacheRepo CacheRepository
	logger    logger.Logger
}

func NewMetadataReader(metaRepo MetadataRepository, cacheRepo CacheRepository, logger logger.Logger) *MetadataReader {
	if cacheRepo == nil {
		cacheRepo = nopCache{}
	}

	return &MetadataReader{
		metaRepo:  metaRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// GetBatch возвращает найденные записи; отсутствующих ids в результате нет.
func (m *MetadataReader) GetBatch(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	const op = "MetadataReader.GetBatch"

	result := make(map[int64]*domain.ProductMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cached, err := m.cacheRepo.GetProducts(ctx, ids)
	if err != nil {
		m.logger.Warnf("metadata cache read failed: %v", e.Wrap(op, err))
		cached = nil
	}

	misses := make([]int64, 0, len(ids))
	for _, id := range ids {
		if meta, ok := cached[id]; ok {
			result[id] = meta
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	fromDB, err := m.metaRepo.GetBatch(ctx, misses)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	toCache := make([]*domain.ProductMetadata, 0, len(fromDB))
	for id, meta := range fromDB {
		result[id] = meta
		toCache = append(toCache, meta)
	}

	if len(toCache) > 0 {
		// Фоновое добавление метаданных в кэш
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), cacheFillTimeout)
			defer cancel()

			if err := m.cacheRepo.AddProducts(bgCtx, toCache); err != nil {
				m.logger.Warnf("failed to cache metadata in background: %v", e.Wrap(op, err))
			}
		}()
	}

	return result, nil
}
