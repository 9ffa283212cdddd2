package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const statusUnavailable = "unavailable"

type StatsUseCase struct {
	vectorRepo VectorRepository
	metaRepo   MetadataRepository
	logger     logger.Logger
}

func NewStatsUC(vectorRepo VectorRepository, metaRepo MetadataRepository, logger logger.Logger) *StatsUseCase {
	return &StatsUseCase{
		vectorRepo: vectorRepo,
		metaRepo:   metaRepo,
		logger:     logger,
	}
}

// Stats собирает статистику индекса и хранилища метаданных.
// Недоступный векторный индекс отражается в статусе, а не ошибкой.
func (s *StatsUseCase) Stats(ctx context.Context) (*StatsRes, error) {
	const op = "StatsUseCase.Stats"

	res := &StatsRes{VectorizeStatus: statusUnavailable}

	stats, err := s.vectorRepo.Stats(ctx)
	if err != nil {
		s.logger.Warnf("index stats unavailable: %v", e.Wrap(op, err))
	} else {
		res.TotalIndexed = stats.Count
		res.VectorizeStatus = stats.Status
	}

	res.MetadataRows, err = s.metaRepo.Count(ctx, nil)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res.LastIndexedAt, err = s.metaRepo.LastIndexedAt(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return res, nil
}
