package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// ReconcileUseCase устраняет расхождения между векторным индексом и хранилищем метаданных:
// удаляет векторы без метаданных и метаданные без векторов.
type ReconcileUseCase struct {
	vectorRepo VectorRepository
	metaRepo   MetadataRepository
	cacheRepo  CacheRepository
	cfg        *cfg.ReconcileCfg
	logger     logger.Logger
	now        func() time.Time
}

func NewReconcileUC(
	vectorRepo VectorRepository,
	metaRepo MetadataRepository,
	cacheRepo CacheRepository,
	cfg *cfg.ReconcileCfg,
	logger logger.Logger,
) *ReconcileUseCase {
	if cacheRepo == nil {
		cacheRepo = nopCache{}
	}

	return &ReconcileUseCase{
		vectorRepo: vectorRepo,
		metaRepo:   metaRepo,
		cacheRepo:  cacheRepo,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (r *ReconcileUseCase) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	const op = "ReconcileUseCase.Reconcile"
	start := time.Now()
	report := &domain.ReconcileReport{}

	if err := r.sweepVectors(ctx, report); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := r.sweepMetadata(ctx, report); err != nil {
		return nil, e.Wrap(op, err)
	}

	report.Duration = time.Since(start)
	r.logger.Infof("reconcile: checked %d vectors and %d metadata rows, removed %d orphan vectors and %d orphan rows in %s",
		report.VectorsChecked, report.MetadataChecked, report.OrphanVectorsRemoved, report.OrphanMetadataRemoved, report.Duration)

	return report, nil
}

// sweepVectors удаляет векторы, для которых нет метаданных.
// Векторы моложе cfg.Grace пропускаются: индексация пишет метаданные после вектора.
func (r *ReconcileUseCase) sweepVectors(ctx context.Context, report *domain.ReconcileReport) error {
	cutoff := r.now().Add(-r.cfg.Grace)

	var offset *int64
	for {
		page, err := r.vectorRepo.ScrollIDs(ctx, offset, r.cfg.PageSize)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(page.Points))
		for _, p := range page.Points {
			ids = append(ids, p.ProductID)
		}
		report.VectorsChecked += len(ids)

		metas, err := r.metaRepo.GetBatch(ctx, ids)
		if err != nil {
			return err
		}

		orphans := make([]int64, 0)
		for _, p := range page.Points {
			if _, ok := metas[p.ProductID]; ok {
				continue
			}
			if !p.IndexedAt.IsZero() && p.IndexedAt.After(cutoff) {
				continue
			}
			orphans = append(orphans, p.ProductID)
		}

		if len(orphans) > 0 {
			if err := r.vectorRepo.Delete(ctx, orphans...); err != nil {
				return err
			}
			report.OrphanVectorsRemoved += len(orphans)
			r.logger.Infof("reconcile: removed orphan vectors %v", orphans)
		}

		if page.Next == nil {
			return nil
		}
		offset = page.Next
	}
}

// sweepMetadata удаляет записи метаданных, для которых в индексе нет вектора.
func (r *ReconcileUseCase) sweepMetadata(ctx context.Context, report *domain.ReconcileReport) error {
	var after int64
	for {
		ids, err := r.metaRepo.ListIDs(ctx, after, r.cfg.PageSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		report.MetadataChecked += len(ids)

		existing, err := r.vectorRepo.Existing(ctx, ids)
		if err != nil {
			return err
		}

		orphans := make([]int64, 0)
		for _, id := range ids {
			if existing[id] {
				continue
			}
			if _, err := r.metaRepo.Delete(ctx, id); err != nil {
				return err
			}
			orphans = append(orphans, id)
		}

		if len(orphans) > 0 {
			report.OrphanMetadataRemoved += len(orphans)
			if err := r.cacheRepo.DeleteProducts(ctx, orphans); err != nil {
				r.logger.Warnf("reconcile: failed to invalidate cached metadata: %v", err)
			}
			r.logger.Infof("reconcile: removed orphan metadata rows %v", orphans)
		}

		if len(ids) < r.cfg.PageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}
