package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

func TestReconcileRemovesOrphans(t *testing.T) {
	vectors := newFakeVectorRepo()
	meta := newFakeMetaRepo()
	cache := newFakeCache()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 1..250 консистентны, 251..255 векторы без метаданных, 300..302 метаданные без векторов
	for id := int64(1); id <= 255; id++ {
		vectors.points[id] = domain.IndexPoint{ProductID: id, Vector: []float32{1, 0, 0}}
		vectors.indexedAt[id] = now.Add(-time.Hour)
		if id <= 250 {
			meta.rows[id] = &domain.ProductMetadata{ProductID: id}
		}
	}
	// свежий вектор без метаданных: индексация могла еще не дописать метаданные
	vectors.points[256] = domain.IndexPoint{ProductID: 256, Vector: []float32{1, 0, 0}}
	vectors.indexedAt[256] = now.Add(-time.Minute)
	for id := int64(300); id <= 302; id++ {
		meta.rows[id] = &domain.ProductMetadata{ProductID: id}
	}

	uc := NewReconcileUC(vectors, meta, cache, &cfg.ReconcileCfg{PageSize: 100, Grace: 5 * time.Minute}, logger.NewNop())
	uc.now = func() time.Time { return now }

	report, err := uc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.VectorsChecked != 256 || report.OrphanVectorsRemoved != 5 {
		t.Fatalf("vectors: %+v", report)
	}
	if report.MetadataChecked != 253 || report.OrphanMetadataRemoved != 3 {
		t.Fatalf("metadata: %+v", report)
	}

	for id := int64(251); id <= 255; id++ {
		if _, ok := vectors.points[id]; ok {
			t.Fatalf("orphan vector %d kept", id)
		}
	}
	if _, ok := vectors.points[256]; !ok {
		t.Fatal("fresh vector must survive the grace period")
	}
	for id := int64(300); id <= 302; id++ {
		if _, ok := meta.rows[id]; ok {
			t.Fatalf("orphan metadata %d kept", id)
		}
	}
	if len(cache.deleted) != 3 {
		t.Fatalf("cache invalidation = %v", cache.deleted)
	}

	// вторая сверка ничего не находит
	report, err = uc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.OrphanVectorsRemoved != 0 || report.OrphanMetadataRemoved != 0 {
		t.Fatalf("second run: %+v", report)
	}
}

func TestStats(t *testing.T) {
	vectors := newFakeVectorRepo()
	meta := newFakeMetaRepo()
	vectors.points[1] = domain.IndexPoint{ProductID: 1}
	_, _ = meta.Upsert(context.Background(), &domain.ProductMetadata{ProductID: 1})

	uc := NewStatsUC(vectors, meta, logger.NewNop())

	res, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalIndexed != 1 || res.MetadataRows != 1 || res.VectorizeStatus != "green" || res.LastIndexedAt == nil {
		t.Fatalf("res = %+v", res)
	}

	vectors.statsErr = errBoom
	res, err = uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VectorizeStatus != "unavailable" || res.TotalIndexed != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestMetadataReaderCacheAside(t *testing.T) {
	meta := newFakeMetaRepo()
	cache := newFakeCache()
	for id := int64(1); id <= 3; id++ {
		_, _ = meta.Upsert(context.Background(), &domain.ProductMetadata{ProductID: id, Name: "db"})
	}
	cache.items[1] = &domain.ProductMetadata{ProductID: 1, Name: "cached"}

	r := NewMetadataReader(meta, cache, logger.NewNop())

	got, err := r.GetBatch(context.Background(), []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[1].Name != "cached" || got[2].Name != "db" {
		t.Fatalf("got %v", got)
	}
	if _, ok := got[4]; ok {
		t.Fatal("missing id must be absent")
	}

	select {
	case <-cache.set:
	case <-time.After(time.Second):
		t.Fatal("misses were not cached")
	}

	cache.mu.Lock()
	_, cached := cache.items[2]
	cache.mu.Unlock()
	if !cached {
		t.Fatal("product 2 must be cached after a miss")
	}

	// сбой кэша уводит чтение в хранилище
	cache.getErr = errBoom
	before := meta.batches
	got, err = r.GetBatch(context.Background(), []int64{1})
	if err != nil || got[1].Name != "db" || meta.batches != before+1 {
		t.Fatalf("got %v, err %v", got, err)
	}
	<-cache.set
}
