package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type indexFixture struct {
	uc       *IndexUseCase
	acquirer *fakeAcquirer
	embedder *fakeEmbedder
	vectors  *fakeVectorRepo
	meta     *fakeMetaRepo
	cache    *fakeCache
	images   *fakeImages
	outbox   *fakeOutbox
	catalog  *fakeCatalog
	tr       *recordingManager
}

func newIndexFixture() *indexFixture {
	f := &indexFixture{
		acquirer: &fakeAcquirer{fail: map[string]error{}},
		embedder: &fakeEmbedder{vectors: map[string][]float32{}, fail: map[int64]error{}},
		vectors:  newFakeVectorRepo(),
		meta:     newFakeMetaRepo(),
		cache:    newFakeCache(),
		images:   &fakeImages{},
		outbox:   &fakeOutbox{},
		catalog:  &fakeCatalog{},
		tr:       &recordingManager{},
	}
	f.uc = NewIndexUC(f.acquirer, f.embedder, f.vectors, f.meta, f.cache, f.images, f.outbox, f.catalog, f.tr,
		&cfg.BatchCfg{DefaultLimit: 50, MaxLimit: 500, Concurrency: 3}, logger.NewNop())
	return f
}

func validIndexReq() *IndexProductReq {
	shop := int64(8)
	return &IndexProductReq{
		ProductID: 42,
		Name:      "Букет из 25 роз",
		Price:     950000,
		ImageURL:  "https://cdn.example.com/42.png",
		Colors:    []string{"red"},
		ShopID:    &shop,
	}
}

func TestIndexProduct(t *testing.T) {
	f := newIndexFixture()

	res, err := f.uc.IndexProduct(context.Background(), validIndexReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProductID != 42 || res.VectorID != "42" || res.IndexedAt.IsZero() {
		t.Fatalf("res = %+v", res)
	}

	point, ok := f.vectors.points[42]
	if !ok {
		t.Fatal("vector not upserted")
	}
	if point.Payload["shop_id"] != int64(8) || point.Payload["model"] != "test-model" {
		t.Fatalf("payload = %v", point.Payload)
	}

	meta := f.meta.rows[42]
	if meta == nil || meta.ImageKey != "https://cdn.example.com/42.png" || meta.Price != 950000 {
		t.Fatalf("meta = %+v", meta)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != domain.EventProductIndexed {
		t.Fatalf("outbox = %+v", f.outbox.events)
	}
	var ev domain.IndexEvent
	if err := json.Unmarshal(f.outbox.events[0].Payload, &ev); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if ev.ProductID != 42 || ev.VectorID != "42" || ev.ShopID == nil || *ev.ShopID != 8 {
		t.Fatalf("event = %+v", ev)
	}

	cached := f.cache.cached(42)
	if cached == nil || cached.Price != 950000 || !cached.UpdatedAt.Equal(meta.UpdatedAt) {
		t.Fatalf("cached = %+v, want saved record", cached)
	}
	if len(f.cache.deleted) != 0 {
		t.Fatalf("successful write-through must not delete keys: %v", f.cache.deleted)
	}
}

func TestIndexProductCacheWriteFailureInvalidates(t *testing.T) {
	f := newIndexFixture()
	f.cache.setErr = errors.New("redis down")

	if _, err := f.uc.IndexProduct(context.Background(), validIndexReq()); err != nil {
		t.Fatalf("cache failure must not fail indexing: %v", err)
	}
	if len(f.cache.deleted) != 1 || f.cache.deleted[0] != 42 {
		t.Fatalf("cache invalidation = %v", f.cache.deleted)
	}
}

func TestReindexWinsOverLateCacheFill(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	req := validIndexReq()
	req.Name, req.Price = "old", 100
	if _, err := f.uc.IndexProduct(ctx, req); err != nil {
		t.Fatalf("first index: %v", err)
	}
	// Ключ истек: следующее чтение пойдет в хранилище
	if err := f.cache.DeleteProducts(ctx, []int64{42}); err != nil {
		t.Fatal(err)
	}

	reader := NewMetadataReader(f.meta, f.cache, logger.NewNop())
	f.cache.addGate = make(chan struct{})

	got, err := reader.GetBatch(ctx, []int64{42})
	if err != nil || got[42].Name != "old" {
		t.Fatalf("read before reindex: %v, %v", got, err)
	}

	req.Name, req.Price = "new", 200
	if _, err := f.uc.IndexProduct(ctx, req); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	// Заполнение с версией, прочитанной до переиндексации, завершается последним
	close(f.cache.addGate)
	select {
	case <-f.cache.set:
	case <-time.After(time.Second):
		t.Fatal("cache fill did not finish")
	}

	got, err = reader.GetBatch(ctx, []int64{42})
	if err != nil {
		t.Fatalf("read after reindex: %v", err)
	}
	if got[42].Name != "new" || got[42].Price != 200 {
		t.Fatalf("after reindex got name=%q price=%d, want new/200", got[42].Name, got[42].Price)
	}
}

func TestIndexProductTwiceKeepsFirstIndexedAt(t *testing.T) {
	f := newIndexFixture()

	if _, err := f.uc.IndexProduct(context.Background(), validIndexReq()); err != nil {
		t.Fatalf("first index: %v", err)
	}
	first := *f.meta.rows[42]

	req := validIndexReq()
	req.Price = 990000
	if _, err := f.uc.IndexProduct(context.Background(), req); err != nil {
		t.Fatalf("second index: %v", err)
	}
	second := f.meta.rows[42]

	if !second.IndexedAt.Equal(first.IndexedAt) {
		t.Fatalf("indexed_at changed: %v -> %v", first.IndexedAt, second.IndexedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) || second.Price != 990000 {
		t.Fatalf("second = %+v", second)
	}
	if len(f.vectors.points) != 1 {
		t.Fatalf("vectors = %d", len(f.vectors.points))
	}
}

func TestIndexProductValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *IndexProductReq)
		want   error
	}{
		{"zero id", func(r *IndexProductReq) { r.ProductID = 0 }, e.ErrInvalidProductID},
		{"negative id", func(r *IndexProductReq) { r.ProductID = -1 }, e.ErrInvalidProductID},
		{"blank name", func(r *IndexProductReq) { r.Name = "  " }, e.ErrProductNameRequired},
		{"negative price", func(r *IndexProductReq) { r.Price = -5 }, e.ErrPriceMustBePositive},
		{"no image", func(r *IndexProductReq) { r.ImageURL = "" }, e.ErrImageSourceRequired},
		{"two images", func(r *IndexProductReq) { r.ImageBase64 = "data:image/png;base64,AAAA" }, e.ErrImageSourceRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIndexFixture()
			req := validIndexReq()
			tt.mutate(req)

			_, err := f.uc.IndexProduct(context.Background(), req)
			if !errors.Is(err, tt.want) || !errors.Is(err, e.ErrValidation) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.acquirer.calls != 0 || f.embedder.calls != 0 {
				t.Fatal("validation must happen before any upstream call")
			}
		})
	}
}

func TestIndexProductBase64UploadsImage(t *testing.T) {
	f := newIndexFixture()
	req := validIndexReq()
	req.ImageURL = ""
	req.ImageBase64 = "data:image/png;base64,iVBORw0KGgo="

	if _, err := f.uc.IndexProduct(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.images.uploaded) != 1 || f.images.uploaded[0] != "products/42.png" {
		t.Fatalf("uploaded = %v", f.images.uploaded)
	}
	if f.meta.rows[42].ImageKey != "products/42.png" {
		t.Fatalf("image key = %q", f.meta.rows[42].ImageKey)
	}
	if len(f.images.cleaned) != 0 {
		t.Fatalf("cleaned = %v", f.images.cleaned)
	}
}

func TestIndexProductCleansUpUploadOnFailure(t *testing.T) {
	f := newIndexFixture()
	f.meta.upsertErr = errBoom
	req := validIndexReq()
	req.ImageURL = ""
	req.ImageBase64 = "data:image/png;base64,iVBORw0KGgo="

	_, err := f.uc.IndexProduct(context.Background(), req)
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v", err)
	}
	if len(f.images.cleaned) != 1 || f.images.cleaned[0] != "products/42.png" {
		t.Fatalf("cleaned = %v", f.images.cleaned)
	}
}

func TestIndexProductStopsOnIndexFailure(t *testing.T) {
	f := newIndexFixture()
	f.vectors.upsertErr = errBoom

	_, err := f.uc.IndexProduct(context.Background(), validIndexReq())
	if !errors.Is(err, e.ErrIndexOperation) {
		t.Fatalf("got %v", err)
	}
	if len(f.meta.rows) != 0 || len(f.outbox.events) != 0 {
		t.Fatal("metadata must not be written when the vector upsert fails")
	}
}

func TestIndexProductEmbeddingFailure(t *testing.T) {
	f := newIndexFixture()
	f.embedder.fail[42] = fmt.Errorf("%w: upstream 500", e.ErrEmbedding)

	_, err := f.uc.IndexProduct(context.Background(), validIndexReq())
	if !errors.Is(err, e.ErrEmbedding) {
		t.Fatalf("got %v", err)
	}
	if len(f.vectors.points) != 0 {
		t.Fatal("vector must not be written")
	}
}

func TestDeleteProduct(t *testing.T) {
	f := newIndexFixture()
	if _, err := f.uc.IndexProduct(context.Background(), validIndexReq()); err != nil {
		t.Fatalf("index: %v", err)
	}

	res, err := f.uc.DeleteProduct(context.Background(), 42)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.Deleted || res.ProductID != 42 {
		t.Fatalf("res = %+v", res)
	}
	if len(f.vectors.points) != 0 || len(f.meta.rows) != 0 {
		t.Fatal("product must be gone from both stores")
	}
	if last := f.outbox.events[len(f.outbox.events)-1]; last.EventType != domain.EventProductDeleted {
		t.Fatalf("last event = %s", last.EventType)
	}

	// повторное удаление не ошибка и не порождает событие
	events := len(f.outbox.events)
	if _, err := f.uc.DeleteProduct(context.Background(), 42); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if len(f.outbox.events) != events {
		t.Fatal("missing product must not emit an event")
	}

	if _, err := f.uc.DeleteProduct(context.Background(), 0); !errors.Is(err, e.ErrInvalidProductID) {
		t.Fatalf("got %v", err)
	}
}

func catalogPage(n int) *domain.CatalogPage {
	page := &domain.CatalogPage{}
	for i := 1; i <= n; i++ {
		page.Products = append(page.Products, domain.CatalogProduct{
			ID:       int64(i),
			Name:     fmt.Sprintf("product %d", i),
			Price:    int64(i * 100),
			ImageURL: fmt.Sprintf("https://img.example.com/%d.png", i),
		})
	}
	return page
}

func TestBatchIndexIsolatesFailures(t *testing.T) {
	f := newIndexFixture()
	f.catalog.page = catalogPage(10)
	f.catalog.page.Products[2].ImageURL = ""
	f.catalog.page.Products[6].ImageURL = ""
	f.acquirer.fail["https://img.example.com/5.png"] = e.ErrUnsupportedFormat
	f.embedder.fail[9] = e.ErrEmbedding

	report, err := f.uc.BatchIndex(context.Background(), &BatchIndexReq{Source: BatchSourceCatalog})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 10 || report.Indexed != 6 || report.Failed != 4 {
		t.Fatalf("report = %+v", report)
	}
	if report.Indexed+report.Failed != report.Total {
		t.Fatal("indexed + failed must equal total")
	}

	wantFailed := []int64{3, 5, 7, 9}
	if len(report.Errors) != len(wantFailed) {
		t.Fatalf("errors = %+v", report.Errors)
	}
	for i, ie := range report.Errors {
		if ie.ProductID != wantFailed[i] || ie.Err == nil || ie.Err.Error() == "" {
			t.Fatalf("error %d = %+v", i, ie)
		}
	}
	if !errors.Is(report.Errors[0].Err, e.ErrNoImageURL) {
		t.Fatalf("missing url error = %v", report.Errors[0].Err)
	}

	if f.catalog.last.Limit != 50 || f.catalog.last.Offset != 0 {
		t.Fatalf("catalog req = %+v", f.catalog.last)
	}
	if len(f.meta.rows) != 6 || len(f.vectors.points) != 6 || len(f.outbox.events) != 6 {
		t.Fatalf("rows=%d vectors=%d events=%d", len(f.meta.rows), len(f.vectors.points), len(f.outbox.events))
	}
}

func TestBatchIndexFailedChunk(t *testing.T) {
	f := newIndexFixture()
	f.vectors.chunk = 4
	f.vectors.failIDs[6] = true
	f.catalog.page = catalogPage(10)

	report, err := f.uc.BatchIndex(context.Background(), &BatchIndexReq{Source: BatchSourceCatalog, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// второй чанк (товары 5..8) не записан целиком
	if report.Indexed != 6 || report.Failed != 4 {
		t.Fatalf("report = %+v", report)
	}
	for _, ie := range report.Errors {
		if ie.ProductID < 5 || ie.ProductID > 8 || !errors.Is(ie.Err, e.ErrIndexOperation) {
			t.Fatalf("unexpected failure %+v", ie)
		}
		if _, ok := f.meta.rows[ie.ProductID]; ok {
			t.Fatalf("metadata written for failed product %d", ie.ProductID)
		}
	}
}

func TestBatchIndexRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		req  *BatchIndexReq
		want error
	}{
		{"unknown source", &BatchIndexReq{Source: "csv"}, e.ErrUnsupportedSource},
		{"limit too big", &BatchIndexReq{Source: BatchSourceCatalog, Limit: 501}, e.ErrInvalidLimit},
		{"negative limit", &BatchIndexReq{Source: BatchSourceCatalog, Limit: -1}, e.ErrInvalidLimit},
		{"negative offset", &BatchIndexReq{Source: BatchSourceCatalog, Offset: -1}, e.ErrInvalidOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIndexFixture()
			f.catalog.page = catalogPage(1)
			if _, err := f.uc.BatchIndex(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.catalog.last != nil {
				t.Fatal("catalog must not be called")
			}
		})
	}

	f := newIndexFixture()
	f.catalog.err = e.ErrCatalogUnavailable
	if _, err := f.uc.BatchIndex(context.Background(), &BatchIndexReq{}); !errors.Is(err, e.ErrCatalogUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestIndexWithoutOutboxAndCache(t *testing.T) {
	acquirer := &fakeAcquirer{}
	embedder := &fakeEmbedder{}
	vectors := newFakeVectorRepo()
	meta := newFakeMetaRepo()

	uc := NewIndexUC(acquirer, embedder, vectors, meta, nil, nil, nil, &fakeCatalog{}, nil,
		&cfg.BatchCfg{DefaultLimit: 50, MaxLimit: 500, Concurrency: 3}, logger.NewNop())

	if _, err := uc.IndexProduct(context.Background(), validIndexReq()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uc.DeleteProduct(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
