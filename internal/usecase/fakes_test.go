package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

var errBoom = errors.New("boom")

// fakeAcquirer отдает байты, по которым fakeEmbedder строит детерминированный вектор.
type fakeAcquirer struct {
	mu    sync.Mutex
	fail  map[string]error
	calls int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, src domain.ImageSource) (*domain.AcquiredImage, error) {
	f.mu.Lock()
	f.calls++
	err := f.fail[src.Value]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &domain.AcquiredImage{Bytes: []byte(src.Value), Format: domain.ImageFormatPNG, Source: src}, nil
}

// fakeEmbedder превращает байты изображения в вектор через vectors; неизвестные байты дают ось 0.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[int64]error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, productID int64, image []byte) (*domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[productID]; err != nil {
		return nil, err
	}

	vec, ok := f.vectors[string(image)]
	if !ok {
		vec = []float32{1, 0, 0}
	}

	return domain.NewEmbedding(productID, domain.Normalize(vec), "test-model"), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, items []EmbedItem) []EmbedResult {
	out := make([]EmbedResult, len(items))
	for i, item := range items {
		emb, err := f.Embed(ctx, item.ProductID, item.Image)
		out[i] = EmbedResult{ProductID: item.ProductID, Embedding: emb, Err: err}
	}
	return out
}

type fakeVectorRepo struct {
	mu        sync.Mutex
	points    map[int64]domain.IndexPoint
	indexedAt map[int64]time.Time
	failIDs   map[int64]bool
	upsertErr error
	statsErr  error
	chunk     int
}

func newFakeVectorRepo() *fakeVectorRepo {
	return &fakeVectorRepo{points: map[int64]domain.IndexPoint{}, indexedAt: map[int64]time.Time{}, failIDs: map[int64]bool{}, chunk: 100}
}

func (f *fakeVectorRepo) Upsert(ctx context.Context, point *domain.IndexPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return e.NewIndexOperationError("upsert", []int64{point.ProductID}, f.upsertErr)
	}
	f.points[point.ProductID] = *point
	return nil
}

func (f *fakeVectorRepo) UpsertBatch(ctx context.Context, points []domain.IndexPoint) (*UpsertBatchRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := NewUpsertBatchRes()
	for start := 0; start < len(points); start += f.chunk {
		chunk := points[start:min(start+f.chunk, len(points))]
		res.Chunks++

		bad := false
		for _, p := range chunk {
			bad = bad || f.failIDs[p.ProductID]
		}
		if bad {
			res.FailedChunks++
			for _, p := range chunk {
				res.Failed[p.ProductID] = e.NewIndexOperationError("upsert_batch", []int64{p.ProductID}, errBoom)
			}
			continue
		}

		for _, p := range chunk {
			f.points[p.ProductID] = p
		}
		res.Upserted += len(chunk)
	}
	return res, nil
}

func (f *fakeVectorRepo) Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.VectorMatch, 0)
	for id, p := range f.points {
		if shop, ok := filter["shop_id"]; ok && p.Payload["shop_id"] != shop {
			continue
		}
		var dot float32
		for i := range vector {
			dot += vector[i] * p.Vector[i]
		}
		out = append(out, domain.VectorMatch{ProductID: id, Score: dot, Payload: p.Payload})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeVectorRepo) Delete(ctx context.Context, ids ...int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points, id)
	}
	return nil
}

func (f *fakeVectorRepo) Stats(ctx context.Context) (*domain.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &domain.IndexStats{Count: uint64(len(f.points)), Dimensions: 3, Status: "green"}, nil
}

func (f *fakeVectorRepo) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.points))
	for id := range f.points {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeVectorRepo) ScrollIDs(ctx context.Context, offset *int64, limit int) (*ScrollIDsRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &ScrollIDsRes{}
	for _, id := range f.sortedIDs() {
		if offset != nil && id < *offset {
			continue
		}
		if len(res.Points) == limit {
			next := id
			res.Next = &next
			break
		}
		res.Points = append(res.Points, domain.IndexedVector{ProductID: id, IndexedAt: f.indexedAt[id]})
	}
	return res, nil
}

func (f *fakeVectorRepo) Existing(ctx context.Context, ids []int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		_, out[id] = f.points[id]
	}
	return out, nil
}

type fakeMetaRepo struct {
	mu        sync.Mutex
	rows      map[int64]*domain.ProductMetadata
	upsertErr error
	batchErr  error
	batches   int
	now       time.Time
}

func newFakeMetaRepo() *fakeMetaRepo {
	return &fakeMetaRepo{rows: map[int64]*domain.ProductMetadata{}, now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeMetaRepo) Upsert(ctx context.Context, meta *domain.ProductMetadata) (*domain.ProductMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.now = f.now.Add(time.Second)
	saved := *meta
	saved.IndexedAt, saved.UpdatedAt = f.now, f.now
	if old, ok := f.rows[meta.ProductID]; ok {
		saved.IndexedAt = old.IndexedAt
	}
	f.rows[meta.ProductID] = &saved
	cp := saved
	return &cp, nil
}

func (f *fakeMetaRepo) Get(ctx context.Context, productID int64) (*domain.ProductMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.rows[productID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeMetaRepo) GetBatch(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[int64]*domain.ProductMetadata)
	for _, id := range ids {
		if m, ok := f.rows[id]; ok {
			cp := *m
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeMetaRepo) Delete(ctx context.Context, productID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[productID]
	delete(f.rows, productID)
	return ok, nil
}

func (f *fakeMetaRepo) Count(ctx context.Context, shopID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeMetaRepo) LastIndexedAt(ctx context.Context) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, m := range f.rows {
		if last == nil || m.UpdatedAt.After(*last) {
			t := m.UpdatedAt
			last = &t
		}
	}
	return last, nil
}

func (f *fakeMetaRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0)
	for id := range f.rows {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeCache struct {
	mu      sync.Mutex
	items   map[int64]*domain.ProductMetadata
	written []int64
	deleted []int64
	getErr  error
	setErr  error
	// set сигналит о завершенном фоновом заполнении
	set chan struct{}
	// addGate, если задан, задерживает заполнение до закрытия
	addGate chan struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[int64]*domain.ProductMetadata{}, set: make(chan struct{}, 16)}
}

func (f *fakeCache) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make(map[int64]*domain.ProductMetadata)
	for _, id := range ids {
		if m, ok := f.items[id]; ok {
			cp := *m
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeCache) SetProducts(ctx context.Context, products []*domain.ProductMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	for _, p := range products {
		cp := *p
		f.items[p.ProductID] = &cp
		f.written = append(f.written, p.ProductID)
	}
	return nil
}

func (f *fakeCache) AddProducts(ctx context.Context, products []*domain.ProductMetadata) error {
	if f.addGate != nil {
		<-f.addGate
	}

	f.mu.Lock()
	for _, p := range products {
		if _, ok := f.items[p.ProductID]; !ok {
			cp := *p
			f.items[p.ProductID] = &cp
		}
	}
	f.mu.Unlock()

	select {
	case f.set <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeCache) cached(id int64) *domain.ProductMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

func (f *fakeCache) DeleteProducts(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.items, id)
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeImages struct {
	mu       sync.Mutex
	uploaded []string
	cleaned  []string
}

func (f *fakeImages) UploadImage(ctx context.Context, productID int64, image *domain.AcquiredImage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.ProductImageKey("products", productID, image.Format)
	f.uploaded = append(f.uploaded, key)
	return key, nil
}

func (f *fakeImages) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys...)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
	err    error
}

func (f *fakeOutbox) Create(ctx context.Context, event *domain.OutboxEvent) (*domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	event.ID = int64(len(f.events) + 1)
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(ctx context.Context, id int64) error { return nil }

func (f *fakeOutbox) ReleaseStale(ctx context.Context, olderThanSeconds int) (int64, error) {
	return 0, nil
}

type fakeCatalog struct {
	page *domain.CatalogPage
	err  error
	last *ListProductsReq
}

func (f *fakeCatalog) ListProducts(ctx context.Context, req *ListProductsReq) (*domain.CatalogPage, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

// recordingManager считает вызовы Do.
type recordingManager struct {
	calls int
}

func (r *recordingManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}
