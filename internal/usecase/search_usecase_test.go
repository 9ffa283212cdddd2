package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

func searchCfg() *cfg.SearchCfg {
	return &cfg.SearchCfg{ExactThreshold: 0.85, SimilarThreshold: 0.70, DefaultTopK: 10, MaxTopK: 100, Timeout: 5 * time.Second}
}

type searchFixture struct {
	uc       *SearchUseCase
	acquirer *fakeAcquirer
	embedder *fakeEmbedder
	vectors  *fakeVectorRepo
	meta     *fakeMetaRepo
	cache    *fakeCache
}

// newSearchFixture индексирует товары с векторами, дающими заданные косинусы к запросу (1, 0, 0).
func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()

	f := &searchFixture{
		acquirer: &fakeAcquirer{fail: map[string]error{}},
		embedder: &fakeEmbedder{vectors: map[string][]float32{"query": {1, 0, 0}}, fail: map[int64]error{}},
		vectors:  newFakeVectorRepo(),
		meta:     newFakeMetaRepo(),
		cache:    newFakeCache(),
	}

	shop8, shop9 := int64(8), int64(9)
	seed := []struct {
		id     int64
		vector []float32
		shop   *int64
		meta   bool
	}{
		{1, []float32{1, 0, 0}, &shop8, true},          // 1.0
		{2, []float32{0.9, 0.4359, 0}, &shop8, true},   // 0.9
		{3, []float32{0.8, 0.6, 0}, &shop9, true},      // 0.8
		{4, []float32{0.7, 0.71414, 0}, &shop8, true},  // 0.7
		{5, []float32{0.6, 0.8, 0}, &shop8, true},      // 0.6
		{6, []float32{0.95, 0.31225, 0}, &shop8, false}, // 0.95 без метаданных
	}
	for _, s := range seed {
		meta := domain.NewProductMetadata(s.id, "p", 100, "k", nil, nil, nil, s.shop)
		_ = f.vectors.Upsert(context.Background(), domain.NewIndexPoint(s.id, domain.Normalize(s.vector), domain.NewPayload(meta, "m")))
		if s.meta {
			_, _ = f.meta.Upsert(context.Background(), meta)
		}
	}

	f.uc = NewSearchUC(f.acquirer, f.embedder, f.vectors, NewMetadataReader(f.meta, f.cache, logger.NewNop()), searchCfg(), logger.NewNop())
	return f
}

func intPtr(v int) *int { return &v }

func float32Ptr(v float32) *float32 { return &v }

func TestSearchBands(t *testing.T) {
	f := newSearchFixture(t)

	res, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := func(hits []domain.SearchHit) []int64 {
		out := make([]int64, 0, len(hits))
		for _, h := range hits {
			out = append(out, h.ProductID)
		}
		return out
	}

	if got := ids(res.Exact); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("exact = %v", got)
	}
	if got := ids(res.Similar); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("similar = %v", got)
	}

	for _, h := range res.Exact {
		if h.Score < 0.85 || h.Metadata == nil {
			t.Fatalf("exact hit %+v", h)
		}
	}
	for _, h := range res.Similar {
		if h.Score < 0.70 || h.Score >= 0.85 {
			t.Fatalf("similar hit %+v", h)
		}
	}
	if res.Exact[0].Score < 0.999 {
		t.Fatalf("self match score = %v", res.Exact[0].Score)
	}
	if res.TotalIndexed != 6 {
		t.Fatalf("total indexed = %d", res.TotalIndexed)
	}
}

func TestSearchThresholdAndFilters(t *testing.T) {
	f := newSearchFixture(t)

	res, err := f.uc.Search(context.Background(), &SearchReq{
		ImageURL:  "query",
		Threshold: float32Ptr(0.88),
		Filters:   map[string]any{"shop_id": float64(8)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Exact) != 2 || len(res.Similar) != 0 {
		t.Fatalf("exact=%v similar=%v", res.Exact, res.Similar)
	}
}

func TestSearchTopK(t *testing.T) {
	f := newSearchFixture(t)

	res, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query", TopK: intPtr(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Exact) != 1 || res.Exact[0].ProductID != 1 || len(res.Similar) != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestSearchValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name string
		req  *SearchReq
		want error
	}{
		{"no image", &SearchReq{}, e.ErrImageSourceRequired},
		{"both images", &SearchReq{ImageURL: "a", ImageBase64: "b"}, e.ErrImageSourceRequired},
		{"topK zero", &SearchReq{ImageURL: "query", TopK: intPtr(0)}, e.ErrInvalidTopK},
		{"topK negative", &SearchReq{ImageURL: "query", TopK: intPtr(-3)}, e.ErrInvalidTopK},
		{"topK over max", &SearchReq{ImageURL: "query", TopK: intPtr(101)}, e.ErrInvalidTopK},
		{"threshold over one", &SearchReq{ImageURL: "query", Threshold: float32Ptr(1.5)}, e.ErrInvalidThreshold},
		{"threshold negative", &SearchReq{ImageURL: "query", Threshold: float32Ptr(-0.1)}, e.ErrInvalidThreshold},
		{"unknown filter", &SearchReq{ImageURL: "query", Filters: map[string]any{"price": 1}}, e.ErrUnsupportedFilter},
		{"fractional shop", &SearchReq{ImageURL: "query", Filters: map[string]any{"shop_id": 1.5}}, e.ErrUnsupportedFilter},
		{"numeric colors", &SearchReq{ImageURL: "query", Filters: map[string]any{"colors": []any{1}}}, e.ErrUnsupportedFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSearchFixture(t)
			_, err := f.uc.Search(context.Background(), tt.req)
			if !errors.Is(err, tt.want) || !errors.Is(err, e.ErrValidation) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.acquirer.calls != 0 || f.embedder.calls != 0 {
				t.Fatal("validation must happen before any network call")
			}
		})
	}
}

func TestSearchDegradesWithoutMetadata(t *testing.T) {
	f := newSearchFixture(t)
	f.meta.batchErr = errBoom
	f.vectors.statsErr = errBoom

	res, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Exact) != 0 || len(res.Similar) != 0 || res.TotalIndexed != 0 {
		t.Fatalf("res = %+v", res)
	}
	if !res.Degraded {
		t.Fatal("failed enrichment must mark the result as degraded")
	}
}

func TestSearchHealthyResultIsNotDegraded(t *testing.T) {
	f := newSearchFixture(t)

	res, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Degraded {
		t.Fatalf("res = %+v, want not degraded", res)
	}
}

func TestSearchAcquireFailureIsFatal(t *testing.T) {
	f := newSearchFixture(t)
	f.acquirer.fail["query"] = e.ErrUnsupportedFormat

	_, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query"})
	if !errors.Is(err, e.ErrImageProcessing) {
		t.Fatalf("got %v", err)
	}
}

func TestSearchDeletedProductNeverReturned(t *testing.T) {
	f := newSearchFixture(t)
	_ = f.vectors.Delete(context.Background(), 1)
	_, _ = f.meta.Delete(context.Background(), 1)

	res, err := f.uc.Search(context.Background(), &SearchReq{ImageURL: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range append(res.Exact, res.Similar...) {
		if h.ProductID == 1 {
			t.Fatal("deleted product returned")
		}
	}
}

func TestNormalizeFilters(t *testing.T) {
	got, err := normalizeFilters(map[string]any{
		"shop_id":   float64(8),
		"colors":    []any{"red", "white"},
		"occasions": "birthday",
		"tags":      []any{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["shop_id"] != int64(8) || got["occasions"] != "birthday" {
		t.Fatalf("got %v", got)
	}
	if colors, ok := got["colors"].([]string); !ok || len(colors) != 2 {
		t.Fatalf("colors = %#v", got["colors"])
	}
	if _, ok := got["tags"]; ok {
		t.Fatal("empty tags filter must be dropped")
	}
}
