package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/converter"
)

func newTestRepo(t *testing.T) *MetadataRepo {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewMetadataRepo(db, converter.NewMetadataConverter())
}

func ptr[T any](v T) *T { return &v }

func TestMetadataRepo_UpsertKeepsIndexedAt(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	repo.now = func() time.Time { return first }
	created, err := repo.Upsert(ctx, domain.NewProductMetadata(42, "Пионы", 950000, "products/42.png",
		[]string{"pink"}, nil, []string{"premium"}, ptr(int64(8))))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created.IndexedAt.Equal(first) || !created.UpdatedAt.Equal(first) {
		t.Fatalf("timestamps = %v / %v, want %v", created.IndexedAt, created.UpdatedAt, first)
	}

	repo.now = func() time.Time { return second }
	updated, err := repo.Upsert(ctx, domain.NewProductMetadata(42, "Пионы XL", 990000, "products/42.png",
		nil, []string{"wedding"}, nil, ptr(int64(8))))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if !updated.IndexedAt.Equal(first) {
		t.Errorf("indexed_at = %v, want %v", updated.IndexedAt, first)
	}
	if !updated.UpdatedAt.Equal(second) {
		t.Errorf("updated_at = %v, want %v", updated.UpdatedAt, second)
	}

	got, err := repo.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Пионы XL" || got.Price != 990000 {
		t.Errorf("last write not reflected: %+v", got)
	}
	if got.Colors != nil {
		t.Errorf("colors = %v, want nil after overwrite", got.Colors)
	}
	if len(got.Occasions) != 1 || got.Occasions[0] != "wedding" {
		t.Errorf("occasions = %v", got.Occasions)
	}
}

func TestMetadataRepo_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get() = %+v, want nil", got)
	}
}

func TestMetadataRepo_GetBatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, id := range []int64{1, 2, 3} {
		if _, err := repo.Upsert(ctx, domain.NewProductMetadata(id, "bouquet", 100, "k", nil, nil, nil, nil)); err != nil {
			t.Fatalf("Upsert(%d): %v", id, err)
		}
	}

	got, err := repo.GetBatch(ctx, []int64{1, 3, 99})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetBatch() returned %d records, want 2", len(got))
	}
	if _, ok := got[99]; ok {
		t.Errorf("unexpected record for missing id")
	}

	empty, err := repo.GetBatch(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("GetBatch(nil) = %v, %v", empty, err)
	}
}

func TestMetadataRepo_BrokenArrayIsAbsent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Upsert(ctx, domain.NewProductMetadata(5, "roses", 100, "k", []string{"red"}, nil, nil, nil)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := repo.db.ExecContext(ctx, `UPDATE product_metadata SET colors = '["red",' WHERE product_id = 5`); err != nil {
		t.Fatalf("corrupt colors: %v", err)
	}

	got, err := repo.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Colors != nil {
		t.Fatalf("colors = %v, want nil", got.Colors)
	}
}

func TestMetadataRepo_DeleteCountAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	last, err := repo.LastIndexedAt(ctx)
	if err != nil || last != nil {
		t.Fatalf("LastIndexedAt() on empty table = %v, %v", last, err)
	}

	for _, id := range []int64{10, 20, 30} {
		shop := ptr(int64(1))
		if id == 30 {
			shop = ptr(int64(2))
		}
		if _, err := repo.Upsert(ctx, domain.NewProductMetadata(id, "b", 1, "k", nil, nil, nil, shop)); err != nil {
			t.Fatalf("Upsert(%d): %v", id, err)
		}
	}

	total, err := repo.Count(ctx, nil)
	if err != nil || total != 3 {
		t.Fatalf("Count(nil) = %d, %v", total, err)
	}
	perShop, err := repo.Count(ctx, ptr(int64(1)))
	if err != nil || perShop != 2 {
		t.Fatalf("Count(1) = %d, %v", perShop, err)
	}

	ids, err := repo.ListIDs(ctx, 10, 10)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 20 || ids[1] != 30 {
		t.Fatalf("ListIDs() = %v", ids)
	}

	deleted, err := repo.Delete(ctx, 20)
	if err != nil || !deleted {
		t.Fatalf("Delete(20) = %v, %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, 20)
	if err != nil || deleted {
		t.Fatalf("second Delete(20) = %v, %v", deleted, err)
	}

	last, err = repo.LastIndexedAt(ctx)
	if err != nil || last == nil {
		t.Fatalf("LastIndexedAt() = %v, %v", last, err)
	}
}

func TestMetadataRepo_LastIndexedAtWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2025, 1, 10, 8, 0, 5, 0, time.UTC)
	writes := []struct {
		id int64
		at time.Time
	}{
		{1, base.Add(500 * time.Millisecond)},
		{2, base.Add(900 * time.Millisecond)},
		{3, base},
	}
	for _, w := range writes {
		repo.now = func() time.Time { return w.at }
		if _, err := repo.Upsert(ctx, domain.NewProductMetadata(w.id, "b", 1, "k", nil, nil, nil, nil)); err != nil {
			t.Fatalf("Upsert(%d): %v", w.id, err)
		}
	}

	want := base.Add(900 * time.Millisecond)
	last, err := repo.LastIndexedAt(ctx)
	if err != nil || last == nil {
		t.Fatalf("LastIndexedAt() = %v, %v", last, err)
	}
	if !last.Equal(want) {
		t.Fatalf("LastIndexedAt() = %v, want %v", last, want)
	}
}
