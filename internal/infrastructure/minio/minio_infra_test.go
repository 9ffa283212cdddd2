package minio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type fakeImageRepo struct {
	mu        sync.Mutex
	uploaded  map[string]*domain.Image
	deletes   map[string]int
	failUntil int
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{uploaded: map[string]*domain.Image{}, deletes: map[string]int{}}
}

func (f *fakeImageRepo) Upload(ctx context.Context, image *domain.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[image.ObjectKey] = image
	return image.ObjectKey, nil
}

func (f *fakeImageRepo) Get(ctx context.Context, key string, maxSize int64) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeImageRepo) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[key]++
	if f.deletes[key] <= f.failUntil {
		return errors.New("minio unavailable")
	}
	delete(f.uploaded, key)
	return nil
}

func newTestInfra(repo *fakeImageRepo) *MinioInfrastructure {
	m := NewMinioInfrastructure(repo, &cfg.MinIOCfg{BucketName: "bouquets", ProductPrefix: "products"}, logger.NewNop(), context.Background())
	m.backoffBase = time.Millisecond
	return m
}

func TestUploadImageKey(t *testing.T) {
	repo := newFakeImageRepo()
	m := newTestInfra(repo)

	key, err := m.UploadImage(context.Background(), 42, &domain.AcquiredImage{Bytes: []byte{0xFF, 0xD8, 0xFF}, Format: domain.ImageFormatJPEG})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "products/42.jpg" {
		t.Fatalf("key = %q", key)
	}
	if img := repo.uploaded[key]; img == nil || img.Bucket != "bouquets" {
		t.Fatalf("uploaded = %+v", repo.uploaded)
	}
}

func TestCleanupRetriesUntilDeleted(t *testing.T) {
	repo := newFakeImageRepo()
	repo.failUntil = 2
	m := newTestInfra(repo)
	repo.uploaded["products/1.png"] = &domain.Image{}

	m.CleanupImages([]string{"products/1.png"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitForCleanup(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if repo.deletes["products/1.png"] != 3 {
		t.Fatalf("delete attempts = %d", repo.deletes["products/1.png"])
	}
	if _, ok := repo.uploaded["products/1.png"]; ok {
		t.Fatal("object must be removed")
	}
}

func TestCleanupGivesUpAfterAttempts(t *testing.T) {
	repo := newFakeImageRepo()
	repo.failUntil = 100
	m := newTestInfra(repo)

	m.CleanupImages([]string{"products/2.png", "products/3.png"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitForCleanup(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if repo.deletes["products/2.png"] != cleanupAttempts || repo.deletes["products/3.png"] != cleanupAttempts {
		t.Fatalf("delete attempts = %v", repo.deletes)
	}
}
