//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	testClient *clients.RedisClient
	testCfg    *cfg.RedisCfg
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}

	testCfg = &cfg.RedisCfg{
		Enabled:     true,
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		Timeout:     3 * time.Second,
		MetadataTTL: time.Minute,
		TokenKey:    "visual-search:test-token",
	}
	testClient = clients.NewRedisClient(testCfg)

	if err := testClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ping redis: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testClient.Close()
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func clearRedis(t *testing.T) {
	t.Helper()
	if err := testClient.Client.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

func TestCacheRepo_SetGetDelete(t *testing.T) {
	clearRedis(t)
	ctx := context.Background()
	repo := NewCacheRepo(testClient, converter.NewMetadataConverter(), testCfg, logger.NewNop())

	shop := int64(8)
	products := []*domain.ProductMetadata{
		domain.NewProductMetadata(1, "Розы", 950000, "products/1.jpg", []string{"red"}, nil, nil, &shop),
		domain.NewProductMetadata(2, "Пионы", 1200000, "products/2.png", nil, []string{"wedding"}, nil, nil),
	}
	if err := repo.SetProducts(ctx, products); err != nil {
		t.Fatalf("SetProducts: %v", err)
	}

	got, err := repo.GetProducts(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(got) != 2 || got[1].Name != "Розы" || *got[1].ShopID != 8 || got[2].Occasions[0] != "wedding" {
		t.Fatalf("unexpected cache contents %+v", got)
	}

	ttl, err := testClient.Client.TTL(ctx, repo.productKey(1)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v, %v", ttl, err)
	}

	if err := repo.DeleteProducts(ctx, []int64{1}); err != nil {
		t.Fatalf("DeleteProducts: %v", err)
	}

	got, err = repo.GetProducts(ctx, []int64{1, 2})
	if err != nil || len(got) != 1 || got[2] == nil {
		t.Fatalf("after delete: %+v, %v", got, err)
	}
}

func TestCacheRepo_AddProductsKeepsNewerEntry(t *testing.T) {
	clearRedis(t)
	ctx := context.Background()
	repo := NewCacheRepo(testClient, converter.NewMetadataConverter(), testCfg, logger.NewNop())

	stale := domain.NewProductMetadata(1, "old", 100, "products/1.jpg", nil, nil, nil, nil)
	fresh := domain.NewProductMetadata(1, "new", 200, "products/1.jpg", nil, nil, nil, nil)

	if err := repo.SetProducts(ctx, []*domain.ProductMetadata{fresh}); err != nil {
		t.Fatalf("SetProducts: %v", err)
	}
	// Запоздавшее заполнение после переиндексации
	if err := repo.AddProducts(ctx, []*domain.ProductMetadata{stale}); err != nil {
		t.Fatalf("AddProducts: %v", err)
	}

	got, err := repo.GetProducts(ctx, []int64{1})
	if err != nil || got[1] == nil || got[1].Name != "new" || got[1].Price != 200 {
		t.Fatalf("fill must not overwrite indexed record: %+v, %v", got, err)
	}

	if err := repo.AddProducts(ctx, []*domain.ProductMetadata{domain.NewProductMetadata(2, "added", 300, "", nil, nil, nil, nil)}); err != nil {
		t.Fatalf("AddProducts: %v", err)
	}
	got, err = repo.GetProducts(ctx, []int64{2})
	if err != nil || got[2] == nil || got[2].Name != "added" {
		t.Fatalf("absent key must be filled: %+v, %v", got, err)
	}
}

func TestCacheRepo_IDMismatchIsMiss(t *testing.T) {
	clearRedis(t)
	ctx := context.Background()
	repo := NewCacheRepo(testClient, converter.NewMetadataConverter(), testCfg, logger.NewNop())

	// Под ключом товара 5 лежит запись товара 6
	if err := testClient.Client.Set(ctx, repo.productKey(5), `{"product_id":6,"name":"x"}`, time.Minute).Err(); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetProducts(ctx, []int64{5})
	if err != nil || len(got) != 0 {
		t.Fatalf("mismatched record must be a miss: %+v, %v", got, err)
	}

	if n, _ := testClient.Client.Exists(ctx, repo.productKey(5)).Result(); n != 0 {
		t.Fatal("mismatched record must be evicted")
	}
}

func TestTokenCache_Integration(t *testing.T) {
	clearRedis(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	cache := NewTokenCache(testClient, testCfg.TokenKey, func() time.Time { return now })

	empty, err := cache.Get(ctx)
	if err != nil || empty != nil {
		t.Fatalf("empty cache: %v, %v", empty, err)
	}

	token := &domain.AccessToken{Value: "ya29.token", ExpiresAt: now.Add(time.Hour)}
	if err := cache.Set(ctx, token); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get(ctx)
	if err != nil || got == nil || got.Value != "ya29.token" || !got.ExpiresAt.Equal(token.ExpiresAt) {
		t.Fatalf("Get: %+v, %v", got, err)
	}

	ttl, _ := testClient.Client.TTL(ctx, testCfg.TokenKey).Result()
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("ttl must follow token expiry, got %v", ttl)
	}

	if err := cache.Set(ctx, &domain.AccessToken{Value: "expired", ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatalf("Set expired: %v", err)
	}
	got, _ = cache.Get(ctx)
	if got == nil || got.Value != "ya29.token" {
		t.Fatalf("expired token must not replace a valid one, got %+v", got)
	}
}
