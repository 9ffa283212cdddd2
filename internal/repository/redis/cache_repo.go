package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.MetadataConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.MetadataConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetProducts возвращает закэшированные метаданные по ID, пропуская промахи
func (r *CacheRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	result := make(map[int64]*domain.ProductMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := r.buildProductCacheKeys(ids)

	values, err := r.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			r.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			continue // cache miss
		}

		var model converter.MetadataRedisModel
		if err := json.Unmarshal(data, &model); err != nil {
			r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		if model.ProductID != ids[i] {
			r.logger.Warnf("Cache ID mismatch: key_id: %d, model_id: %d", ids[i], model.ProductID)
			if err := r.client.Client.Del(ctx, keys[i]).Err(); err != nil {
				r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue // cache miss
		}

		result[ids[i]] = r.conv.ToEntity(&model)
	}

	return result, nil
}

// SetProducts кэширует несколько записей одним pipeline с TTL из конфигурации,
// перезаписывая прежние значения. Ошибки сериализации пропускаются с логированием.
func (r *CacheRepo) SetProducts(ctx context.Context, products []*domain.ProductMetadata) error {
	return r.writeProducts(ctx, products, false)
}

// AddProducts как SetProducts, но через SETNX: уже существующие ключи не трогаются.
func (r *CacheRepo) AddProducts(ctx context.Context, products []*domain.ProductMetadata) error {
	return r.writeProducts(ctx, products, true)
}

func (r *CacheRepo) writeProducts(ctx context.Context, products []*domain.ProductMetadata, onlyAbsent bool) error {
	models := r.conv.ToArrRedisModel(products)
	if len(models) == 0 {
		return nil
	}

	pipeline := r.client.Client.Pipeline()
	for _, model := range models {
		data, err := json.Marshal(model)
		if err != nil {
			r.logger.Warnf("Failed to marshal product for caching (Product ID: %d): %v", model.ProductID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		if onlyAbsent {
			pipeline.SetNX(ctx, r.productKey(model.ProductID), data, r.cfg.MetadataTTL)
		} else {
			pipeline.Set(ctx, r.productKey(model.ProductID), data, r.cfg.MetadataTTL)
		}
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DeleteProducts удаляет записи из кэша по ID
func (r *CacheRepo) DeleteProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if err := r.client.Client.Del(ctx, r.buildProductCacheKeys(ids)...).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// buildProductCacheKeys формирует Redis-ключи из ID товаров
func (r *CacheRepo) buildProductCacheKeys(ids []int64) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.productKey(id)
	}

	return keys
}

func (r *CacheRepo) productKey(id int64) string {
	return fmt.Sprintf("visual-search:metadata:%d", id)
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
