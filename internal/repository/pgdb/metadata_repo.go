package pgdb

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const metadataColumns = `product_id, name, price, image_key, colors, occasions, tags, shop_id, indexed_at, updated_at`

// MetadataRepo реализует хранилище метаданных товаров поверх PostgreSQL.
// Записи выполняются в транзакции из контекста, если она есть.
type MetadataRepo struct {
	pool *pgxpool.Pool
	conv converter.MetadataConverter
}

func NewMetadataRepo(pool *pgxpool.Pool, conv converter.MetadataConverter) *MetadataRepo {
	return &MetadataRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert вставляет или обновляет запись по product_id.
// При конфликте перезаписываются все изменяемые поля и updated_at, indexed_at сохраняется.
func (m *MetadataRepo) Upsert(ctx context.Context, meta *domain.ProductMetadata) (*domain.ProductMetadata, error) {
	model := m.conv.ToModel(meta)

	query := `
		INSERT INTO product_metadata (
			product_id, name, price, image_key, colors, occasions, tags, shop_id, indexed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (product_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			image_key = EXCLUDED.image_key,
			colors = EXCLUDED.colors,
			occasions = EXCLUDED.occasions,
			tags = EXCLUDED.tags,
			shop_id = EXCLUDED.shop_id,
			updated_at = now()
		RETURNING ` + metadataColumns

	row := tr.Executor(ctx, m.pool).QueryRow(ctx, query,
		model.ProductID,
		model.Name,
		model.Price,
		model.ImageKey,
		model.Colors,
		model.Occasions,
		model.Tags,
		model.ShopID,
	)

	saved, err := scanMetadata(row)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return m.conv.ToEntity(saved), nil
}

// Get возвращает запись по product_id или nil, если ее нет.
func (m *MetadataRepo) Get(ctx context.Context, productID int64) (*domain.ProductMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM product_metadata WHERE product_id = $1`

	model, err := scanMetadata(tr.Executor(ctx, m.pool).QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return m.conv.ToEntity(model), nil
}

// GetBatch возвращает записи по списку идентификаторов одним запросом.
func (m *MetadataRepo) GetBatch(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	result := make(map[int64]*domain.ProductMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + metadataColumns + ` FROM product_metadata WHERE product_id = ANY($1)`

	rows, err := tr.Executor(ctx, m.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	for rows.Next() {
		model, err := scanMetadata(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result[model.ProductID] = m.conv.ToEntity(model)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Delete удаляет запись. Возвращает false, если записи не было.
func (m *MetadataRepo) Delete(ctx context.Context, productID int64) (bool, error) {
	tag, err := tr.Executor(ctx, m.pool).Exec(ctx, `DELETE FROM product_metadata WHERE product_id = $1`, productID)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() > 0, nil
}

// Count возвращает число записей, при shopID != nil только для магазина.
func (m *MetadataRepo) Count(ctx context.Context, shopID *int64) (int64, error) {
	query := `SELECT count(*) FROM product_metadata WHERE $1::bigint IS NULL OR shop_id = $1`

	var count int64
	if err := tr.Executor(ctx, m.pool).QueryRow(ctx, query, shopID).Scan(&count); err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return count, nil
}

// LastIndexedAt возвращает время последней записи в хранилище или nil для пустой таблицы.
func (m *MetadataRepo) LastIndexedAt(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	if err := tr.Executor(ctx, m.pool).QueryRow(ctx, `SELECT max(updated_at) FROM product_metadata`).Scan(&last); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if last != nil {
		utc := last.UTC()
		last = &utc
	}

	return last, nil
}

// ListIDs возвращает до limit идентификаторов больше afterID по возрастанию.
func (m *MetadataRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	query := `SELECT product_id FROM product_metadata WHERE product_id > $1 ORDER BY product_id LIMIT $2`

	rows, err := tr.Executor(ctx, m.pool).Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func scanMetadata(row pgx.Row) (*converter.MetadataModel, error) {
	var model converter.MetadataModel
	err := row.Scan(
		&model.ProductID,
		&model.Name,
		&model.Price,
		&model.ImageKey,
		&model.Colors,
		&model.Occasions,
		&model.Tags,
		&model.ShopID,
		&model.IndexedAt,
		&model.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &model, nil
}
