package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS product_metadata (
	product_id INTEGER PRIMARY KEY,
	name       TEXT    NOT NULL,
	price      INTEGER NOT NULL,
	image_key  TEXT    NOT NULL,
	colors     TEXT,
	occasions  TEXT,
	tags       TEXT,
	shop_id    INTEGER,
	indexed_at TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_product_metadata_shop_id ON product_metadata (shop_id);
`

const metadataColumns = `product_id, name, price, image_key, colors, occasions, tags, shop_id, indexed_at, updated_at`

// timeLayout RFC3339 с дробной частью фиксированной ширины: строки сравниваются в порядке времени.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// metadataRow строка product_metadata; время хранится как текст в UTC (timeLayout).
type metadataRow struct {
	ProductID int64          `db:"product_id"`
	Name      string         `db:"name"`
	Price     int64          `db:"price"`
	ImageKey  string         `db:"image_key"`
	Colors    sql.NullString `db:"colors"`
	Occasions sql.NullString `db:"occasions"`
	Tags      sql.NullString `db:"tags"`
	ShopID    sql.NullInt64  `db:"shop_id"`
	IndexedAt string         `db:"indexed_at"`
	UpdatedAt string         `db:"updated_at"`
}

// MetadataRepo реализует хранилище метаданных товаров поверх SQLite.
type MetadataRepo struct {
	db   *sqlx.DB
	conv converter.MetadataConverter
	now  func() time.Time
}

// Open открывает базу по пути path (":memory:" для базы в памяти) и создает схему.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// Каждое соединение с :memory: получает собственную базу
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

func initSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func NewMetadataRepo(db *sqlx.DB, conv converter.MetadataConverter) *MetadataRepo {
	return &MetadataRepo{
		db:   db,
		conv: conv,
		now:  time.Now,
	}
}

// Upsert вставляет или обновляет запись по product_id, не трогая indexed_at существующей записи.
func (m *MetadataRepo) Upsert(ctx context.Context, meta *domain.ProductMetadata) (*domain.ProductMetadata, error) {
	model := m.conv.ToModel(meta)
	now := m.now().UTC().Format(timeLayout)

	query := `
		INSERT INTO product_metadata (` + metadataColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			image_key = excluded.image_key,
			colors = excluded.colors,
			occasions = excluded.occasions,
			tags = excluded.tags,
			shop_id = excluded.shop_id,
			updated_at = excluded.updated_at
		RETURNING ` + metadataColumns

	var row metadataRow
	if err := m.db.QueryRowxContext(ctx, query,
		model.ProductID,
		model.Name,
		model.Price,
		model.ImageKey,
		model.Colors,
		model.Occasions,
		model.Tags,
		model.ShopID,
		now,
		now,
	).StructScan(&row); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return m.toEntity(&row)
}

// Get возвращает запись по product_id или nil, если ее нет.
func (m *MetadataRepo) Get(ctx context.Context, productID int64) (*domain.ProductMetadata, error) {
	var row metadataRow
	err := m.db.GetContext(ctx, &row, `SELECT `+metadataColumns+` FROM product_metadata WHERE product_id = ?`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return m.toEntity(&row)
}

// GetBatch возвращает записи по списку идентификаторов одним запросом IN (...).
func (m *MetadataRepo) GetBatch(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetadata, error) {
	result := make(map[int64]*domain.ProductMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT `+metadataColumns+` FROM product_metadata WHERE product_id IN (?)`, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var rows []metadataRow
	if err := m.db.SelectContext(ctx, &rows, m.db.Rebind(query), args...); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for i := range rows {
		entity, err := m.toEntity(&rows[i])
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result[entity.ProductID] = entity
	}

	return result, nil
}

func (m *MetadataRepo) Delete(ctx context.Context, productID int64) (bool, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM product_metadata WHERE product_id = ?`, productID)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return n > 0, nil
}

func (m *MetadataRepo) Count(ctx context.Context, shopID *int64) (int64, error) {
	var count int64
	if err := m.db.GetContext(ctx, &count,
		`SELECT count(*) FROM product_metadata WHERE ? IS NULL OR shop_id = ?`, shopID, shopID,
	); err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return count, nil
}

func (m *MetadataRepo) LastIndexedAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	if err := m.db.GetContext(ctx, &last, `SELECT max(updated_at) FROM product_metadata`); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if !last.Valid {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, last.String)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &t, nil
}

func (m *MetadataRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	ids := make([]int64, 0, limit)
	if err := m.db.SelectContext(ctx, &ids,
		`SELECT product_id FROM product_metadata WHERE product_id > ? ORDER BY product_id LIMIT ?`, afterID, limit,
	); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func (m *MetadataRepo) toEntity(row *metadataRow) (*domain.ProductMetadata, error) {
	indexedAt, err := time.Parse(time.RFC3339Nano, row.IndexedAt)
	if err != nil {
		return nil, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return nil, err
	}

	model := &converter.MetadataModel{
		ProductID: row.ProductID,
		Name:      row.Name,
		Price:     row.Price,
		ImageKey:  row.ImageKey,
		Colors:    nullString(row.Colors),
		Occasions: nullString(row.Occasions),
		Tags:      nullString(row.Tags),
		IndexedAt: indexedAt,
		UpdatedAt: updatedAt,
	}
	if row.ShopID.Valid {
		shopID := row.ShopID.Int64
		model.ShopID = &shopID
	}

	return m.conv.ToEntity(model), nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	return &s.String
}
