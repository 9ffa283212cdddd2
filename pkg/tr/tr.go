package tr

import (
	"context"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Manager запускает fn в транзакции, доступной репозиториям через контекст.
type Manager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewManager создаёт менеджер транзакций поверх пула PostgreSQL.
func NewManager(pool *pgxpool.Pool) *manager.Manager {
	return manager.Must(trmpgx.NewDefaultFactory(pool))
}

// Executor возвращает транзакцию из контекста, а если её нет, то сам пул.
func Executor(ctx context.Context, db trmpgx.Tr) trmpgx.Tr {
	return trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, db)
}

// NopManager выполняет fn без транзакции. Используется хранилищами без поддержки менеджера (SQLite).
type NopManager struct{}

func (NopManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
