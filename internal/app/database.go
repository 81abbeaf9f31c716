package app

import (
	"context"
	"fmt"

	"github.com/avc/toyshop/internal/config"
	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/repository/memory"
	"github.com/avc/toyshop/internal/repository/postgres"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// storage репозитории выбранного драйвера
type storage struct {
	users    domain.UserDirectory
	ledger   domain.LedgerRepository
	orders   domain.OrderRepository
	receipts domain.ReceiptRepository
	products domain.ProductRepository
	pinger   interface{ Ping(context.Context) error }
	close    func()
}

// initStorage открывает хранилище по STORAGE_DRIVER
func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			users:    store,
			ledger:   store,
			orders:   store,
			receipts: store,
			products: store,
			pinger:   store,
			close:    func() {},
		}, nil
	}

	dbPool, err := initDatabase(ctx, cfg.DatabaseURI, logger)
	if err != nil {
		return nil, err
	}

	return &storage{
		users:    postgres.NewUserRepository(dbPool),
		ledger:   postgres.NewLedgerRepository(dbPool),
		orders:   postgres.NewOrderRepository(dbPool),
		receipts: postgres.NewReceiptRepository(dbPool),
		products: postgres.NewProductRepository(dbPool),
		pinger:   dbPool,
		close:    dbPool.Close,
	}, nil
}

// initDatabase создает пул соединений с базой данных и выполняет миграции
func initDatabase(ctx context.Context, databaseURI string, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URI: %w", err)
	}
	// numeric <-> decimal.Decimal
	poolConfig.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database")

	if err := postgres.RunMigrations(ctx, dbPool, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed successfully")

	return dbPool, nil
}
