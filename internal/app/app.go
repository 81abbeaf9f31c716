// Package app собирает зависимости сервиса и управляет его жизненным циклом.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avc/toyshop/internal/config"
	"go.uber.org/zap"
)

// App представляет приложение
type App struct {
	config  *config.Config
	logger  *zap.Logger
	storage *storage
	deps    *dependencies
	server  *http.Server
}

// New собирает приложение по конфигурации: хранилище, миграции, сервисы, роутер
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps, err := initDependencies(cfg, store, logger)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("failed to init dependencies: %w", err)
	}

	return &App{
		config:  cfg,
		logger:  logger,
		storage: store,
		deps:    deps,
		server:  createServer(cfg.RunAddress, setupRouter(deps, logger)),
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливается
func (a *App) Run(ctx context.Context) error {
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()

	a.deps.workerPool.Start(poolCtx)
	a.logger.Info("reconcile pool started", zap.Duration("interval", a.config.ReconcileInterval))

	err := a.serve(ctx)
	a.shutdown(stopPool)
	return err
}
