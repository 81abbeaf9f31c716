package app

import (
	"github.com/avc/toyshop/internal/config"
	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/events"
	"github.com/avc/toyshop/internal/handlers"
	"github.com/avc/toyshop/internal/metrics"
	"github.com/avc/toyshop/internal/notify"
	"github.com/avc/toyshop/internal/service"
	"github.com/avc/toyshop/internal/storage/bolt"
	"github.com/avc/toyshop/internal/utils/jwt"
	"github.com/avc/toyshop/internal/utils/password"
	"github.com/avc/toyshop/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// services содержит все сервисы приложения
type services struct {
	auth        *service.AuthService
	account     *service.AccountService
	catalog     *service.CatalogService
	receipts    *service.ReceiptWorkflow
	coordinator *service.Coordinator
}

// handlerSet содержит все хендлеры приложения
type handlerSet struct {
	auth     *handlers.AuthHandler
	account  *handlers.AccountHandler
	checkout *handlers.CheckoutHandler
	products *handlers.ProductHandler
	files    *handlers.FileHandler
	admin    *handlers.AdminHandler
	health   *handlers.HealthHandler
}

// dependencies содержит все зависимости приложения
type dependencies struct {
	services   *services
	handlers   *handlerSet
	jwtManager *jwt.Manager
	workerPool *worker.Pool
	registry   *prometheus.Registry

	objects   *bolt.Store
	publisher domain.EventPublisher
	redis     *redis.Client
}

// initDependencies создает все зависимости приложения
func initDependencies(cfg *config.Config, store *storage, logger *zap.Logger) (*dependencies, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	objects, err := bolt.New(cfg.ObjectStorePath, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	deps := &dependencies{
		registry: registry,
		objects:  objects,
	}

	// Уведомления: Redis, если задан адрес, иначе журнал процесса
	var sink domain.NotificationSink
	if cfg.RedisAddress != "" {
		deps.redis = notify.NewRedisClient(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		sink = notify.NewRedisSink(deps.redis, cfg.NotificationHistory, logger)
	} else {
		sink = notify.NewLogSink(cfg.NotificationHistory, logger)
	}

	if len(cfg.KafkaBrokers) > 0 {
		deps.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	} else {
		deps.publisher = events.NoopPublisher{}
	}

	// Утилиты
	passwordHasher := password.NewBCryptHasher(password.DefaultCost)
	deps.jwtManager = jwt.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL)

	// Сервисы
	ledger := service.NewLedgerService(store.ledger, store.users)
	projector := service.NewBalanceProjector(store.users, store.ledger, cfg.BalanceCASRetries, m, logger)
	orders := service.NewOrderService(store.orders, store.products)
	receipts := service.NewReceiptWorkflow(store.receipts)

	coordinator := service.NewCoordinator(service.CoordinatorDeps{
		Ledger:    ledger,
		Projector: projector,
		Orders:    orders,
		Receipts:  receipts,
		Objects:   objects,
		Notifier:  sink,
		Events:    deps.publisher,
		Metrics:   m,
		Logger:    logger,
	}, cfg.TocoinPerAZN, cfg.NotifyTimeout)

	account := service.NewAccountService(service.AccountDeps{
		Users:     store.users,
		Projector: projector,
		Ledger:    ledger,
		Orders:    orders,
		Receipts:  receipts,
		Objects:   objects,
		Sink:      sink,
	})

	deps.services = &services{
		auth:        service.NewAuthService(store.users, passwordHasher, deps.jwtManager, cfg.MinPasswordLength, cfg.IsAdminLogin, sink, logger),
		account:     account,
		catalog:     service.NewCatalogService(store.products, objects),
		receipts:    receipts,
		coordinator: coordinator,
	}

	// Сверка балансов
	deps.workerPool = worker.NewPool(
		cfg.ReconcileWorkers,
		cfg.ReconcileQueueSize,
		store.users,
		projector,
		coordinator,
		cfg.ReconcileInterval,
		logger,
	)

	// Хендлеры
	svcs := deps.services
	deps.handlers = &handlerSet{
		auth:     handlers.NewAuthHandler(svcs.auth, logger),
		account:  handlers.NewAccountHandler(svcs.account, cfg.MaxUploadBytes, logger),
		checkout: handlers.NewCheckoutHandler(svcs.coordinator, cfg.MaxUploadBytes, logger),
		products: handlers.NewProductHandler(svcs.catalog, cfg.MaxUploadBytes, logger),
		files:    handlers.NewFileHandler(objects, logger),
		admin:    handlers.NewAdminHandler(svcs.coordinator, svcs.receipts, deps.workerPool, logger),
		health:   handlers.NewHealthHandler(store.pinger, logger),
	}

	return deps, nil
}

// close освобождает внешние ресурсы в обратном порядке
func (d *dependencies) close(logger *zap.Logger) {
	if err := d.publisher.Close(); err != nil {
		logger.Error("failed to close event publisher", zap.Error(err))
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.Error("failed to close redis client", zap.Error(err))
		}
	}
	if err := d.objects.Close(); err != nil {
		logger.Error("failed to close object store", zap.Error(err))
	}
}
