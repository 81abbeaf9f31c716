package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// Драйверы хранилища
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config содержит конфигурацию приложения
type Config struct {
	RunAddress    string        `env:"RUN_ADDRESS"`    // Адрес и порт запуска сервиса
	DatabaseURI   string        `env:"DATABASE_URI"`   // URI подключения к БД
	StorageDriver string        `env:"STORAGE_DRIVER"` // postgres или memory
	JWTSecret     string        `env:"JWT_SECRET"`     // Секретный ключ для JWT
	JWTTokenTTL   time.Duration `env:"JWT_TOKEN_TTL"`  // Время жизни JWT токена
	LogLevel      string        `env:"LOG_LEVEL"`      // Уровень логирования

	// Пользователи
	MinPasswordLength int      `env:"MIN_PASSWORD_LENGTH"`              // Минимальная длина пароля
	AdminLogins       []string `env:"ADMIN_LOGINS" envSeparator:","` // Логины, получающие роль admin

	// Расчеты
	TocoinPerAZN      decimal.Decimal `env:"TOCOIN_PER_AZN"`      // Курс зачисления квитанций
	BalanceCASRetries int             `env:"BALANCE_CAS_RETRIES"` // Повторы compare-and-swap баланса
	NotifyTimeout     time.Duration   `env:"NOTIFY_TIMEOUT"`      // Таймаут отправки уведомления

	// Хранилище объектов
	ObjectStorePath string `env:"OBJECT_STORE_PATH"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES"`

	// Уведомления
	RedisAddress        string `env:"REDIS_ADDRESS"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB"`
	NotificationHistory int    `env:"NOTIFICATION_HISTORY"`

	// События
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"`

	// Сверка балансов
	ReconcileWorkers   int           `env:"RECONCILE_WORKERS"`
	ReconcileQueueSize int           `env:"RECONCILE_QUEUE_SIZE"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL"` // 0 отключает периодическую сверку
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		RunAddress:          ":8080",
		StorageDriver:       StorageDriverPostgres,
		JWTSecret:           "default-secret-key-change-in-production",
		JWTTokenTTL:         24 * time.Hour,
		LogLevel:            "info",
		MinPasswordLength:   6,
		TocoinPerAZN:        decimal.NewFromInt(1),
		BalanceCASRetries:   5,
		NotifyTimeout:       2 * time.Second,
		ObjectStorePath:     "toyshop-objects.db",
		MaxUploadBytes:      5 << 20,
		NotificationHistory: 50,
		KafkaTopic:          "toyshop.settlements",
		ReconcileWorkers:    3,
		ReconcileQueueSize:  100,
	}
}

// Load загружает конфигурацию из аргументов командной строки и переменных окружения
func Load() (*Config, error) {
	return LoadFromArgs(os.Args[1:])
}

// LoadFromArgs загружает конфигурацию из переданных аргументов и окружения
// Приоритет: env переменные > флаги > дефолтные значения
func LoadFromArgs(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("toyshop", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "address and port to run server")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	fs.StringVar(&cfg.ObjectStorePath, "s", cfg.ObjectStorePath, "object store file path")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Переменные окружения имеют приоритет над флагами
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("database URI is required (use -d flag or DATABASE_URI env)")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	if !c.TocoinPerAZN.IsPositive() {
		return fmt.Errorf("TOCOIN_PER_AZN must be positive, got %s", c.TocoinPerAZN)
	}

	if c.BalanceCASRetries <= 0 {
		return fmt.Errorf("BALANCE_CAS_RETRIES must be positive, got %d", c.BalanceCASRetries)
	}

	if c.ReconcileWorkers <= 0 {
		c.ReconcileWorkers = 1
	}

	return nil
}

// IsAdminLogin сообщает, должен ли пользователь с этим логином получить роль admin
func (c *Config) IsAdminLogin(login string) bool {
	for _, l := range c.AdminLogins {
		if l == login {
			return true
		}
	}
	return false
}
