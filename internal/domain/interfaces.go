package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserDirectory определяет методы работы с пользователями и их балансом
type UserDirectory interface {
	CreateUser(ctx context.Context, login, passwordHash, fullName string, role UserRole) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// UpdateBalance записывает баланс, только если текущее значение равно expectedPrevious.
	// Иначе возвращает ErrBalanceConflict.
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance, expectedPrevious decimal.Decimal) error
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LedgerRepository определяет методы журнала. Обновления и удаления не предусмотрены.
type LedgerRepository interface {
	AppendEntry(ctx context.Context, draft LedgerEntryDraft) (*LedgerEntry, error)
	EntriesForUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error)
	SumForUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// OrderRepository определяет методы работы с заказами
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*Order, error)
	// UpdateOrderStatus меняет статус, только если текущий статус равен from
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error
}

// ReceiptRepository определяет методы работы с квитанциями
type ReceiptRepository interface {
	CreateReceipt(ctx context.Context, receipt *Receipt) (*Receipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error)
	GetReceiptsByUserID(ctx context.Context, userID uuid.UUID) ([]*Receipt, error)
	GetReceiptsByStatus(ctx context.Context, status ReceiptStatus) ([]*Receipt, error)
	// ResolveReceipt переводит квитанцию из waiting, иначе ErrAlreadyResolved
	ResolveReceipt(ctx context.Context, id uuid.UUID, status ReceiptStatus, note string) (*Receipt, error)
	// GetConfirmedWithoutDeposit находит подтвержденные квитанции без записи deposit в журнале
	GetConfirmedWithoutDeposit(ctx context.Context) ([]*Receipt, error)
}

// ProductRepository определяет методы каталога и остатков
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	// DeleteProduct удаляет товар из каталога, заказы хранят свою копию позиций
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// DecrementStock списывает остаток один раз для пары (orderID, productID)
	DecrementStock(ctx context.Context, orderID, productID uuid.UUID, quantity int) (bool, error)
}

// ObjectStore хранилище файлов квитанций и изображений
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	URL(ref string) string
}

// NotificationSink канал пользовательских уведомлений
type NotificationSink interface {
	Send(ctx context.Context, n Notification) error
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error)
}

// EventPublisher публикует события расчетов
type EventPublisher interface {
	Publish(ctx context.Context, event SettlementEvent) error
	Close() error
}
