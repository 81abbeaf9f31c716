package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale количество знаков после запятой для AZN и Tocoin
const MoneyScale = 2

// UserRole представляет роль пользователя
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// LedgerEntryKind представляет тип записи в журнале
type LedgerEntryKind string

const (
	LedgerEntryKindDeposit     LedgerEntryKind = "deposit"
	LedgerEntryKindPurchase    LedgerEntryKind = "purchase"
	LedgerEntryKindAdminCredit LedgerEntryKind = "admin_credit"
	LedgerEntryKindAdminDebit  LedgerEntryKind = "admin_debit"
)

// IsCredit сообщает, увеличивает ли запись этого типа баланс
func (k LedgerEntryKind) IsCredit() bool {
	return k == LedgerEntryKindDeposit || k == LedgerEntryKindAdminCredit
}

// Valid проверяет, что тип записи известен
func (k LedgerEntryKind) Valid() bool {
	switch k {
	case LedgerEntryKindDeposit, LedgerEntryKindPurchase, LedgerEntryKindAdminCredit, LedgerEntryKindAdminDebit:
		return true
	}
	return false
}

// PaymentMethod представляет способ оплаты заказа
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodTocoin PaymentMethod = "tocoin"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
}

// CanTransitionTo проверяет переход по таблице переходов заказа
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReceiptStatus представляет статус квитанции
type ReceiptStatus string

const (
	ReceiptStatusWaiting   ReceiptStatus = "waiting"
	ReceiptStatusConfirmed ReceiptStatus = "confirmed"
	ReceiptStatusRejected  ReceiptStatus = "rejected"
)

var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptStatusWaiting: {ReceiptStatusConfirmed, ReceiptStatusRejected},
}

// CanTransitionTo проверяет переход по таблице переходов квитанции
func (s ReceiptStatus) CanTransitionTo(next ReceiptStatus) bool {
	for _, allowed := range receiptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что квитанция уже рассмотрена
func (s ReceiptStatus) IsTerminal() bool {
	return s == ReceiptStatusConfirmed || s == ReceiptStatusRejected
}

// Severity уровень важности уведомления
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// User представляет пользователя системы
type User struct {
	ID           uuid.UUID       `json:"id"`
	Login        string          `json:"login"`
	PasswordHash string          `json:"-"` // Не отправляем хеш в JSON
	FullName     string          `json:"full_name"`
	Role         UserRole        `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	AvatarURL    *string         `json:"avatar_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LedgerEntryDraft описывает запись журнала до сохранения
type LedgerEntryDraft struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Kind      LedgerEntryKind
	Reference *uuid.UUID
}

// LedgerEntry неизменяемая запись журнала Tocoin
type LedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      LedgerEntryKind `json:"kind"`
	Reference *uuid.UUID      `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Location точка доставки
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CartItem позиция корзины, присланная клиентом
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// LineItem позиция заказа с ценами на момент оформления
type LineItem struct {
	ProductID       uuid.UUID        `json:"product_id"`
	Name            string           `json:"name"`
	UnitPriceAZN    decimal.Decimal  `json:"unit_price_azn"`
	UnitPriceTocoin *decimal.Decimal `json:"unit_price_tocoin,omitempty"`
	Quantity        int              `json:"quantity"`
}

// Order представляет заказ пользователя
type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"-"`
	Items         []LineItem      `json:"items"`
	TotalAZN      decimal.Decimal `json:"total_azn"`
	TotalTocoin   decimal.Decimal `json:"total_tocoin"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	Delivery      *Location       `json:"delivery,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Receipt квитанция об оплате картой, ожидающая проверки администратором
type Receipt struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	AmountAZN  decimal.Decimal `json:"amount_azn"`
	ImageRef   string          `json:"image_ref"`
	Status     ReceiptStatus   `json:"status"`
	AdminNote  *string         `json:"admin_note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

// Product товар каталога
type Product struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	PriceAZN    decimal.Decimal  `json:"price_azn"`
	PriceTocoin *decimal.Decimal `json:"price_tocoin,omitempty"`
	Stock       int              `json:"stock"`
	ImageRef    *string          `json:"image_ref,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Notification асинхронное сообщение пользователю
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType тип события расчетов
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderPaid        EventType = "order.paid"
	EventOrderCancelled   EventType = "order.cancelled"
	EventReceiptSubmitted EventType = "receipt.submitted"
	EventReceiptConfirmed EventType = "receipt.confirmed"
	EventReceiptRejected  EventType = "receipt.rejected"
	EventBalanceAdjusted  EventType = "balance.adjusted"
)

// SettlementEvent событие, публикуемое после завершения шага расчета
type SettlementEvent struct {
	Type      EventType        `json:"type"`
	UserID    uuid.UUID        `json:"user_id"`
	OrderID   *uuid.UUID       `json:"order_id,omitempty"`
	ReceiptID *uuid.UUID       `json:"receipt_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
}

// SettlementResult итог расчета с предупреждениями о побочных эффектах
type SettlementResult struct {
	Order    *Order
	Receipt  *Receipt
	Entry    *LedgerEntry
	Balance  decimal.Decimal
	Warnings []error
}

// ReconcileReport итог сверки балансов с журналом
type ReconcileReport struct {
	UsersChecked      int                `json:"users_checked"`
	Drifted           []BalanceDrift     `json:"drifted"`
	ReceiptsRecovered int                `json:"receipts_recovered"`
	Failures          []ReconcileFailure `json:"failures,omitempty"`
}

// BalanceDrift расхождение сохраненного баланса с суммой журнала
type BalanceDrift struct {
	UserID   uuid.UUID       `json:"user_id"`
	Stored   decimal.Decimal `json:"stored"`
	Derived  decimal.Decimal `json:"derived"`
	Repaired bool            `json:"repaired"`
}

// ReconcileFailure ошибка сверки для одного пользователя
type ReconcileFailure struct {
	UserID uuid.UUID `json:"user_id"`
	Error  string    `json:"error"`
}
