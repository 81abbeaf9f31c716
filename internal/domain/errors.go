package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ошибки пользователей
var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Ошибки сущностей
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrProductNotFound = errors.New("product not found")
	ErrObjectNotFound  = errors.New("object not found")
)

// Ошибки журнала и баланса
var (
	ErrDuplicateEntry   = errors.New("ledger entry already exists for this reference")
	ErrBalanceConflict  = errors.New("balance was changed concurrently")
	ErrValidation       = errors.New("validation failed")
	ErrInsufficient     = errors.New("insufficient balance")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrAlreadyResolved  = errors.New("receipt already resolved")
	ErrSettlementFailed = errors.New("settlement failed")
	ErrDependency       = errors.New("dependency unavailable")
	ErrUnsupportedPay   = errors.New("unsupported payment method")
)

// ValidationError некорректный ввод, обнаруженный до любой записи
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError создает ошибку валидации
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientBalanceError списание увело бы баланс ниже нуля
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s",
		e.Required.StringFixed(MoneyScale), e.Available.StringFixed(MoneyScale))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficient }

// InvalidTransitionError переход запрещен таблицей переходов
type InvalidTransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidState }

// AlreadyResolvedError повторное подтверждение или отклонение квитанции
type AlreadyResolvedError struct {
	ReceiptID uuid.UUID
	Status    ReceiptStatus
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("receipt %s already %s", e.ReceiptID, e.Status)
}

func (e *AlreadyResolvedError) Is(target error) bool { return target == ErrAlreadyResolved }

// SettlementFailedError расчет не удалось завершить после повторов
type SettlementFailedError struct {
	Op  string
	Err error
}

func (e *SettlementFailedError) Error() string {
	return fmt.Sprintf("settlement %s failed: %v", e.Op, e.Err)
}

func (e *SettlementFailedError) Unwrap() error { return e.Err }

func (e *SettlementFailedError) Is(target error) bool { return target == ErrSettlementFailed }

// DependencyUnavailableError сбой хранилища объектов или канала уведомлений
type DependencyUnavailableError struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }

func (e *DependencyUnavailableError) Is(target error) bool { return target == ErrDependency }

// UnsupportedPaymentMethodError товар нельзя оплатить выбранным способом
type UnsupportedPaymentMethodError struct {
	ProductID uuid.UUID
	Name      string
	Method    PaymentMethod
}

func (e *UnsupportedPaymentMethodError) Error() string {
	return fmt.Sprintf("%q cannot be paid with %s", e.Name, e.Method)
}

func (e *UnsupportedPaymentMethodError) Is(target error) bool { return target == ErrUnsupportedPay }
