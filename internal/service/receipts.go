package service

import (
	"context"
	"strings"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptWorkflow ведет квитанции об оплате картой: waiting -> confirmed | rejected.
// Переход из waiting выполняется ровно один раз.
type ReceiptWorkflow struct {
	receipts domain.ReceiptRepository
}

// NewReceiptWorkflow создает новый ReceiptWorkflow
func NewReceiptWorkflow(receipts domain.ReceiptRepository) *ReceiptWorkflow {
	return &ReceiptWorkflow{receipts: receipts}
}

// Submit сохраняет квитанцию в статусе waiting
func (w *ReceiptWorkflow) Submit(ctx context.Context, orderID, userID uuid.UUID, amountAZN decimal.Decimal, imageRef string) (*domain.Receipt, error) {
	if !amountAZN.IsPositive() {
		return nil, domain.NewValidationError("amount_azn", "must be positive")
	}
	if imageRef == "" {
		return nil, domain.NewValidationError("image", "proof image is required")
	}

	receipt, err := w.receipts.CreateReceipt(ctx, &domain.Receipt{
		OrderID:   orderID,
		UserID:    userID,
		AmountAZN: amountAZN,
		ImageRef:  imageRef,
		Status:    domain.ReceiptStatusWaiting,
	})
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to submit receipt for order %s", orderID)
	}
	return receipt, nil
}

// Confirm переводит квитанцию в confirmed
func (w *ReceiptWorkflow) Confirm(ctx context.Context, receiptID uuid.UUID, note string) (*domain.Receipt, error) {
	receipt, err := w.receipts.ResolveReceipt(ctx, receiptID, domain.ReceiptStatusConfirmed, strings.TrimSpace(note))
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to confirm receipt %s", receiptID)
	}
	return receipt, nil
}

// Reject переводит квитанцию в rejected, причина обязательна
func (w *ReceiptWorkflow) Reject(ctx context.Context, receiptID uuid.UUID, reason string) (*domain.Receipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "must not be empty")
	}

	receipt, err := w.receipts.ResolveReceipt(ctx, receiptID, domain.ReceiptStatusRejected, reason)
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to reject receipt %s", receiptID)
	}
	return receipt, nil
}

// Get возвращает квитанцию по ID
func (w *ReceiptWorkflow) Get(ctx context.Context, receiptID uuid.UUID) (*domain.Receipt, error) {
	receipt, err := w.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to get receipt %s", receiptID)
	}
	return receipt, nil
}

// ListForUser возвращает квитанции пользователя, новые первыми
func (w *ReceiptWorkflow) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	receipts, err := w.receipts.GetReceiptsByUserID(ctx, userID)
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to list receipts for user %s", userID)
	}
	return receipts, nil
}

// ListByStatus возвращает очередь квитанций в статусе status, старые первыми
func (w *ReceiptWorkflow) ListByStatus(ctx context.Context, status domain.ReceiptStatus) ([]*domain.Receipt, error) {
	switch status {
	case domain.ReceiptStatusWaiting, domain.ReceiptStatusConfirmed, domain.ReceiptStatusRejected:
	default:
		return nil, domain.NewValidationError("status", "unknown receipt status "+string(status))
	}

	receipts, err := w.receipts.GetReceiptsByStatus(ctx, status)
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to list %s receipts", status)
	}
	return receipts, nil
}

// PendingDeposits возвращает подтвержденные квитанции, по которым еще нет зачисления
func (w *ReceiptWorkflow) PendingDeposits(ctx context.Context) ([]*domain.Receipt, error) {
	receipts, err := w.receipts.GetConfirmedWithoutDeposit(ctx)
	if err != nil {
		return nil, wrap(err, "receipt workflow: failed to find confirmed receipts without deposit")
	}
	return receipts, nil
}
