package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Операции расчетов для метрик и логов
const (
	OpCheckoutTocoin = "checkout_tocoin"
	OpCheckoutCard   = "checkout_card"
	OpConfirmReceipt = "confirm_receipt"
	OpRejectReceipt  = "reject_receipt"
	OpAdjustBalance  = "adjust_balance"
	OpRecoverReceipt = "recover_receipt"
)

// CoordinatorDeps зависимости координатора расчетов
type CoordinatorDeps struct {
	Ledger    *LedgerService
	Projector *BalanceProjector
	Orders    *OrderService
	Receipts  *ReceiptWorkflow
	Objects   domain.ObjectStore
	Notifier  domain.NotificationSink
	Events    domain.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Coordinator проводит расчеты, затрагивающие заказ, квитанцию, журнал и баланс.
//
// Изменение баланса и запись в журнал идут внутри окна пользователя (BalanceProjector.Hold).
// Списания сначала проходят compare-and-swap баланса, потом пишутся в журнал;
// если запись в журнал не удалась, баланс возвращается обратной дельтой.
// Зачисления сначала пишутся в журнал, потом применяются к балансу;
// если баланс обновить не удалось, он пересчитывается из журнала.
// Уведомления и события отправляются после расчета и не откатывают его.
type Coordinator struct {
	ledger    *LedgerService
	projector *BalanceProjector
	orders    *OrderService
	receipts  *ReceiptWorkflow
	objects   domain.ObjectStore
	notifier  domain.NotificationSink
	events    domain.EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	rate          decimal.Decimal
	notifyTimeout time.Duration
}

// NewCoordinator создает новый Coordinator
func NewCoordinator(deps CoordinatorDeps, tocoinPerAZN decimal.Decimal, notifyTimeout time.Duration) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 2 * time.Second
	}
	return &Coordinator{
		ledger:        deps.Ledger,
		projector:     deps.Projector,
		orders:        deps.Orders,
		receipts:      deps.Receipts,
		objects:       deps.Objects,
		notifier:      deps.Notifier,
		events:        deps.Events,
		metrics:       deps.Metrics,
		logger:        logger,
		rate:          tocoinPerAZN,
		notifyTimeout: notifyTimeout,
	}
}

// TocoinFor переводит сумму в AZN в Tocoin по курсу
func (c *Coordinator) TocoinFor(azn decimal.Decimal) decimal.Decimal {
	return azn.Mul(c.rate).Round(domain.MoneyScale)
}

// CheckoutTocoin оформляет и сразу оплачивает заказ с баланса Tocoin
func (c *Coordinator) CheckoutTocoin(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location) (result *domain.SettlementResult, err error) {
	started := time.Now()
	defer func() { c.observe(OpCheckoutTocoin, started, err) }()

	draft, err := c.orders.Quote(ctx, userID, cart, domain.PaymentMethodTocoin, delivery)
	if err != nil {
		return nil, err
	}
	total := draft.TotalTocoin
	if !total.IsPositive() {
		return nil, domain.NewValidationError("cart", "total must be positive")
	}

	var order *domain.Order
	createOrder := func(ctx context.Context) (*uuid.UUID, error) {
		draft.ID = uuid.New()
		created, err := c.orders.Create(ctx, draft)
		if err != nil {
			return nil, err
		}
		order = created
		return &created.ID, nil
	}

	entry, balance, err := c.debit(ctx, userID, total, domain.LedgerEntryKindPurchase, createOrder)
	if err != nil {
		if order != nil {
			c.cancelAbandoned(ctx, userID, order.ID)
		}
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	result = &domain.SettlementResult{Order: order, Entry: entry, Balance: balance}

	if err := c.orders.MarkPaid(ctx, order.ID); err != nil {
		c.log(ctx).Error("order left pending after purchase entry",
			zap.String("order_id", order.ID.String()),
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, err)
	} else {
		order.Status = domain.OrderStatusPaid
	}

	if err := c.orders.DecrementStock(ctx, order); err != nil {
		c.log(ctx).Warn("failed to decrement stock",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, err)
	}

	c.notify(ctx, result, userID, domain.SeveritySuccess, "Order paid",
		fmt.Sprintf("Order %s paid with %s Tocoin. Balance: %s.", shortID(order.ID), total.StringFixed(domain.MoneyScale), balance.StringFixed(domain.MoneyScale)))
	c.publish(ctx, domain.SettlementEvent{
		Type:    domain.EventOrderPaid,
		UserID:  userID,
		OrderID: &order.ID,
		Amount:  decimalPtr(total.Neg()),
		Balance: decimalPtr(balance),
	})

	c.log(ctx).Info("tocoin checkout settled",
		zap.String("user_id", userID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Stringer("total", total),
		zap.Stringer("balance", balance),
	)

	return result, nil
}

// CheckoutCard оформляет заказ с оплатой картой и ставит квитанцию в очередь на проверку
func (c *Coordinator) CheckoutCard(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location, proof []byte, filename string) (result *domain.SettlementResult, err error) {
	started := time.Now()
	defer func() { c.observe(OpCheckoutCard, started, err) }()

	draft, err := c.orders.Quote(ctx, userID, cart, domain.PaymentMethodCard, delivery)
	if err != nil {
		return nil, err
	}
	if len(proof) == 0 {
		return nil, domain.NewValidationError("receipt", "proof image is required")
	}

	order, err := c.orders.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("receipts/%s/%s%s", userID, order.ID, objectExt(filename))
	ref, err := c.objects.Put(ctx, path, proof)
	if err != nil {
		c.cancelAbandoned(ctx, userID, order.ID)
		return nil, &domain.DependencyUnavailableError{Dependency: "object store", Err: err}
	}

	receipt, err := c.receipts.Submit(ctx, order.ID, userID, order.TotalAZN, ref)
	if err != nil {
		c.cancelAbandoned(ctx, userID, order.ID)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	result = &domain.SettlementResult{Order: order, Receipt: receipt}

	c.notify(ctx, result, userID, domain.SeverityInfo, "Receipt submitted",
		fmt.Sprintf("Receipt for order %s (%s AZN) is waiting for review.", shortID(order.ID), order.TotalAZN.StringFixed(domain.MoneyScale)))
	c.publish(ctx, domain.SettlementEvent{
		Type:    domain.EventOrderCreated,
		UserID:  userID,
		OrderID: &order.ID,
		Amount:  decimalPtr(order.TotalAZN),
	})
	c.publish(ctx, domain.SettlementEvent{
		Type:      domain.EventReceiptSubmitted,
		UserID:    userID,
		OrderID:   &order.ID,
		ReceiptID: &receipt.ID,
		Amount:    decimalPtr(receipt.AmountAZN),
	})

	c.log(ctx).Info("card checkout submitted",
		zap.String("user_id", userID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("receipt_id", receipt.ID.String()),
	)

	return result, nil
}

// ConfirmReceipt подтверждает квитанцию и зачисляет Tocoin ее владельцу.
// Повторное подтверждение возвращает AlreadyResolvedError без изменения баланса.
func (c *Coordinator) ConfirmReceipt(ctx context.Context, receiptID uuid.UUID, note string) (result *domain.SettlementResult, err error) {
	started := time.Now()
	defer func() { c.observe(OpConfirmReceipt, started, err) }()

	receipt, err := c.receipts.Confirm(ctx, receiptID, note)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	result, err = c.creditReceipt(ctx, receipt)
	if err != nil {
		return nil, err
	}

	if err := c.orders.MarkPaid(ctx, receipt.OrderID); err != nil {
		c.log(ctx).Warn("failed to mark order paid after receipt confirmation",
			zap.String("order_id", receipt.OrderID.String()),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, err)
	}

	c.notifyCredited(ctx, result)

	return result, nil
}

// RejectReceipt отклоняет квитанцию с причиной. Журнал и баланс не меняются.
func (c *Coordinator) RejectReceipt(ctx context.Context, receiptID uuid.UUID, reason string) (result *domain.SettlementResult, err error) {
	started := time.Now()
	defer func() { c.observe(OpRejectReceipt, started, err) }()

	receipt, err := c.receipts.Reject(ctx, receiptID, reason)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	result = &domain.SettlementResult{Receipt: receipt}

	if err := c.orders.Cancel(ctx, receipt.OrderID); err != nil {
		c.log(ctx).Warn("failed to cancel order after receipt rejection",
			zap.String("order_id", receipt.OrderID.String()),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, err)
	}

	c.notify(ctx, result, receipt.UserID, domain.SeverityWarning, "Payment rejected",
		fmt.Sprintf("Receipt for order %s was rejected: %s", shortID(receipt.OrderID), noteOf(receipt)))
	c.publish(ctx, domain.SettlementEvent{
		Type:      domain.EventReceiptRejected,
		UserID:    receipt.UserID,
		OrderID:   &receipt.OrderID,
		ReceiptID: &receipt.ID,
	})
	c.publish(ctx, domain.SettlementEvent{
		Type:    domain.EventOrderCancelled,
		UserID:  receipt.UserID,
		OrderID: &receipt.OrderID,
	})

	c.log(ctx).Info("receipt rejected",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("user_id", receipt.UserID.String()),
	)

	return result, nil
}

// AdjustBalance зачисляет (amount > 0) или списывает (amount < 0) Tocoin вне заказов
func (c *Coordinator) AdjustBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (result *domain.SettlementResult, err error) {
	started := time.Now()
	defer func() { c.observe(OpAdjustBalance, started, err) }()

	if amount.IsZero() {
		return nil, domain.NewValidationError("amount", "must not be zero")
	}
	if !amount.Equal(amount.Round(domain.MoneyScale)) {
		return nil, domain.NewValidationError("amount", "must have at most 2 fraction digits")
	}

	var (
		entry   *domain.LedgerEntry
		balance decimal.Decimal
	)
	if amount.IsPositive() {
		entry, balance, err = c.credit(ctx, userID, amount)
		if err != nil {
			return nil, err
		}
	} else {
		entry, balance, err = c.debit(ctx, userID, amount.Neg(), domain.LedgerEntryKindAdminDebit, nil)
		if err != nil {
			return nil, err
		}
	}

	ctx = context.WithoutCancel(ctx)
	result = &domain.SettlementResult{Entry: entry, Balance: balance}

	title, severity := "Balance credited", domain.SeveritySuccess
	if amount.IsNegative() {
		title, severity = "Balance debited", domain.SeverityWarning
	}
	c.notify(ctx, result, userID, severity, title,
		fmt.Sprintf("Administrator adjusted your balance by %s Tocoin. Balance: %s.", amount.StringFixed(domain.MoneyScale), balance.StringFixed(domain.MoneyScale)))
	c.publish(ctx, domain.SettlementEvent{
		Type:    domain.EventBalanceAdjusted,
		UserID:  userID,
		Amount:  decimalPtr(amount),
		Balance: decimalPtr(balance),
	})

	c.log(ctx).Info("balance adjusted",
		zap.String("user_id", userID.String()),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance),
	)

	return result, nil
}

// RecoverConfirmedReceipts дозачисляет подтвержденные квитанции, по которым нет записи deposit.
// Возвращает число восстановленных квитанций и ошибки по остальным.
func (c *Coordinator) RecoverConfirmedReceipts(ctx context.Context) (int, []domain.ReconcileFailure, error) {
	receipts, err := c.receipts.PendingDeposits(ctx)
	if err != nil {
		return 0, nil, err
	}

	var (
		recovered int
		failures  []domain.ReconcileFailure
	)
	for _, receipt := range receipts {
		if err := ctx.Err(); err != nil {
			return recovered, failures, err
		}

		started := time.Now()
		result, err := c.creditReceipt(ctx, receipt)
		c.observe(OpRecoverReceipt, started, err)
		if err != nil {
			failures = append(failures, domain.ReconcileFailure{UserID: receipt.UserID, Error: err.Error()})
			continue
		}
		recovered++

		if err := c.orders.MarkPaid(ctx, receipt.OrderID); err != nil && !errors.Is(err, domain.ErrInvalidState) {
			c.log(ctx).Warn("failed to mark order paid after receipt recovery",
				zap.String("order_id", receipt.OrderID.String()),
				zap.Error(err),
			)
		}
		c.notifyCredited(ctx, result)
	}

	return recovered, failures, nil
}

// creditReceipt пишет deposit по подтвержденной квитанции и применяет его к балансу.
// Если deposit уже есть, повторно ничего не зачисляется.
func (c *Coordinator) creditReceipt(ctx context.Context, receipt *domain.Receipt) (*domain.SettlementResult, error) {
	amount := c.TocoinFor(receipt.AmountAZN)
	ref := receipt.ID
	result := &domain.SettlementResult{Receipt: receipt}

	release, err := c.projector.Hold(ctx, receipt.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	entry, err := c.ledger.Append(ctx, domain.LedgerEntryDraft{
		UserID:    receipt.UserID,
		Amount:    amount,
		Kind:      domain.LedgerEntryKindDeposit,
		Reference: &ref,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateEntry):
		c.log(ctx).Info("receipt already credited", zap.String("receipt_id", receipt.ID.String()))
		balance, err := c.projector.Balance(ctx, receipt.UserID)
		if err != nil {
			return nil, err
		}
		result.Balance = balance
		return result, nil
	case err != nil:
		c.log(ctx).Error("receipt confirmed without deposit entry",
			zap.String("receipt_id", receipt.ID.String()),
			zap.String("user_id", receipt.UserID.String()),
			zap.Error(err),
		)
		return nil, &domain.SettlementFailedError{Op: "append deposit entry", Err: err}
	}

	balance, err := c.applyCredit(ctx, receipt.UserID, amount)
	if err != nil {
		return nil, err
	}

	result.Entry = entry
	result.Balance = balance
	return result, nil
}

func (c *Coordinator) notifyCredited(ctx context.Context, result *domain.SettlementResult) {
	receipt := result.Receipt
	if result.Entry == nil {
		return
	}
	c.notify(ctx, result, receipt.UserID, domain.SeveritySuccess, "Payment confirmed",
		fmt.Sprintf("Receipt for order %s confirmed, %s Tocoin credited. Balance: %s.",
			shortID(receipt.OrderID), result.Entry.Amount.StringFixed(domain.MoneyScale), result.Balance.StringFixed(domain.MoneyScale)))
	c.publish(ctx, domain.SettlementEvent{
		Type:      domain.EventReceiptConfirmed,
		UserID:    receipt.UserID,
		OrderID:   &receipt.OrderID,
		ReceiptID: &receipt.ID,
		Amount:    decimalPtr(result.Entry.Amount),
		Balance:   decimalPtr(result.Balance),
	})
}

// debit списывает amount с баланса и пишет запись журнала kind.
// prepare выполняется между списанием и записью и возвращает ссылку для записи.
// При ошибке после списания баланс возвращается.
func (c *Coordinator) debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind domain.LedgerEntryKind, prepare func(context.Context) (*uuid.UUID, error)) (*domain.LedgerEntry, decimal.Decimal, error) {
	release, err := c.projector.Hold(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer release()

	if _, err := c.projector.CheckSufficient(ctx, userID, amount); err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := c.projector.Apply(ctx, userID, amount.Neg())
	if err != nil {
		return nil, decimal.Zero, err
	}

	ctx = context.WithoutCancel(ctx)

	var ref *uuid.UUID
	if prepare != nil {
		if ref, err = prepare(ctx); err != nil {
			c.compensate(ctx, userID, amount, kind, err)
			return nil, decimal.Zero, err
		}
	}

	entry, err := c.ledger.Append(ctx, domain.LedgerEntryDraft{
		UserID:    userID,
		Amount:    amount.Neg(),
		Kind:      kind,
		Reference: ref,
	})
	if err != nil {
		c.compensate(ctx, userID, amount, kind, err)
		return nil, decimal.Zero, err
	}

	return entry, balance, nil
}

// credit пишет зачисление admin_credit и применяет его к балансу
func (c *Coordinator) credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.LedgerEntry, decimal.Decimal, error) {
	release, err := c.projector.Hold(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer release()

	entry, err := c.ledger.Append(ctx, domain.LedgerEntryDraft{
		UserID: userID,
		Amount: amount,
		Kind:   domain.LedgerEntryKindAdminCredit,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	balance, err := c.applyCredit(context.WithoutCancel(ctx), userID, amount)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return entry, balance, nil
}

// compensate возвращает на баланс списание, для которого не появилась запись журнала
func (c *Coordinator) compensate(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind domain.LedgerEntryKind, cause error) {
	logger := c.log(ctx).With(
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.Stringer("amount", amount),
		zap.NamedError("cause", cause),
	)

	_, err := c.projector.Apply(ctx, userID, amount)
	if err == nil {
		c.metrics.Compensated(true)
		logger.Warn("debit compensated")
		return
	}

	if _, rerr := c.projector.reconcile(ctx, userID); rerr != nil {
		err = errors.Join(err, rerr)
	} else {
		c.metrics.Compensated(true)
		logger.Warn("debit compensated by reconciliation", zap.Error(err))
		return
	}

	c.metrics.Compensated(false)
	logger.Error("failed to compensate debit, balance drifted from ledger", zap.Error(err))
}

// applyCredit применяет уже записанное зачисление; при сбое баланс пересчитывается из журнала
func (c *Coordinator) applyCredit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := c.projector.Apply(ctx, userID, amount)
	if err == nil {
		return balance, nil
	}

	c.log(ctx).Warn("failed to apply credit, re-deriving balance from ledger",
		zap.String("user_id", userID.String()),
		zap.Stringer("amount", amount),
		zap.Error(err),
	)

	drift, rerr := c.projector.reconcile(ctx, userID)
	if rerr == nil {
		return drift.Derived, nil
	}

	return decimal.Zero, &domain.SettlementFailedError{Op: "apply credit", Err: errors.Join(err, rerr)}
}

// cancelAbandoned отменяет заказ, расчет по которому не состоялся
func (c *Coordinator) cancelAbandoned(ctx context.Context, userID, orderID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := c.orders.Cancel(ctx, orderID); err != nil {
		c.log(ctx).Warn("failed to cancel abandoned order",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return
	}
	c.publish(ctx, domain.SettlementEvent{Type: domain.EventOrderCancelled, UserID: userID, OrderID: &orderID})
}

// notify отправляет уведомление; сбой становится предупреждением результата
func (c *Coordinator) notify(ctx context.Context, result *domain.SettlementResult, userID uuid.UUID, severity domain.Severity, title, message string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTimeout)
	defer cancel()

	err := c.notifier.Send(ctx, domain.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	})
	if err == nil {
		return
	}

	c.metrics.SideEffectFailed("notification sink")
	c.log(ctx).Warn("failed to send notification",
		zap.String("user_id", userID.String()),
		zap.String("title", title),
		zap.Error(err),
	)
	result.Warnings = append(result.Warnings, &domain.DependencyUnavailableError{Dependency: "notification sink", Err: err})
}

func (c *Coordinator) publish(ctx context.Context, event domain.SettlementEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTimeout)
	defer cancel()

	if err := c.events.Publish(ctx, event); err != nil {
		c.metrics.SideEffectFailed("event publisher")
		c.log(ctx).Warn("failed to publish settlement event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) observe(op string, started time.Time, err error) {
	c.metrics.ObserveSettlement(op, outcomeOf(err), started)
}

func (c *Coordinator) log(ctx context.Context) *zap.Logger {
	if requestID := domain.RequestIDFromContext(ctx); requestID != "" {
		return c.logger.With(zap.String("request_id", requestID))
	}
	return c.logger
}

// outcomeOf классифицирует результат расчета для метрик
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInsufficient),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrUnsupportedPay),
		errors.Is(err, domain.ErrReceiptNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func noteOf(r *domain.Receipt) string {
	if r.AdminNote == nil {
		return ""
	}
	return *r.AdminNote
}
