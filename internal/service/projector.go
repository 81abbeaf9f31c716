package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BalanceProjector поддерживает денормализованный баланс пользователя.
// Каждая запись идет через compare-and-swap по предыдущему значению и
// повторяется при конфликте не более retries раз.
//
// Между изменением баланса и записью в журнал расчет держит окно
// пользователя (Hold). Reconcile и Check ждут закрытия окна, поэтому
// не видят расхождение, которое расчет еще не довел до конца.
type BalanceProjector struct {
	users   domain.UserDirectory
	ledger  domain.LedgerRepository
	retries int
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	windows map[uuid.UUID]*settlementWindow
}

type settlementWindow struct {
	sem  *semaphore.Weighted
	refs int
}

// NewBalanceProjector создает новый BalanceProjector
func NewBalanceProjector(users domain.UserDirectory, ledger domain.LedgerRepository, retries int, m *metrics.Metrics, logger *zap.Logger) *BalanceProjector {
	if retries <= 0 {
		retries = 1
	}
	return &BalanceProjector{
		users:   users,
		ledger:  ledger,
		retries: retries,
		metrics: m,
		logger:  logger,
		windows: make(map[uuid.UUID]*settlementWindow),
	}
}

// Hold открывает окно расчета пользователя и возвращает функцию его закрытия.
// Окна одного пользователя не пересекаются; ожидание прерывается по ctx.
func (p *BalanceProjector) Hold(ctx context.Context, userID uuid.UUID) (func(), error) {
	p.mu.Lock()
	w, ok := p.windows[userID]
	if !ok {
		w = &settlementWindow{sem: semaphore.NewWeighted(1)}
		p.windows[userID] = w
	}
	w.refs++
	p.mu.Unlock()

	if err := w.sem.Acquire(ctx, 1); err != nil {
		p.leave(userID, w)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			w.sem.Release(1)
			p.leave(userID, w)
		})
	}, nil
}

func (p *BalanceProjector) leave(userID uuid.UUID, w *settlementWindow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w.refs--
	if w.refs == 0 {
		delete(p.windows, userID)
	}
}

// Balance возвращает сохраненный баланс пользователя
func (p *BalanceProjector) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, wrap(err, "balance projector: failed to get user %s", userID)
	}
	return user.Balance, nil
}

// CheckSufficient проверяет, что баланс покрывает amount, и возвращает текущий баланс
func (p *BalanceProjector) CheckSufficient(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := p.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return balance, &domain.InsufficientBalanceError{Required: amount, Available: balance}
	}
	return balance, nil
}

// Apply прибавляет delta к балансу и возвращает новое значение.
// Списание ниже нуля отклоняется с InsufficientBalanceError без записи.
func (p *BalanceProjector) Apply(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 1; attempt <= p.retries; attempt++ {
		current, err := p.Balance(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}

		next := current.Add(delta)
		if next.IsNegative() {
			return decimal.Zero, &domain.InsufficientBalanceError{Required: delta.Neg(), Available: current}
		}

		err = p.users.UpdateBalance(ctx, userID, next, current)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrBalanceConflict) {
			return decimal.Zero, wrap(err, "balance projector: failed to update balance for user %s", userID)
		}

		p.metrics.CASConflict()
		p.logger.Debug("balance compare-and-swap conflict",
			zap.String("user_id", userID.String()),
			zap.Int("attempt", attempt),
		)
	}

	return decimal.Zero, &domain.SettlementFailedError{Op: "apply balance", Err: domain.ErrBalanceConflict}
}

// Reconcile записывает в баланс сумму журнала, если они расходятся.
// Ждет, пока у пользователя не останется открытого окна расчета.
func (p *BalanceProjector) Reconcile(ctx context.Context, userID uuid.UUID) (domain.BalanceDrift, error) {
	release, err := p.Hold(ctx, userID)
	if err != nil {
		return domain.BalanceDrift{UserID: userID}, err
	}
	defer release()

	return p.reconcile(ctx, userID)
}

// reconcile пересчитывает баланс внутри уже открытого окна
func (p *BalanceProjector) reconcile(ctx context.Context, userID uuid.UUID) (domain.BalanceDrift, error) {
	drift := domain.BalanceDrift{UserID: userID}

	for attempt := 1; attempt <= p.retries; attempt++ {
		stored, err := p.Balance(ctx, userID)
		if err != nil {
			return drift, err
		}

		derived, err := p.ledger.SumForUser(ctx, userID)
		if err != nil {
			return drift, fmt.Errorf("balance projector: failed to sum ledger for user %s: %w", userID, err)
		}

		drift.Stored, drift.Derived = stored, derived
		if stored.Equal(derived) {
			p.metrics.Reconciled("clean")
			return drift, nil
		}
		if derived.IsNegative() {
			return drift, &domain.SettlementFailedError{
				Op:  "reconcile balance",
				Err: fmt.Errorf("ledger sum %s of user %s is negative", derived.StringFixed(domain.MoneyScale), userID),
			}
		}

		err = p.users.UpdateBalance(ctx, userID, derived, stored)
		if err == nil {
			drift.Repaired = true
			p.metrics.Reconciled("repaired")
			p.logger.Warn("balance re-derived from ledger",
				zap.String("user_id", userID.String()),
				zap.Stringer("stored", stored),
				zap.Stringer("derived", derived),
			)
			return drift, nil
		}
		if !errors.Is(err, domain.ErrBalanceConflict) {
			return drift, wrap(err, "balance projector: failed to repair balance for user %s", userID)
		}
		p.metrics.CASConflict()
	}

	p.metrics.Reconciled("failed")
	return drift, &domain.SettlementFailedError{Op: "reconcile balance", Err: domain.ErrBalanceConflict}
}

// Check сравнивает баланс с суммой журнала, ничего не исправляя
func (p *BalanceProjector) Check(ctx context.Context, userID uuid.UUID) (domain.BalanceDrift, error) {
	drift := domain.BalanceDrift{UserID: userID}

	release, err := p.Hold(ctx, userID)
	if err != nil {
		return drift, err
	}
	defer release()

	stored, err := p.Balance(ctx, userID)
	if err != nil {
		return drift, err
	}
	derived, err := p.ledger.SumForUser(ctx, userID)
	if err != nil {
		return drift, fmt.Errorf("balance projector: failed to sum ledger for user %s: %w", userID, err)
	}

	drift.Stored, drift.Derived = stored, derived
	return drift, nil
}
