package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceReconciler сверяет баланс пользователя с журналом
type BalanceReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (domain.BalanceDrift, error)
	Check(ctx context.Context, userID uuid.UUID) (domain.BalanceDrift, error)
}

// ReceiptRecoverer дозачисляет подтвержденные квитанции без записи в журнале
type ReceiptRecoverer interface {
	RecoverConfirmedReceipts(ctx context.Context) (int, []domain.ReconcileFailure, error)
}

// UserLister перечисляет пользователей для сверки
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Pool представляет пул воркеров для сверки балансов с журналом
type Pool struct {
	workers      int
	queueSize    int
	users        UserLister
	balances     BalanceReconciler
	receipts     ReceiptRecoverer
	logger       *zap.Logger
	scanInterval time.Duration

	wg    sync.WaitGroup
	runMu sync.Mutex
}

type userResult struct {
	drift domain.BalanceDrift
	err   error
}

// NewPool создает новый worker pool.
// scanInterval <= 0 отключает периодическую сверку, остается только Run.
func NewPool(
	workers int,
	queueSize int,
	users UserLister,
	balances BalanceReconciler,
	receipts ReceiptRecoverer,
	scanInterval time.Duration,
	logger *zap.Logger,
) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pool{
		workers:      workers,
		queueSize:    queueSize,
		users:        users,
		balances:     balances,
		receipts:     receipts,
		logger:       logger,
		scanInterval: scanInterval,
	}
}

// Start запускает периодическую сверку
func (p *Pool) Start(ctx context.Context) {
	if p.scanInterval <= 0 {
		return
	}

	p.wg.Add(1)
	go p.scanner(ctx)
}

// Stop ждет завершения сканера; сам сканер останавливается отменой контекста Start
func (p *Pool) Stop() {
	p.wg.Wait()
}

// Run выполняет одну сверку. С repair квитанции дозачисляются, а балансы
// перезаписываются суммой журнала; без repair расхождения только сообщаются.
// Одновременно выполняется не больше одной сверки.
func (p *Pool) Run(ctx context.Context, repair bool) (*domain.ReconcileReport, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	report := &domain.ReconcileReport{Drifted: []domain.BalanceDrift{}}

	if repair {
		recovered, failures, err := p.receipts.RecoverConfirmedReceipts(ctx)
		if err != nil {
			return nil, fmt.Errorf("worker: failed to recover confirmed receipts: %w", err)
		}
		report.ReceiptsRecovered = recovered
		report.Failures = append(report.Failures, failures...)
	}

	ids, err := p.users.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker: failed to list users: %w", err)
	}

	queue := make(chan uuid.UUID, p.queueSize)
	results := make(chan userResult, p.workers)

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go p.worker(ctx, i, repair, queue, results, &workers)
	}

	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	for r := range results {
		report.UsersChecked++
		switch {
		case r.err != nil:
			report.Failures = append(report.Failures, domain.ReconcileFailure{UserID: r.drift.UserID, Error: r.err.Error()})
		case !r.drift.Stored.Equal(r.drift.Derived):
			report.Drifted = append(report.Drifted, r.drift)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	p.logger.Info("reconciliation finished",
		zap.Bool("repair", repair),
		zap.Int("users_checked", report.UsersChecked),
		zap.Int("drifted", len(report.Drifted)),
		zap.Int("receipts_recovered", report.ReceiptsRecovered),
		zap.Int("failures", len(report.Failures)),
	)

	return report, nil
}

// worker сверяет пользователей из очереди
func (p *Pool) worker(ctx context.Context, id int, repair bool, queue <-chan uuid.UUID, results chan<- userResult, wg *sync.WaitGroup) {
	defer wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker stopping", zap.Int("worker_id", id))
			return
		case userID, ok := <-queue:
			if !ok {
				return
			}
			results <- p.processUser(ctx, userID, repair)
		}
	}
}

// processUser сверяет одного пользователя
func (p *Pool) processUser(ctx context.Context, userID uuid.UUID, repair bool) userResult {
	check := p.balances.Check
	if repair {
		check = p.balances.Reconcile
	}

	drift, err := check(ctx, userID)
	drift.UserID = userID
	if err != nil {
		p.logger.Error("failed to reconcile balance",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return userResult{drift: drift, err: err}
	}

	if !drift.Stored.Equal(drift.Derived) && !repair {
		p.logger.Warn("balance differs from ledger",
			zap.String("user_id", userID.String()),
			zap.Stringer("stored", drift.Stored),
			zap.Stringer("derived", drift.Derived),
		)
	}

	return userResult{drift: drift}
}

// scanner периодически запускает сверку с исправлением
func (p *Pool) scanner(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scanner stopping")
			return
		case <-ticker.C:
			if _, err := p.Run(ctx, true); err != nil && ctx.Err() == nil {
				p.logger.Error("scheduled reconciliation failed", zap.Error(err))
			}
		}
	}
}
