package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStorageDown = errors.New("storage down")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// faultyLedger отказывает в записи выбранных типов
type faultyLedger struct {
	*memory.Store

	mu    sync.Mutex
	fails map[domain.LedgerEntryKind]int

	// afterAppend вызывается после каждой успешной записи
	afterAppend func(entry *domain.LedgerEntry)
}

func (l *faultyLedger) failNext(kind domain.LedgerEntryKind, times int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fails[kind] = times
}

func (l *faultyLedger) AppendEntry(ctx context.Context, draft domain.LedgerEntryDraft) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	if l.fails[draft.Kind] > 0 {
		l.fails[draft.Kind]--
		l.mu.Unlock()
		return nil, errStorageDown
	}
	hook := l.afterAppend
	l.mu.Unlock()

	entry, err := l.Store.AppendEntry(ctx, draft)
	if err == nil && hook != nil {
		hook(entry)
	}
	return entry, err
}

// faultyUsers отказывает в обновлении баланса заданное число раз
type faultyUsers struct {
	*memory.Store

	mu            sync.Mutex
	updateFails   int
	updateErr     error
	updateAttempt int
}

func (u *faultyUsers) failUpdates(times int, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updateFails, u.updateErr = times, err
}

func (u *faultyUsers) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance, expectedPrevious decimal.Decimal) error {
	u.mu.Lock()
	u.updateAttempt++
	if u.updateFails > 0 {
		u.updateFails--
		err := u.updateErr
		u.mu.Unlock()
		return err
	}
	u.mu.Unlock()
	return u.Store.UpdateBalance(ctx, id, newBalance, expectedPrevious)
}

// recordingSink запоминает уведомления
type recordingSink struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error

	// recentErr ломает только чтение истории
	recentErr error
}

func (s *recordingSink) Send(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) Recent(_ context.Context, userID uuid.UUID, _ int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []domain.Notification
	for _, n := range s.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *recordingSink) count(userID uuid.UUID) int {
	list, _ := s.Recent(context.Background(), userID, 0)
	return len(list)
}

// recordingPublisher запоминает события
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SettlementEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// memObjects хранилище объектов в памяти
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (o *memObjects) Put(_ context.Context, path string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	if o.objects == nil {
		o.objects = make(map[string][]byte)
	}
	o.objects[path] = append([]byte(nil), data...)
	return path, nil
}

func (o *memObjects) Get(_ context.Context, ref string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[ref]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return data, nil
}

func (o *memObjects) URL(ref string) string { return "/api/files/" + ref }

type fixture struct {
	store     *memory.Store
	ledgerDB  *faultyLedger
	usersDB   *faultyUsers
	ledger    *LedgerService
	projector *BalanceProjector
	orders    *OrderService
	receipts  *ReceiptWorkflow
	sink      *recordingSink
	events    *recordingPublisher
	objects   *memObjects
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:    store,
		ledgerDB: &faultyLedger{Store: store, fails: make(map[domain.LedgerEntryKind]int)},
		usersDB:  &faultyUsers{Store: store},
		sink:     &recordingSink{},
		events:   &recordingPublisher{},
		objects:  &memObjects{},
	}

	logger := zap.NewNop()
	f.ledger = NewLedgerService(f.ledgerDB, f.usersDB)
	f.projector = NewBalanceProjector(f.usersDB, f.ledgerDB, 5, nil, logger)
	f.orders = NewOrderService(store, store)
	f.receipts = NewReceiptWorkflow(store)
	f.coord = NewCoordinator(CoordinatorDeps{
		Ledger:    f.ledger,
		Projector: f.projector,
		Orders:    f.orders,
		Receipts:  f.receipts,
		Objects:   f.objects,
		Notifier:  f.sink,
		Events:    f.events,
		Logger:    logger,
	}, decimal.NewFromInt(1), 0)

	return f
}

func (f *fixture) user(t *testing.T, login string) uuid.UUID {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), login, "hash", login, domain.UserRoleCustomer)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) account() *AccountService {
	return NewAccountService(AccountDeps{
		Users:     f.usersDB,
		Projector: f.projector,
		Ledger:    f.ledger,
		Orders:    f.orders,
		Receipts:  f.receipts,
		Objects:   f.objects,
		Sink:      f.sink,
	})
}

func (f *fixture) product(t *testing.T, name, azn string, tocoin *string, stock int) uuid.UUID {
	t.Helper()
	p := &domain.Product{ID: uuid.New(), Name: name, PriceAZN: dec(azn), Stock: stock}
	if tocoin != nil {
		price := dec(*tocoin)
		p.PriceTocoin = &price
	}
	created, err := f.store.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return created.ID
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func (f *fixture) ledgerSum(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	sum, err := f.store.SumForUser(context.Background(), userID)
	require.NoError(t, err)
	return sum
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	products, err := f.store.GetProducts(context.Background(), []uuid.UUID{productID})
	require.NoError(t, err)
	p, ok := products[productID]
	require.True(t, ok, fmt.Sprintf("product %s", productID))
	return p.Stock
}

func strPtr(s string) *string { return &s }
