// Package memory хранит данные в памяти процесса.
// Используется при STORAGE_DRIVER=memory и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stockKey struct {
	orderID   uuid.UUID
	productID uuid.UUID
}

type entryKey struct {
	kind      domain.LedgerEntryKind
	reference uuid.UUID
}

// Store реализует все репозитории домена поверх map под одним мьютексом
type Store struct {
	mu sync.RWMutex

	users    map[uuid.UUID]*domain.User
	logins   map[string]uuid.UUID
	ledger   []*domain.LedgerEntry
	refs     map[entryKey]struct{}
	orders   map[uuid.UUID]*domain.Order
	receipts map[uuid.UUID]*domain.Receipt
	products map[uuid.UUID]*domain.Product
	stock    map[stockKey]int

	now func() time.Time
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*domain.User),
		logins:   make(map[string]uuid.UUID),
		refs:     make(map[entryKey]struct{}),
		orders:   make(map[uuid.UUID]*domain.Order),
		receipts: make(map[uuid.UUID]*domain.Receipt),
		products: make(map[uuid.UUID]*domain.Product),
		stock:    make(map[stockKey]int),
		now:      time.Now,
	}
}

// Ping всегда успешен
func (s *Store) Ping(context.Context) error { return nil }

// CreateUser создает пользователя с нулевым балансом
func (s *Store) CreateUser(_ context.Context, login, passwordHash, fullName string, role domain.UserRole) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logins[login]; ok {
		return nil, domain.ErrUserExists
	}

	user := &domain.User{
		ID:           uuid.New(),
		Login:        login,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         role,
		Balance:      decimal.Zero,
		CreatedAt:    s.now(),
	}
	s.users[user.ID] = user
	s.logins[login] = user.ID

	copied := *user
	return &copied, nil
}

// GetUserByLogin получает пользователя по логину
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.logins[login]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

// GetUser получает пользователя по ID
func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

// UpdateBalance записывает баланс при совпадении текущего значения с expectedPrevious
func (s *Store) UpdateBalance(_ context.Context, id uuid.UUID, newBalance, expectedPrevious decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if newBalance.IsNegative() {
		return fmt.Errorf("memory: balance of user %s must not be negative", id)
	}
	if !user.Balance.Equal(expectedPrevious) {
		return domain.ErrBalanceConflict
	}

	user.Balance = newBalance
	return nil
}

// UpdateAvatar сохраняет ссылку на аватар пользователя
func (s *Store) UpdateAvatar(_ context.Context, id uuid.UUID, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.AvatarURL = &avatarURL
	return nil
}

// ListUserIDs возвращает идентификаторы пользователей в порядке создания
func (s *Store) ListUserIDs(context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

// AppendEntry добавляет запись в журнал
func (s *Store) AppendEntry(_ context.Context, draft domain.LedgerEntryDraft) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[draft.UserID]; !ok {
		return nil, domain.ErrUserNotFound
	}

	if draft.Reference != nil {
		key := entryKey{kind: draft.Kind, reference: *draft.Reference}
		if _, ok := s.refs[key]; ok {
			return nil, domain.ErrDuplicateEntry
		}
		s.refs[key] = struct{}{}
	}

	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		UserID:    draft.UserID,
		Amount:    draft.Amount,
		Kind:      draft.Kind,
		Reference: copyID(draft.Reference),
		CreatedAt: s.now(),
	}
	s.ledger = append(s.ledger, entry)

	copied := *entry
	return &copied, nil
}

// EntriesForUser возвращает записи пользователя в порядке добавления
func (s *Store) EntriesForUser(_ context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*domain.LedgerEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

// SumForUser возвращает сумму записей пользователя
func (s *Store) SumForUser(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range s.ledger {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

// CreateOrder сохраняет заказ
func (s *Store) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := copyOrder(order)
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if _, ok := s.orders[created.ID]; ok {
		return nil, fmt.Errorf("memory: order %s already exists", created.ID)
	}
	if created.Status == "" {
		created.Status = domain.OrderStatusPending
	}
	created.CreatedAt = s.now()

	s.orders[created.ID] = created
	return copyOrder(created), nil
}

// GetOrder получает заказ по ID
func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// GetOrdersByUserID получает заказы пользователя, новые первыми
func (s *Store) GetOrdersByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа, если текущий статус равен from
func (s *Store) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != from || !from.CanTransitionTo(to) {
		return &domain.InvalidTransitionError{Entity: "order", ID: id, From: string(order.Status), To: string(to)}
	}

	order.Status = to
	return nil
}

// CreateReceipt сохраняет квитанцию в статусе waiting
func (s *Store) CreateReceipt(_ context.Context, receipt *domain.Receipt) (*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.receipts {
		if r.OrderID == receipt.OrderID {
			return nil, fmt.Errorf("memory: order %s already has a receipt: %w", receipt.OrderID, domain.ErrInvalidState)
		}
	}

	created := *receipt
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.Status = domain.ReceiptStatusWaiting
	created.AdminNote = nil
	created.ResolvedAt = nil
	created.CreatedAt = s.now()

	s.receipts[created.ID] = &created
	copied := created
	return &copied, nil
}

// GetReceipt получает квитанцию по ID
func (s *Store) GetReceipt(_ context.Context, id uuid.UUID) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, ok := s.receipts[id]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	return copyReceipt(receipt), nil
}

// GetReceiptsByUserID получает квитанции пользователя, новые первыми
func (s *Store) GetReceiptsByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	return s.filterReceipts(func(r *domain.Receipt) bool { return r.UserID == userID }, true), nil
}

// GetReceiptsByStatus получает квитанции в статусе, старые первыми
func (s *Store) GetReceiptsByStatus(_ context.Context, status domain.ReceiptStatus) ([]*domain.Receipt, error) {
	return s.filterReceipts(func(r *domain.Receipt) bool { return r.Status == status }, false), nil
}

// ResolveReceipt переводит квитанцию из waiting в status
func (s *Store) ResolveReceipt(_ context.Context, id uuid.UUID, status domain.ReceiptStatus, note string) (*domain.Receipt, error) {
	if !domain.ReceiptStatusWaiting.CanTransitionTo(status) {
		return nil, &domain.InvalidTransitionError{Entity: "receipt", ID: id, From: string(domain.ReceiptStatusWaiting), To: string(status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[id]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	if receipt.Status != domain.ReceiptStatusWaiting {
		return nil, &domain.AlreadyResolvedError{ReceiptID: id, Status: receipt.Status}
	}

	resolvedAt := s.now()
	receipt.Status = status
	receipt.ResolvedAt = &resolvedAt
	if note != "" {
		receipt.AdminNote = &note
	}

	return copyReceipt(receipt), nil
}

// GetConfirmedWithoutDeposit находит подтвержденные квитанции без записи deposit
func (s *Store) GetConfirmedWithoutDeposit(context.Context) ([]*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var receipts []*domain.Receipt
	for _, r := range s.receipts {
		if r.Status != domain.ReceiptStatusConfirmed {
			continue
		}
		if _, ok := s.refs[entryKey{kind: domain.LedgerEntryKindDeposit, reference: r.ID}]; ok {
			continue
		}
		receipts = append(receipts, copyReceipt(r))
	}
	sort.SliceStable(receipts, func(i, j int) bool { return receipts[i].CreatedAt.Before(receipts[j].CreatedAt) })
	return receipts, nil
}

// CreateProduct добавляет товар
func (s *Store) CreateProduct(_ context.Context, product *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *product
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = s.now()

	s.products[created.ID] = &created
	copied := created
	return &copied, nil
}

// GetProducts получает товары по списку ID
func (s *Store) GetProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			copied := *p
			products[id] = &copied
		}
	}
	return products, nil
}

// ListProducts возвращает каталог, новые товары первыми
func (s *Store) ListProducts(context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		copied := *p
		products = append(products, &copied)
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	return products, nil
}

// DeleteProduct удаляет товар
func (s *Store) DeleteProduct(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

// DecrementStock списывает остаток один раз для пары (orderID, productID)
func (s *Store) DecrementStock(_ context.Context, orderID, productID uuid.UUID, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}

	key := stockKey{orderID: orderID, productID: productID}
	if _, done := s.stock[key]; done {
		return false, nil
	}

	s.stock[key] = quantity
	product.Stock -= quantity
	return true, nil
}

func (s *Store) filterReceipts(match func(*domain.Receipt) bool, newestFirst bool) []*domain.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var receipts []*domain.Receipt
	for _, r := range s.receipts {
		if match(r) {
			receipts = append(receipts, copyReceipt(r))
		}
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		if newestFirst {
			return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
		}
		return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
	})
	return receipts
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	copied := *id
	return &copied
}

func copyOrder(o *domain.Order) *domain.Order {
	copied := *o
	copied.Items = append([]domain.LineItem(nil), o.Items...)
	if o.Delivery != nil {
		location := *o.Delivery
		copied.Delivery = &location
	}
	return &copied
}

func copyReceipt(r *domain.Receipt) *domain.Receipt {
	copied := *r
	if r.AdminNote != nil {
		note := *r.AdminNote
		copied.AdminNote = &note
	}
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		copied.ResolvedAt = &at
	}
	return &copied
}
