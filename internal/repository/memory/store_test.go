package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Users(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "aysel", "hash", "Aysel", domain.UserRoleCustomer)
	require.NoError(t, err)
	assert.True(t, user.Balance.IsZero())

	t.Run("Duplicate login", func(t *testing.T) {
		_, err := store.CreateUser(ctx, "aysel", "hash", "", domain.UserRoleCustomer)
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("Lookup", func(t *testing.T) {
		byLogin, err := store.GetUserByLogin(ctx, "aysel")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byLogin.ID)

		_, err = store.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Compare and swap", func(t *testing.T) {
		require.NoError(t, store.UpdateBalance(ctx, user.ID, decimal.NewFromInt(10), decimal.Zero))

		err := store.UpdateBalance(ctx, user.ID, decimal.NewFromInt(20), decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrBalanceConflict)

		err = store.UpdateBalance(ctx, user.ID, decimal.NewFromInt(-1), decimal.NewFromInt(10))
		assert.Error(t, err)

		current, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(current.Balance))
	})

	t.Run("Returned copies are detached", func(t *testing.T) {
		u, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		u.Balance = decimal.NewFromInt(1000)

		again, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(again.Balance))
	})

	t.Run("Avatar", func(t *testing.T) {
		require.NoError(t, store.UpdateAvatar(ctx, user.ID, "/api/files/avatars/a.png"))

		u, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, u.AvatarURL)
		assert.Equal(t, "/api/files/avatars/a.png", *u.AvatarURL)

		assert.ErrorIs(t, store.UpdateAvatar(ctx, uuid.New(), "x"), domain.ErrUserNotFound)
	})
}

func TestStore_Ledger(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "u", "h", "", domain.UserRoleCustomer)
	require.NoError(t, err)
	ref := uuid.New()

	_, err = store.AppendEntry(ctx, domain.LedgerEntryDraft{UserID: user.ID, Amount: decimal.NewFromInt(20), Kind: domain.LedgerEntryKindAdminCredit})
	require.NoError(t, err)
	_, err = store.AppendEntry(ctx, domain.LedgerEntryDraft{UserID: user.ID, Amount: decimal.NewFromInt(-12), Kind: domain.LedgerEntryKindPurchase, Reference: &ref})
	require.NoError(t, err)

	t.Run("Duplicate reference", func(t *testing.T) {
		_, err := store.AppendEntry(ctx, domain.LedgerEntryDraft{UserID: user.ID, Amount: decimal.NewFromInt(-12), Kind: domain.LedgerEntryKindPurchase, Reference: &ref})
		assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
	})

	t.Run("Unknown user", func(t *testing.T) {
		_, err := store.AppendEntry(ctx, domain.LedgerEntryDraft{UserID: uuid.New(), Amount: decimal.NewFromInt(1), Kind: domain.LedgerEntryKindDeposit})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("Entries in append order", func(t *testing.T) {
		entries, err := store.EntriesForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.LedgerEntryKindAdminCredit, entries[0].Kind)
		assert.Equal(t, domain.LedgerEntryKindPurchase, entries[1].Kind)

		sum, err := store.SumForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(8).Equal(sum))
	})
}

func TestStore_OrdersAndReceipts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	order, err := store.CreateOrder(ctx, &domain.Order{UserID: userID, PaymentMethod: domain.PaymentMethodCard, TotalAZN: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	t.Run("Order transitions", func(t *testing.T) {
		require.NoError(t, store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled))

		err := store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		err = store.UpdateOrderStatus(ctx, uuid.New(), domain.OrderStatusPending, domain.OrderStatusPaid)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("Receipt resolves once", func(t *testing.T) {
		receipt, err := store.CreateReceipt(ctx, &domain.Receipt{OrderID: order.ID, UserID: userID, AmountAZN: decimal.NewFromInt(5), ImageRef: "r"})
		require.NoError(t, err)

		_, err = store.CreateReceipt(ctx, &domain.Receipt{OrderID: order.ID, UserID: userID})
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		resolved, err := store.ResolveReceipt(ctx, receipt.ID, domain.ReceiptStatusConfirmed, "ok")
		require.NoError(t, err)
		assert.NotNil(t, resolved.ResolvedAt)

		_, err = store.ResolveReceipt(ctx, receipt.ID, domain.ReceiptStatusRejected, "")
		assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

		missing, err := store.GetConfirmedWithoutDeposit(ctx)
		require.NoError(t, err)
		require.Len(t, missing, 1)
		assert.Equal(t, receipt.ID, missing[0].ID)
	})
}

func TestStore_DecrementStock(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	product, err := store.CreateProduct(ctx, &domain.Product{Name: "Robot", PriceAZN: decimal.NewFromInt(12), Stock: 2})
	require.NoError(t, err)
	orderID := uuid.New()

	applied, err := store.DecrementStock(ctx, orderID, product.ID, 1)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.DecrementStock(ctx, orderID, product.ID, 1)
	require.NoError(t, err)
	assert.False(t, applied)

	products, err := store.GetProducts(ctx, []uuid.UUID{product.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 1, products[product.ID].Stock)

	_, err = store.DecrementStock(ctx, orderID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestStore_DeleteProduct(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	product, err := store.CreateProduct(ctx, &domain.Product{Name: "Ball", PriceAZN: decimal.NewFromInt(3), Stock: 1})
	require.NoError(t, err)

	require.NoError(t, store.DeleteProduct(ctx, product.ID))
	assert.ErrorIs(t, store.DeleteProduct(ctx, product.ID), domain.ErrProductNotFound)

	list, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ConcurrentCAS(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "u", "h", "", domain.UserRoleCustomer)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.UpdateBalance(ctx, user.ID, decimal.NewFromInt(1), decimal.Zero) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}
