package service

import (
	"context"
	"testing"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_Quote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	car := f.product(t, "Car", "12.50", strPtr("10"), 5)
	doll := f.product(t, "Doll", "7.25", nil, 1)

	t.Run("Merges duplicates and sums totals", func(t *testing.T) {
		cart := []domain.CartItem{{ProductID: car, Quantity: 1}, {ProductID: doll, Quantity: 1}, {ProductID: car, Quantity: 2}}

		order, err := f.orders.Quote(ctx, userID, cart, domain.PaymentMethodCard, &domain.Location{Lat: 40.4, Lng: 49.8})
		require.NoError(t, err)
		require.Len(t, order.Items, 2)
		assert.Equal(t, car, order.Items[0].ProductID)
		assert.Equal(t, 3, order.Items[0].Quantity)
		assert.Equal(t, "44.75", order.TotalAZN.StringFixed(2))
		assert.Equal(t, "30.00", order.TotalTocoin.StringFixed(2))
		assert.Equal(t, domain.OrderStatusPending, order.Status)
		assert.Equal(t, domain.PaymentMethodCard, order.PaymentMethod)
	})

	tests := []struct {
		name   string
		cart   []domain.CartItem
		method domain.PaymentMethod
		loc    *domain.Location
		target error
	}{
		{"Empty cart", nil, domain.PaymentMethodCard, nil, domain.ErrValidation},
		{"Zero quantity", []domain.CartItem{{ProductID: car, Quantity: 0}}, domain.PaymentMethodCard, nil, domain.ErrValidation},
		{"Unknown product", []domain.CartItem{{ProductID: uuid.New(), Quantity: 1}}, domain.PaymentMethodCard, nil, domain.ErrValidation},
		{"Out of stock", []domain.CartItem{{ProductID: doll, Quantity: 2}}, domain.PaymentMethodCard, nil, domain.ErrValidation},
		{"Unknown method", []domain.CartItem{{ProductID: car, Quantity: 1}}, "cash", nil, domain.ErrValidation},
		{"Bad latitude", []domain.CartItem{{ProductID: car, Quantity: 1}}, domain.PaymentMethodCard, &domain.Location{Lat: 91}, domain.ErrValidation},
		{"Bad longitude", []domain.CartItem{{ProductID: car, Quantity: 1}}, domain.PaymentMethodCard, &domain.Location{Lng: -181}, domain.ErrValidation},
		{"No tocoin price", []domain.CartItem{{ProductID: car, Quantity: 1}, {ProductID: doll, Quantity: 1}}, domain.PaymentMethodTocoin, nil, domain.ErrUnsupportedPay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := f.orders.Quote(ctx, userID, tt.cart, tt.method, tt.loc)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, order)
		})
	}
}

func TestOrderService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	car := f.product(t, "Car", "12.50", nil, 5)

	draft, err := f.orders.Quote(ctx, userID, []domain.CartItem{{ProductID: car, Quantity: 2}}, domain.PaymentMethodCard, nil)
	require.NoError(t, err)

	order, err := f.orders.Create(ctx, draft)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	t.Run("Only owner can read", func(t *testing.T) {
		got, err := f.orders.Get(ctx, userID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, got.ID)

		_, err = f.orders.Get(ctx, uuid.New(), order.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("Stock decrement is idempotent", func(t *testing.T) {
		require.NoError(t, f.orders.DecrementStock(ctx, order))
		require.NoError(t, f.orders.DecrementStock(ctx, order))
		assert.Equal(t, 3, f.stock(t, car))
	})

	require.NoError(t, f.orders.MarkPaid(ctx, order.ID))

	t.Run("Paid order cannot be cancelled", func(t *testing.T) {
		err := f.orders.Cancel(ctx, order.ID)
		var transition *domain.InvalidTransitionError
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, string(domain.OrderStatusPaid), transition.From)
	})

	t.Run("Paid twice", func(t *testing.T) {
		assert.ErrorIs(t, f.orders.MarkPaid(ctx, order.ID), domain.ErrInvalidState)
	})

	orders, err := f.orders.GetOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusPaid, orders[0].Status)
}
