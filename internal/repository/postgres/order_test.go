package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumnNames = []string{"id", "user_id", "items", "total_azn", "total_tocoin", "payment_method", "status", "delivery_lat", "delivery_lng", "created_at"}

func TestOrderRepository_CreateOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()

	userID := uuid.New()
	total := decimal.RequireFromString("37.50")

	t.Run("Success", func(t *testing.T) {
		orderID := uuid.New()
		now := time.Now()
		order := &domain.Order{
			ID:            orderID,
			UserID:        userID,
			Items:         []domain.LineItem{{ProductID: uuid.New(), Name: "Teddy", UnitPriceAZN: total, Quantity: 1}},
			TotalAZN:      total,
			PaymentMethod: domain.PaymentMethodCard,
			Delivery:      &domain.Location{Lat: 40.4093, Lng: 49.8671},
		}

		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(orderID, userID, pgxmock.AnyArg(), total, decimal.Decimal{}, domain.PaymentMethodCard,
				domain.OrderStatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

		created, err := repo.CreateOrder(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, orderID, created.ID)
		assert.Equal(t, domain.OrderStatusPending, created.Status)
		assert.Equal(t, now, created.CreatedAt)
		assert.Empty(t, order.Status, "input order must not be mutated")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Generates id", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg(), total, total, domain.PaymentMethodTocoin,
				domain.OrderStatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		created, err := repo.CreateOrder(ctx, &domain.Order{
			UserID: userID, TotalAZN: total, TotalTocoin: total, PaymentMethod: domain.PaymentMethodTocoin,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg(), total, pgxmock.AnyArg(), pgxmock.AnyArg(),
				domain.OrderStatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("database error"))

		created, err := repo.CreateOrder(ctx, &domain.Order{UserID: userID, TotalAZN: total})
		assert.Error(t, err)
		assert.Nil(t, created)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		orderID, userID, productID := uuid.New(), uuid.New(), uuid.New()
		items := []byte(`[{"product_id":"` + productID.String() + `","name":"Robot","unit_price_azn":"12","unit_price_tocoin":"12","quantity":2}]`)
		lat, lng := 40.4, 49.8
		total := decimal.NewFromInt(24)

		rows := pgxmock.NewRows(orderColumnNames).
			AddRow(orderID, userID, items, total, total, domain.PaymentMethodTocoin, domain.OrderStatusPaid, &lat, &lng, time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id`).
			WithArgs(orderID).
			WillReturnRows(rows)

		order, err := repo.GetOrder(ctx, orderID)
		require.NoError(t, err)
		require.Len(t, order.Items, 1)
		assert.Equal(t, productID, order.Items[0].ProductID)
		assert.Equal(t, 2, order.Items[0].Quantity)
		require.NotNil(t, order.Items[0].UnitPriceTocoin)
		assert.True(t, decimal.NewFromInt(12).Equal(*order.Items[0].UnitPriceTocoin))
		assert.Equal(t, &domain.Location{Lat: lat, Lng: lng}, order.Delivery)
		assert.Equal(t, domain.OrderStatusPaid, order.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		orderID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id`).
			WithArgs(orderID).
			WillReturnError(pgx.ErrNoRows)

		order, err := repo.GetOrder(ctx, orderID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.Nil(t, order)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetOrdersByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		total := decimal.NewFromInt(10)
		rows := pgxmock.NewRows(orderColumnNames).
			AddRow(uuid.New(), userID, []byte(`[]`), total, total, domain.PaymentMethodCard, domain.OrderStatusPending, nil, nil, time.Now()).
			AddRow(uuid.New(), userID, []byte(`[]`), total, total, domain.PaymentMethodTocoin, domain.OrderStatusPaid, nil, nil, time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM orders WHERE user_id = \$1 ORDER BY created_at DESC`).
			WithArgs(userID).
			WillReturnRows(rows)

		orders, err := repo.GetOrdersByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
		assert.Nil(t, orders[0].Delivery)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Corrupted items", func(t *testing.T) {
		total := decimal.NewFromInt(10)
		rows := pgxmock.NewRows(orderColumnNames).
			AddRow(uuid.New(), userID, []byte(`{`), total, total, domain.PaymentMethodCard, domain.OrderStatusPending, nil, nil, time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM orders`).
			WithArgs(userID).
			WillReturnRows(rows)

		orders, err := repo.GetOrdersByUserID(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, orders)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM orders`).
			WithArgs(userID).
			WillReturnError(errors.New("database error"))

		orders, err := repo.GetOrdersByUserID(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, orders)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_UpdateOrderStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepository(mock)
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status`).
			WithArgs(orderID, domain.OrderStatusPending, domain.OrderStatusPaid).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusPaid))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Illegal transition rejected without query", func(t *testing.T) {
		err := repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCancelled, domain.OrderStatusPaid)

		var transitionErr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, "cancelled", transitionErr.From)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Status changed concurrently", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status`).
			WithArgs(orderID, domain.OrderStatusPending, domain.OrderStatusPaid).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT status FROM orders`).
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.OrderStatusCancelled))

		err := repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusPaid)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		var transitionErr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, "cancelled", transitionErr.From)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status`).
			WithArgs(orderID, domain.OrderStatusPending, domain.OrderStatusCancelled).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT status FROM orders`).
			WithArgs(orderID).
			WillReturnError(pgx.ErrNoRows)

		err := repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
