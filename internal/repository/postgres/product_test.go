package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var productColumnNames = []string{"id", "name", "price_azn", "price_tocoin", "stock", "image_ref", "created_at"}

func TestProductRepository_CreateProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()
		price := decimal.NewFromInt(12)
		product := &domain.Product{ID: id, Name: "Robot", PriceAZN: price, PriceTocoin: &price, Stock: 3}

		mock.ExpectQuery(`INSERT INTO products`).
			WithArgs(id, "Robot", price, &price, 3, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		created, err := repo.CreateProduct(ctx, product)
		require.NoError(t, err)
		assert.Equal(t, id, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO products`).
			WithArgs(pgxmock.AnyArg(), "Ball", pgxmock.AnyArg(), pgxmock.AnyArg(), 0, pgxmock.AnyArg()).
			WillReturnError(errors.New("database error"))

		created, err := repo.CreateProduct(ctx, &domain.Product{Name: "Ball"})
		assert.Error(t, err)
		assert.Nil(t, created)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_GetProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		first, second := uuid.New(), uuid.New()
		tocoin := decimal.NewFromInt(12)
		rows := pgxmock.NewRows(productColumnNames).
			AddRow(first, "Robot", decimal.NewFromInt(12), &tocoin, 4, nil, time.Now()).
			AddRow(second, "Doll", decimal.NewFromInt(8), nil, 0, nil, time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM products WHERE id = ANY`).
			WithArgs([]uuid.UUID{first, second}).
			WillReturnRows(rows)

		products, err := repo.GetProducts(ctx, []uuid.UUID{first, second})
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.NotNil(t, products[first].PriceTocoin)
		assert.Nil(t, products[second].PriceTocoin)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty ids skip query", func(t *testing.T) {
		products, err := repo.GetProducts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, products)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_ListProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)

	mock.ExpectQuery(`SELECT (.+) FROM products ORDER BY created_at DESC`).
		WillReturnRows(pgxmock.NewRows(productColumnNames).
			AddRow(uuid.New(), "Robot", decimal.NewFromInt(12), nil, 4, nil, time.Now()))

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_DecrementStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)
	ctx := context.Background()
	orderID, productID := uuid.New(), uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO stock_movements`).
			WithArgs(orderID, productID, 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE products SET stock`).
			WithArgs(productID, 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		applied, err := repo.DecrementStock(ctx, orderID, productID, 2)
		require.NoError(t, err)
		assert.True(t, applied)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Repeated call is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO stock_movements`).
			WithArgs(orderID, productID, 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectRollback()

		applied, err := repo.DecrementStock(ctx, orderID, productID, 2)
		require.NoError(t, err)
		assert.False(t, applied)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown product", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO stock_movements`).
			WithArgs(orderID, productID, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE products SET stock`).
			WithArgs(productID, 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err := repo.DecrementStock(ctx, orderID, productID, 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Begin error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		_, err := repo.DecrementStock(ctx, orderID, productID, 1)
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepository_DeleteProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)
	ctx := context.Background()
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM products`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, repo.DeleteProduct(ctx, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM products`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.DeleteProduct(ctx, id), domain.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM products`).
			WithArgs(id).
			WillReturnError(errors.New("database error"))

		err := repo.DeleteProduct(ctx, id)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()

	t.Run("Applies new migration", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs("001_init.up.sql").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectCommit()

		require.NoError(t, RunMigrations(ctx, mock, zap.NewNop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Skips applied migration", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs("001_init.up.sql").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectRollback()

		require.NoError(t, RunMigrations(ctx, mock, zap.NewNop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failed migration is rolled back", func(t *testing.T) {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs("001_init.up.sql").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
			WillReturnError(errors.New("syntax error"))
		mock.ExpectRollback()

		assert.Error(t, RunMigrations(ctx, mock, zap.NewNop()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
