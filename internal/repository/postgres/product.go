package postgres

import (
	"context"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
)

// ProductRepository реализует domain.ProductRepository
type ProductRepository struct {
	db DBTX
}

// NewProductRepository создает новый ProductRepository
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, price_azn, price_tocoin, stock, image_ref, created_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(&product.ID, &product.Name, &product.PriceAZN, &product.PriceTocoin,
		&product.Stock, &product.ImageRef, &product.CreatedAt)
	return product, err
}

// CreateProduct добавляет товар в каталог
func (r *ProductRepository) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := *product
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO products (id, name, price_azn, price_tocoin, stock, image_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		created.ID, created.Name, created.PriceAZN, created.PriceTocoin, created.Stock, created.ImageRef,
	).Scan(&created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create product %q: %w", created.Name, err)
	}

	return &created, nil
}

// GetProducts получает товары по списку ID. Отсутствующие ID в результат не попадают.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	products := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

// ListProducts возвращает каталог, новые товары первыми
func (r *ProductRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

// DeleteProduct удаляет товар
func (r *ProductRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DecrementStock списывает остаток товара по заказу.
// Пара (orderID, productID) фиксируется в stock_movements в той же транзакции,
// повторный вызов ничего не меняет и возвращает false.
func (r *ProductRepository) DecrementStock(ctx context.Context, orderID, productID uuid.UUID, quantity int) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repository: failed to begin stock transaction for order %s: %w", orderID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback после Commit безопасен

	tag, err := tx.Exec(ctx,
		`INSERT INTO stock_movements (order_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (order_id, product_id) DO NOTHING`,
		orderID, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to record stock movement for order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("repository: failed to decrement stock of product %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, domain.ErrProductNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repository: failed to commit stock transaction: %w", err)
	}

	return true, nil
}
