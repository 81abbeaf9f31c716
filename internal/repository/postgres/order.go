package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository реализует domain.OrderRepository
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository создает новый OrderRepository
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, items, total_azn, total_tocoin, payment_method, status, delivery_lat, delivery_lng, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var (
		items    []byte
		lat, lng *float64
	)

	err := row.Scan(&order.ID, &order.UserID, &items, &order.TotalAZN, &order.TotalTocoin,
		&order.PaymentMethod, &order.Status, &lat, &lng, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of order %s: %w", order.ID, err)
	}
	if lat != nil && lng != nil {
		order.Delivery = &domain.Location{Lat: *lat, Lng: *lng}
	}

	return order, nil
}

// CreateOrder сохраняет заказ. Пустой ID заменяется новым, пустой статус на pending.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	created := *order
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	if created.Status == "" {
		created.Status = domain.OrderStatusPending
	}

	items, err := json.Marshal(created.Items)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to encode order items: %w", err)
	}

	var lat, lng *float64
	if created.Delivery != nil {
		lat, lng = &created.Delivery.Lat, &created.Delivery.Lng
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, items, total_azn, total_tocoin, payment_method, status, delivery_lat, delivery_lng)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		created.ID, created.UserID, items, created.TotalAZN, created.TotalTocoin,
		created.PaymentMethod, created.Status, lat, lng,
	).Scan(&created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create order for user %s: %w", created.UserID, err)
	}

	return &created, nil
}

// GetOrder получает заказ по ID
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, rowError(err, domain.ErrOrderNotFound, fmt.Sprintf("failed to get order %s", id))
	}

	return order, nil
}

// GetOrdersByUserID получает все заказы пользователя, новые первыми
func (r *OrderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus переводит заказ из from в to одним условным UPDATE
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return &domain.InvalidTransitionError{Entity: "order", ID: id, From: string(from), To: string(to)}
	}

	result, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update order %s status: %w", id, err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	var current domain.OrderStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("repository: failed to read order %s status: %w", id, err)
	}

	return &domain.InvalidTransitionError{Entity: "order", ID: id, From: string(current), To: string(to)}
}
