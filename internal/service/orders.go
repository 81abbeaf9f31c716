package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderService создает заказы по корзине и ведет их статус
type OrderService struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
}

// NewOrderService создает новый OrderService
func NewOrderService(orders domain.OrderRepository, products domain.ProductRepository) *OrderService {
	return &OrderService{orders: orders, products: products}
}

// Quote собирает черновик заказа по каталогу: цены, суммы, проверка остатков.
// Ничего не записывает.
func (s *OrderService) Quote(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, method domain.PaymentMethod, delivery *domain.Location) (*domain.Order, error) {
	if method != domain.PaymentMethodCard && method != domain.PaymentMethodTocoin {
		return nil, domain.NewValidationError("payment_method", "must be card or tocoin")
	}
	if err := validateLocation(delivery); err != nil {
		return nil, err
	}

	quantities, ids, err := mergeCart(cart)
	if err != nil {
		return nil, err
	}

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, wrap(err, "order service: failed to load products")
	}

	order := &domain.Order{
		UserID:        userID,
		Items:         make([]domain.LineItem, 0, len(ids)),
		TotalAZN:      decimal.Zero,
		TotalTocoin:   decimal.Zero,
		PaymentMethod: method,
		Status:        domain.OrderStatusPending,
		Delivery:      delivery,
	}

	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return nil, domain.NewValidationError("product_id", fmt.Sprintf("unknown product %s", id))
		}
		qty := quantities[id]
		if product.Stock < qty {
			return nil, domain.NewValidationError("quantity", fmt.Sprintf("only %d of %q left", max(product.Stock, 0), product.Name))
		}
		if method == domain.PaymentMethodTocoin && product.PriceTocoin == nil {
			return nil, &domain.UnsupportedPaymentMethodError{ProductID: id, Name: product.Name, Method: method}
		}

		item := domain.LineItem{
			ProductID:       id,
			Name:            product.Name,
			UnitPriceAZN:    product.PriceAZN,
			UnitPriceTocoin: product.PriceTocoin,
			Quantity:        qty,
		}
		order.Items = append(order.Items, item)

		n := decimal.NewFromInt(int64(qty))
		order.TotalAZN = order.TotalAZN.Add(product.PriceAZN.Mul(n))
		if product.PriceTocoin != nil {
			order.TotalTocoin = order.TotalTocoin.Add(product.PriceTocoin.Mul(n))
		}
	}

	order.TotalAZN = order.TotalAZN.Round(domain.MoneyScale)
	order.TotalTocoin = order.TotalTocoin.Round(domain.MoneyScale)

	return order, nil
}

// mergeCart складывает количества одинаковых товаров, сохраняя порядок первого появления
func mergeCart(cart []domain.CartItem) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(cart) == 0 {
		return nil, nil, domain.NewValidationError("cart", "must not be empty")
	}

	quantities := make(map[uuid.UUID]int, len(cart))
	ids := make([]uuid.UUID, 0, len(cart))
	for _, item := range cart {
		if item.ProductID == uuid.Nil {
			return nil, nil, domain.NewValidationError("product_id", "must not be empty")
		}
		if item.Quantity <= 0 {
			return nil, nil, domain.NewValidationError("quantity", "must be positive")
		}
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	return quantities, ids, nil
}

func validateLocation(l *domain.Location) error {
	if l == nil {
		return nil
	}
	if l.Lat < -90 || l.Lat > 90 {
		return domain.NewValidationError("lat", "must be within [-90, 90]")
	}
	if l.Lng < -180 || l.Lng > 180 {
		return domain.NewValidationError("lng", "must be within [-180, 180]")
	}
	return nil
}

// Create сохраняет заказ в статусе pending
func (s *OrderService) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	draft := *order
	draft.Status = domain.OrderStatusPending

	created, err := s.orders.CreateOrder(ctx, &draft)
	if err != nil {
		return nil, wrap(err, "order service: failed to create order for user %s", order.UserID)
	}
	return created, nil
}

// MarkPaid переводит заказ pending -> paid
func (s *OrderService) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusPaid)
}

// Cancel переводит заказ pending -> cancelled
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled)
}

func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error {
	if err := s.orders.UpdateOrderStatus(ctx, orderID, from, to); err != nil {
		return wrap(err, "order service: failed to move order %s to %s", orderID, to)
	}
	return nil
}

// DecrementStock списывает остатки по позициям заказа.
// Каждое списание идемпотентно по (order_id, product_id), поэтому вызов можно повторять.
func (s *OrderService) DecrementStock(ctx context.Context, order *domain.Order) error {
	var errs []error
	for _, item := range order.Items {
		if _, err := s.products.DecrementStock(ctx, order.ID, item.ProductID, item.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

// Get возвращает заказ пользователя
func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, wrap(err, "order service: failed to get order %s", orderID)
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetOrders возвращает заказы пользователя, новые первыми
func (s *OrderService) GetOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, wrap(err, "order service: failed to get orders for user %s", userID)
	}
	return orders, nil
}
