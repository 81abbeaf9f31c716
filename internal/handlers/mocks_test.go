package handlers

import (
	"context"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type authServiceMock struct{ mock.Mock }

func (m *authServiceMock) Register(ctx context.Context, login, password, fullName string) (string, error) {
	args := m.Called(ctx, login, password, fullName)
	return args.String(0), args.Error(1)
}

func (m *authServiceMock) Login(ctx context.Context, login, password string) (string, error) {
	args := m.Called(ctx, login, password)
	return args.String(0), args.Error(1)
}

func (m *authServiceMock) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

type accountServiceMock struct{ mock.Mock }

func (m *accountServiceMock) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *accountServiceMock) History(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	args := m.Called(ctx, userID)
	entries, _ := args.Get(0).([]*domain.LedgerEntry)
	return entries, args.Error(1)
}

func (m *accountServiceMock) GetOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	args := m.Called(ctx, userID)
	orders, _ := args.Get(0).([]*domain.Order)
	return orders, args.Error(1)
}

func (m *accountServiceMock) Receipts(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	args := m.Called(ctx, userID)
	receipts, _ := args.Get(0).([]*domain.Receipt)
	return receipts, args.Error(1)
}

func (m *accountServiceMock) Notifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, limit)
	notifications, _ := args.Get(0).([]domain.Notification)
	return notifications, args.Error(1)
}

func (m *accountServiceMock) UploadAvatar(ctx context.Context, userID uuid.UUID, image []byte, filename string) (*domain.User, error) {
	args := m.Called(ctx, userID, image, filename)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

type settlementServiceMock struct{ mock.Mock }

func (m *settlementServiceMock) result(args mock.Arguments) (*domain.SettlementResult, error) {
	result, _ := args.Get(0).(*domain.SettlementResult)
	return result, args.Error(1)
}

func (m *settlementServiceMock) CheckoutTocoin(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location) (*domain.SettlementResult, error) {
	return m.result(m.Called(ctx, userID, cart, delivery))
}

func (m *settlementServiceMock) CheckoutCard(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, delivery *domain.Location, proof []byte, filename string) (*domain.SettlementResult, error) {
	return m.result(m.Called(ctx, userID, cart, delivery, proof, filename))
}

func (m *settlementServiceMock) ConfirmReceipt(ctx context.Context, receiptID uuid.UUID, note string) (*domain.SettlementResult, error) {
	return m.result(m.Called(ctx, receiptID, note))
}

func (m *settlementServiceMock) RejectReceipt(ctx context.Context, receiptID uuid.UUID, reason string) (*domain.SettlementResult, error) {
	return m.result(m.Called(ctx, receiptID, reason))
}

func (m *settlementServiceMock) AdjustBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.SettlementResult, error) {
	return m.result(m.Called(ctx, userID, amount))
}

type receiptQueueMock struct{ mock.Mock }

func (m *receiptQueueMock) ListByStatus(ctx context.Context, status domain.ReceiptStatus) ([]*domain.Receipt, error) {
	args := m.Called(ctx, status)
	receipts, _ := args.Get(0).([]*domain.Receipt)
	return receipts, args.Error(1)
}

type reconcilerMock struct{ mock.Mock }

func (m *reconcilerMock) Run(ctx context.Context, repair bool) (*domain.ReconcileReport, error) {
	args := m.Called(ctx, repair)
	report, _ := args.Get(0).(*domain.ReconcileReport)
	return report, args.Error(1)
}

type catalogServiceMock struct{ mock.Mock }

func (m *catalogServiceMock) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]*domain.Product)
	return products, args.Error(1)
}

func (m *catalogServiceMock) AddProduct(ctx context.Context, p service.NewProduct) (*domain.Product, error) {
	args := m.Called(ctx, p)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *catalogServiceMock) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type objectReaderMock struct{ mock.Mock }

func (m *objectReaderMock) Get(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type pingerMock struct{ mock.Mock }

func (m *pingerMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
