package service

import (
	"context"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService собирает чтение баланса, журнала, заказов, квитанций и уведомлений пользователя
type AccountService struct {
	users     domain.UserDirectory
	projector *BalanceProjector
	ledger    *LedgerService
	orders    *OrderService
	receipts  *ReceiptWorkflow
	objects   domain.ObjectStore
	sink      domain.NotificationSink
}

// AccountDeps зависимости AccountService
type AccountDeps struct {
	Users     domain.UserDirectory
	Projector *BalanceProjector
	Ledger    *LedgerService
	Orders    *OrderService
	Receipts  *ReceiptWorkflow
	Objects   domain.ObjectStore
	Sink      domain.NotificationSink
}

// NewAccountService создает новый AccountService
func NewAccountService(deps AccountDeps) *AccountService {
	return &AccountService{
		users:     deps.Users,
		projector: deps.Projector,
		ledger:    deps.Ledger,
		orders:    deps.Orders,
		receipts:  deps.Receipts,
		objects:   deps.Objects,
		sink:      deps.Sink,
	}
}

func (s *AccountService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.projector.Balance(ctx, userID)
}

func (s *AccountService) History(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	return s.ledger.History(ctx, userID)
}

func (s *AccountService) GetOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.GetOrders(ctx, userID)
}

func (s *AccountService) Receipts(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	return s.receipts.ListForUser(ctx, userID)
}

// Notifications возвращает последние уведомления; недоступный канал отдается как DependencyUnavailableError
func (s *AccountService) Notifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	notifications, err := s.sink.Recent(ctx, userID, limit)
	if err != nil {
		return nil, &domain.DependencyUnavailableError{Dependency: "notification sink", Err: err}
	}
	return notifications, nil
}

// UploadAvatar кладет изображение в хранилище объектов и записывает его адрес в профиль
func (s *AccountService) UploadAvatar(ctx context.Context, userID uuid.UUID, image []byte, filename string) (*domain.User, error) {
	if len(image) == 0 {
		return nil, domain.NewValidationError("avatar", "image is required")
	}
	ext := objectExt(filename)
	if ext == ".bin" || ext == ".pdf" {
		return nil, domain.NewValidationError("avatar", "must be a png, jpeg or webp image")
	}

	ref, err := s.objects.Put(ctx, fmt.Sprintf("avatars/%s%s", userID, ext), image)
	if err != nil {
		return nil, &domain.DependencyUnavailableError{Dependency: "object store", Err: err}
	}

	if err := s.users.UpdateAvatar(ctx, userID, s.objects.URL(ref)); err != nil {
		return nil, wrap(err, "account service: failed to update avatar of user %s", userID)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "account service: failed to get user %s", userID)
	}
	return user, nil
}
