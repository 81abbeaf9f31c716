package service

import (
	"context"
	"errors"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService журнал движений Tocoin. Записи только добавляются.
type LedgerService struct {
	ledger domain.LedgerRepository
	users  domain.UserDirectory
}

// NewLedgerService создает новый LedgerService
func NewLedgerService(ledger domain.LedgerRepository, users domain.UserDirectory) *LedgerService {
	return &LedgerService{ledger: ledger, users: users}
}

// Append проверяет черновик и добавляет запись в журнал
func (s *LedgerService) Append(ctx context.Context, draft domain.LedgerEntryDraft) (*domain.LedgerEntry, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUser(ctx, draft.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewValidationError("user_id", "unknown user")
		}
		return nil, wrap(err, "ledger service: failed to get user %s", draft.UserID)
	}

	entry, err := s.ledger.AppendEntry(ctx, draft)
	if err != nil {
		return nil, wrap(err, "ledger service: failed to append %s entry for user %s", draft.Kind, draft.UserID)
	}

	return entry, nil
}

func validateDraft(draft domain.LedgerEntryDraft) error {
	if !draft.Kind.Valid() {
		return domain.NewValidationError("kind", "unknown entry kind "+string(draft.Kind))
	}
	if draft.Amount.IsZero() {
		return domain.NewValidationError("amount", "must not be zero")
	}
	if !draft.Amount.Equal(draft.Amount.Round(domain.MoneyScale)) {
		return domain.NewValidationError("amount", "must have at most 2 fraction digits")
	}
	if draft.Kind.IsCredit() != draft.Amount.IsPositive() {
		return domain.NewValidationError("amount", "sign does not match entry kind "+string(draft.Kind))
	}
	return nil
}

// EntriesFor возвращает записи пользователя по возрастанию created_at
func (s *LedgerService) EntriesFor(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	entries, err := s.ledger.EntriesForUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "ledger service: failed to get entries for user %s", userID)
	}
	return entries, nil
}

// History возвращает записи пользователя для отображения, новые первыми
func (s *LedgerService) History(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	entries, err := s.EntriesFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	history := make([]*domain.LedgerEntry, len(entries))
	for i, e := range entries {
		history[len(entries)-1-i] = e
	}
	return history, nil
}

// Sum возвращает сумму журнала пользователя
func (s *LedgerService) Sum(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	sum, err := s.ledger.SumForUser(ctx, userID)
	if err != nil {
		return decimal.Zero, wrap(err, "ledger service: failed to sum entries for user %s", userID)
	}
	return sum, nil
}
