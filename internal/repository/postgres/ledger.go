package postgres

import (
	"context"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRepository реализует domain.LedgerRepository.
// Таблица ledger_entries только пополняется: UPDATE и DELETE здесь не выполняются.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository создает новый LedgerRepository
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendEntry добавляет запись в журнал.
// Повторная запись того же типа с той же ссылкой возвращает domain.ErrDuplicateEntry.
func (r *LedgerRepository) AppendEntry(ctx context.Context, draft domain.LedgerEntryDraft) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{
		UserID:    draft.UserID,
		Amount:    draft.Amount,
		Kind:      draft.Kind,
		Reference: draft.Reference,
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, amount, kind, reference)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		draft.UserID, draft.Amount, draft.Kind, draft.Reference,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("repository: failed to append %s entry for user %s: %w", draft.Kind, draft.UserID, err)
	}

	return entry, nil
}

// EntriesForUser возвращает записи пользователя в порядке добавления
func (r *LedgerRepository) EntriesForUser(ctx context.Context, userID uuid.UUID) ([]*domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, amount, kind, reference, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get ledger entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry := &domain.LedgerEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Kind, &entry.Reference, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// SumForUser возвращает сумму всех записей пользователя
func (r *LedgerRepository) SumForUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal

	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to sum ledger for user %s: %w", userID, err)
	}

	return sum, nil
}
