package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReceiptRepository реализует domain.ReceiptRepository
type ReceiptRepository struct {
	db DBTX
}

// NewReceiptRepository создает новый ReceiptRepository
func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `id, order_id, user_id, amount_azn, image_ref, status, admin_note, created_at, resolved_at`

func scanReceipt(row interface{ Scan(dest ...any) error }) (*domain.Receipt, error) {
	receipt := &domain.Receipt{}
	err := row.Scan(&receipt.ID, &receipt.OrderID, &receipt.UserID, &receipt.AmountAZN, &receipt.ImageRef,
		&receipt.Status, &receipt.AdminNote, &receipt.CreatedAt, &receipt.ResolvedAt)
	return receipt, err
}

func (r *ReceiptRepository) queryReceipts(ctx context.Context, op, sql string, args ...any) ([]*domain.Receipt, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get %s: %w", op, err)
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating %s: %w", op, err)
	}

	return receipts, nil
}

// CreateReceipt сохраняет квитанцию в статусе waiting
func (r *ReceiptRepository) CreateReceipt(ctx context.Context, receipt *domain.Receipt) (*domain.Receipt, error) {
	created := *receipt
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.Status = domain.ReceiptStatusWaiting
	created.AdminNote = nil
	created.ResolvedAt = nil

	err := r.db.QueryRow(ctx,
		`INSERT INTO receipts (id, order_id, user_id, amount_azn, image_ref, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		created.ID, created.OrderID, created.UserID, created.AmountAZN, created.ImageRef, created.Status,
	).Scan(&created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("repository: order %s already has a receipt: %w", created.OrderID, domain.ErrInvalidState)
		}
		return nil, fmt.Errorf("repository: failed to create receipt for order %s: %w", created.OrderID, err)
	}

	return &created, nil
}

// GetReceipt получает квитанцию по ID
func (r *ReceiptRepository) GetReceipt(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	receipt, err := scanReceipt(r.db.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, rowError(err, domain.ErrReceiptNotFound, fmt.Sprintf("failed to get receipt %s", id))
	}

	return receipt, nil
}

// GetReceiptsByUserID получает квитанции пользователя, новые первыми
func (r *ReceiptRepository) GetReceiptsByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Receipt, error) {
	return r.queryReceipts(ctx, "receipts of user "+userID.String(),
		`SELECT `+receiptColumns+`
		 FROM receipts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
}

// GetReceiptsByStatus получает квитанции в статусе, старые первыми
func (r *ReceiptRepository) GetReceiptsByStatus(ctx context.Context, status domain.ReceiptStatus) ([]*domain.Receipt, error) {
	return r.queryReceipts(ctx, string(status)+" receipts",
		`SELECT `+receiptColumns+`
		 FROM receipts
		 WHERE status = $1
		 ORDER BY created_at ASC`,
		status,
	)
}

// ResolveReceipt переводит квитанцию из waiting в status одним условным UPDATE.
// Второй вызов для той же квитанции получает domain.AlreadyResolvedError.
func (r *ReceiptRepository) ResolveReceipt(ctx context.Context, id uuid.UUID, status domain.ReceiptStatus, note string) (*domain.Receipt, error) {
	if !domain.ReceiptStatusWaiting.CanTransitionTo(status) {
		return nil, &domain.InvalidTransitionError{Entity: "receipt", ID: id, From: string(domain.ReceiptStatusWaiting), To: string(status)}
	}

	var adminNote *string
	if note != "" {
		adminNote = &note
	}

	receipt, err := scanReceipt(r.db.QueryRow(ctx,
		`UPDATE receipts
		 SET status = $2, admin_note = $3, resolved_at = NOW()
		 WHERE id = $1 AND status = $4
		 RETURNING `+receiptColumns,
		id, status, adminNote, domain.ReceiptStatusWaiting,
	))
	if err == nil {
		return receipt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository: failed to resolve receipt %s: %w", id, err)
	}

	var current domain.ReceiptStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM receipts WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return nil, rowError(err, domain.ErrReceiptNotFound, fmt.Sprintf("failed to read receipt %s status", id))
	}

	return nil, &domain.AlreadyResolvedError{ReceiptID: id, Status: current}
}

// GetConfirmedWithoutDeposit находит подтвержденные квитанции, по которым нет записи deposit
func (r *ReceiptRepository) GetConfirmedWithoutDeposit(ctx context.Context) ([]*domain.Receipt, error) {
	return r.queryReceipts(ctx, "confirmed receipts without deposit",
		`SELECT `+receiptColumns+`
		 FROM receipts r
		 WHERE r.status = $1
		   AND NOT EXISTS (
		       SELECT 1 FROM ledger_entries l
		       WHERE l.kind = $2 AND l.reference = r.id
		   )
		 ORDER BY r.resolved_at ASC`,
		domain.ReceiptStatusConfirmed, domain.LedgerEntryKindDeposit,
	)
}
