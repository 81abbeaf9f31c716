package postgres

import (
	"context"
	"fmt"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRepository реализует domain.UserDirectory
type UserRepository struct {
	db DBTX
}

// NewUserRepository создает новый UserRepository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, login, password_hash, full_name, role, balance, avatar_url, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(&user.ID, &user.Login, &user.PasswordHash, &user.FullName, &user.Role, &user.Balance, &user.AvatarURL, &user.CreatedAt)
	return user, err
}

// CreateUser создает нового пользователя с нулевым балансом
func (r *UserRepository) CreateUser(ctx context.Context, login, passwordHash, fullName string, role domain.UserRole) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		login, passwordHash, fullName, role,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("repository: failed to create user %q: %w", login, err)
	}

	return user, nil
}

// GetUserByLogin получает пользователя по логину
func (r *UserRepository) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`,
		login,
	))
	if err != nil {
		return nil, rowError(err, domain.ErrUserNotFound, fmt.Sprintf("failed to get user by login %q", login))
	}

	return user, nil
}

// GetUser получает пользователя по ID
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, rowError(err, domain.ErrUserNotFound, fmt.Sprintf("failed to get user %s", id))
	}

	return user, nil
}

// UpdateBalance записывает баланс при совпадении текущего значения с expectedPrevious.
// Ноль затронутых строк означает гонку или отсутствие пользователя, их различает повторное чтение.
func (r *UserRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance, expectedPrevious decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET balance = $2 WHERE id = $1 AND balance = $3`,
		id, newBalance, expectedPrevious,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update balance for user %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("repository: failed to check user %s: %w", id, err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		return domain.ErrBalanceConflict
	}

	return nil
}

// UpdateAvatar сохраняет ссылку на аватар пользователя
func (r *UserRepository) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET avatar_url = $2 WHERE id = $1`, id, avatarURL)
	if err != nil {
		return fmt.Errorf("repository: failed to update avatar for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListUserIDs возвращает идентификаторы всех пользователей
func (r *UserRepository) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository: failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating users: %w", err)
	}

	return ids, nil
}
