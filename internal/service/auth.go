package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/avc/toyshop/internal/utils/jwt"
	"github.com/avc/toyshop/internal/utils/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const loginNotifyTimeout = 2 * time.Second

// AuthService регистрация, вход и профиль пользователя
type AuthService struct {
	users             domain.UserDirectory
	passwordHasher    password.Hasher
	jwtManager        *jwt.Manager
	minPasswordLength int
	isAdmin           func(login string) bool
	notifier          domain.NotificationSink
	logger            *zap.Logger
}

// NewAuthService создает новый AuthService.
// isAdmin решает, получает ли новый пользователь роль admin; nil означает "никто".
// notifier получает уведомление о каждом успешном входе.
func NewAuthService(
	users domain.UserDirectory,
	passwordHasher password.Hasher,
	jwtManager *jwt.Manager,
	minPasswordLength int,
	isAdmin func(login string) bool,
	notifier domain.NotificationSink,
	logger *zap.Logger,
) *AuthService {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:             users,
		passwordHasher:    passwordHasher,
		jwtManager:        jwtManager,
		minPasswordLength: minPasswordLength,
		isAdmin:           isAdmin,
		notifier:          notifier,
		logger:            logger,
	}
}

// Register регистрирует нового пользователя и возвращает токен
func (s *AuthService) Register(ctx context.Context, login, userPassword, fullName string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", domain.NewValidationError("login", "must not be empty")
	}
	if len(userPassword) < s.minPasswordLength {
		return "", domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", s.minPasswordLength))
	}

	hash, err := s.passwordHasher.Hash(userPassword)
	if err != nil {
		return "", fmt.Errorf("auth service: failed to hash password for user %q: %w", login, err)
	}

	role := domain.UserRoleCustomer
	if s.isAdmin(login) {
		role = domain.UserRoleAdmin
	}

	user, err := s.users.CreateUser(ctx, login, hash, strings.TrimSpace(fullName), role)
	if err != nil {
		return "", wrap(err, "auth service: failed to register user %q", login)
	}

	return s.issue(user)
}

// Login аутентифицирует пользователя
func (s *AuthService) Login(ctx context.Context, login, userPassword string) (string, error) {
	if login == "" || userPassword == "" {
		return "", domain.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("auth service: failed to get user %q: %w", login, err)
	}

	if err := s.passwordHasher.Check(user.PasswordHash, userPassword); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	token, err := s.issue(user)
	if err != nil {
		return "", err
	}

	s.notifyLogin(ctx, user)
	return token, nil
}

// notifyLogin сообщает пользователю о входе; сбой канала вход не отменяет
func (s *AuthService) notifyLogin(ctx context.Context, user *domain.User) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginNotifyTimeout)
	defer cancel()

	now := time.Now().UTC()
	err := s.notifier.Send(ctx, domain.Notification{
		ID:        uuid.New(),
		UserID:    user.ID,
		Title:     "Signed in",
		Message:   fmt.Sprintf("You signed in to your account at %s UTC.", now.Format("2006-01-02 15:04")),
		Severity:  domain.SeverityInfo,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to send login notification",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
}

// Profile возвращает профиль пользователя вместе с балансом
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "auth service: failed to get profile %s", userID)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (string, error) {
	token, err := s.jwtManager.Generate(user.ID, string(user.Role))
	if err != nil {
		return "", fmt.Errorf("auth service: failed to generate token for user %s: %w", user.ID, err)
	}
	return token, nil
}
