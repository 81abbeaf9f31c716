package notify

import (
	"context"
	"sync"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ domain.NotificationSink = (*LogSink)(nil)

// LogSink пишет уведомления в лог и держит короткую историю в памяти.
// Используется, когда Redis не настроен.
type LogSink struct {
	mu      sync.Mutex
	history int
	byUser  map[uuid.UUID][]domain.Notification
	logger  *zap.Logger
}

// NewLogSink создает sink без внешних зависимостей
func NewLogSink(history int, logger *zap.Logger) *LogSink {
	if history <= 0 {
		history = 50
	}
	return &LogSink{history: history, byUser: make(map[uuid.UUID][]domain.Notification), logger: logger}
}

// Send логирует уведомление и сохраняет его в начале истории пользователя
func (s *LogSink) Send(_ context.Context, n domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.logger.Info("notification",
		zap.String("user_id", n.UserID.String()),
		zap.String("severity", string(n.Severity)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]domain.Notification{n}, s.byUser[n.UserID]...)
	if len(list) > s.history {
		list = list[:s.history]
	}
	s.byUser[n.UserID] = list

	return nil
}

// Recent возвращает до limit последних уведомлений пользователя
func (s *LogSink) Recent(_ context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return append([]domain.Notification(nil), list...), nil
}
