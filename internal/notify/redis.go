// Package notify доставляет пользовательские уведомления.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "notifications:"

var _ domain.NotificationSink = (*RedisSink)(nil)

// RedisSink хранит уведомления в списке Redis на пользователя, новые в начале
type RedisSink struct {
	client  redis.Cmdable
	history int64
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisClient создает клиента Redis
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisSink создает sink; history ограничивает длину списка на пользователя
func NewRedisSink(client redis.Cmdable, history int, logger *zap.Logger) *RedisSink {
	if history <= 0 {
		history = 50
	}
	return &RedisSink{client: client, history: int64(history), logger: logger, now: time.Now}
}

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Send добавляет уведомление в список пользователя и обрезает историю
func (s *RedisSink) Send(ctx context.Context, n domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(redisNotification{Notification: n, UserID: n.UserID})
	if err != nil {
		return fmt.Errorf("notify: failed to encode notification: %w", err)
	}

	k := key(n.UserID)
	if err := s.client.LPush(ctx, k, string(data)).Err(); err != nil {
		return fmt.Errorf("notify: failed to push notification for user %s: %w", n.UserID, err)
	}
	if err := s.client.LTrim(ctx, k, 0, s.history-1).Err(); err != nil {
		// Уведомление уже доставлено, лишняя история не критична
		s.logger.Warn("failed to trim notification history", zap.String("user_id", n.UserID.String()), zap.Error(err))
	}

	return nil
}

// Recent возвращает до limit последних уведомлений пользователя
func (s *RedisSink) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	if limit <= 0 || int64(limit) > s.history {
		limit = int(s.history)
	}

	values, err := s.client.LRange(ctx, key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: failed to read notifications for user %s: %w", userID, err)
	}

	notifications := make([]domain.Notification, 0, len(values))
	for _, v := range values {
		var stored redisNotification
		if err := json.Unmarshal([]byte(v), &stored); err != nil {
			s.logger.Warn("skipping malformed notification", zap.String("user_id", userID.String()), zap.Error(err))
			continue
		}
		stored.Notification.UserID = stored.UserID
		notifications = append(notifications, stored.Notification)
	}

	return notifications, nil
}

// redisNotification сохраняет UserID, который domain.Notification скрывает из JSON
type redisNotification struct {
	domain.Notification
	UserID uuid.UUID `json:"user_id"`
}
