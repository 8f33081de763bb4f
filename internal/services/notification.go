package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/store"
)

// unreadCacheTTL bounds staleness if an invalidation is ever missed.
const unreadCacheTTL = 5 * time.Minute

// NotificationService serves a user's notification feed. Unread counts are
// polled by every connected client, so they are cached in redis and
// invalidated on each write.
type NotificationService struct {
	store  store.Store
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

// NewNotificationService creates a new notification service. rdb may be nil;
// counts then always hit the database.
func NewNotificationService(st store.Store, rdb *redis.Client, logger *zap.SugaredLogger) *NotificationService {
	return &NotificationService{store: st, rdb: rdb, logger: logger}
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.store.ListNotificationsForUser(ctx, userID)
}

// MarkRead flips a notification to read. Returns false when the notification
// does not exist or belongs to another user.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	ok, err := s.store.MarkNotificationRead(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if ok {
		s.Invalidate(ctx, userID)
	}
	return ok, nil
}

// UnreadCount returns the number of unread notifications, served from redis
// when a fresh count is cached.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	key := unreadKey(userID)

	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, key).Result(); err == nil {
			if count, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				return count, nil
			}
		}
	}

	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, key, count, unreadCacheTTL).Err(); err != nil {
			s.logger.Warnw("Unread count cache write failed", "user_id", userID, "error", err)
		}
	}
	return count, nil
}

// Invalidate drops a user's cached unread count.
func (s *NotificationService) Invalidate(ctx context.Context, userID int64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, unreadKey(userID)).Err(); err != nil {
		s.logger.Warnw("Unread count invalidation failed", "user_id", userID, "error", err)
	}
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("unread:%d", userID)
}
