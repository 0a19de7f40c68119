package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/cache"
	"github.com/theleywin/Collab-Nest/src/events"
	"github.com/theleywin/Collab-Nest/src/logger"
	"github.com/theleywin/Collab-Nest/src/metrics"
	"github.com/theleywin/Collab-Nest/src/models"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 200
)

// NotificationService owns the notification rows of every account and the
// cached unread counts derived from them.
type NotificationService struct {
	db        *gorm.DB
	unread    cache.UnreadCounter
	publisher events.Publisher
	log       logger.Logger
}

func NewNotificationService(db *gorm.DB, unread cache.UnreadCounter, publisher events.Publisher, log logger.Logger) *NotificationService {
	if unread == nil {
		unread = cache.NopUnreadCounter{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{db: db, unread: unread, publisher: publisher, log: log}
}

type CreateNotificationInput struct {
	AccountID           uint
	Type                models.NotificationType
	Title               string
	Message             string
	ConnectionRequestID *string
	MessageID           *string
	ConversationID      *string
	Metadata            map[string]interface{}
}

// Create inserts a notification inside tx. Call Delivered once tx has committed.
func (s *NotificationService) Create(ctx context.Context, tx *gorm.DB, in CreateNotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		AccountID:           in.AccountID,
		Type:                in.Type,
		Title:               in.Title,
		Message:             in.Message,
		ConnectionRequestID: in.ConnectionRequestID,
		MessageID:           in.MessageID,
		ConversationID:      in.ConversationID,
		Metadata:            in.Metadata,
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// Delivered runs the post-commit side effects of a new notification. Cache and
// fan-out failures are logged; the row is already durable.
func (s *NotificationService) Delivered(ctx context.Context, n models.Notification) {
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.invalidate(ctx, n.AccountID)

	if err := s.publisher.NotificationCreated(ctx, n); err != nil {
		s.log.WithError(err).Warn("Failed to publish notification event", map[string]interface{}{
			"notificationId": n.ID,
			"accountId":      n.AccountID,
		})
	}
}

// Notify creates a standalone notification, e.g. SYSTEM announcements.
func (s *NotificationService) Notify(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	n, err := s.Create(ctx, s.db, in)
	if err != nil {
		return nil, err
	}
	s.Delivered(ctx, *n)
	return n, nil
}

// List returns the newest notifications of accountID first.
func (s *NotificationService) List(ctx context.Context, accountID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}

	notifications := make([]models.Notification, 0)
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount serves from the cache and repopulates it on a miss.
func (s *NotificationService) UnreadCount(ctx context.Context, accountID uint) (int64, error) {
	n, ok, err := s.unread.Get(ctx, accountID)
	switch {
	case err != nil:
		metrics.UnreadCacheLookups.WithLabelValues("error").Inc()
		s.log.WithError(err).Warn("Unread count cache unavailable", map[string]interface{}{"accountId": accountID})
	case ok:
		metrics.UnreadCacheLookups.WithLabelValues("hit").Inc()
		return n, nil
	default:
		metrics.UnreadCacheLookups.WithLabelValues("miss").Inc()
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	if err := s.unread.Set(ctx, accountID, count); err != nil {
		s.log.WithError(err).Warn("Failed to cache unread count", map[string]interface{}{"accountId": accountID})
	}
	return count, nil
}

// MarkRead flips isRead on one of accountID's notifications. Marking an already
// read notification returns it unchanged.
func (s *NotificationService) MarkRead(ctx context.Context, accountID uint, id string) (*models.Notification, error) {
	db := s.db.WithContext(ctx)

	var n models.Notification
	err := db.Where("id = ? AND account_id = ?", id, accountID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if n.IsRead {
		return &n, nil
	}

	now := time.Now()
	err = db.Model(&models.Notification{}).
		Where("id = ? AND account_id = ? AND is_read = ?", id, accountID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	s.invalidate(ctx, accountID)

	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

// MarkAllRead marks every unread notification of accountID and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, accountID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	s.invalidate(ctx, accountID)
	return res.RowsAffected, nil
}

// Delete removes one of accountID's notifications.
func (s *NotificationService) Delete(ctx context.Context, accountID uint, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Notification not found")
	}
	s.invalidate(ctx, accountID)
	return nil
}

func (s *NotificationService) invalidate(ctx context.Context, accountID uint) {
	if err := s.unread.Invalidate(ctx, accountID); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate unread count", map[string]interface{}{"accountId": accountID})
	}
}
