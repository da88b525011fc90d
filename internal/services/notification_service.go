package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Broadcaster routes events to live sessions. *realtime.Hub satisfies it.
type Broadcaster interface {
	SendToUser(userID, event string, payload any) int
	BroadcastToRoom(ch realtime.Channel, event string, payload any) int
}

// RecipientResolver expands a channel into user ids.
type RecipientResolver interface {
	RecipientsFor(ctx context.Context, ch realtime.Channel) ([]string, error)
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// PublishInput describes one business event addressed to a channel.
type PublishInput struct {
	Channel     realtime.Channel
	Type        string
	Priority    models.Priority
	Title       string
	Message     string
	Data        map[string]any
	ActionURL   string
	RequiresAck bool
}

// PublishResult reports what a publish persisted and delivered.
type PublishResult struct {
	EventID    string `json:"eventId"`
	Channel    string `json:"channel"`
	Recipients int    `json:"recipients"`
	Delivered  int    `json:"delivered"`
}

// NotificationService owns the durable notification log and hands events to
// the realtime router once they are persisted.
type NotificationService struct {
	db         *gorm.DB
	router     Broadcaster
	recipients RecipientResolver
	now        func() time.Time
	log        *zap.Logger
}

// NewNotificationService constructs a NotificationService. router may be nil
// for deployments without the realtime gateway.
func NewNotificationService(db *gorm.DB, router Broadcaster, recipients RecipientResolver) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if recipients == nil {
		return nil, errors.New("notification service: recipient resolver is required")
	}
	return &NotificationService{
		db:         db,
		router:     router,
		recipients: recipients,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.WithModule("notifications"),
	}, nil
}

// ListForUser returns notifications for the supplied user, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]realtime.NotificationPayload, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	var rows []models.Notification
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	items := make([]realtime.NotificationPayload, 0, len(rows))
	for _, row := range rows {
		items = append(items, toPayload(row))
	}
	return items, nil
}

// UnreadCount counts unread notifications, optionally restricted to one priority.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string, priority models.Priority) (int64, error) {
	if priority != "" && !priority.Valid() {
		return 0, apperrors.NewBadRequest("unknown priority " + string(priority))
	}

	query := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
	if priority != "" {
		query = query.Where("priority = ?", priority)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// UnreadByPriority returns unread counts for every priority tier; tiers
// without rows report zero.
func (s *NotificationService) UnreadByPriority(ctx context.Context, userID string) (map[models.Priority]int64, error) {
	var rows []struct {
		Priority models.Priority
		Count    int64
	}
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Select("priority, COUNT(*) AS count").
		Where("user_id = ? AND is_read = ?", userID, false).
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: count unread by priority: %w", err)
	}

	out := make(map[models.Priority]int64, len(models.Priorities))
	for _, p := range models.Priorities {
		out[p] = 0
	}
	for _, r := range rows {
		if r.Priority.Valid() {
			out[r.Priority] = r.Count
		}
	}
	return out, nil
}

// MarkRead marks one notification read. id may be the row id or the event id
// of a room broadcast.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewBadRequest("notification id is required")
	}

	var row models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND (id = ? OR event_id = ?)", userID, id, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("notification service: load notification: %w", err)
	}

	if !row.IsRead {
		if err := s.db.WithContext(ctx).Model(&row).
			Updates(map[string]any{"is_read": true, "read_at": s.now()}).Error; err != nil {
			return fmt.Errorf("notification service: mark read: %w", err)
		}
	}

	s.sendToUser(userID, realtime.EventNotificationRead, realtime.ReadEvent{ID: row.ID, EventID: row.EventID})
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}

	s.sendToUser(userID, realtime.EventNotificationReadAll, nil)
	return result.RowsAffected, nil
}

// Publish persists one row per recipient, all sharing a fresh event id, then
// routes a single live event to the channel.
func (s *NotificationService) Publish(ctx context.Context, input PublishInput) (*PublishResult, error) {
	ctx = ensureContext(ctx)
	if !input.Channel.Valid() {
		return nil, apperrors.NewBadRequest("a valid channel is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !priority.Valid() {
		return nil, apperrors.NewBadRequest("unknown priority " + string(priority))
	}
	data, err := encodeJSON(input.Data)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal data: %w", err)
	}

	userIDs, err := s.recipients.RecipientsFor(ctx, input.Channel)
	if err != nil {
		return nil, fmt.Errorf("notification service: resolve recipients: %w", err)
	}
	if input.Channel.Kind == realtime.KindUser && len(userIDs) == 0 {
		return nil, apperrors.ErrNotFound
	}

	eventID := uuid.NewString()
	createdAt := s.now()
	rows := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, models.Notification{
			BaseModel:   models.BaseModel{CreatedAt: createdAt, UpdatedAt: createdAt},
			UserID:      userID,
			EventID:     eventID,
			Scope:       input.Channel.String(),
			Type:        defaultIfEmpty(strings.TrimSpace(input.Type), "general"),
			Priority:    priority,
			Title:       title,
			Message:     strings.TrimSpace(input.Message),
			ActionURL:   strings.TrimSpace(input.ActionURL),
			Data:        data,
			RequiresAck: input.RequiresAck,
		})
	}
	if len(rows) > 0 {
		if err := s.db.WithContext(ctx).CreateInBatches(&rows, 100).Error; err != nil {
			return nil, fmt.Errorf("notification service: persist notifications: %w", err)
		}
	}

	result := &PublishResult{
		EventID:    eventID,
		Channel:    input.Channel.String(),
		Recipients: len(rows),
	}

	if s.router != nil {
		payload := realtime.NotificationPayload{
			ID:          eventID,
			EventID:     eventID,
			Type:        defaultIfEmpty(strings.TrimSpace(input.Type), "general"),
			Priority:    priority,
			Title:       title,
			Message:     strings.TrimSpace(input.Message),
			Data:        json.RawMessage(data),
			ActionURL:   strings.TrimSpace(input.ActionURL),
			RequiresAck: input.RequiresAck,
			Timestamp:   createdAt,
		}
		if input.Channel.Kind == realtime.KindUser && len(rows) == 1 {
			payload.ID = rows[0].ID
		}
		result.Delivered = s.router.BroadcastToRoom(input.Channel, realtime.EventNotification, payload)
	}

	s.log.Info("notification published",
		zap.String("event_id", eventID),
		zap.String("channel", result.Channel),
		zap.String("priority", string(priority)),
		zap.Int("recipients", result.Recipients),
		zap.Int("delivered", result.Delivered),
	)
	return result, nil
}

// PurgeRead deletes read notifications whose read_at is before cutoff.
func (s *NotificationService) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) sendToUser(userID, event string, payload any) {
	if s.router == nil {
		return
	}
	s.router.SendToUser(userID, event, payload)
}

func toPayload(row models.Notification) realtime.NotificationPayload {
	var data json.RawMessage
	if len(row.Data) > 0 {
		data = json.RawMessage(row.Data)
	}
	return realtime.NotificationPayload{
		ID:          row.ID,
		EventID:     row.EventID,
		Type:        row.Type,
		Priority:    models.Priority(defaultIfEmpty(string(row.Priority), string(models.PriorityNormal))),
		Title:       row.Title,
		Message:     row.Message,
		Data:        data,
		ActionURL:   row.ActionURL,
		RequiresAck: row.RequiresAck,
		Read:        row.IsRead,
		Timestamp:   row.CreatedAt,
	}
}
