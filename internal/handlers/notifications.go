package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/internal/services"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

// NotificationHandler exposes the durable notification log over HTTP.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	registerValidationRules()
	return &NotificationHandler{service: service}, nil
}

type publishRequest struct {
	Channel     string         `json:"channel" validate:"required,channel"`
	Type        string         `json:"type" validate:"omitempty,max=64"`
	Priority    string         `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH CRITICAL"`
	Title       string         `json:"title" validate:"required,max=255"`
	Message     string         `json:"message" validate:"max=4000"`
	Data        map[string]any `json:"data"`
	ActionURL   string         `json:"actionUrl" validate:"omitempty,max=2048"`
	RequiresAck bool           `json:"requiresAck"`
}

// List returns a page of the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID: userID,
		Limit:  parseIntQuery(c, "limit", 0),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notifications": items})
}

// UnreadCount returns the caller's unread total. Without a priority filter the
// per-tier breakdown is included; count always equals its sum.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	if priority := strings.ToUpper(strings.TrimSpace(c.Query("priority"))); priority != "" {
		count, err := h.service.UnreadCount(ctx, userID, models.Priority(priority))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"count": count})
		return
	}

	byPriority, err := h.service.UnreadByPriority(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	var total int64
	for _, n := range byPriority {
		total += n
	}
	response.Success(c, http.StatusOK, gin.H{"count": total, "byPriority": byPriority})
}

// MarkRead marks one notification read. The id may be a row id or an event id.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.MarkRead(requestContext(c), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "read": true})
}

// MarkAllRead marks every unread notification of the caller read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Publish persists a notification for every recipient of a channel and pushes
// it to live sessions.
func (h *NotificationHandler) Publish(c *gin.Context) {
	var payload publishRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	channel, err := realtime.ParseChannel(payload.Channel)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return
	}

	result, err := h.service.Publish(requestContext(c), services.PublishInput{
		Channel:     channel,
		Type:        payload.Type,
		Priority:    models.Priority(payload.Priority),
		Title:       payload.Title,
		Message:     payload.Message,
		Data:        payload.Data,
		ActionURL:   payload.ActionURL,
		RequiresAck: payload.RequiresAck,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}
