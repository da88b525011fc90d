package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zenebedagim/dental-clinic-sub002/internal/middleware"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

// Authenticator admits or rejects a connection handshake.
type Authenticator interface {
	Authenticate(ctx context.Context, attempt realtime.Attempt) (realtime.Identity, error)
}

// SessionServer runs an authenticated websocket session.
type SessionServer interface {
	Serve(identity realtime.Identity, w http.ResponseWriter, r *http.Request) error
}

// RealtimeHandler upgrades HTTP connections into authenticated WebSocket sessions.
type RealtimeHandler struct {
	gatekeeper Authenticator
	hub        SessionServer
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(gatekeeper Authenticator, hub SessionServer) *RealtimeHandler {
	return &RealtimeHandler{gatekeeper: gatekeeper, hub: hub}
}

// Stream authenticates the handshake and hands the connection to the hub.
// Rejections are plain HTTP responses so the client sees the reason before any upgrade.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = middleware.BearerToken(c.GetHeader("Authorization"))
	}

	identity, err := h.gatekeeper.Authenticate(requestContext(c), realtime.Attempt{
		Token:      token,
		SourceAddr: c.ClientIP(),
		AttemptID:  uuid.NewString(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.hub.Serve(identity, c.Writer, c.Request); err != nil {
		response.Error(c, err)
	}
}
