package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

// RequireRole loads the caller's live identity and allows the request only
// when their role is one of roles. Must run after Auth.
func RequireRole(users realtime.IdentityResolver, roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}

		identity, err := users.ResolveIdentity(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, realtime.ErrUnknownUser) {
				response.Abort(c, apperrors.ErrUnauthorized)
				return
			}
			logger.WithModule("http").Error("resolve identity", zap.String("user_id", userID), zap.Error(err))
			response.Abort(c, apperrors.ErrInternalServer)
			return
		}

		if _, ok := allowed[identity.Role]; !ok {
			response.Abort(c, apperrors.ErrForbidden)
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Next()
	}
}
