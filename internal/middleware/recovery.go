package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

// Recovery converts panics into a 500 envelope. Once a response has been
// written (including a hijacked WebSocket upgrade) the request is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.WithModule("http").Error("panic",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", c.GetString(CtxUserIDKey)),
				zap.Any("error", r),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Abort(c, errors.ErrInternalServer)
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the standard envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.New(errors.ErrNotFound.Code,
		fmt.Sprintf("route %s %s not found", c.Request.Method, c.Request.URL.Path), errors.ErrNotFound.StatusCode))
}
