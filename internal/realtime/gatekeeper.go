package realtime

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/auth"
	"github.com/zenebedagim/dental-clinic-sub002/internal/ratelimit"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/metrics"
)

// ErrUnknownUser is returned by an IdentityResolver when the subject does not
// exist or has been deleted.
var ErrUnknownUser = errors.New("realtime: unknown user")

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// IdentityResolver loads the live identity for a user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (Identity, error)
}

// Attempt describes one connection handshake.
type Attempt struct {
	Token      string
	SourceAddr string
	// AttemptID keys the rate limiter when SourceAddr is unknown.
	AttemptID string
}

func (a Attempt) limitKey() string {
	if key := strings.TrimSpace(a.SourceAddr); key != "" {
		return key
	}
	if key := strings.TrimSpace(a.AttemptID); key != "" {
		return key
	}
	return "unknown"
}

// Gatekeeper authenticates connection attempts before a session exists.
type Gatekeeper struct {
	tokens  TokenValidator
	users   IdentityResolver
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

// NewGatekeeper wires the token validator, user store and attempt limiter.
// A nil limiter disables rate limiting.
func NewGatekeeper(tokens TokenValidator, users IdentityResolver, limiter *ratelimit.Limiter) *Gatekeeper {
	return &Gatekeeper{
		tokens:  tokens,
		users:   users,
		limiter: limiter,
		log:     logger.WithModule("gatekeeper"),
	}
}

// Authenticate runs the handshake checks in order: token present, attempt
// budget, token validity, live user. Every failure is an *errors.AppError.
func (g *Gatekeeper) Authenticate(ctx context.Context, attempt Attempt) (Identity, error) {
	token := strings.TrimSpace(attempt.Token)
	if token == "" {
		g.reject("no_token", attempt, nil)
		return Identity{}, apperrors.ErrNoToken
	}

	key := attempt.limitKey()
	if g.limiter != nil {
		decision, err := g.limiter.Allow(ctx, key)
		switch {
		case err != nil:
			g.log.Warn("handshake limiter unavailable", zap.String("key", key), zap.Error(err))
		case !decision.Allowed:
			g.reject("rate_limited", attempt, nil)
			return Identity{}, apperrors.ErrTooManyAttempts
		}
	}

	claims, err := g.tokens.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			g.reject("expired_token", attempt, err)
			return Identity{}, apperrors.ErrTokenExpired.WithInternal(err)
		}
		g.reject("invalid_token", attempt, err)
		return Identity{}, apperrors.ErrInvalidToken.WithInternal(err)
	}

	identity, err := g.users.ResolveIdentity(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			g.reject("user_not_found", attempt, err)
			return Identity{}, apperrors.ErrUserNotFound.WithInternal(err)
		}
		metrics.HandshakeResults.WithLabelValues("error").Inc()
		g.log.Error("resolve identity", zap.String("user_id", claims.UserID), zap.Error(err))
		return Identity{}, apperrors.ErrInternalServer.WithInternal(err)
	}

	if g.limiter != nil {
		if err := g.limiter.Reset(ctx, key); err != nil {
			g.log.Warn("reset handshake limiter", zap.String("key", key), zap.Error(err))
		}
	}

	metrics.HandshakeResults.WithLabelValues("accepted").Inc()
	return identity, nil
}

func (g *Gatekeeper) reject(reason string, attempt Attempt, err error) {
	metrics.HandshakeResults.WithLabelValues(reason).Inc()
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("source", attempt.SourceAddr),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	g.log.Info("handshake rejected", fields...)
}
