package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/auth"
	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/ratelimit"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
)

type staticDirectory struct {
	users   map[string]Identity
	err     error
	lookups int
}

func (d *staticDirectory) ResolveIdentity(_ context.Context, userID string) (Identity, error) {
	d.lookups++
	if d.err != nil {
		return Identity{}, d.err
	}
	id, ok := d.users[userID]
	if !ok {
		return Identity{}, ErrUnknownUser
	}
	return id, nil
}

type gatekeeperFixture struct {
	clock   *time.Time
	jwt     *auth.JWTService
	dir     *staticDirectory
	limiter *ratelimit.Limiter
	gk      *Gatekeeper
}

func newGatekeeperFixture(t *testing.T) *gatekeeperFixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time { return *clock }

	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour, Clock: tick})
	require.NoError(t, err)

	dir := &staticDirectory{users: map[string]Identity{
		"u-1": {UserID: "u-1", Name: "Dr. Abebe", Role: models.RoleDentist, BranchID: "b1"},
	}}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(0, ratelimit.WithClock(tick)), "ws:", 5, time.Minute)

	return &gatekeeperFixture{
		clock:   clock,
		jwt:     jwtSvc,
		dir:     dir,
		limiter: limiter,
		gk:      NewGatekeeper(jwtSvc, dir, limiter),
	}
}

func (f *gatekeeperFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(auth.AccessTokenInput{UserID: userID})
	require.NoError(t, err)
	return token
}

func TestAuthenticateRejectsMissingTokenBeforeTouchingState(t *testing.T) {
	f := newGatekeeperFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.gk.Authenticate(ctx, Attempt{SourceAddr: "10.0.0.1"})
		require.ErrorIs(t, err, apperrors.ErrNoToken)
		require.EqualError(t, err, "Authentication error: No token provided")
	}
	require.Zero(t, f.dir.lookups)

	id, err := f.gk.Authenticate(ctx, Attempt{Token: f.token(t, "u-1"), SourceAddr: "10.0.0.1"})
	require.NoError(t, err, "missing-token attempts must not consume the budget")
	require.Equal(t, "u-1", id.UserID)
}

func TestAuthenticateSuccessReturnsLiveIdentity(t *testing.T) {
	f := newGatekeeperFixture(t)

	id, err := f.gk.Authenticate(context.Background(), Attempt{Token: f.token(t, "u-1"), SourceAddr: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: "u-1", Name: "Dr. Abebe", Role: models.RoleDentist, BranchID: "b1"}, id)
}

func TestAuthenticateClassifiesTokenFailures(t *testing.T) {
	f := newGatekeeperFixture(t)
	ctx := context.Background()

	_, err := f.gk.Authenticate(ctx, Attempt{Token: "garbage", SourceAddr: "a"})
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	require.Equal(t, "Authentication error: Invalid token", apperrors.FromError(err).Message)

	other, err := auth.NewJWTService(auth.JWTConfig{Secret: "other"})
	require.NoError(t, err)
	forged, err := other.GenerateAccessToken(auth.AccessTokenInput{UserID: "u-1"})
	require.NoError(t, err)
	_, err = f.gk.Authenticate(ctx, Attempt{Token: forged, SourceAddr: "b"})
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	token := f.token(t, "u-1")
	*f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.gk.Authenticate(ctx, Attempt{Token: token, SourceAddr: "c"})
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	require.Equal(t, "Authentication error: Token expired", apperrors.FromError(err).Message)
	require.Zero(t, f.dir.lookups)
}

// A token for a deleted user is refused.
func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	f := newGatekeeperFixture(t)

	_, err := f.gk.Authenticate(context.Background(), Attempt{Token: f.token(t, "u-deleted"), SourceAddr: "a"})
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.Equal(t, "Authentication error: User not found", apperrors.FromError(err).Message)
}

func TestAuthenticateStoreFailureIsInternal(t *testing.T) {
	f := newGatekeeperFixture(t)
	f.dir.err = errors.New("db down")

	_, err := f.gk.Authenticate(context.Background(), Attempt{Token: f.token(t, "u-1"), SourceAddr: "a"})
	require.ErrorIs(t, err, apperrors.ErrInternalServer)
	require.False(t, apperrors.IsAuthentication(err))
}

// The sixth attempt within a minute is rejected; a valid attempt
// after the window elapses succeeds.
func TestAuthenticateRateLimitsBySource(t *testing.T) {
	f := newGatekeeperFixture(t)
	ctx := context.Background()
	valid := f.token(t, "u-1")

	for i := 0; i < 5; i++ {
		_, err := f.gk.Authenticate(ctx, Attempt{Token: "bad-token", SourceAddr: "192.0.2.10"})
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		*f.clock = f.clock.Add(time.Second)
	}

	_, err := f.gk.Authenticate(ctx, Attempt{Token: valid, SourceAddr: "192.0.2.10"})
	require.ErrorIs(t, err, apperrors.ErrTooManyAttempts)
	require.EqualError(t, err, "Authentication error: Too many connection attempts")

	_, err = f.gk.Authenticate(ctx, Attempt{Token: valid, SourceAddr: "192.0.2.11"})
	require.NoError(t, err, "other sources are unaffected")

	*f.clock = f.clock.Add(61 * time.Second)
	valid = f.token(t, "u-1")
	_, err = f.gk.Authenticate(ctx, Attempt{Token: valid, SourceAddr: "192.0.2.10"})
	require.NoError(t, err)
}

func TestAuthenticateSuccessClearsCounter(t *testing.T) {
	f := newGatekeeperFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.gk.Authenticate(ctx, Attempt{Token: "bad", SourceAddr: "s"})
		require.Error(t, err)
	}
	_, err := f.gk.Authenticate(ctx, Attempt{Token: f.token(t, "u-1"), SourceAddr: "s"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.gk.Authenticate(ctx, Attempt{Token: "bad", SourceAddr: "s"})
		require.ErrorIs(t, err, apperrors.ErrInvalidToken, "attempt %d", i+1)
	}
}

func TestAuthenticateFallsBackToAttemptID(t *testing.T) {
	f := newGatekeeperFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.gk.Authenticate(ctx, Attempt{Token: "bad", AttemptID: "att-1"})
	}
	_, err := f.gk.Authenticate(ctx, Attempt{Token: "bad", AttemptID: "att-1"})
	require.ErrorIs(t, err, apperrors.ErrTooManyAttempts)

	_, err = f.gk.Authenticate(ctx, Attempt{Token: "bad", AttemptID: "att-2"})
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
