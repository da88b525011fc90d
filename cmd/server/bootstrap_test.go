package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/ack"
	"github.com/zenebedagim/dental-clinic-sub002/internal/app"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Path = ""
	_, err = app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	return cfg
}

func TestBootstrapRuntimeServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	require.IsType(t, &ack.LogSink{}, stack.Acks)
	require.NotNil(t, stack.Cleaner)

	srv := httptest.NewServer(stack.Router)
	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stack.Shutdown(ctx, zap.NewNop()))
	require.False(t, stack.Hub.Accepting())
	require.ErrorIs(t, stack.Hub.Serve(realtime.Identity{UserID: "late"}, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil)), apperrors.ErrServiceUnavailable)
}

func TestBootstrapRuntimeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ack.Kafka.Enabled = true
	cfg.Ack.Kafka.Brokers = nil

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestBootstrapRuntimeWithoutMaintenance(t *testing.T) {
	cfg := testConfig(t)
	cfg.Maintenance.Enabled = false

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, stack.Cleaner)
	require.NoError(t, stack.Shutdown(context.Background(), zap.NewNop()))
}

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9100\n"), 0o600))

	cfg, err := loadApplicationConfig(file)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)

	cfg, err = loadApplicationConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)

	_, err = loadApplicationConfig(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
