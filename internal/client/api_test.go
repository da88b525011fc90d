package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

func writeEnvelope(w http.ResponseWriter, status int, body response.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAPIClientDecodesEnvelopes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/notifications":
			require.Equal(t, "100", r.URL.Query().Get("limit"))
			writeEnvelope(w, http.StatusOK, response.Response{Success: true, Data: map[string]any{
				"notifications": []Notification{note("row-1", "evt-1", models.PriorityHigh, 1)},
			}})
		case "/api/notifications/unread":
			writeEnvelope(w, http.StatusOK, response.Response{Success: true, Data: UnreadCounts{
				Count:      2,
				ByPriority: map[models.Priority]int64{models.PriorityHigh: 2},
			}})
		case "/api/notifications/evt%2F1/read", "/api/notifications/evt/1/read":
			require.Equal(t, http.MethodPut, r.Method)
			writeEnvelope(w, http.StatusOK, response.Response{Success: true})
		case "/api/notifications/read-all":
			writeEnvelope(w, http.StatusOK, response.Response{Success: true, Data: map[string]int{"updated": 2}})
		default:
			writeEnvelope(w, http.StatusNotFound, response.Response{Error: &response.ErrorInfo{Code: "NOT_FOUND", Message: "Resource not found"}})
		}
	}))
	defer srv.Close()

	api, err := NewAPIClient(APIConfig{BaseURL: srv.URL + "/", Token: "tok"})
	require.NoError(t, err)
	ctx := context.Background()

	items, err := api.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "evt-1", items[0].EventID)

	counts, err := api.Unread(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, counts.ByPriority[models.PriorityHigh])

	require.NoError(t, api.MarkRead(ctx, "evt/1"))
	require.NoError(t, api.MarkAllRead(ctx))
}

func TestAPIClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewAPIClient(APIConfig{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestAPIClientBreaker(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			writeEnvelope(w, http.StatusInternalServerError, response.Response{Error: &response.ErrorInfo{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}})
			return
		}
		writeEnvelope(w, http.StatusNotFound, response.Response{Error: &response.ErrorInfo{Code: "NOT_FOUND", Message: "Resource not found"}})
	}))
	defer srv.Close()

	api, err := NewAPIClient(APIConfig{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := api.MarkRead(ctx, "missing")
		var status *StatusError
		require.ErrorAs(t, err, &status)
		require.Equal(t, http.StatusNotFound, status.StatusCode)
		require.Equal(t, "NOT_FOUND", status.Code)
	}
	require.Equal(t, gobreaker.StateClosed, api.State())

	failing.Store(true)
	for i := 0; i < 2; i++ {
		require.Error(t, api.MarkAllRead(ctx))
	}
	require.Equal(t, gobreaker.StateOpen, api.State())

	before := calls.Load()
	err = api.MarkAllRead(ctx)
	require.True(t, errors.Is(err, gobreaker.ErrOpenState))
	require.Equal(t, before, calls.Load())
}
