package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxFailures    = 5
	defaultOpenTimeout    = 30 * time.Second
)

// StatusError is a non-2xx answer from the notification API.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notification api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("notification api: status %d: %s", e.StatusCode, e.Message)
}

// APIConfig configures an APIClient.
type APIConfig struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	MaxFailures uint32
	OpenTimeout time.Duration
}

// APIClient calls the notification REST endpoints through a circuit breaker.
type APIClient struct {
	base  *url.URL
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker
	log   *zap.Logger
}

// NewAPIClient validates cfg and builds a client.
func NewAPIClient(cfg APIConfig) (*APIClient, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("notification api: invalid base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	log := logger.WithModule("client.api")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var status *StatusError
			if errors.As(err, &status) {
				return status.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &APIClient{
		base:  base,
		token: strings.TrimSpace(cfg.Token),
		http:  httpClient,
		cb:    cb,
		log:   log,
	}, nil
}

// List fetches the newest notifications.
func (c *APIClient) List(ctx context.Context, limit int) ([]Notification, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", query, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// Unread fetches unread counts with the per-priority breakdown.
func (c *APIClient) Unread(ctx context.Context) (UnreadCounts, error) {
	var out UnreadCounts
	err := c.do(ctx, http.MethodGet, "/api/notifications/unread", nil, &out)
	return out, err
}

// MarkRead marks one notification read.
func (c *APIClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllRead marks every notification read.
func (c *APIClient) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil)
}

// State reports the breaker state.
func (c *APIClient) State() gobreaker.State {
	return c.cb.State()
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, out)
	})
	return err
}

func (c *APIClient) roundTrip(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.base.JoinPath(path)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return fmt.Errorf("notification api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool                `json:"success"`
		Data    json.RawMessage     `json:"data"`
		Error   *response.ErrorInfo `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= http.StatusBadRequest {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("notification api: decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !envelope.Success {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if envelope.Error != nil {
			statusErr.Code = envelope.Error.Code
			statusErr.Message = envelope.Error.Message
		}
		return statusErr
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("notification api: decode data: %w", err)
		}
	}
	return nil
}
