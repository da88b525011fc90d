package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/zenebedagim/dental-clinic-sub002/internal/client"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("notifyclient", pflag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	server := fs.StringP("server", "s", "http://127.0.0.1:8000", "Gateway base URL")
	token := fs.StringP("token", "t", os.Getenv("CLINIC_TOKEN"), "Access token (defaults to $CLINIC_TOKEN)")
	resync := fs.Duration("resync-interval", 5*time.Minute, "Periodic refresh of the notification list, 0 disables it")
	maxVisible := fs.Int("max-visible", client.DefaultMaxVisible, "Concurrent transient notifications")
	maxAttempts := fs.Int("max-reconnects", client.DefaultMaxAttempts, "Reconnect attempts before giving up")
	logLevel := fs.String("log-level", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*token) == "" {
		return errors.New("an access token is required (--token or CLINIC_TOKEN)")
	}

	if err := logger.Init(*logLevel, "console"); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	wsURL, err := websocketURL(*server)
	if err != nil {
		return err
	}

	backend, err := client.NewAPIClient(client.APIConfig{BaseURL: *server, Token: *token})
	if err != nil {
		return err
	}

	session, err := client.NewSession(client.SessionConfig{
		Conn: client.ConnConfig{
			URL:         wsURL,
			Token:       *token,
			MaxAttempts: *maxAttempts,
		},
		Backend:        backend,
		Surface:        newTerminalSurface(os.Stdout),
		ResyncInterval: *resync,
		MaxVisible:     *maxVisible,
	})
	if err != nil {
		return err
	}

	err = session.Run(ctx)
	counters := session.Store().Counters()
	fmt.Fprintf(os.Stdout, "unread: %d\n", counters.Total)
	return err
}

// websocketURL maps the gateway base URL onto its websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q", base)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/notifications"
	return u.String(), nil
}
