package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/client"
	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8000":     "ws://127.0.0.1:8000/ws/notifications",
		"https://clinic.example/":   "wss://clinic.example/ws/notifications",
		"https://clinic.example/gw": "wss://clinic.example/gw/ws/notifications",
	}
	for in, want := range cases {
		got, err := websocketURL(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := websocketURL("ftp://clinic.example")
	require.Error(t, err)
	_, err = websocketURL("clinic")
	require.Error(t, err)
}

func TestTerminalSurface(t *testing.T) {
	var out bytes.Buffer
	surface := newTerminalSurface(&out)

	critical := client.Notification{Priority: models.PriorityCritical, Title: "Emergency", Message: "Room 2"}
	surface.Show(critical, client.PolicyFor(models.PriorityCritical))
	require.Equal(t, "\a[CRITICAL] Emergency: Room 2 *\n", out.String())

	out.Reset()
	low := client.Notification{Priority: models.PriorityLow, Title: "Invoice paid"}
	surface.Show(low, client.PolicyFor(models.PriorityLow))
	surface.Hide(low, client.DismissClick)
	surface.Hide(low, client.DismissTimeout)
	require.Equal(t, "[LOW] Invoice paid\n  dismissed Invoice paid\n", out.String())

	out.Reset()
	high := client.Notification{Priority: models.PriorityHigh, Title: "X-ray ready", ActionURL: "/imaging/7"}
	surface.Show(high, client.PolicyFor(models.PriorityHigh))
	require.Equal(t, "\a[HIGH] X-ray ready (/imaging/7)\n", out.String())
}

func TestRunRequiresToken(t *testing.T) {
	t.Setenv("CLINIC_TOKEN", "")
	require.Error(t, run(t.Context(), []string{"--server", "http://127.0.0.1:1"}))
}
