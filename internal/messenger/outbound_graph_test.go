package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuvshee555/Auto-reception/internal/metrics"
)

func TestGraphOutboundRequests(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v18.0/me/messages", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"recipient_id":"psid-1","message_id":"m"}`))
	}))
	defer srv.Close()

	g, err := NewGraphOutbound(GraphConfig{BaseURL: srv.URL, Version: "v18.0", AccessToken: "page-token"})
	require.NoError(t, err)

	require.NoError(t, g.SendTyping(context.Background(), "psid-1"))
	require.NoError(t, g.SendText(context.Background(), "psid-1", "Сайн байна уу"))

	require.Len(t, bodies, 2)
	assert.Equal(t, "typing_on", bodies[0]["sender_action"])
	assert.Equal(t, map[string]any{"id": "psid-1"}, bodies[0]["recipient"])
	assert.Equal(t, "RESPONSE", bodies[1]["messaging_type"])
	assert.Equal(t, map[string]any{"text": "Сайн байна уу"}, bodies[1]["message"])
}

func TestGraphOutboundErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#100) No matching user found"}}`))
	}))
	defer srv.Close()

	g, err := NewGraphOutbound(GraphConfig{BaseURL: srv.URL, AccessToken: "page-token"})
	require.NoError(t, err)

	err = g.SendText(context.Background(), "psid-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "No matching user found")
}

func TestGraphOutboundTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	g, err := NewGraphOutbound(GraphConfig{BaseURL: url, AccessToken: "secret-page-token", Timeout: time.Second})
	require.NoError(t, err)

	err = g.SendText(context.Background(), "psid-1", "hi")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-page-token")
}

func TestGraphOutboundRequiresToken(t *testing.T) {
	_, err := NewGraphOutbound(GraphConfig{AccessToken: "  "})
	assert.ErrorIs(t, err, ErrMissingPageToken)
}

func TestGraphOutboundThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g, err := NewGraphOutbound(GraphConfig{BaseURL: srv.URL, AccessToken: "t", RPS: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.SendTyping(context.Background(), "psid-1"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

type failingOutbound struct{}

func (failingOutbound) SendTyping(context.Context, string) error { return errors.New("typing failed") }
func (failingOutbound) SendText(context.Context, string, string) error {
	return errors.New("text failed")
}

func TestDispatcherCountsFailures(t *testing.T) {
	m := metrics.NewNop()
	d := NewDispatcher(failingOutbound{}, zerolog.Nop(), m)

	d.Typing(context.Background(), "psid-1")
	d.Text(context.Background(), "psid-1", "hi")
	d.Text(context.Background(), "psid-1", "hi again")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundFailures.WithLabelValues("typing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboundFailures.WithLabelValues("text")))
}
