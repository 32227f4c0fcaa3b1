package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
)

var ErrMissingPageToken = errors.New("messenger: FACEBOOK_PAGE_ACCESS_TOKEN not set")

type GraphConfig struct {
	BaseURL     string // https://graph.facebook.com
	Version     string // v18.0
	AccessToken string
	Timeout     time.Duration
	// RPS throttles outgoing calls; zero disables the throttle.
	RPS float64
}

// GraphOutbound posts to the Send API at /<version>/me/messages.
type GraphOutbound struct {
	endpoint string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewGraphOutbound(cfg GraphConfig) (*GraphOutbound, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, ErrMissingPageToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Version == "" {
		cfg.Version = "v18.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	g := &GraphOutbound{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.Version + "/me/messages",
		token:    token,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RPS > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return g, nil
}

type recipient struct {
	ID string `json:"id"`
}

func (g *GraphOutbound) SendText(ctx context.Context, psid string, text string) error {
	return g.send(ctx, map[string]any{
		"messaging_type": "RESPONSE",
		"recipient":      recipient{ID: psid},
		"message":        map[string]string{"text": text},
	})
}

func (g *GraphOutbound) SendTyping(ctx context.Context, psid string) error {
	return g.send(ctx, map[string]any{
		"recipient":     recipient{ID: psid},
		"sender_action": "typing_on",
	})
}

func (g *GraphOutbound) send(ctx context.Context, body any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("graph: throttle: %w", err)
		}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.endpoint+"?access_token="+url.QueryEscape(g.token),
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// *url.Error carries the full URL, token included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("graph: %s: %w", uerr.Op, uerr.Err)
		}
		return fmt.Errorf("graph: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph api error: %s body=%s", resp.Status, respBody)
	}
	return nil
}

// Dispatcher is the controller's view of Outbound: failures are logged and
// counted, never returned.
type Dispatcher struct {
	out     Outbound
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(out Outbound, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{out: out, log: logging.Component(log, "outbound"), metrics: m}
}

func (d *Dispatcher) Typing(ctx context.Context, psid string) {
	if err := d.out.SendTyping(ctx, psid); err != nil {
		d.metrics.OutboundFailures.WithLabelValues("typing").Inc()
		d.log.Warn().Err(err).Str("psid", psid).Msg("typing indicator failed")
	}
}

func (d *Dispatcher) Text(ctx context.Context, psid, text string) {
	if err := d.out.SendText(ctx, psid, text); err != nil {
		d.metrics.OutboundFailures.WithLabelValues("text").Inc()
		d.log.Error().Err(err).Str("psid", psid).Str("text", logging.Preview(text)).Msg("send failed")
	}
}
