package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
)

// FallbackReply is sent whenever generation fails.
const FallbackReply = "Уучлаарай, одоогоор хариу өгөх боломжгүй байна. Түр хүлээгээд дахин оролдоно уу."

// Responder answers free text on behalf of the business. Reply never
// fails: every error becomes FallbackReply.
type Responder struct {
	ai       AI
	settings SettingsReader
	timeout  time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewResponder(client AI, settings SettingsReader, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Responder {
	return &Responder{
		ai:       client,
		settings: settings,
		timeout:  timeout,
		log:      logging.Component(log, "ai"),
		metrics:  m,
	}
}

func (r *Responder) Reply(ctx context.Context, text string) string {
	settings, err := r.settings.GetSettings(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("settings unavailable, using defaults")
		settings = BusinessSettings{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.ai.GetReply(ctx, BuildSystemPrompt(settings), text)
	if err != nil {
		r.metrics.AIRequests.WithLabelValues("error").Inc()
		r.log.Error().Err(err).Str("text", logging.Preview(text)).Msg("generation failed")
		return FallbackReply
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		r.metrics.AIRequests.WithLabelValues("empty").Inc()
		r.log.Warn().Msg("generation returned no text")
		return FallbackReply
	}

	r.metrics.AIRequests.WithLabelValues("ok").Inc()
	r.log.Debug().Str("reply", logging.Preview(reply)).Msg("generated")
	return reply
}
