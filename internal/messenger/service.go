package messenger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tuvshee555/Auto-reception/internal/booking"
	"github.com/Tuvshee555/Auto-reception/internal/extract"
	"github.com/Tuvshee555/Auto-reception/internal/keylock"
	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
	"github.com/Tuvshee555/Auto-reception/internal/ratelimit"
)

const (
	RateLimitedReply = "Та хэт олон мессеж илгээлээ. Түр хүлээгээд дахин бичнэ үү."
	missingPrefix    = "Захиалга хийхийн тулд дараах мэдээллийг илгээнэ үү: "
)

var fieldLabels = map[booking.Field]string{
	booking.FieldDate:  "огноо",
	booking.FieldTime:  "цаг",
	booking.FieldName:  "нэр",
	booking.FieldPhone: "утасны дугаар",
}

// SenderLimit is the per-sender fixed window.
type SenderLimit struct {
	Limit  int
	Window time.Duration
}

type service struct {
	repo      Repo
	sessions  booking.SessionStore
	limiter   ratelimit.Limiter
	limit     SenderLimit
	responder Responder
	out       *Dispatcher
	locks     *keylock.Locker
	log       zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	repo Repo,
	sessions booking.SessionStore,
	limiter ratelimit.Limiter,
	limit SenderLimit,
	responder Responder,
	out *Dispatcher,
	log zerolog.Logger,
	m *metrics.Metrics,
) Service {
	return &service{
		repo:      repo,
		sessions:  sessions,
		limiter:   limiter,
		limit:     limit,
		responder: responder,
		out:       out,
		locks:     keylock.New(),
		log:       logging.Component(log, "controller"),
		metrics:   m,
		now:       time.Now,
	}
}

func (s *service) HandleEvent(ctx context.Context, ev InboundEvent) (Outcome, error) {
	if ev.IsEcho || ev.SenderID == "" {
		return OutcomeIgnored, nil
	}
	log := s.log.With().Str("psid", ev.SenderID).Str("mid", ev.MessageID).Logger()

	createdAt := ev.ReceivedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	err := s.repo.SaveMessage(ctx, &MessageRecord{
		ID:        uuid.NewString(),
		SenderID:  ev.SenderID,
		MessageID: ev.MessageID,
		Text:      ev.Text,
		CreatedAt: createdAt,
	})
	switch {
	case errors.Is(err, ErrDuplicateMessage):
		log.Debug().Msg("redelivered message skipped")
		return OutcomeIgnored, nil
	case err != nil:
		log.Error().Err(err).Msg("save message failed")
	}

	res, err := s.limiter.Allow(ctx, ratelimit.SenderKey(ev.SenderID), s.limit.Limit, s.limit.Window)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable, allowing")
		res.Allowed = true
	}
	if !res.Allowed {
		log.Info().Time("reset_at", res.ResetAt).Msg("rate limited")
		s.out.Text(ctx, ev.SenderID, RateLimitedReply)
		return OutcomeRateLimited, nil
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return OutcomeIgnored, nil
	}

	unlock := s.locks.Lock(ev.SenderID)
	outcome, err := s.advance(ctx, log, ev.SenderID, text)
	unlock()
	if err != nil || outcome != OutcomeAI {
		return outcome, err
	}

	// Generation runs outside the sender lock.
	s.out.Typing(ctx, ev.SenderID)
	s.out.Text(ctx, ev.SenderID, s.responder.Reply(ctx, text))
	return OutcomeAI, nil
}

// advance moves the sender's booking session forward. It returns OutcomeAI,
// without replying, when the sender is idle and shows no booking intent.
// Callers hold the sender lock.
func (s *service) advance(ctx context.Context, log zerolog.Logger, psid, text string) (Outcome, error) {
	sess, err := s.sessions.Get(ctx, psid)
	if err != nil && !errors.Is(err, booking.ErrSessionNotFound) {
		return "", fmt.Errorf("load session: %w", err)
	}

	if sess == nil || !sess.Active {
		if !extract.HasBookingIntent(text) {
			return OutcomeAI, nil
		}
		if _, err := s.sessions.Open(ctx, psid); err != nil {
			return "", fmt.Errorf("open session: %w", err)
		}
		log.Info().Msg("booking session opened")
	}

	sess, err = s.sessions.Upsert(ctx, psid, extract.Fields(text))
	if err != nil {
		return "", fmt.Errorf("merge session: %w", err)
	}

	if missing := sess.Missing(); len(missing) > 0 {
		s.out.Text(ctx, psid, missingFieldsReply(missing))
		return OutcomePrompt, nil
	}

	b := &booking.Booking{
		ID:        uuid.NewString(),
		SenderID:  psid,
		Name:      sess.Name,
		Phone:     sess.Phone,
		DateText:  sess.Date,
		TimeText:  sess.Time,
		Message:   text,
		Status:    booking.StatusPending,
		CreatedAt: s.now(),
	}
	// The session stays active on failure so the next message retries.
	if err := s.repo.SaveBooking(ctx, b); err != nil {
		return "", fmt.Errorf("save booking: %w", err)
	}
	s.metrics.Bookings.Inc()

	if err := s.sessions.Close(ctx, psid); err != nil {
		log.Error().Err(err).Str("booking_id", b.ID).Msg("close session failed")
	}

	log.Info().Str("booking_id", b.ID).Msg("booking created")
	s.out.Text(ctx, psid, confirmationReply(b))
	return OutcomeBooked, nil
}

func missingFieldsReply(missing []booking.Field) string {
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, fieldLabels[f])
	}
	return missingPrefix + strings.Join(labels, ", ") + "."
}

func confirmationReply(b *booking.Booking) string {
	return fmt.Sprintf(
		"Баярлалаа! Таны захиалгыг хүлээн авлаа.\nНэр: %s\nОгноо: %s\nЦаг: %s\nУтас: %s\nБид удахгүй холбогдож баталгаажуулна.",
		b.Name, b.DateText, b.TimeText, b.Phone,
	)
}
