package messenger

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tuvshee555/Auto-reception/internal/booking"
	"github.com/Tuvshee555/Auto-reception/internal/logging"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
	"github.com/Tuvshee555/Auto-reception/internal/ratelimit"
	"github.com/Tuvshee555/Auto-reception/internal/signature"
)

// EventSink accepts verified events for background processing.
type EventSink interface {
	Submit(ev InboundEvent) bool
}

type HandlerConfig struct {
	VerifyToken  string
	AppSecret    string
	MaxBodyBytes int64
	// ClientLimit applies to the public booking form, keyed by client IP.
	ClientLimit SenderLimit
}

type Handler struct {
	cfg     HandlerConfig
	sink    EventSink
	repo    Repo
	limiter ratelimit.Limiter
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewHandler(
	cfg HandlerConfig,
	sink EventSink,
	repo Repo,
	limiter ratelimit.Limiter,
	log zerolog.Logger,
	m *metrics.Metrics,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		cfg:     cfg,
		sink:    sink,
		repo:    repo,
		limiter: limiter,
		log:     logging.Component(log, "webhook"),
		metrics: m,
		now:     time.Now,
	}
}

// HandleVerify answers the platform's subscription handshake.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if h.cfg.VerifyToken == "" {
		h.log.Error().Msg("FACEBOOK_VERIFY_TOKEN not set, refusing verification")
		http.Error(w, "verification not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	mode := firstParam(q.Get("hub.mode"), q.Get("mode"))
	token := firstParam(q.Get("hub.verify_token"), q.Get("verify_token"))
	challenge := firstParam(q.Get("hub.challenge"), q.Get("challenge"))

	if mode != "subscribe" || token != h.cfg.VerifyToken {
		h.log.Warn().Str("mode", mode).Msg("verification failed")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// HandleWebhook authenticates a delivery, acks it and hands its message
// events to the sink. Nothing after the ack can turn into an error status.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AppSecret == "" {
		h.metrics.Deliveries.WithLabelValues("misconfigured").Inc()
		h.log.Error().Msg("FACEBOOK_APP_SECRET not set, rejecting every delivery")
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		h.metrics.Deliveries.WithLabelValues("bad_request").Inc()
		h.log.Warn().Err(err).Msg("read body failed")
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if !signature.Verify(h.cfg.AppSecret, raw, r.Header.Get(signature.Header)) {
		h.metrics.Deliveries.WithLabelValues("forbidden").Inc()
		h.log.Warn().Str("remote", r.RemoteAddr).Msg("invalid webhook signature")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.metrics.Deliveries.WithLabelValues("bad_request").Inc()
		h.log.Warn().Err(err).Msg("invalid json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	h.metrics.Deliveries.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	events := payload.events(h.now())
	for _, ev := range events {
		h.sink.Submit(ev)
	}
	h.log.Debug().Str("object", payload.Object).Int("events", len(events)).Msg("delivery accepted")
}

var bookingPhoneRE = regexp.MustCompile(`^\+?\d[\d\s-]{5,15}$`)

type bookingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
}

// HandleBooking stores a booking submitted from the public form.
func (h *Handler) HandleBooking(w http.ResponseWriter, r *http.Request) {
	key := ratelimit.ClientKey(r)
	res, err := h.limiter.Allow(r.Context(), key, h.cfg.ClientLimit.Limit, h.cfg.ClientLimit.Window)
	if err != nil {
		h.log.Warn().Err(err).Msg("rate limiter unavailable, allowing")
		res.Allowed = true
	}
	if !res.Allowed {
		retry := int(time.Until(res.ResetAt).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	b, fields := req.validate()
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_fields", "fields": fields})
		return
	}

	b.ID = uuid.NewString()
	b.Status = booking.StatusPending
	b.CreatedAt = h.now()
	if err := h.repo.SaveBooking(r.Context(), b); err != nil {
		h.log.Error().Err(err).Str("client", key).Msg("save booking failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server"})
		return
	}

	h.metrics.Bookings.Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": b.ID})
}

func (req bookingRequest) validate() (*booking.Booking, []string) {
	b := &booking.Booking{
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		DateText: strings.TrimSpace(req.Date),
		TimeText: strings.TrimSpace(req.Time),
		Service:  strings.TrimSpace(req.Service),
	}

	var fields []string
	if b.Name == "" {
		fields = append(fields, "name")
	}
	if b.Phone == "" {
		fields = append(fields, "phone")
	}
	if !validDate(b.DateText) {
		fields = append(fields, "date")
	}
	if b.Service == "" {
		fields = append(fields, "service")
	}
	if b.Phone != "" && !bookingPhoneRE.MatchString(b.Phone) {
		fields = append(fields, "phone_format")
	}
	return b, fields
}

func validDate(s string) bool {
	if s == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func firstParam(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
