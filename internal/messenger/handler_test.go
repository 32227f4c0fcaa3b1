package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/metrics"
	"github.com/Tuvshee555/Auto-reception/internal/ratelimit"
	"github.com/Tuvshee555/Auto-reception/internal/signature"
)

const testSecret = "app-secret"

type sinkRecorder struct {
	mu     sync.Mutex
	events []InboundEvent
}

func (s *sinkRecorder) Submit(ev InboundEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *sinkRecorder) all() []InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InboundEvent(nil), s.events...)
}

func newTestRouter(cfg HandlerConfig, sink EventSink, repo Repo) http.Handler {
	if cfg.ClientLimit.Limit == 0 {
		cfg.ClientLimit = SenderLimit{Limit: 3, Window: time.Minute}
	}
	h := NewHandler(cfg, sink, repo, ratelimit.NewMemoryLimiter(), zerolog.Nop(), metrics.NewNop())
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return r
}

const delivery = `{"object":"page","entry":[{"id":"page-1","time":1700000000000,"messaging":[` +
	`{"sender":{"id":"psid-1"},"recipient":{"id":"page-1"},"timestamp":1700000000000,"message":{"mid":"m1","text":"book"}},` +
	`{"sender":{"id":"page-1"},"recipient":{"id":"psid-1"},"message":{"mid":"m2","text":"echo","is_echo":true}},` +
	`{"sender":{"id":"psid-2"},"recipient":{"id":"page-1"},"read":{"watermark":1}}` +
	`]}]}`

func signedRequest(body, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(signature.Header, sig)
	}
	return req
}

func TestHandleVerify(t *testing.T) {
	router := newTestRouter(HandlerConfig{VerifyToken: "tok", AppSecret: testSecret}, &sinkRecorder{}, NewMemoryRepo(ai.BusinessSettings{}))

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"hub params", "hub.mode=subscribe&hub.verify_token=tok&hub.challenge=123", http.StatusOK, "123"},
		{"plain params", "mode=subscribe&verify_token=tok&challenge=abc", http.StatusOK, "abc"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=123", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=tok&hub.challenge=123", http.StatusForbidden, ""},
		{"missing everything", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestHandleVerifyUnconfigured(t *testing.T) {
	router := newTestRouter(HandlerConfig{AppSecret: testSecret}, &sinkRecorder{}, NewMemoryRepo(ai.BusinessSettings{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleWebhookAccepted(t *testing.T) {
	sink := &sinkRecorder{}
	router := newTestRouter(HandlerConfig{VerifyToken: "tok", AppSecret: testSecret}, sink, NewMemoryRepo(ai.BusinessSettings{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(delivery, signature.Sign(testSecret, []byte(delivery))))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, "psid-1", events[0].SenderID)
	assert.Equal(t, "book", events[0].Text)
	assert.Equal(t, "m1", events[0].MessageID)
	assert.Equal(t, time.UnixMilli(1700000000000), events[0].ReceivedAt)
	assert.True(t, events[1].IsEcho)
}

func TestHandleWebhookRejections(t *testing.T) {
	badJSON := `{"object":"page",`

	tests := []struct {
		name   string
		cfg    HandlerConfig
		body   string
		sig    string
		status int
	}{
		{"secret unset", HandlerConfig{}, delivery, signature.Sign("", []byte(delivery)), http.StatusServiceUnavailable},
		{"missing signature", HandlerConfig{AppSecret: testSecret}, delivery, "", http.StatusForbidden},
		{"wrong secret", HandlerConfig{AppSecret: testSecret}, delivery, signature.Sign("other", []byte(delivery)), http.StatusForbidden},
		{"tampered body", HandlerConfig{AppSecret: testSecret}, delivery + " ", signature.Sign(testSecret, []byte(delivery)), http.StatusForbidden},
		{"invalid json", HandlerConfig{AppSecret: testSecret}, badJSON, signature.Sign(testSecret, []byte(badJSON)), http.StatusBadRequest},
		{"body too large", HandlerConfig{AppSecret: testSecret, MaxBodyBytes: 16}, delivery, signature.Sign(testSecret, []byte(delivery)), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &sinkRecorder{}
			router := newTestRouter(tt.cfg, sink, NewMemoryRepo(ai.BusinessSettings{}))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, signedRequest(tt.body, tt.sig))

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, sink.all())
		})
	}
}

func TestHandleWebhookOtherObject(t *testing.T) {
	sink := &sinkRecorder{}
	router := newTestRouter(HandlerConfig{AppSecret: testSecret}, sink, NewMemoryRepo(ai.BusinessSettings{}))

	body := `{"object":"instagram","entry":[{"messaging":[{"sender":{"id":"x"},"message":{"text":"hi"}}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(body, signature.Sign(testSecret, []byte(body))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.all())
}

// pipeline wires the real handler, processor and controller over memory
// backends.
type pipeline struct {
	router    http.Handler
	repo      *MemoryRepo
	out       *recordingOutbound
	responder *MockResponder
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	f := newFixture(t)
	m := metrics.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	proc := NewProcessor(f.svc, ProcessorConfig{Workers: 2, QueueSize: 16, EventTimeout: time.Second}, zerolog.Nop(), m)
	proc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		proc.Wait()
	})

	return &pipeline{
		router:    newTestRouter(HandlerConfig{VerifyToken: "tok", AppSecret: testSecret}, proc, f.repo),
		repo:      f.repo,
		out:       f.out,
		responder: f.responder,
	}
}

func TestForgedDeliveryHasNoSideEffects(t *testing.T) {
	p := newPipeline(t)

	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, signedRequest(delivery, signature.Sign("attacker", []byte(delivery))))
	require.Equal(t, http.StatusForbidden, rec.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.repo.Messages())
	assert.Empty(t, p.repo.Bookings())
	assert.Zero(t, p.out.count())
	p.responder.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything)
}

func TestVerifiedDeliveryIsProcessedAfterAck(t *testing.T) {
	p := newPipeline(t)

	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, signedRequest(delivery, signature.Sign(testSecret, []byte(delivery))))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool { return len(p.out.texts()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, missingPrefix+"огноо, цаг, нэр, утасны дугаар.", p.out.texts()[0])
	assert.Len(t, p.repo.Messages(), 1)
}

func postBooking(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/booking", bytes.NewBufferString(body))
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleBooking(t *testing.T) {
	repo := NewMemoryRepo(ai.BusinessSettings{})
	router := newTestRouter(HandlerConfig{AppSecret: testSecret}, &sinkRecorder{}, repo)

	rec := postBooking(router, `{"name":" Сараа ","phone":"+976 9911-2233","date":"2024-05-01","time":"14:00","service":"цэвэрлэгээ"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	bookings := repo.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, "Сараа", bookings[0].Name)
	assert.Equal(t, "2024-05-01", bookings[0].DateText)
	assert.Equal(t, "цэвэрлэгээ", bookings[0].Service)
	assert.Equal(t, "pending", bookings[0].Status)

	rec = postBooking(router, `{"name":"","phone":"abc","date":"someday"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_fields", resp.Error)
	assert.Equal(t, []string{"name", "date", "service", "phone_format"}, resp.Fields)

	rec = postBooking(router, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// limit is 3 per minute per client address
	rec = postBooking(router, `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Len(t, repo.Bookings(), 1)
}
