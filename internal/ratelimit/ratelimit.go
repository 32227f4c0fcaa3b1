// Package ratelimit implements a fixed-window counter keyed by an opaque
// string. The window does not slide: the counter resets when the stored
// window boundary is crossed.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Result describes one Allow decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is shared by every caller; implementations serialize per key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// SenderKey namespaces conversation-sender traffic.
func SenderKey(senderID string) string { return "sender:" + senderID }

// ClientKey namespaces anonymous traffic by network origin: the first
// X-Forwarded-For hop, else the remote address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return "ip:" + ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
