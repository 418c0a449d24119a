package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/pricing/trends?category=Fruits", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(100, 5, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 5 {
		if w := hit(h, "127.0.0.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: got %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	t.Parallel()

	var rejected atomic.Int32
	rl, stop := newRateLimiter(0.5, 2, func() { rejected.Add(1) })
	defer stop()
	h := rl.middleware(okHandler)

	hit(h, "10.0.0.1:9999")
	hit(h, "10.0.0.1:9999")
	w := hit(h, "10.0.0.1:9999")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2 at 0.5 rps", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
		t.Errorf("body = %+v, err = %v", body, err)
	}
	if rejected.Load() != 1 {
		t.Errorf("onReject calls = %d, want 1", rejected.Load())
	}
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for range 3 {
		hit(h, "192.168.1.1:1111")
	}
	if w := hit(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second client: got %d, want 200", w.Code)
	}
	if w := hit(h, "192.168.1.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same host on a new port: got %d, want 429", w.Code)
	}
}

func TestRateLimit_SweepDropsIdleClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.bucket("10.0.0.1")
	now = now.Add(4 * time.Minute)
	rl.bucket("10.0.0.2")
	now = now.Add(2 * time.Minute)

	rl.sweep()
	if got := rl.tracked(); got != 1 {
		t.Fatalf("tracked = %d, want 1 after sweep", got)
	}
	if _, ok := rl.clients["10.0.0.2"]; !ok {
		t.Error("recent client was swept")
	}
}

func TestRateLimit_RetryAfterCapped(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rps  float64
		want string
	}{
		{10, "1"},
		{0.25, "4"},
		{0.001, "60"},
		{0, "60"},
	}
	for _, tc := range cases {
		rl := &rateLimiter{rps: rate.Limit(tc.rps)}
		if got := rl.retryAfter(); got != tc.want {
			t.Errorf("retryAfter(rps=%v) = %q, want %q", tc.rps, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		want       string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.remoteAddr, got, tc.want)
		}
	}
}
