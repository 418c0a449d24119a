package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Fake Pinger
// ---------------------------------------------------------------------------

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s := newTestServer(t)
	s.pingers = pingers
	return s
}

// ---------------------------------------------------------------------------
// GET /api/health
// ---------------------------------------------------------------------------

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	w := do(t, newTestServer(t), http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decodeBody[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

// ---------------------------------------------------------------------------
// GET /api/ready
// ---------------------------------------------------------------------------

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	cases := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantFailed []string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "postgres"},
				&fakePinger{name: "qdrant"},
				&fakePinger{name: "sqlite"},
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "vector store down",
			pingers: []Pinger{
				&fakePinger{name: "postgres"},
				&fakePinger{name: "qdrant", err: down},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"qdrant"},
		},
		{
			name: "everything down",
			pingers: []Pinger{
				&fakePinger{name: "ollama", err: errors.New("timeout")},
				&fakePinger{name: "postgres", err: down},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"ollama", "postgres"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newReadyTestServer(t, tc.pingers...)
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			resp := decodeBody[readyResponse](t, w)
			if resp.Ready != (len(tc.wantFailed) == 0) {
				t.Errorf("ready = %v", resp.Ready)
			}
			if resp.Checks == nil || len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("checks = %+v, want %d entries", resp.Checks, len(tc.pingers))
			}

			var failed []string
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check[%d] = %q, want pinger order", i, c.Name)
				}
				if !c.OK {
					failed = append(failed, c.Name)
					if c.Error == "" {
						t.Errorf("check %q failed without an error message", c.Name)
					}
				}
			}
			if len(failed) != len(tc.wantFailed) {
				t.Errorf("failed = %v, want %v", failed, tc.wantFailed)
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	const delay = 200 * time.Millisecond
	s := newReadyTestServer(t,
		&fakePinger{name: "postgres", delay: delay},
		&fakePinger{name: "qdrant", delay: delay},
		&fakePinger{name: "sqlite", delay: delay},
	)

	start := time.Now()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if elapsed >= 3*delay {
		t.Errorf("readiness took %v, probes appear to run serially", elapsed)
	}
	for _, c := range decodeBody[readyResponse](t, w).Checks {
		if c.LatencyMS < delay.Milliseconds()/2 {
			t.Errorf("check %q latency = %dms, want about %v", c.Name, c.LatencyMS, delay)
		}
	}
}
