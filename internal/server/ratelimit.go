package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/farmtable-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second allowed per client
	// on /api routes.
	defaultRateLimit = 10
	// defaultRateBurst lets a buyer page through search results without
	// tripping the limiter.
	defaultRateBurst = 20
	// clientIdleTTL is how long an idle client's bucket is kept.
	clientIdleTTL = 5 * time.Minute
	// sweepInterval is how often idle buckets are dropped.
	sweepInterval = time.Minute
)

// clientBucket is the token bucket for one client address.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles /api traffic per client address.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket

	rps   rate.Limit
	burst int

	// now is the clock; replaced in tests.
	now func() time.Time
	// onReject is called once per rejected request. May be nil.
	onReject func()
}

// newRateLimiter constructs a rateLimiter and starts the idle sweeper. The
// returned stop function ends the sweeper and must be called exactly once.
func newRateLimiter(rps float64, burst int, onReject func()) (*rateLimiter, func()) {
	rl := &rateLimiter{
		clients:  make(map[string]*clientBucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
		onReject: onReject,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl, func() { close(done) }
}

// bucket returns the limiter for client, creating it on first sight.
func (rl *rateLimiter) bucket(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[client] = b
	}
	b.lastSeen = rl.now()
	return b.limiter
}

// sweep drops clients idle for longer than clientIdleTTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-clientIdleTTL)
	for c, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, c)
		}
	}
}

// tracked reports how many clients currently hold a bucket.
func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *rateLimiter) retryAfter() string {
	if rl.rps <= 0 {
		return "60"
	}
	secs := math.Ceil(1 / float64(rl.rps))
	return strconv.Itoa(int(min(secs, 60)))
}

// middleware rejects requests over the client's budget with 429, a
// Retry-After header and a JSON error body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if rl.bucket(client).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("client", client),
			slog.String("path", r.URL.Path),
		)
		if rl.onReject != nil {
			rl.onReject()
		}
		w.Header().Set("Retry-After", rl.retryAfter())
		writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored;
// deployments behind a proxy must have it rewrite RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
