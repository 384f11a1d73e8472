package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/pdfrag-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained per-client rate (requests/second).
	defaultRateLimit = 10
	// defaultRateBurst is the per-client bucket size.
	defaultRateBurst = 20
	// limiterIdleTTL is how long an unused client bucket is kept.
	limiterIdleTTL = 5 * time.Minute
	// sweepInterval is the period of the idle bucket sweep.
	sweepInterval = time.Minute
)

// bucket is the token bucket of one client address.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter throttles requests per client address. Questions and
// ingestion runs both reach paid or slow backends, so each address gets
// its own token bucket.
type clientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	// rejected counts throttled requests; nil disables counting.
	rejected prometheus.Counter
	now      func() time.Time
}

// newClientLimiter returns a limiter and starts its idle sweep. The sweep
// stops when the returned function is called.
func newClientLimiter(rps float64, burst int, rejected prometheus.Counter) (*clientLimiter, func()) {
	cl := &clientLimiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		rejected: rejected,
		now:      time.Now,
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
				cl.sweep()
			}
		}
	}()

	var once sync.Once
	return cl, func() { once.Do(func() { close(done) }) }
}

// allow reports whether a request from addr may proceed now.
func (cl *clientLimiter) allow(addr string) bool {
	cl.mu.Lock()
	b, ok := cl.buckets[addr]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[addr] = b
	}
	b.lastSeen = cl.now()
	cl.mu.Unlock()

	return b.limiter.Allow()
}

// sweep drops buckets idle for longer than limiterIdleTTL.
func (cl *clientLimiter) sweep() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-limiterIdleTTL)
	for addr, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, addr)
		}
	}
}

// size returns the number of tracked clients.
func (cl *clientLimiter) size() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.buckets)
}

// wrap rejects throttled requests with 429 and a Retry-After hint.
func (cl *clientLimiter) wrap(next http.Handler) http.Handler {
	retryAfter := "1"
	if cl.limit > 0 && cl.limit < 1 {
		retryAfter = strconv.Itoa(int(math.Round(1 / float64(cl.limit))))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientIP(r)
		if !cl.allow(addr) {
			if cl.rejected != nil {
				cl.rejected.Inc()
			}
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("client", addr),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. Forwarding headers are
// ignored; the server binds to loopback by default.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
