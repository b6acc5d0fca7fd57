package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestLogger assigns a request id, attaches a request-scoped logger to the
// context and writes one access log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		l := logging.With().Str("request_id", reqID).Logger()
		ctx := logging.WithContext(r.Context(), l)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// httpMetrics records request counts and latencies by route pattern.
func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

// maxTenantLimiters bounds the per-tenant limiter map.
const maxTenantLimiters = 10000

// rateLimit applies one token bucket per tenant; rps <= 0 disables it. It must
// run after the principal middleware.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	tl := &tenantLimiters{rps: rate.Limit(rps), burst: burst, m: map[string]*rate.Limiter{}}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tl.get(principalFrom(r).Tenant).Allow() {
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tenantLimiters struct {
	rps   rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func (tl *tenantLimiters) get(tenant string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if l, ok := tl.m[tenant]; ok {
		return l
	}
	if len(tl.m) >= maxTenantLimiters {
		// A full bucket carries no state worth keeping.
		for k, l := range tl.m {
			if l.Tokens() >= float64(tl.burst) {
				delete(tl.m, k)
			}
		}
	}
	l := rate.NewLimiter(tl.rps, tl.burst)
	tl.m[tenant] = l
	return l
}
