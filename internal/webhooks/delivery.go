package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"tenanthooks/internal/buildinfo"
	"tenanthooks/internal/logging"
	"tenanthooks/internal/metrics"
	"tenanthooks/internal/model"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// maxDrain caps how much of a response body is read before closing it.
const maxDrain = 64 << 10

// maxBreakers bounds the per-host breaker map.
const maxBreakers = 1024

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// DeliveryResult is the outcome of one POST to one subscriber.
type DeliveryResult struct {
	SubscriptionID string        `json:"subscriptionId"`
	URL            string        `json:"url"`
	Outcome        Outcome       `json:"outcome"`
	StatusCode     int           `json:"statusCode,omitempty"`
	Error          string        `json:"error,omitempty"`
	Latency        time.Duration `json:"-"`
	LatencyMs      int64         `json:"latencyMs"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Attempt is what the HTTP wrapper reports for one request. Exactly one of
// AttemptOK, AttemptRejected, AttemptTimeout, AttemptNetworkError and
// AttemptLocalError.
type Attempt interface {
	kind() string
}

// AttemptOK is a 2xx response.
type AttemptOK struct{ Status int }

// AttemptRejected is any non-2xx response.
type AttemptRejected struct{ Status int }

// AttemptTimeout means no response arrived within the delivery timeout.
type AttemptTimeout struct{}

// AttemptNetworkError is a transport failure after the request was built.
type AttemptNetworkError struct{ Detail string }

// AttemptLocalError is a failure before anything was sent.
type AttemptLocalError struct{ Detail string }

func (AttemptOK) kind() string           { return "ok" }
func (AttemptRejected) kind() string     { return "rejected" }
func (AttemptTimeout) kind() string      { return "timeout" }
func (AttemptNetworkError) kind() string { return "network_error" }
func (AttemptLocalError) kind() string   { return "local_error" }

// BreakerConfig enables a circuit breaker per target host.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a probe request.
	Cooldown time.Duration
}

type ExecutorConfig struct {
	Timeout   time.Duration
	UserAgent string
	// Client is copied; redirects are never followed.
	Client  *http.Client
	Breaker *BreakerConfig
}

// Executor POSTs envelopes to subscriber URLs. It is safe for concurrent use.
type Executor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string

	breakerCfg *BreakerConfig
	breakerCap int
	mu         sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[Attempt]
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = buildinfo.UserAgent()
	}
	client := &http.Client{}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	}
	// A redirect would be followed as a bodiless GET; report the 3xx instead.
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	e := &Executor{client: client, timeout: cfg.Timeout, userAgent: cfg.UserAgent}
	if cfg.Breaker != nil && cfg.Breaker.Failures > 0 {
		e.breakerCfg = cfg.Breaker
		e.breakerCap = maxBreakers
		e.breakers = map[string]*gobreaker.CircuitBreaker[Attempt]{}
	}
	return e
}

// Deliver sends body to hook.URL once. It never returns an error: every
// failure is reported as a failed result.
func (e *Executor) Deliver(ctx context.Context, hook model.Webhook, body []byte) (res DeliveryResult) {
	start := time.Now()
	res = DeliveryResult{SubscriptionID: hook.ID, URL: hook.URL, Timestamp: start.UTC()}
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Sprintf("panic during delivery: %v", r)
		}
		res.Latency = time.Since(start)
		res.LatencyMs = res.Latency.Milliseconds()
	}()

	a := e.attempt(ctx, hook.URL, body)
	metrics.WebhookAttempts.WithLabelValues(a.kind()).Inc()

	switch a := a.(type) {
	case AttemptOK:
		res.Outcome = OutcomeSuccess
		res.StatusCode = a.Status
	case AttemptRejected:
		res.Outcome = OutcomeFailed
		res.StatusCode = a.Status
		res.Error = fmt.Sprintf("remote rejected: HTTP %d", a.Status)
	case AttemptTimeout:
		res.Outcome = OutcomeFailed
		res.Error = fmt.Sprintf("no response: timed out after %s", e.timeout)
	case AttemptNetworkError:
		res.Outcome = OutcomeFailed
		res.Error = "no response: " + a.Detail
	case AttemptLocalError:
		res.Outcome = OutcomeFailed
		res.Error = "request not sent: " + a.Detail
	default:
		res.Outcome = OutcomeFailed
		res.Error = fmt.Sprintf("unknown attempt %T", a)
	}
	logging.Ctx(ctx).Debug().
		Str("subscription_id", res.SubscriptionID).
		Str("url", res.URL).
		Str("outcome", string(res.Outcome)).
		Int("status", res.StatusCode).
		Str("error", res.Error).
		Msg("webhook delivery")
	return res
}

var errAttemptFailed = errors.New("attempt failed")

func (e *Executor) attempt(ctx context.Context, target string, body []byte) Attempt {
	if e.breakers == nil {
		return e.post(ctx, target, body)
	}
	u, err := url.Parse(target)
	if err != nil {
		return AttemptLocalError{Detail: "invalid url: " + err.Error()}
	}
	cb := e.breakerFor(u.Host)
	a, err := cb.Execute(func() (Attempt, error) {
		a := e.post(ctx, target, body)
		if tripsBreaker(a) {
			return a, errAttemptFailed
		}
		return a, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return AttemptLocalError{Detail: "circuit open for " + u.Host}
	}
	return a
}

func (e *Executor) breakerFor(host string) *gobreaker.CircuitBreaker[Attempt] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[host]; ok {
		return cb
	}
	if len(e.breakers) >= e.breakerCap {
		e.evictBreakers()
	}
	failures := e.breakerCfg.Failures
	cb := gobreaker.NewCircuitBreaker[Attempt](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     e.breakerCfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("webhook circuit breaker state change")
		},
	})
	e.breakers[host] = cb
	return cb
}

// evictBreakers drops closed breakers, or one arbitrary breaker when every
// host is failing. Callers hold mu.
func (e *Executor) evictBreakers() {
	for host, cb := range e.breakers {
		if cb.State() == gobreaker.StateClosed {
			delete(e.breakers, host)
		}
	}
	if len(e.breakers) < e.breakerCap {
		return
	}
	for host := range e.breakers {
		delete(e.breakers, host)
		return
	}
}

// tripsBreaker reports whether a counts against the target host. 4xx and local
// errors are the sender's problem, not the host's.
func tripsBreaker(a Attempt) bool {
	switch a := a.(type) {
	case AttemptTimeout, AttemptNetworkError:
		return true
	case AttemptRejected:
		return a.Status >= 500
	default:
		return false
	}
}

// post performs the HTTP call and classifies the result.
func (e *Executor) post(ctx context.Context, target string, body []byte) Attempt {
	u, err := url.Parse(target)
	if err != nil {
		return AttemptLocalError{Detail: "invalid url: " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return AttemptLocalError{Detail: fmt.Sprintf("unsupported url scheme %q", u.Scheme)}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return AttemptLocalError{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return AttemptTimeout{}
		}
		return AttemptNetworkError{Detail: err.Error()}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return AttemptOK{Status: resp.StatusCode}
	}
	return AttemptRejected{Status: resp.StatusCode}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
