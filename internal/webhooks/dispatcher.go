package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/metrics"
	"tenanthooks/internal/model"
)

// DefaultMaxInFlight caps concurrent deliveries within one dispatch.
const DefaultMaxInFlight = 16

// Summary aggregates the results of one dispatch call.
type Summary struct {
	DispatchID string           `json:"dispatchId,omitempty"`
	EventType  string           `json:"eventType"`
	TenantID   string           `json:"tenantId"`
	Total      int              `json:"total"`
	Success    int              `json:"success"`
	Failed     int              `json:"failed"`
	Results    []DeliveryResult `json:"results"`
	Duration   time.Duration    `json:"-"`
	DurationMs int64            `json:"durationMs"`
}

// Subscribers resolves delivery targets. *Registry implements it.
type Subscribers interface {
	Subscribers(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error)
}

// Deliverer performs one delivery. *Executor implements it.
type Deliverer interface {
	Deliver(ctx context.Context, hook model.Webhook, body []byte) DeliveryResult
}

// SummaryPublisher receives every completed dispatch that reached at least one
// subscriber.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s Summary)
}

type Dispatcher struct {
	subs        Subscribers
	exec        Deliverer
	builder     *Builder
	maxInFlight int
	publisher   SummaryPublisher
}

type DispatcherOption func(*Dispatcher)

// WithMaxInFlight caps concurrent deliveries per dispatch; 0 means unbounded.
func WithMaxInFlight(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxInFlight = n }
}

func WithBuilder(b *Builder) DispatcherOption {
	return func(d *Dispatcher) { d.builder = b }
}

func WithSummaryPublisher(p SummaryPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

func NewDispatcher(subs Subscribers, exec Deliverer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		subs:        subs,
		exec:        exec,
		builder:     defaultBuilder,
		maxInFlight: DefaultMaxInFlight,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch notifies every active subscriber of eventType in tenantID and waits
// for all deliveries to settle. Delivery failures are reported in the Summary,
// never as an error; an error means the subscribers could not be determined or
// the envelope could not be encoded.
//
// Deliveries are detached from ctx cancellation and bounded only by the
// executor's per-request timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType, tenantID string, data any) (Summary, error) {
	start := time.Now()
	log := logging.Ctx(ctx).With().Str("event_type", eventType).Str("tenant_id", tenantID).Logger()
	sum := Summary{EventType: eventType, TenantID: tenantID, Results: []DeliveryResult{}}

	hooks, err := d.subs.Subscribers(ctx, eventType, tenantID)
	if err != nil {
		log.Error().Err(err).Msg("webhook dispatch: subscriber lookup failed")
		metrics.Dispatches.WithLabelValues(eventType, "error").Inc()
		return sum, err
	}
	if len(hooks) == 0 {
		log.Debug().Msg("webhook dispatch: no subscribers")
		metrics.Dispatches.WithLabelValues(eventType, "noop").Inc()
		return sum, nil
	}

	body, err := d.builder.Build(eventType, tenantID, data).Encode()
	if err != nil {
		err = fmt.Errorf("webhooks: encode envelope: %w", err)
		log.Error().Err(err).Msg("webhook dispatch: payload construction failed")
		metrics.Dispatches.WithLabelValues(eventType, "error").Inc()
		return sum, err
	}

	sum.DispatchID = uuid.NewString()
	log = log.With().Str("dispatch_id", sum.DispatchID).Logger()
	dctx := logging.WithContext(context.WithoutCancel(ctx), log)

	results := make([]DeliveryResult, len(hooks))
	var g errgroup.Group
	if d.maxInFlight > 0 {
		g.SetLimit(d.maxInFlight)
	}
	for i, h := range hooks {
		g.Go(func() error {
			results[i] = d.exec.Deliver(dctx, h, body)
			return nil
		})
	}
	_ = g.Wait()

	sum.Results = results
	sum.Total = len(results)
	for _, r := range results {
		if r.Outcome == OutcomeSuccess {
			sum.Success++
		} else {
			sum.Failed++
		}
		metrics.WebhookDeliveries.WithLabelValues(eventType, string(r.Outcome)).Inc()
		metrics.WebhookLatency.WithLabelValues(eventType, string(r.Outcome)).Observe(float64(r.LatencyMs))
	}
	sum.Duration = time.Since(start)
	sum.DurationMs = sum.Duration.Milliseconds()

	result, level := "delivered", log.Info
	if sum.Failed > 0 {
		result, level = "partial", log.Warn
	}
	metrics.Dispatches.WithLabelValues(eventType, result).Inc()
	metrics.DispatchDuration.WithLabelValues(eventType).Observe(sum.Duration.Seconds())
	logSummary(level(), sum)

	if d.publisher != nil {
		d.publisher.PublishSummary(dctx, sum)
	}
	return sum, nil
}

func logSummary(ev *zerolog.Event, s Summary) {
	ev.Int("total", s.Total).
		Int("success", s.Success).
		Int("failed", s.Failed).
		Dur("duration", s.Duration).
		Msg("webhook dispatch complete")
}
