// Package api implements HTTP handlers and helpers for the tenanthooks service.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenanthooks/internal/auth"
	"tenanthooks/internal/config"
	"tenanthooks/internal/metrics"
	"tenanthooks/internal/store"
	"tenanthooks/internal/webhooks"
)

// Dispatcher runs a synchronous dispatch. *webhooks.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType, tenantID string, data any) (webhooks.Summary, error)
}

// Enqueuer schedules a background dispatch. *webhooks.Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, eventType, tenantID string, data any) error
}

type Server struct {
	Store      store.Store
	Dispatcher Dispatcher
	Queue      Enqueuer
	Catalog    *webhooks.Catalog
	Auth       *auth.Verifier
	Broker     EventBroker
	Config     *config.Config

	validate *validator.Validate
}

// Deps are the collaborators a Server is built from. Zero values fall back to
// in-process defaults.
type Deps struct {
	Store      store.Store
	Dispatcher Dispatcher
	Queue      Enqueuer
	Auth       *auth.Verifier
	Broker     EventBroker
	Config     *config.Config
}

func NewServer(d Deps) *Server {
	if d.Store == nil {
		d.Store = store.NewMemory()
	}
	if d.Broker == nil {
		d.Broker = NewBroker()
	}
	if d.Auth == nil {
		d.Auth = auth.NewVerifier(auth.Options{})
	}
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Dispatcher == nil {
		d.Dispatcher = webhooks.NewDispatcher(
			webhooks.NewRegistry(d.Store),
			webhooks.NewExecutor(webhooks.ExecutorConfig{Timeout: d.Config.Webhook.Timeout}),
			webhooks.WithMaxInFlight(d.Config.Webhook.MaxInFlight),
			webhooks.WithSummaryPublisher(ActivityFeed{Broker: d.Broker}),
		)
	}
	if d.Queue == nil {
		d.Queue = syncQueue{d.Dispatcher}
	}
	return &Server{
		Store:      d.Store,
		Dispatcher: d.Dispatcher,
		Queue:      d.Queue,
		Catalog:    webhooks.NewCatalog(d.Store),
		Auth:       d.Auth,
		Broker:     d.Broker,
		Config:     d.Config,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Config.Server.AllowOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Tenant-Id", "X-Role", "X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(httpMetrics)

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/debug/vars", s.DebugJSON)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.principal)
		r.Use(rateLimit(s.Config.Rate.RPS, s.Config.Rate.Burst))

		r.Route("/partners", func(r chi.Router) {
			r.Get("/", s.ListPartners)
			r.Post("/", s.CreatePartner)
			r.Get("/{id}", s.GetPartner)
			r.Put("/{id}", s.UpdatePartner)
			r.Delete("/{id}", s.DeletePartner)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Route("/webhooks", func(r chi.Router) {
				r.Get("/", s.ListWebhooks)
				r.Post("/", s.CreateWebhook)
				r.Get("/{id}", s.GetWebhook)
				r.Put("/{id}", s.UpdateWebhook)
				r.Delete("/{id}", s.DeleteWebhook)
			})
			r.Route("/webhook-events", func(r chi.Router) {
				r.Get("/", s.ListWebhookEvents)
				r.Get("/names", s.ListWebhookEventNames)
				r.Post("/", s.CreateWebhookEvent)
				r.Put("/{id}", s.UpdateWebhookEvent)
				r.Delete("/{id}", s.DeleteWebhookEvent)
			})
			r.Post("/admin/dispatch", s.DispatchHandler)
			r.Get("/admin/webhook-activity/stream", s.ActivityStreamHandler)
			r.Get("/admin/webhook-activity/ws", s.ActivityWSHandler)
		})
	})
	return r
}

// syncQueue dispatches inline; used when no background queue is configured.
type syncQueue struct{ d Dispatcher }

func (q syncQueue) Enqueue(ctx context.Context, eventType, tenantID string, data any) error {
	_, err := q.d.Dispatch(ctx, eventType, tenantID, data)
	return err
}
