package main

import (
	"fmt"

	"tenanthooks/internal/api"
	"tenanthooks/internal/auth"
	"tenanthooks/internal/config"
	"tenanthooks/internal/logging"
	"tenanthooks/internal/store"
	"tenanthooks/internal/webhooks"
)

// deps is the wired object graph shared by serve and emit.
type deps struct {
	cfg        *config.Config
	store      store.Store
	broker     api.EventBroker
	dispatcher *webhooks.Dispatcher
	closers    []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

func buildDeps(cfg *config.Config, migrate bool) (*deps, error) {
	d := &deps{cfg: cfg}

	if cfg.Database.URL == "" {
		logging.Info().Msg("DATABASE_URL not set, using in-memory store")
		d.store = store.NewMemory()
	} else {
		if migrate {
			if err := store.Migrate(cfg.Database.URL, "up"); err != nil {
				return nil, err
			}
		}
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.store = pg
		d.closers = append(d.closers, pg.Close)
	}

	if cfg.Redis.URL != "" {
		rb, err := api.NewRedisBroker(cfg.Redis.URL)
		if err != nil {
			logging.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
			d.broker = api.NewBroker()
		} else {
			d.broker = rb
			d.closers = append(d.closers, rb.Close)
		}
	} else {
		d.broker = api.NewBroker()
	}

	execCfg := webhooks.ExecutorConfig{Timeout: cfg.Webhook.Timeout}
	if cfg.Webhook.BreakerEnabled {
		execCfg.Breaker = &webhooks.BreakerConfig{
			Failures: cfg.Webhook.BreakerFailures,
			Cooldown: cfg.Webhook.BreakerCooldown,
		}
	}
	d.dispatcher = webhooks.NewDispatcher(
		webhooks.NewRegistry(d.store),
		webhooks.NewExecutor(execCfg),
		webhooks.WithMaxInFlight(cfg.Webhook.MaxInFlight),
		webhooks.WithSummaryPublisher(api.ActivityFeed{Broker: d.broker}),
	)
	return d, nil
}

func newVerifier(cfg *config.Config) *auth.Verifier {
	return auth.NewVerifier(auth.Options{
		Mode:        cfg.Auth.Mode,
		HMACSecret:  cfg.Auth.HMACSecret,
		JWKSURL:     cfg.Auth.JWKSURL,
		TenantClaim: cfg.Auth.TenantClaim,
		RoleClaim:   cfg.Auth.RoleClaim,
	})
}
