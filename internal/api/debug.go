package api

import (
	"net/http"
	"time"

	"tenanthooks/internal/buildinfo"
)

// DebugJSON reports build info and the effective, non-secret configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                    c.Server.Port,
			"AUTH_MODE":               c.Auth.Mode,
			"ALLOW_ORIGINS":           c.Server.AllowOrigins,
			"RATE_RPS":                c.Rate.RPS,
			"RATE_BURST":              c.Rate.Burst,
			"WEBHOOK_TIMEOUT":         c.Webhook.Timeout.String(),
			"WEBHOOK_MAX_IN_FLIGHT":   c.Webhook.MaxInFlight,
			"WEBHOOK_QUEUE_SIZE":      c.Webhook.QueueSize,
			"WEBHOOK_WORKERS":         c.Webhook.Workers,
			"WEBHOOK_BREAKER_ENABLED": c.Webhook.BreakerEnabled,
			"HAS_DATABASE_URL":        c.Database.URL != "",
			"HAS_REDIS_URL":           c.Redis.URL != "",
		},
	})
}
