package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/model"
	"tenanthooks/internal/store"
	"tenanthooks/internal/webhooks"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// storeProblem maps store sentinels onto HTTP problems.
func storeProblem(w http.ResponseWriter, r *http.Request, title string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrInvalidReference):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Reference", err.Error(), r.URL.Path)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg(title)
		writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
	}
}

// notify schedules a webhook dispatch after a committed write. Scheduling
// failures never fail the request.
func (s *Server) notify(r *http.Request, eventType, tenantID string, data any) {
	if err := s.Queue.Enqueue(r.Context(), eventType, tenantID, data); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("event_type", eventType).Msg("webhook notification not scheduled")
	}
}

// Partners

func (s *Server) ListPartners(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	cursor, limit := pageParams(r)
	items, next, err := s.Store.ListPartners(r.Context(), p.Tenant, cursor, limit)
	if err != nil {
		storeProblem(w, r, "List partners failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) CreatePartner(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.PartnerInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	pt, err := s.Store.CreatePartner(r.Context(), p.Tenant, in)
	if err != nil {
		storeProblem(w, r, "Create partner failed", err)
		return
	}
	s.notify(r, webhooks.EventPartnerCreated, p.Tenant, pt)
	writeJSON(w, http.StatusCreated, pt)
}

func (s *Server) GetPartner(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	pt, err := s.Store.GetPartner(r.Context(), p.Tenant, chi.URLParam(r, "id"))
	if err != nil {
		storeProblem(w, r, "Get partner failed", err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

func (s *Server) UpdatePartner(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.PartnerInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	pt, err := s.Store.UpdatePartner(r.Context(), p.Tenant, chi.URLParam(r, "id"), in)
	if err != nil {
		storeProblem(w, r, "Update partner failed", err)
		return
	}
	s.notify(r, webhooks.EventPartnerUpdated, p.Tenant, pt)
	writeJSON(w, http.StatusOK, pt)
}

func (s *Server) DeletePartner(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id := chi.URLParam(r, "id")
	if err := s.Store.DeletePartner(r.Context(), p.Tenant, id); err != nil {
		storeProblem(w, r, "Delete partner failed", err)
		return
	}
	s.notify(r, webhooks.EventPartnerDeleted, p.Tenant, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// Webhooks (admin)

func (s *Server) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	cursor, limit := pageParams(r)
	items, next, err := s.Store.ListWebhooks(r.Context(), p.Tenant, cursor, limit)
	if err != nil {
		storeProblem(w, r, "List webhooks failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.WebhookInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	h, err := s.Store.CreateWebhook(r.Context(), p.Tenant, in)
	if err != nil {
		storeProblem(w, r, "Create webhook failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) GetWebhook(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	h, err := s.Store.GetWebhook(r.Context(), p.Tenant, chi.URLParam(r, "id"))
	if err != nil {
		storeProblem(w, r, "Get webhook failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.WebhookInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	h, err := s.Store.UpdateWebhook(r.Context(), p.Tenant, chi.URLParam(r, "id"), in)
	if err != nil {
		storeProblem(w, r, "Update webhook failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if err := s.Store.DeleteWebhook(r.Context(), p.Tenant, chi.URLParam(r, "id")); err != nil {
		storeProblem(w, r, "Delete webhook failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Webhook event catalog (admin)

func (s *Server) ListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Catalog.ListAll(r.Context(), p.Tenant)})
}

func (s *Server) ListWebhookEventNames(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{"names": s.Catalog.ListActiveNames(r.Context(), p.Tenant)})
}

func (s *Server) CreateWebhookEvent(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.WebhookEventInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	e, err := s.Store.CreateWebhookEvent(r.Context(), p.Tenant, in)
	if err != nil {
		storeProblem(w, r, "Create webhook event failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) UpdateWebhookEvent(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var in model.WebhookEventInput
	if !s.decodeValid(w, r, &in) {
		return
	}
	e, err := s.Store.UpdateWebhookEvent(r.Context(), p.Tenant, chi.URLParam(r, "id"), in)
	if err != nil {
		storeProblem(w, r, "Update webhook event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) DeleteWebhookEvent(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if err := s.Store.DeleteWebhookEvent(r.Context(), p.Tenant, chi.URLParam(r, "id")); err != nil {
		storeProblem(w, r, "Delete webhook event failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Manual dispatch (admin)

type dispatchRequest struct {
	EventType string          `json:"eventType" validate:"required,max=120"`
	Data      json.RawMessage `json:"data"`
}

// DispatchHandler runs a dispatch synchronously for the caller's tenant and
// returns the summary. Delivery failures are part of a 200 response.
func (s *Server) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var req dispatchRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	sum, err := s.Dispatcher.Dispatch(r.Context(), req.EventType, p.Tenant, data)
	if err != nil {
		if errors.Is(err, webhooks.ErrRegistryUnavailable) {
			writeProblem(w, http.StatusServiceUnavailable, "Dispatch failed", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Dispatch failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
