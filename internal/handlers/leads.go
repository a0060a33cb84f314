package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siege-masterclass/checkout/internal/leads"
	"github.com/siege-masterclass/checkout/internal/platform/httpx"
)

// LeadSubmitter accepts captured contacts.
type LeadSubmitter interface {
	Submit(ctx context.Context, lead leads.Lead) (leads.Lead, error)
}

// LeadHandlers exposes lead capture.
type LeadHandlers struct {
	leads LeadSubmitter
}

// NewLeadHandlers constructs lead handlers.
func NewLeadHandlers(svc LeadSubmitter) *LeadHandlers {
	return &LeadHandlers{leads: svc}
}

// Routes registers the lead endpoints.
func (h *LeadHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/leads", h.submit)
}

func (h *LeadHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.leads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("leads_unavailable", "lead capture unavailable", http.StatusServiceUnavailable))
		return
	}

	var req leads.Lead
	if status, err := decodeBody(r, &req, false); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	lead, err := h.leads.Submit(ctx, req)
	if err != nil {
		var validation *leads.ValidationError
		if errors.As(err, &validation) {
			details := map[string]any{"fields": validation.Fields}
			if validation.Suggestion != "" {
				details["suggestion"] = validation.Suggestion
			}
			httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "one or more fields are invalid", http.StatusUnprocessableEntity).WithDetails(details))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("lead_error", "failed to accept lead", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusAccepted, lead)
}
