package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/siege-masterclass/checkout/internal/checkout"
	"github.com/siege-masterclass/checkout/internal/platform/httpx"
	"github.com/siege-masterclass/checkout/internal/platform/idempotency"
	"github.com/siege-masterclass/checkout/internal/platform/requestctx"
)

// SessionRegistry is the subset of checkout.Registry the handlers use.
type SessionRegistry interface {
	Create(ctx context.Context, token string) (string, *checkout.Controller, error)
	Get(id string) (*checkout.Controller, error)
	Remove(id string) bool
}

// CheckoutHandlers exposes the checkout session state machine over HTTP.
type CheckoutHandlers struct {
	sessions     SessionRegistry
	paymentGuard func(http.Handler) http.Handler
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithPaymentIdempotency replays the stored verdict when a payment submission repeats its
// idempotency key. Keys are scoped to the session and optional.
func WithPaymentIdempotency(store idempotency.Store, opts ...idempotency.MiddlewareOption) CheckoutOption {
	return func(h *CheckoutHandlers) {
		if store == nil {
			return
		}
		opts = append([]idempotency.MiddlewareOption{
			idempotency.WithOptionalKey(),
			idempotency.WithScope(func(r *http.Request) string { return chi.URLParam(r, "id") }),
		}, opts...)
		h.paymentGuard = idempotency.Middleware(store, opts...)
	}
}

// NewCheckoutHandlers constructs checkout handlers backed by the session registry.
func NewCheckoutHandlers(sessions SessionRegistry, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{sessions: sessions}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout/sessions", h.createSession)
	r.Route("/checkout/sessions/{id}", func(s chi.Router) {
		s.Get("/", h.getSession)
		s.Delete("/", h.deleteSession)
		s.Post("/customer", h.submitCustomer)
		s.Post("/customer:back", h.backToCustomer)
		s.Post("/upsell", h.resolveUpsell)
		s.Post("/pix", h.generatePix)
		if h.paymentGuard != nil {
			s.With(h.paymentGuard).Post("/payment", h.submitPayment)
		} else {
			s.Post("/payment", h.submitPayment)
		}
	})
}

type createSessionRequest struct {
	Token string `json:"token"`
}

type upsellRequest struct {
	Accepted *bool `json:"aceito"`
}

type pixResponse struct {
	Pix     checkout.PixCharge `json:"pix"`
	Session checkout.Snapshot  `json:"session"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createSessionRequest
	if status, err := decodeBody(r, &req, true); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}

	id, ctrl, err := h.sessions.Create(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+id)
	writeJSONResponse(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, ctrl.Snapshot())
}

func (h *CheckoutHandlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil || !h.sessions.Remove(chi.URLParam(r, "id")) {
		h.writeCheckoutError(ctx, w, checkout.ErrCheckoutSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) submitCustomer(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var entry checkout.DataEntry
	if status, err := decodeBody(r, &entry, false); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	snap, err := ctrl.SubmitDataEntry(ctx, entry)
	h.respond(ctx, w, snap, err)
}

func (h *CheckoutHandlers) backToCustomer(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	snap, err := ctrl.BackToDataEntry(ctx)
	h.respond(ctx, w, snap, err)
}

func (h *CheckoutHandlers) resolveUpsell(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req upsellRequest
	if status, err := decodeBody(r, &req, false); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	if req.Accepted == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "aceito is required", http.StatusBadRequest))
		return
	}
	snap, err := ctrl.ResolveUpsell(ctx, *req.Accepted)
	h.respond(ctx, w, snap, err)
}

func (h *CheckoutHandlers) generatePix(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	charge, err := ctrl.GeneratePix(ctx)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, pixResponse{Pix: charge, Session: ctrl.Snapshot()})
}

func (h *CheckoutHandlers) submitPayment(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var intent checkout.PaymentIntent
	if status, err := decodeBody(r, &intent, false); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	snap, err := ctrl.SubmitPayment(ctx, intent)
	h.respond(ctx, w, snap, err)
}

func (h *CheckoutHandlers) lookup(w http.ResponseWriter, r *http.Request) (*checkout.Controller, context.Context, bool) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return nil, ctx, false
	}
	id := chi.URLParam(r, "id")
	ctrl, err := h.sessions.Get(id)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return nil, ctx, false
	}
	return ctrl, requestctx.WithSessionID(ctx, ctrl.ID()), true
}

func (h *CheckoutHandlers) respond(ctx context.Context, w http.ResponseWriter, snap checkout.Snapshot, err error) {
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, snap)
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *checkout.ValidationError
	var transition *checkout.TransitionError
	switch {
	case errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "one or more fields are invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": validation.Fields}))
	case errors.As(err, &transition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_phase", transition.Error(), http.StatusConflict).
			WithDetails(map[string]any{"phase": transition.Phase}))
	case errors.Is(err, checkout.ErrCheckoutSubmissionInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_progress", "a submission is already in progress", http.StatusConflict))
	case errors.Is(err, checkout.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, checkout.ErrCheckoutClosed):
		httpx.WriteError(ctx, w, httpx.NewError("session_closed", "checkout session is closed", http.StatusGone))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
