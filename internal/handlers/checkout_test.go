package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siege-masterclass/checkout/internal/checkout"
	"github.com/siege-masterclass/checkout/internal/gateway"
	"github.com/siege-masterclass/checkout/internal/platform/idempotency"
	"github.com/siege-masterclass/checkout/internal/storage"
)

type stubTokenResolver struct {
	resp gateway.TokenResponse
}

func (s stubTokenResolver) ResolveToken(context.Context, string) (gateway.TokenResponse, error) {
	return s.resp, nil
}

type stubPaymentSubmitter struct {
	mu       sync.Mutex
	result   gateway.PaymentResult
	payloads []gateway.PaymentPayload
}

func (s *stubPaymentSubmitter) SubmitPayment(_ context.Context, payload gateway.PaymentPayload, _ string) (gateway.PaymentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return s.result, nil
}

func floatPtr(v float64) *float64 { return &v }

func newCheckoutTestRouter(t *testing.T, payments *stubPaymentSubmitter, opts ...CheckoutOption) chi.Router {
	t.Helper()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := storage.NewMemoryStore(clock)
	tokens := stubTokenResolver{resp: gateway.TokenResponse{
		Valid:         true,
		Name:          "Maria Silva",
		Email:         "maria@gmail.com",
		Phone:         "11987654321",
		ProductName:   "Siege Masterclass",
		OriginalPrice: floatPtr(997),
		OfferPrice:    floatPtr(397),
	}}

	ids := 0
	registry, err := checkout.NewRegistry(checkout.RegistryDeps{
		NewController: func(id string) (*checkout.Controller, error) {
			return checkout.NewController(checkout.Deps{
				SessionID: id,
				Tokens:    tokens,
				Payments:  payments,
				Deadlines: store,
				Clock:     clock,
				Settings:  checkout.Settings{TickInterval: time.Millisecond},
			})
		},
		Clock: clock,
		IDGenerator: func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	t.Cleanup(registry.CloseAll)

	return NewRouter(WithCheckoutRoutes(NewCheckoutHandlers(registry, opts...).Routes))
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) checkout.Snapshot {
	t.Helper()
	var snap checkout.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v (%s)", err, rr.Body.String())
	}
	return snap
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return body
}

func TestCheckoutHandlers_FullCardFlow(t *testing.T) {
	payments := &stubPaymentSubmitter{result: gateway.PaymentResult{Status: gateway.StatusApproved}}
	router := newCheckoutTestRouter(t, payments)
	base := "/api/v1/checkout/sessions/session-1"

	rr := doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", `{"token":"tok-123"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != base {
		t.Fatalf("unexpected location %q", loc)
	}
	if snap := decodeSnapshot(t, rr); snap.Phase != checkout.PhaseDataEntry || snap.SessionID != "session-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	rr = doJSON(t, router, http.MethodPost, base+"/customer", `{"nome":"Maria Silva","celular":"(11) 98765-4321","cpf":"529.982.247-25"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if snap := decodeSnapshot(t, rr); snap.Phase != checkout.PhaseUpsell {
		t.Fatalf("expected upsell, got %s", snap.Phase)
	}

	rr = doJSON(t, router, http.MethodPost, base+"/upsell", `{"aceito":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	snap := decodeSnapshot(t, rr)
	if snap.Phase != checkout.PhasePayment || snap.Total != 424 {
		t.Fatalf("unexpected payment snapshot %+v", snap)
	}

	rr = doJSON(t, router, http.MethodPost, base+"/payment", `{"metodo":"cartao","parcelas":3,"numero":"4111 1111 1111 1111","titular":"MARIA SILVA","validade":"12/30","cvv":"123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	snap = decodeSnapshot(t, rr)
	if snap.Phase != checkout.PhaseConfirmed || snap.Redirect == nil {
		t.Fatalf("expected confirmed with redirect, got %+v", snap)
	}
	if len(payments.payloads) != 1 || payments.payloads[0].Payment.Installments != 3 {
		t.Fatalf("unexpected payloads %+v", payments.payloads)
	}
}

func TestCheckoutHandlers_PixGeneration(t *testing.T) {
	router := newCheckoutTestRouter(t, &stubPaymentSubmitter{})
	base := "/api/v1/checkout/sessions/session-1"

	doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", `{"token":"tok-123"}`)
	doJSON(t, router, http.MethodPost, base+"/customer", `{"nome":"Maria Silva","celular":"(11) 98765-4321","cpf":"529.982.247-25"}`)
	doJSON(t, router, http.MethodPost, base+"/upsell", `{"aceito":false}`)

	rr := doJSON(t, router, http.MethodPost, base+"/pix", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body pixResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Pix.Code != checkout.DefaultPixCode {
		t.Fatalf("unexpected pix code %q", body.Pix.Code)
	}
	if body.Session.Pix == nil || body.Session.Pix.RemainingSeconds != 900 {
		t.Fatalf("unexpected pix view %+v", body.Session.Pix)
	}
}

func TestCheckoutHandlers_ErrorMapping(t *testing.T) {
	router := newCheckoutTestRouter(t, &stubPaymentSubmitter{})
	base := "/api/v1/checkout/sessions/session-1"
	doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", `{"token":"tok-123"}`)

	t.Run("validation", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, base+"/customer", `{"nome":"Maria Silva","celular":"(11) 98765-4321","cpf":"111.111.111-11"}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rr.Code)
		}
		body := decodeError(t, rr)
		fields, ok := body["fields"].(map[string]any)
		if !ok || len(fields) != 1 || fields["cpf"] != "repeated_digits" {
			t.Fatalf("unexpected fields %#v", body["fields"])
		}
	})

	t.Run("wrong phase", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, base+"/pix", "")
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rr.Code)
		}
		if body := decodeError(t, rr); body["error"] != "invalid_phase" || body["phase"] != "data_entry" {
			t.Fatalf("unexpected body %#v", body)
		}
	})

	t.Run("missing upsell decision", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, base+"/upsell", `{}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodPost, base+"/customer", `{"nome":`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rr := doJSON(t, router, http.MethodGet, "/api/v1/checkout/sessions/nope", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
		if body := decodeError(t, rr); body["error"] != "session_not_found" {
			t.Fatalf("unexpected body %#v", body)
		}
	})
}

func TestCheckoutHandlers_MissingTokenStillCreates(t *testing.T) {
	router := newCheckoutTestRouter(t, &stubPaymentSubmitter{})

	rr := doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	snap := decodeSnapshot(t, rr)
	if snap.Phase != checkout.PhaseError || snap.ErrorReason != checkout.ReasonMissingToken {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCheckoutHandlers_DeleteSession(t *testing.T) {
	router := newCheckoutTestRouter(t, &stubPaymentSubmitter{})
	doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", `{"token":"tok-123"}`)

	rr := doJSON(t, router, http.MethodDelete, "/api/v1/checkout/sessions/session-1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = doJSON(t, router, http.MethodGet, "/api/v1/checkout/sessions/session-1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
	rr = doJSON(t, router, http.MethodDelete, "/api/v1/checkout/sessions/session-1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestCheckoutHandlers_PaymentReplaysIdempotentRetry(t *testing.T) {
	payments := &stubPaymentSubmitter{result: gateway.PaymentResult{Status: gateway.StatusApproved}}
	router := newCheckoutTestRouter(t, payments, WithPaymentIdempotency(idempotency.NewMemoryStore()))
	base := "/api/v1/checkout/sessions/session-1"

	doJSON(t, router, http.MethodPost, "/api/v1/checkout/sessions", `{"token":"tok-123"}`)
	doJSON(t, router, http.MethodPost, base+"/customer", `{"nome":"Maria Silva","celular":"(11) 98765-4321","cpf":"529.982.247-25"}`)
	doJSON(t, router, http.MethodPost, base+"/upsell", `{"aceito":false}`)
	doJSON(t, router, http.MethodPost, base+"/pix", "")

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, base+"/payment", strings.NewReader(`{"metodo":"pix"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "attempt-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := submit()
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	second := submit()
	if second.Code != http.StatusOK {
		t.Fatalf("expected replayed 200, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replay header")
	}
	if snap := decodeSnapshot(t, second); snap.Phase != checkout.PhaseConfirmed {
		t.Fatalf("expected replayed confirmation, got %s", snap.Phase)
	}
	if len(payments.payloads) != 1 {
		t.Fatalf("expected a single gateway call, got %d", len(payments.payloads))
	}

	req := httptest.NewRequest(http.MethodPost, base+"/payment", strings.NewReader(`{"metodo":"pix"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a key once confirmed, got %d", rr.Code)
	}
}
