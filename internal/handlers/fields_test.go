package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestFieldHandlers_Format(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	router := NewRouter(WithFieldRoutes(NewFieldHandlers(func() time.Time { return now }).Routes))

	cases := []struct {
		name       string
		body       string
		wantValue  string
		wantOK     bool
		wantReason string
		wantBrand  string
		wantCVV    int
		suggestion string
	}{
		{name: "cpf", body: `{"field":"cpf","value":"52998224725"}`, wantValue: "529.982.247-25", wantOK: true},
		{name: "cpf repeated", body: `{"field":"cpf","value":"11111111111"}`, wantValue: "111.111.111-11", wantReason: "repeated_digits"},
		{name: "phone partial", body: `{"field":"celular","value":"1198"}`, wantValue: "(11) 98", wantReason: "too_short"},
		{name: "amex card", body: `{"field":"numero","value":"378282246310005"}`, wantValue: "3782 8224 6310 005", wantOK: true, wantBrand: "amex", wantCVV: 4},
		{name: "cvv follows card brand", body: `{"field":"cvv","value":"12345","card":"3782 8224 6310 005"}`, wantValue: "1234", wantOK: true, wantBrand: "amex", wantCVV: 4},
		{name: "expiry current month", body: `{"field":"validade","value":"1026"}`, wantValue: "10/26", wantReason: "expired"},
		{name: "email typo", body: `{"field":"email","value":"ana@gmial.com"}`, wantValue: "ana@gmial.com", wantReason: "blocked_domain", suggestion: "gmail.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, router, http.MethodPost, "/api/v1/fields/format", tc.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp formatResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Value != tc.wantValue {
				t.Fatalf("expected value %q, got %q", tc.wantValue, resp.Value)
			}
			if resp.OK != tc.wantOK || string(resp.Reason) != tc.wantReason {
				t.Fatalf("expected ok=%v reason=%q, got ok=%v reason=%q", tc.wantOK, tc.wantReason, resp.OK, resp.Reason)
			}
			if !resp.OK && resp.Message == "" {
				t.Fatalf("expected a message for failing fields")
			}
			if string(resp.Brand) != tc.wantBrand || resp.CVVLength != tc.wantCVV {
				t.Fatalf("unexpected brand %q cvv %d", resp.Brand, resp.CVVLength)
			}
			if resp.Suggestion != tc.suggestion {
				t.Fatalf("expected suggestion %q, got %q", tc.suggestion, resp.Suggestion)
			}
		})
	}
}

func TestFieldHandlers_UnknownField(t *testing.T) {
	router := NewRouter(WithFieldRoutes(NewFieldHandlers(nil).Routes))

	rr := doJSON(t, router, http.MethodPost, "/api/v1/fields/format", `{"field":"cep","value":"01001000"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = doJSON(t, router, http.MethodPost, "/api/v1/fields/format", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", rr.Code)
	}
}

func TestInstallmentHandlers_Quote(t *testing.T) {
	router := NewRouter(WithInstallmentRoutes(NewInstallmentHandlers().Routes))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/installments?total=397", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp installmentsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.TotalFormatted != "R$ 397,00" {
		t.Fatalf("unexpected total %q", resp.TotalFormatted)
	}
	if len(resp.Plans) != 6 {
		t.Fatalf("expected 6 plans, got %d", len(resp.Plans))
	}
	if resp.Plans[0].Label != "1x de R$ 397,00 (sem juros)" {
		t.Fatalf("unexpected first label %q", resp.Plans[0].Label)
	}
	last := resp.Plans[5]
	if last.Count != 12 || !last.HasInterest || last.Label != "12x de R$ 37,52 (com juros)" {
		t.Fatalf("unexpected last plan %+v", last)
	}

	for _, bad := range []string{"", "abc", "-5", "0", "NaN", "Inf", "-Inf", "1e400"} {
		rr := doJSON(t, router, http.MethodGet, "/api/v1/installments?total="+bad, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("total=%q: expected 400, got %d", bad, rr.Code)
		}
	}
}
