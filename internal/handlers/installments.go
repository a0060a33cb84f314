package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/installments"
	"github.com/siege-masterclass/checkout/internal/platform/httpx"
)

// InstallmentHandlers quotes card installment plans.
type InstallmentHandlers struct{}

// NewInstallmentHandlers constructs installment handlers.
func NewInstallmentHandlers() *InstallmentHandlers {
	return &InstallmentHandlers{}
}

// Routes registers the installment endpoints.
func (h *InstallmentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/installments", h.quote)
}

type installmentQuote struct {
	installments.Plan
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

type installmentsResponse struct {
	Total          float64            `json:"total"`
	TotalFormatted string             `json:"total_formatado"`
	Plans          []installmentQuote `json:"parcelas"`
}

func (h *InstallmentHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := strings.TrimSpace(r.URL.Query().Get("total"))
	total, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if raw == "" || err != nil || math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "total must be a positive amount", http.StatusBadRequest))
		return
	}

	plans := installments.Calculate(total)
	quotes := make([]installmentQuote, 0, len(plans))
	for _, plan := range plans {
		quotes = append(quotes, installmentQuote{
			Plan:  plan,
			Label: installments.Label(plan),
			Total: fields.RoundCents(installments.Total(plan)),
		})
	}
	writeJSONResponse(w, http.StatusOK, installmentsResponse{
		Total:          total,
		TotalFormatted: fields.FormatCurrency(total),
		Plans:          quotes,
	})
}
