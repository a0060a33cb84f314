package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siege-masterclass/checkout/internal/cards"
	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/platform/httpx"
)

// FieldHandlers serves the input masks and validators to the presentation layer.
type FieldHandlers struct {
	clock func() time.Time
}

// NewFieldHandlers constructs field handlers. The clock decides card expiry.
func NewFieldHandlers(clock func() time.Time) *FieldHandlers {
	if clock == nil {
		clock = time.Now
	}
	return &FieldHandlers{clock: clock}
}

// Routes registers the field endpoints.
func (h *FieldHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/fields/format", h.format)
}

type formatRequest struct {
	Field    string `json:"field"`
	Value    string `json:"value"`
	Previous string `json:"previous"`
	// Card is the card number the CVV belongs to.
	Card string `json:"card,omitempty"`
}

type formatResponse struct {
	Value      string        `json:"value"`
	OK         bool          `json:"ok"`
	Reason     fields.Reason `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`
	Brand      cards.Brand   `json:"brand,omitempty"`
	CVVLength  int           `json:"cvvLength,omitempty"`
	CVVLabel   string        `json:"cvvLabel,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

func (h *FieldHandlers) format(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req formatRequest
	if status, err := decodeBody(r, &req, false); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var (
		resp   formatResponse
		result fields.Result
	)
	switch strings.ToLower(strings.TrimSpace(req.Field)) {
	case "nome", "name":
		resp.Value = fields.CleanName(req.Value)
		result = fields.ValidateName(resp.Value)
	case "titular", "holder":
		resp.Value = fields.CleanName(req.Value)
		result = fields.ValidateHolderName(resp.Value)
	case "celular", "phone":
		resp.Value = fields.FormatPhone(req.Value, req.Previous)
		result = fields.ValidatePhone(resp.Value)
	case "cpf":
		resp.Value = fields.FormatCPF(req.Value, req.Previous)
		result = fields.ValidateCPF(resp.Value)
	case "numero", "card":
		resp.Value = fields.FormatCardNumber(req.Value, req.Previous)
		result = fields.ValidateCardNumber(resp.Value)
		resp.Brand = cards.Classify(resp.Value)
		resp.CVVLength = cards.CVVLength(resp.Brand)
		resp.CVVLabel = cards.CVVLabel(resp.Brand)
	case "validade", "expiry":
		resp.Value = fields.FormatExpiry(req.Value, req.Previous)
		result = fields.ValidateExpiry(resp.Value, h.clock())
	case "cvv":
		resp.Brand = cards.Classify(req.Card)
		resp.Value = fields.FormatCVV(req.Value, req.Previous, resp.Brand)
		result = fields.ValidateCVV(resp.Value, resp.Brand)
		resp.CVVLength = cards.CVVLength(resp.Brand)
		resp.CVVLabel = cards.CVVLabel(resp.Brand)
	case "email":
		resp.Value = strings.ToLower(strings.TrimSpace(req.Value))
		result = fields.ValidateEmail(resp.Value)
		resp.Suggestion = fields.SuggestEmailDomain(fields.EmailDomain(resp.Value))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("unknown_field", "field is not supported", http.StatusBadRequest))
		return
	}

	resp.OK = result.OK
	resp.Reason = result.Reason
	resp.Message = result.Reason.Message()
	writeJSONResponse(w, http.StatusOK, resp)
}
