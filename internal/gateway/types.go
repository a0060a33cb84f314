package gateway

import "strings"

// EventCheckoutFinished is the evento value sent with every payment submission.
const EventCheckoutFinished = "checkout_finalizado"

// Payment statuses returned by the payment service.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// TokenResponse mirrors the token validation payload. Optional prices stay nil when absent.
type TokenResponse struct {
	Valid         bool     `json:"valido"`
	Reason        string   `json:"motivo,omitempty"`
	TokenUsed     bool     `json:"token_usado,omitempty"`
	Name          string   `json:"nome,omitempty"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"celular,omitempty"`
	ProductName   string   `json:"produto_nome,omitempty"`
	OriginalPrice *float64 `json:"preco_original,omitempty"`
	OfferPrice    *float64 `json:"preco_oferta,omitempty"`
}

// Usable reports whether the token may start a checkout.
func (r TokenResponse) Usable() bool {
	return r.Valid && !r.TokenUsed
}

// PaymentPayload is the order body posted to the payment service.
type PaymentPayload struct {
	Token     string          `json:"token"`
	Event     string          `json:"evento"`
	Product   string          `json:"produto"`
	Customer  PaymentCustomer `json:"cliente"`
	Payment   PaymentDetails  `json:"pagamento"`
	Bump      BumpDetails     `json:"bump"`
	Timestamp string          `json:"timestamp"`
}

// PaymentCustomer identifies the buyer.
type PaymentCustomer struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
	TaxID string `json:"cpf"`
	Phone string `json:"celular"`
}

// PaymentDetails carries method and amounts.
type PaymentDetails struct {
	Method       string  `json:"metodo"`
	Installments int     `json:"parcelas"`
	ProductValue float64 `json:"valor_produto"`
	BumpValue    float64 `json:"valor_bump"`
	TotalValue   float64 `json:"valor_total"`
	Status       string  `json:"status"`
}

// BumpDetails records the one-time offer decision.
type BumpDetails struct {
	Accepted bool    `json:"aceito"`
	Value    float64 `json:"valor"`
}

// PaymentResult is the payment service verdict.
type PaymentResult struct {
	Status  string `json:"status"`
	Message string `json:"mensagem,omitempty"`
}

// NormalizedStatus lowercases and trims the status.
func (r PaymentResult) NormalizedStatus() string {
	return strings.ToLower(strings.TrimSpace(r.Status))
}

// Lead is the contact captured outside the checkout flow.
type Lead struct {
	Email      string `json:"email"`
	Phone      string `json:"celular,omitempty"`
	Instagram  string `json:"instagram,omitempty"`
	Source     string `json:"origem,omitempty"`
	CapturedAt string `json:"timestamp"`
}
