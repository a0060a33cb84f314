package checkout

import (
	"time"

	"github.com/siege-masterclass/checkout/internal/installments"
)

// Payment methods accepted by SubmitPayment.
const (
	MethodPix  = "pix"
	MethodCard = "cartao"
)

// Notification variants.
const (
	VariantInfo        = "info"
	VariantDestructive = "destructive"
)

// Offer is the product and pricing bound to the session token. It does not change once resolved.
type Offer struct {
	ProductName   string   `json:"produto_nome"`
	OriginalPrice *float64 `json:"preco_original,omitempty"`
	OfferPrice    float64  `json:"preco_oferta"`
	UpsellName    string   `json:"bump_nome"`
	UpsellPrice   float64  `json:"bump_valor"`
}

// Customer holds buyer data. Email comes from the resolved token and is never edited.
type Customer struct {
	Name  string
	Email string
	Phone string
	TaxID string
}

// DataEntry is the personal data form.
type DataEntry struct {
	Name  string `json:"nome"`
	Phone string `json:"celular"`
	TaxID string `json:"cpf"`
}

// PaymentIntent is what the visitor submits on the payment step. Card fields are ignored for PIX.
type PaymentIntent struct {
	Method       string `json:"metodo"`
	Installments int    `json:"parcelas,omitempty"`
	CardNumber   string `json:"numero,omitempty"`
	HolderName   string `json:"titular,omitempty"`
	Expiry       string `json:"validade,omitempty"`
	CVV          string `json:"cvv,omitempty"`
}

// PixCharge is a generated PIX code and when it stops being payable.
type PixCharge struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notification is a transient message shown after a payment attempt that did not confirm.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Variant string `json:"variant"`
}

// CustomerView is the customer as exposed in snapshots. The tax id is masked.
type CustomerView struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
	Phone string `json:"celular"`
	TaxID string `json:"cpf,omitempty"`
}

// PixView describes the PIX countdown.
type PixView struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Expired          bool      `json:"expired"`
}

// RedirectView describes the post-confirmation countdown.
type RedirectView struct {
	URL              string `json:"url"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	SessionID      string              `json:"session_id,omitempty"`
	Phase          Phase               `json:"phase"`
	ErrorReason    string              `json:"error_reason,omitempty"`
	Customer       *CustomerView       `json:"customer,omitempty"`
	Offer          *Offer              `json:"offer,omitempty"`
	UpsellDecided  bool                `json:"bump_decidido"`
	UpsellAccepted bool                `json:"bump_aceito"`
	Total          float64             `json:"total"`
	TotalFormatted string              `json:"total_formatado,omitempty"`
	Installments   []installments.Plan `json:"parcelas,omitempty"`
	Pix            *PixView            `json:"pix,omitempty"`
	Redirect       *RedirectView       `json:"redirect,omitempty"`
	Submitting     bool                `json:"submitting"`
	Notification   *Notification       `json:"notification,omitempty"`
}
