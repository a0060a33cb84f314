package checkout

import (
	"strings"
	"time"

	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/gateway"
	"github.com/siege-masterclass/checkout/internal/installments"
)

// validateIntent checks the payment step fields. PIX only needs a generated code, expired or not; cards need every field.
func (c *Controller) validateIntent(intent PaymentIntent) error {
	checks := fieldChecks{}
	switch normalizeMethod(intent.Method) {
	case MethodPix:
		if c.pix == nil {
			checks[FieldPix] = fields.ReasonRequired
		}
	case MethodCard:
		brand := cardBrand(intent)
		checks.check(FieldCardNumber, fields.ValidateCardNumber(intent.CardNumber))
		checks.check(FieldHolderName, fields.ValidateHolderName(intent.HolderName))
		checks.check(FieldExpiry, fields.ValidateExpiry(intent.Expiry, c.now()))
		checks.check(FieldCVV, fields.ValidateCVV(intent.CVV, brand))
		if _, ok := installments.Find(installments.Calculate(c.totalLocked()), installmentCount(intent)); !ok {
			checks[FieldInstallments] = fields.ReasonInvalidFormat
		}
	default:
		if strings.TrimSpace(intent.Method) == "" {
			checks[FieldMethod] = fields.ReasonRequired
		} else {
			checks[FieldMethod] = fields.ReasonInvalidFormat
		}
	}
	return checks.err()
}

// buildPayload assembles the order body. Card data never leaves the controller.
func (c *Controller) buildPayload(intent PaymentIntent) gateway.PaymentPayload {
	method := normalizeMethod(intent.Method)
	count := 1
	if method == MethodCard {
		count = installmentCount(intent)
	}
	bump := c.upsellValue()
	return gateway.PaymentPayload{
		Token:   c.token,
		Event:   gateway.EventCheckoutFinished,
		Product: c.offer.ProductName,
		Customer: gateway.PaymentCustomer{
			Name:  c.customer.Name,
			Email: c.customer.Email,
			TaxID: c.customer.TaxID,
			Phone: c.customer.Phone,
		},
		Payment: gateway.PaymentDetails{
			Method:       method,
			Installments: count,
			ProductValue: c.offer.OfferPrice,
			BumpValue:    bump,
			TotalValue:   c.totalLocked(),
			Status:       gateway.StatusPending,
		},
		Bump: gateway.BumpDetails{
			Accepted: c.upsellTaken,
			Value:    bump,
		},
		Timestamp: c.now().Format(time.RFC3339),
	}
}

func installmentCount(intent PaymentIntent) int {
	if intent.Installments <= 0 {
		return 1
	}
	return intent.Installments
}

func normalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
