package checkout

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/siege-masterclass/checkout/internal/fields"
)

var (
	// ErrCheckoutInvalidPhase indicates the command does not apply to the current phase.
	ErrCheckoutInvalidPhase = errors.New("checkout: invalid phase")
	// ErrCheckoutSubmissionInProgress indicates a payment or token call is still outstanding.
	ErrCheckoutSubmissionInProgress = errors.New("checkout: submission in progress")
	// ErrCheckoutSessionNotFound indicates the registry holds no session with the id.
	ErrCheckoutSessionNotFound = errors.New("checkout: session not found")
	// ErrCheckoutClosed indicates the session was closed.
	ErrCheckoutClosed = errors.New("checkout: session closed")
)

// Field names a form input. Values match the JSON keys the presentation layer posts.
type Field string

const (
	FieldName         Field = "nome"
	FieldPhone        Field = "celular"
	FieldTaxID        Field = "cpf"
	FieldMethod       Field = "metodo"
	FieldPix          Field = "pix"
	FieldCardNumber   Field = "numero"
	FieldHolderName   Field = "titular"
	FieldExpiry       Field = "validade"
	FieldCVV          Field = "cvv"
	FieldInstallments Field = "parcelas"
)

// ValidationError lists the fields that blocked a command.
type ValidationError struct {
	Fields map[Field]fields.Reason
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range slices.Sorted(maps.Keys(e.Fields)) {
		names = append(names, fmt.Sprintf("%s=%s", f, e.Fields[f]))
	}
	return "checkout: invalid fields [" + strings.Join(names, ", ") + "]"
}

// Unwrap lets errors.Is match fields-level validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrCheckoutValidation
}

// ErrCheckoutValidation is wrapped by every ValidationError.
var ErrCheckoutValidation = errors.New("checkout: validation failed")

type fieldChecks map[Field]fields.Reason

func (c fieldChecks) check(field Field, result fields.Result) {
	if !result.OK {
		c[field] = result.Reason
	}
}

func (c fieldChecks) err() error {
	if len(c) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[Field]fields.Reason(c)}
}
