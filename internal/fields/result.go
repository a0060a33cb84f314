// Package fields formats and validates checkout form input.
//
// Formatters take the raw value typed by the visitor plus the previously rendered value and return
// the masked display string. Validators take a rendered value and return a Result; they never fail
// with an error.
package fields

// Reason is a machine-readable validation failure code.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonRequired        Reason = "required"
	ReasonTooShort        Reason = "too_short"
	ReasonTooLong         Reason = "too_long"
	ReasonInvalidLength   Reason = "invalid_length"
	ReasonRepeatedDigits  Reason = "repeated_digits"
	ReasonInvalidChecksum Reason = "invalid_checksum"
	ReasonInvalidMonth    Reason = "invalid_month"
	ReasonExpired         Reason = "expired"
	ReasonInvalidFormat   Reason = "invalid_format"
	ReasonInvalidTLD      Reason = "invalid_tld"
	ReasonBlockedDomain   Reason = "blocked_domain"
)

// Result is the outcome of a validator.
type Result struct {
	OK     bool   `json:"ok"`
	Reason Reason `json:"reason,omitempty"`
}

// Valid is the passing Result.
var Valid = Result{OK: true}

// Fail builds a failing Result with the given reason.
func Fail(reason Reason) Result {
	return Result{Reason: reason}
}

// Message returns the pt-BR text shown next to a field for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonRequired:
		return "Campo obrigatório."
	case ReasonTooShort:
		return "Valor muito curto."
	case ReasonTooLong:
		return "Valor muito longo."
	case ReasonInvalidLength:
		return "Quantidade de dígitos inválida."
	case ReasonRepeatedDigits, ReasonInvalidChecksum:
		return "Número inválido."
	case ReasonInvalidMonth:
		return "Mês inválido."
	case ReasonExpired:
		return "Cartão vencido."
	case ReasonInvalidFormat, ReasonInvalidTLD:
		return "Formato inválido."
	case ReasonBlockedDomain:
		return "Domínio de e-mail inválido."
	default:
		return string(r)
	}
}
