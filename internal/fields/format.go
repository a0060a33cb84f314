package fields

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/siege-masterclass/checkout/internal/cards"
)

const (
	maxPhoneDigits  = 11
	maxCPFDigits    = 11
	maxCardDigits   = 16
	maxExpiryDigits = 4
)

var namePolicy = bluemonday.StrictPolicy()

// Digits keeps only the ASCII digits of value.
func Digits(value string) string {
	return cards.Digits(value)
}

// CleanName strips markup from a person's name and collapses whitespace.
func CleanName(raw string) string {
	return strings.Join(strings.Fields(namePolicy.Sanitize(raw)), " ")
}

// FormatPhone renders a Brazilian mobile number as "(DD) NNNNN-NNNN", using the four digit
// prefix variant until the eleventh digit is typed.
func FormatPhone(raw, previous string) string {
	d := editDigits(raw, previous, maxPhoneDigits)
	switch n := len(d); {
	case n == 0:
		return ""
	case n <= 2:
		return "(" + d
	case n <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case n <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// FormatCPF renders a tax id progressively as "XXX.XXX.XXX-XX".
func FormatCPF(raw, previous string) string {
	d := editDigits(raw, previous, maxCPFDigits)
	switch n := len(d); {
	case n <= 3:
		return d
	case n <= 6:
		return d[:3] + "." + d[3:]
	case n <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}

// FormatCardNumber groups card digits in blocks of four.
func FormatCardNumber(raw, previous string) string {
	d := editDigits(raw, previous, maxCardDigits)
	var b strings.Builder
	for i := 0; i < len(d); i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(d[i])
	}
	return b.String()
}

// FormatExpiry renders "MM/YY" once more than two digits are present.
func FormatExpiry(raw, previous string) string {
	d := editDigits(raw, previous, maxExpiryDigits)
	if len(d) <= 2 {
		return d
	}
	return d[:2] + "/" + d[2:]
}

// FormatCVV keeps as many digits as the card brand accepts.
func FormatCVV(raw, previous string, brand cards.Brand) string {
	return editDigits(raw, previous, cards.CVVLength(brand))
}

// editDigits extracts at most limit digits from raw. When raw is previous with exactly one separator
// erased, the digit before that separator is dropped as well.
func editDigits(raw, previous string, limit int) string {
	d := Digits(raw)
	if d != "" && erasedSeparator(raw, previous) {
		d = d[:len(d)-1]
	}
	if len(d) > limit {
		d = d[:limit]
	}
	return d
}

// erasedSeparator reports whether raw equals previous minus a single non-digit character.
func erasedSeparator(raw, previous string) bool {
	if len(previous)-len(raw) != 1 {
		return false
	}
	i := 0
	for i < len(raw) && raw[i] == previous[i] {
		i++
	}
	c := previous[i]
	return (c < '0' || c > '9') && previous[i+1:] == raw[i:]
}
