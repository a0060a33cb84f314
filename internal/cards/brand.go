// Package cards classifies payment card numbers by brand.
package cards

import "strings"

// Brand identifies a card network.
type Brand string

const (
	BrandVisa       Brand = "visa"
	BrandMastercard Brand = "mastercard"
	BrandAmex       Brand = "amex"
	BrandElo        Brand = "elo"
	BrandUnknown    Brand = "unknown"
)

// eloPrefixes is checked after visa, mastercard and amex, so entries starting with 4 never match.
var eloPrefixes = []string{
	"636368",
	"438935",
	"504175",
	"451416",
	"636297",
	"506699",
	"5067",
	"4576",
	"4011",
	"6063",
}

// Classify maps a card number to its brand. Non-digit characters are ignored.
func Classify(number string) Brand {
	digits := Digits(number)
	if digits == "" {
		return BrandUnknown
	}

	switch {
	case digits[0] == '4':
		return BrandVisa
	case hasRangePrefix(digits, '5', '1', '5') || hasRangePrefix(digits, '2', '2', '7'):
		return BrandMastercard
	case strings.HasPrefix(digits, "34") || strings.HasPrefix(digits, "37"):
		return BrandAmex
	}

	for _, prefix := range eloPrefixes {
		if strings.HasPrefix(digits, prefix) {
			return BrandElo
		}
	}
	return BrandUnknown
}

// CVVLength returns the number of security code digits the brand requires.
func CVVLength(brand Brand) int {
	if brand == BrandAmex {
		return 4
	}
	return 3
}

// CVVLabel returns the on-screen label for the security code field.
func CVVLabel(brand Brand) string {
	if brand == BrandAmex {
		return "CID"
	}
	return "CVV"
}

// Valid reports whether the brand is one of the known values.
func (b Brand) Valid() bool {
	switch b {
	case BrandVisa, BrandMastercard, BrandAmex, BrandElo, BrandUnknown:
		return true
	default:
		return false
	}
}

func hasRangePrefix(digits string, first, low, high byte) bool {
	if len(digits) < 2 || digits[0] != first {
		return false
	}
	return digits[1] >= low && digits[1] <= high
}

// Digits keeps only the ASCII digits of value.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
