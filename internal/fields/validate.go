package fields

import (
	"strconv"
	"time"

	"github.com/siege-masterclass/checkout/internal/cards"
)

const (
	minPhoneDigits = 10
	minCardDigits  = 13
	maxCardLength  = 19
)

// ValidatePhone accepts 10 or 11 digit numbers including the area code.
func ValidatePhone(value string) Result {
	switch n := len(Digits(value)); {
	case n == 0:
		return Fail(ReasonRequired)
	case n < minPhoneDigits:
		return Fail(ReasonTooShort)
	case n > maxPhoneDigits:
		return Fail(ReasonTooLong)
	}
	return Valid
}

// ValidateCPF applies the modulo 11 check digit algorithm.
func ValidateCPF(value string) Result {
	d := Digits(value)
	if d == "" {
		return Fail(ReasonRequired)
	}
	if len(d) != maxCPFDigits {
		return Fail(ReasonInvalidLength)
	}
	if allSame(d) {
		return Fail(ReasonRepeatedDigits)
	}
	if cpfCheckDigit(d[:9]) != d[9] || cpfCheckDigit(d[:10]) != d[10] {
		return Fail(ReasonInvalidChecksum)
	}
	return Valid
}

// cpfCheckDigit weighs the prefix from len+1 down to 2 and maps a remainder of 10 to 0.
func cpfCheckDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return byte('0' + rest)
}

// CPFCheckDigits returns the two check digits for a nine digit CPF base.
func CPFCheckDigits(base string) string {
	d := Digits(base)
	if len(d) != 9 {
		return ""
	}
	first := cpfCheckDigit(d)
	second := cpfCheckDigit(d + string(first))
	return string([]byte{first, second})
}

// ValidateCardNumber requires at least 13 digits.
func ValidateCardNumber(value string) Result {
	switch n := len(Digits(value)); {
	case n == 0:
		return Fail(ReasonRequired)
	case n < minCardDigits:
		return Fail(ReasonTooShort)
	case n > maxCardLength:
		return Fail(ReasonTooLong)
	}
	return Valid
}

// ValidateName requires a non-empty name once markup and extra whitespace are removed.
func ValidateName(value string) Result {
	if CleanName(value) == "" {
		return Fail(ReasonRequired)
	}
	return Valid
}

// ValidateHolderName applies the name rule to the printed card holder.
func ValidateHolderName(value string) Result {
	return ValidateName(value)
}

// ValidateExpiry accepts "MM/YY" values whose year-month is strictly after now's.
func ValidateExpiry(value string, now time.Time) Result {
	d := Digits(value)
	if d == "" {
		return Fail(ReasonRequired)
	}
	if len(d) != maxExpiryDigits {
		return Fail(ReasonInvalidLength)
	}
	month, _ := strconv.Atoi(d[:2])
	if month < 1 || month > 12 {
		return Fail(ReasonInvalidMonth)
	}
	yy, _ := strconv.Atoi(d[2:])
	year := 2000 + yy

	nowYear, nowMonth := now.Year(), int(now.Month())
	if year < nowYear || (year == nowYear && month <= nowMonth) {
		return Fail(ReasonExpired)
	}
	return Valid
}

// ValidateCVV requires exactly the number of digits the brand uses.
func ValidateCVV(value string, brand cards.Brand) Result {
	n := len(Digits(value))
	if n == 0 {
		return Fail(ReasonRequired)
	}
	if n != cards.CVVLength(brand) {
		return Fail(ReasonInvalidLength)
	}
	return Valid
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}
