package fields

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const currencySymbol = "R$ "

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatCurrency renders an amount in reais with pt-BR grouping and two decimals, e.g. "R$ 1.234,50".
func FormatCurrency(amount float64) string {
	rounded := math.Round(amount*100) / 100
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + currencySymbol + brPrinter.Sprint(number.Decimal(rounded, number.Scale(2)))
}

// RoundCents rounds an amount to whole centavos.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
