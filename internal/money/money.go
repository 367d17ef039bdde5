// Package money formats USD and PEN amounts for display.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	USD = "USD"
	PEN = "PEN"
)

var printer = message.NewPrinter(language.English)

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatUSD renders an amount as "$1,234.50".
func FormatUSD(v float64) string {
	return format("$", v)
}

// FormatPEN renders an amount as "S/. 1,234.50".
func FormatPEN(v float64) string {
	return format("S/. ", v)
}

// Format renders v in the given currency code. Unknown codes are appended after the number.
func Format(currency string, v float64) string {
	switch currency {
	case USD:
		return FormatUSD(v)
	case PEN:
		return FormatPEN(v)
	default:
		return format("", v) + " " + currency
	}
}

func format(symbol string, v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + symbol + printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}
