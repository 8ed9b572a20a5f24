// Package format renders amounts for alerts and reports.
package format

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Amount rounds v to a whole number with thousands separators: 1234567.6 -> "1,234,568"
func Amount(v float64) string {
	return printer.Sprintf("%d", int64(math.Round(v)))
}

// Price renders v with two decimals and thousands separators
func Price(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// Percent renders a ratio as a percentage with one decimal: 0.123 -> "12.3%"
func Percent(ratio float64) string {
	return printer.Sprintf("%.1f%%", ratio*100)
}

// SignedPercent is Percent with an explicit plus sign for positive values
func SignedPercent(ratio float64) string {
	if ratio > 0 {
		return "+" + Percent(ratio)
	}
	return Percent(ratio)
}
