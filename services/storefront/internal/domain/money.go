package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var nairaPrinter = message.NewPrinter(language.English)

// FormatNaira renders an amount of whole naira with thousands separators,
// e.g. 1234567 → "₦1,234,567".
func FormatNaira(amount int64) string {
	return nairaPrinter.Sprintf("₦%d", amount)
}
