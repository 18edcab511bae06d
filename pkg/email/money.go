package email

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatAmount renders an amount in minor units, e.g. 1349 "usd" as "$ 13.49".
// Unknown currency codes fall back to the upper-cased code and two decimals.
func FormatAmount(tag language.Tag, amount int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return strings.ToUpper(code) + " " + decimal.New(amount, -2).StringFixed(2)
	}
	scale, _ := currency.Standard.Rounding(unit)
	major := decimal.New(amount, -int32(scale)).InexactFloat64()
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(major)))
}
