package models

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatVND renders an amount rounded to whole dong with comma grouping,
// e.g. "1,250,000 VNĐ".
func FormatVND(amount decimal.Decimal) string {
	return moneyPrinter.Sprintf("%d VNĐ", amount.Round(0).IntPart())
}
