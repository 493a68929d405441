package query

import (
	"github.com/asaidimu/go-folio/core/schema"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// Format renders a metric value for display. Currency always shows two
// decimals, number and percent at most two; percent values are already
// expressed in percent units.
func Format(value float64, format schema.MetricFormat) string {
	value = finite(value)
	switch format {
	case schema.MetricFormatCurrency:
		return printer.Sprint(number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	case schema.MetricFormatPercent:
		return printer.Sprint(number.Decimal(value, number.MaxFractionDigits(2))) + "%"
	default:
		return printer.Sprint(number.Decimal(value, number.MaxFractionDigits(2)))
	}
}
