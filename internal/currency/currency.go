// Package currency maps supported countries to their display currency and
// formats prices for them.
package currency

import (
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"quote-wizard/internal/model"
)

var profiles = map[model.Country]model.CurrencyProfile{
	model.CountryIndia: {
		Code:   currency.INR.String(),
		Symbol: "₹",
		Locale: "en-IN",
		Name:   "Indian Rupee",
	},
	model.CountryAustralia: {
		Code:   currency.AUD.String(),
		Symbol: "$",
		Locale: "en-AU",
		Name:   "Australian Dollar",
	},
}

// ProfileFor returns the currency profile of a country. There is no
// fallback: an unsupported country is a configuration error.
func ProfileFor(c model.Country) (model.CurrencyProfile, error) {
	p, ok := profiles[c]
	if !ok {
		return model.CurrencyProfile{}, &model.ConfigurationError{Kind: model.UnknownCountry, Value: string(c)}
	}
	return p, nil
}

// Format renders an amount with the profile's symbol and locale digit
// grouping, rounded to whole units.
func Format(p model.CurrencyProfile, amount float64) string {
	tag, err := language.Parse(p.Locale)
	if err != nil {
		tag = language.English
	}
	printer := message.NewPrinter(tag)
	rounded := math.Round(amount)
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + p.Symbol + printer.Sprintf("%v", number.Decimal(rounded, number.MaxFractionDigits(0)))
}
