package core

import "strings"

const (
	USD CurrencyCode = "USD"
	EUR CurrencyCode = "EUR"
)

// DefaultCurrency is used when a stored code is not recognized.
const DefaultCurrency = USD

type CurrencyCode string

type Currency struct {
	Code        CurrencyCode
	Symbol      string
	DisplayName string
}

var currencies = map[CurrencyCode]Currency{
	USD: {Code: USD, Symbol: "$", DisplayName: "Dólar Estadounidense (USD)"},
	EUR: {Code: EUR, Symbol: "€", DisplayName: "Euro (EUR)"},
}

// LookupCurrency finds a currency by code, ignoring case.
func LookupCurrency(code string) (Currency, bool) {
	c, ok := currencies[CurrencyCode(strings.ToUpper(strings.TrimSpace(code)))]
	return c, ok
}

// CurrencyFromCode never fails; unknown codes resolve to DefaultCurrency.
func CurrencyFromCode(code string) Currency {
	if c, ok := LookupCurrency(code); ok {
		return c
	}
	return currencies[DefaultCurrency]
}

// Currencies returns every supported currency, USD first.
func Currencies() []Currency {
	return []Currency{currencies[USD], currencies[EUR]}
}
