package model

import "strings"

type Currency string

// CZK is the target currency of every rate the CNB publishes.
const CZK Currency = "CZK"

const (
	AUD Currency = "AUD"
	BRL Currency = "BRL"
	BGN Currency = "BGN"
	CNY Currency = "CNY"
	DKK Currency = "DKK"
	EUR Currency = "EUR"
	PHP Currency = "PHP"
	HKD Currency = "HKD"
	INR Currency = "INR"
	IDR Currency = "IDR"
	ISK Currency = "ISK"
	ILS Currency = "ILS"
	JPY Currency = "JPY"
	ZAR Currency = "ZAR"
	CAD Currency = "CAD"
	KRW Currency = "KRW"
	HUF Currency = "HUF"
	MYR Currency = "MYR"
	MXN Currency = "MXN"
	XDR Currency = "XDR"
	NOK Currency = "NOK"
	NZD Currency = "NZD"
	PLN Currency = "PLN"
	RON Currency = "RON"
	SGD Currency = "SGD"
	SEK Currency = "SEK"
	CHF Currency = "CHF"
	THB Currency = "THB"
	TRY Currency = "TRY"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

// SupportedCurrencies is the CNB daily fixing list plus CZK itself.
var SupportedCurrencies = []Currency{
	CZK, AUD, BRL, BGN, CNY, DKK, EUR, PHP, HKD, INR, IDR, ISK, ILS, JPY, ZAR, CAD,
	KRW, HUF, MYR, MXN, XDR, NOK, NZD, PLN, RON, SGD, SEK, CHF, THB, TRY, USD, GBP,
}

// ParseCurrency normalizes user input such as " usd " to USD.
func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

func (c Currency) IsSupported() bool {
	for _, supportedCurrency := range SupportedCurrencies {
		if c == supportedCurrency {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}
