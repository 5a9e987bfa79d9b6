package model

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ExchangeRate is how many units of TargetCurrency one unit of
// SourceCurrency costs.
type ExchangeRate struct {
	SourceCurrency Currency        `json:"sourceCurrency"`
	TargetCurrency Currency        `json:"targetCurrency"`
	Rate           decimal.Decimal `json:"rate"`
}

// RateSet is one daily fixing as published upstream.
type RateSet struct {
	TargetCurrency Currency       `json:"targetCurrency"`
	ValidFor       *time.Time     `json:"validFor,omitempty"`
	Rates          []ExchangeRate `json:"rates"`
	FetchedAt      time.Time      `json:"fetchedAt"`
}

// Find returns the rate quoted for source.
func (s *RateSet) Find(source Currency) (ExchangeRate, bool) {
	return lo.Find(s.Rates, func(r ExchangeRate) bool {
		return r.SourceCurrency == source
	})
}

// Filter returns a copy holding only the requested source currencies. An
// empty filter keeps every rate.
func (s *RateSet) Filter(sources []Currency) *RateSet {
	out := *s
	if len(sources) == 0 {
		out.Rates = append([]ExchangeRate(nil), s.Rates...)
		return &out
	}
	out.Rates = lo.Filter(s.Rates, func(r ExchangeRate, _ int) bool {
		return lo.Contains(sources, r.SourceCurrency)
	})
	return &out
}

type ConversionRequest struct {
	FromCurrency Currency        `json:"from_currency"`
	ToCurrency   Currency        `json:"to_currency"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date,omitempty"`
}

type ConversionResult struct {
	FromCurrency Currency        `json:"from_currency"`
	ToCurrency   Currency        `json:"to_currency"`
	FromAmount   decimal.Decimal `json:"from_amount"`
	ToAmount     decimal.Decimal `json:"to_amount"`
	Rate         decimal.Decimal `json:"rate"`
	ValidFor     *time.Time      `json:"valid_for,omitempty"`
}
