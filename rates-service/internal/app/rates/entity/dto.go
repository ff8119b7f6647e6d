package entity

import "time"

// SelectRateRequest - запрос на выбор отображаемой валюты
type SelectRateRequest struct {
	CurrencyID string `json:"currency_id" validate:"required,alpha,min=2,max=10"`
}

// ConvertRequest - параметры конвертации суммы в минимальных единицах
type ConvertRequest struct {
	Amount int64  `form:"amount" validate:"gte=0"`
	From   string `form:"from" validate:"required,alpha,min=2,max=10"`
	To     string `form:"to" validate:"required,alpha,min=2,max=10"`
	Side   string `form:"side" validate:"required,oneof=buy sell"`
}

type RateResponse struct {
	CurrencyID       string    `json:"currency_id"`
	Ask              float64   `json:"ask"`
	Bid              float64   `json:"bid"`
	Date             time.Time `json:"date"`
	Expired          bool      `json:"expired"`
	ExpiresInSeconds float64   `json:"expires_in_seconds"`
}

type SelectedRateResponse struct {
	Status LoadStatus    `json:"status"`
	Rate   *RateResponse `json:"rate,omitempty"`
}

type CurrenciesResponse struct {
	Status     LoadStatus `json:"status"`
	Currencies []string   `json:"currencies,omitempty"`
}

type ConvertResponse struct {
	Amount     int64   `json:"amount"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Side       string  `json:"side"`
	Result     int64   `json:"result"`
	RateUsed   float64 `json:"rate_used"`
	CurrencyID string  `json:"currency_id"`
}

type FlagResponse struct {
	CurrencyID string `json:"currency_id"`
	URL        string `json:"url"`
}
