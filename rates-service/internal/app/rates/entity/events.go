package entity

import "time"

const (
	EventTypeSelectedRateChanged = "SELECTED_RATE_CHANGED"
	EventTypeCurrenciesUpdated   = "CURRENCIES_UPDATED"
	EventTypeRatesLoadingFailed  = "RATES_LOADING_FAILED"
)

// RateEvent - событие об изменении состояния курсов, публикуется в Kafka
type RateEvent struct {
	EventType    string    `json:"event_type"`
	HomeCurrency string    `json:"home_currency"`
	Rate         *Rate     `json:"rate,omitempty"`
	Currencies   []string  `json:"currencies,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
