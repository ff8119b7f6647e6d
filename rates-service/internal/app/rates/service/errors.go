package service

import "errors"

// Ошибки клиента внешнего API
var (
	ErrInvalidURL         = errors.New("invalid url")
	ErrDataFetchingFailed = errors.New("data fetching failed")
	ErrRateDecodingFailed = errors.New("rate decoding failed")
	ErrDataDecodingFailed = errors.New("data decoding failed")
	ErrMockLoadingFailed  = errors.New("mock loading failed")
)

// Ошибки менеджера курсов. Подписчики видят только ErrLoadingFailed.
var (
	ErrLoadingFailed         = errors.New("rates loading failed")
	ErrEmptyCurrencies       = errors.New("currency list is empty")
	ErrEmptyRates            = errors.New("rate list is empty")
	ErrSelectedRateNotLoaded = errors.New("selected rate not loaded")
)

// Ошибки конвертера и флагов
var (
	ErrUnsupportedPair  = errors.New("currency pair is not supported by rate")
	ErrAmountOutOfRange = errors.New("converted amount is out of range")
	ErrFlagNotFound     = errors.New("flag not found")
)
