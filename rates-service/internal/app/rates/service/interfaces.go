package service

import (
	"context"
	"time"

	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/util"
)

// RatesServiceInterface - менеджер состояния курсов
type RatesServiceInterface interface {
	// CurrentSelectedRate мгновенно возвращает состояние выбранного курса
	CurrentSelectedRate() entity.RateState
	// CurrentCurrencies мгновенно возвращает состояние списка валют
	CurrentCurrencies() entity.CurrenciesState
	// SubscribeSelectedRate подписывает на изменения выбранного курса, первым приходит текущее значение
	SubscribeSelectedRate() *util.Subscription[entity.RateState]
	// SubscribeCurrencies подписывает на изменения списка валют
	SubscribeCurrencies() *util.Subscription[entity.CurrenciesState]
	// UpdateRates запускает цикл обновления и возвращает его ошибку
	UpdateRates(ctx context.Context) error
	// SelectRate выбирает валюту; false если валюта неизвестна или курсы не загружены
	SelectRate(ctx context.Context, currencyID string) bool
	// AwaitSelectedRate ждет первой загрузки выбранного курса
	AwaitSelectedRate(ctx context.Context) (entity.Rate, error)
	// WaitRestored ждет завершения восстановления из кэша
	WaitRestored(ctx context.Context) error
	// Restored сообщает, завершилось ли восстановление из кэша
	Restored() bool
	IsRateExpired(rate entity.Rate) bool
	ExpiryRemaining(rate entity.Rate) time.Duration
}

// RateAPIClient определяет интерфейс для взаимодействия с внешним API курсов валют
type RateAPIClient interface {
	// FetchCurrencies получает список доступных валют
	FetchCurrencies(ctx context.Context) ([]string, error)
	// FetchRates получает курсы для указанных валют
	FetchRates(ctx context.Context, currencyIDs []string) ([]entity.Rate, error)
}

// FlagsManifestFetcher загружает манифест флагов: код валюты -> URL иконки
type FlagsManifestFetcher interface {
	FetchFlagsManifest(ctx context.Context, manifestURL string) (map[string]string, error)
}

// FlagsServiceInterface возвращает URL иконки флага для валюты
type FlagsServiceInterface interface {
	FlagURL(ctx context.Context, currencyID string) (string, error)
}
