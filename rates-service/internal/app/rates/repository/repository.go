package repository

import (
	"context"

	"currencyexchange/rates-service/internal/app/rates/entity"
)

// SettingsRepository интерфейс для долговременного key/value хранилища настроек
type SettingsRepository interface {
	// GetString возвращает значение ключа; ok=false если ключа нет
	GetString(ctx context.Context, key string) (value string, ok bool, err error)

	// SetString сохраняет значение ключа
	SetString(ctx context.Context, key, value string) error

	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error
}

// RatesCacheRepository - локальный кэш последних известных курсов и выбранной валюты.
// Чтения до завершения первичного восстановления блокируются, а не возвращают "пусто".
type RatesCacheRepository interface {
	// GetCachedRates возвращает сохраненный набор курсов или nil
	GetCachedRates(ctx context.Context) *entity.RateSet

	// CacheRates сливает курсы с сохраненным набором и перезаписывает файл
	CacheRates(ctx context.Context, rates []entity.Rate) error

	// GetCachedSelectedCurrency возвращает последнюю выбранную валюту
	GetCachedSelectedCurrency(ctx context.Context) (string, bool)

	// CacheSelectedCurrency сохраняет выбор в фоне и не блокируется на хранилище, ошибки только логируются
	CacheSelectedCurrency(ctx context.Context, currencyID string)
}
