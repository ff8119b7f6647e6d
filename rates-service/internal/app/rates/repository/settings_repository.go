package repository

import (
	"context"
	"errors"
	"fmt"

	"currencyexchange/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	RedisKeyPrefixSettings = "settings:" // Префикс ключей настроек: settings:selectedCurrencyID
	metricsService         = "rates-service"
)

// settingsRepository реализует SettingsRepository поверх Redis
type settingsRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewSettingsRepository создает репозиторий настроек
func NewSettingsRepository(client *redis.Client, keyPrefix string) SettingsRepository {
	if keyPrefix == "" {
		keyPrefix = RedisKeyPrefixSettings
	}
	return &settingsRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *settingsRepository) key(key string) string {
	return r.keyPrefix + key
}

// GetString получает значение настройки из Redis
func (r *settingsRepository) GetString(ctx context.Context, key string) (string, bool, error) {
	timer := metrics.NewRedisTimer(metricsService, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(metricsService, r.keyPrefix)
			return "", false, nil
		}
		metrics.RecordRedisError(metricsService, metrics.RedisOpGet)
		return "", false, fmt.Errorf("failed to get setting %s from redis: %w", key, err)
	}

	metrics.RecordCacheHit(metricsService, r.keyPrefix)
	return value, true, nil
}

// SetString сохраняет значение настройки без TTL
func (r *settingsRepository) SetString(ctx context.Context, key, value string) error {
	timer := metrics.NewRedisTimer(metricsService, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		metrics.RecordRedisError(metricsService, metrics.RedisOpSet)
		return fmt.Errorf("failed to set setting %s in redis: %w", key, err)
	}

	return nil
}

func (r *settingsRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
