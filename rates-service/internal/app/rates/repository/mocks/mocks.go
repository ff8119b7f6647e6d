package mocks

import (
	"context"

	"currencyexchange/rates-service/internal/app/rates/entity"

	"github.com/stretchr/testify/mock"
)

// MockSettingsRepository мок для SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetString(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSettingsRepository) SetString(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSettingsRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRatesCacheRepository мок для RatesCacheRepository
type MockRatesCacheRepository struct {
	mock.Mock
}

func (m *MockRatesCacheRepository) GetCachedRates(ctx context.Context) *entity.RateSet {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.RateSet)
}

func (m *MockRatesCacheRepository) CacheRates(ctx context.Context, rates []entity.Rate) error {
	args := m.Called(ctx, rates)
	return args.Error(0)
}

func (m *MockRatesCacheRepository) GetCachedSelectedCurrency(ctx context.Context) (string, bool) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1)
}

func (m *MockRatesCacheRepository) CacheSelectedCurrency(ctx context.Context, currencyID string) {
	m.Called(ctx, currencyID)
}

// MockRateAPIClient мок для RateAPIClient
type MockRateAPIClient struct {
	mock.Mock
}

func (m *MockRateAPIClient) FetchCurrencies(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRateAPIClient) FetchRates(ctx context.Context, currencyIDs []string) ([]entity.Rate, error) {
	args := m.Called(ctx, currencyIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Rate), args.Error(1)
}
