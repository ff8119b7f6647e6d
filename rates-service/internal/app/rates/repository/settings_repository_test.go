package repository

import (
	"context"
	"testing"

	"currencyexchange/rates-service/internal/app/rates/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SettingsRepositoryTestSuite тестовый suite для Redis репозитория настроек
type SettingsRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	repo      SettingsRepository
}

func TestSettingsRepositorySuite(t *testing.T) {
	suite.Run(t, new(SettingsRepositoryTestSuite))
}

func (s *SettingsRepositoryTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.miniRedis.Addr(),
	})

	s.repo = NewSettingsRepository(s.client, "")
}

func (s *SettingsRepositoryTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *SettingsRepositoryTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

// ===================== GetString Tests =====================

func (s *SettingsRepositoryTestSuite) TestGetString_NotFound() {
	value, ok, err := s.repo.GetString(context.Background(), entity.SelectedCurrencyIDKey)

	s.NoError(err)
	s.False(ok)
	s.Empty(value)
}

func (s *SettingsRepositoryTestSuite) TestGetString_Success() {
	s.miniRedis.Set("settings:selectedCurrencyID", "ARS")

	value, ok, err := s.repo.GetString(context.Background(), entity.SelectedCurrencyIDKey)

	s.NoError(err)
	s.True(ok)
	s.Equal("ARS", value)
}

// ===================== SetString Tests =====================

func (s *SettingsRepositoryTestSuite) TestSetString_Overwrite() {
	ctx := context.Background()

	s.NoError(s.repo.SetString(ctx, entity.SelectedCurrencyIDKey, "MXN"))
	s.NoError(s.repo.SetString(ctx, entity.SelectedCurrencyIDKey, "BRL"))

	stored, err := s.miniRedis.Get("settings:selectedCurrencyID")
	s.NoError(err)
	s.Equal("BRL", stored)
	s.Equal(0, int(s.miniRedis.TTL("settings:selectedCurrencyID")))
}

func (s *SettingsRepositoryTestSuite) TestCustomPrefix() {
	repo := NewSettingsRepository(s.client, "app:")

	s.NoError(repo.SetString(context.Background(), entity.SelectedCurrencyIDKey, "COP"))

	s.True(s.miniRedis.Exists("app:selectedCurrencyID"))
}

func (s *SettingsRepositoryTestSuite) TestRedisUnavailable() {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer client.Close()
	repo := NewSettingsRepository(client, "")

	_, _, err := repo.GetString(context.Background(), entity.SelectedCurrencyIDKey)
	s.Error(err)
	s.Error(repo.SetString(context.Background(), entity.SelectedCurrencyIDKey, "MXN"))
	s.Error(repo.Ping(context.Background()))
}
