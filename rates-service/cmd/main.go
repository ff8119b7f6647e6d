package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"currencyexchange/pkg/logger"
	"currencyexchange/rates-service/internal/app/rates/config"
	"currencyexchange/rates-service/internal/app/rates/handler"
	"currencyexchange/rates-service/internal/app/rates/infrastructure/messaging"
	"currencyexchange/rates-service/internal/app/rates/processor"
	"currencyexchange/rates-service/internal/app/rates/repository"
	"currencyexchange/rates-service/internal/app/rates/service"

	"github.com/redis/go-redis/v9"
)

const serviceName = "rates-service"

func main() {
	// === ИНИЦИАЛИЗАЦИЯ КОНФИГУРАЦИИ ===
	cfg, err := config.Load()
	if err != nil {
		logger.Init(serviceName, "info")
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	// === ИНИЦИАЛИЗАЦИЯ ЛОГГЕРА ===
	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, serviceName, cfg.Log.Level); err != nil {
			logger.Init(serviceName, cfg.Log.Level)
			logger.Warn().Err(err).Str("addr", cfg.Log.LogstashAddr).Msg("Logstash unavailable, logging to stdout")
		}
	} else {
		logger.Init(serviceName, cfg.Log.Level)
	}
	logger.Info().Msg("Starting Rates Service...")

	// Создаем основной контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ПОДКЛЮЧЕНИЕ К REDIS ===
	// Redis хранит настройки пользователя (выбранную валюту)
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.Redis.Address()).Msg("Successfully connected to Redis")

	// === ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ ===
	if cfg.Cache.Dir != "" {
		if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Cache.Dir).Msg("Failed to create cache directory")
		}
	}
	settingsRepo := repository.NewSettingsRepository(redisClient, cfg.Redis.KeyPrefix)
	ratesCache := repository.NewRatesCache(cfg.Cache.Dir, settingsRepo)
	logger.Info().Str("cache_dir", cfg.Cache.Dir).Msg("Repositories initialized")

	// === ИНИЦИАЛИЗАЦИЯ API КЛИЕНТА ===
	currencyMock := service.DisabledCurrencyLoadMock()
	if cfg.RateAPI.CurrencyMockEnabled {
		currencyMock = service.EmulateCurrencyLoad(cfg.RateAPI.CurrencyMockDelay)
	}
	apiClient, err := service.NewRateAPIClient(
		cfg.RateAPI.BaseURL,
		cfg.RateAPI.Timeout,
		cfg.RateAPI.RetryDelay,
		currencyMock,
	)
	if err != nil {
		logger.Fatal().Err(err).Str("base_url", cfg.RateAPI.BaseURL).Msg("Failed to init rate API client")
	}
	logger.Info().
		Str("base_url", cfg.RateAPI.BaseURL).
		Bool("currency_mock", currencyMock.Enabled()).
		Msg("Rate API client initialized")

	// === ИНИЦИАЛИЗАЦИЯ СЕРВИСОВ ===
	ratesService := service.NewRatesService(ratesCache, apiClient)
	flagsService := service.NewFlagsService(apiClient, cfg.Flags.ManifestURL)
	converter := service.NewCurrencyConverter()
	logger.Info().Msg("Services initialized")

	// === ИНИЦИАЛИЗАЦИЯ KAFKA PRODUCER ===
	var eventsPublisher *processor.RateEventsPublisher
	if cfg.Kafka.Enabled {
		producer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		eventsPublisher = processor.NewRateEventsPublisher(ratesService, producer)
		eventsPublisher.Start(ctx)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Rate events publisher started")
	}

	// === ИНИЦИАЛИЗАЦИЯ CRON SCHEDULER ===
	cronScheduler := processor.NewCronScheduler(ratesService)

	// Запускаем cron для периодического обновления курсов
	if err := cronScheduler.Start(ctx, cfg.CronSchedule.UpdateRates); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start cron scheduler")
	}
	logger.Info().Str("schedule", cfg.CronSchedule.UpdateRates).Msg("Cron scheduler started")

	// === ИНИЦИАЛИЗАЦИЯ HTTP СЕРВЕРА ===
	ratesHandler := handler.NewRatesHandler(ratesService, flagsService, converter)
	healthHandler := handler.NewHealthCheckHandler(settingsRepo, ratesService)
	router := handler.SetupRoutes(ratesHandler, healthHandler)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем HTTP сервер в отдельной горутине
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// === ЗАПУСК ЗАВЕРШЕН ===
	logger.Info().Msg("Rates Service is running")

	// === GRACEFUL SHUTDOWN ===
	// Ожидаем сигнала завершения (SIGINT или SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Rates Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// SSE стримы завершатся после закрытия подписок, поэтому сервисы закрываем до ожидания сервера
	ratesService.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cronScheduler.Stop()
	cancel()

	if eventsPublisher != nil {
		if err := eventsPublisher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}

	// Дожидаемся фоновых записей в кэш
	ratesService.Wait()
	ratesCache.Wait()

	logger.Info().Msg("Rates Service stopped gracefully")
}

// connectRedis устанавливает соединение с Redis
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Проверяем соединение с retry logic
	var err error
	for i := 0; i < 10; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to Redis")
		time.Sleep(3 * time.Second)
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after 10 attempts: %w", err)
}
