package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ConfigPathEnv - необязательный путь к YAML файлу конфигурации
const ConfigPathEnv = "RATES_CONFIG_PATH"

// cacheDirName - поддиректория приложения в системной cache-директории
const cacheDirName = "currency-exchange"

// Config содержит все настройки Rates Service
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	RateAPI      RateAPIConfig      `yaml:"rate_api"`
	Cache        CacheConfig        `yaml:"cache"`
	Flags        FlagsConfig        `yaml:"flags"`
	CronSchedule CronScheduleConfig `yaml:"cron_schedule"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
}

// RedisConfig - настройки подключения к Redis
// Используется как долговременное хранилище настроек (выбранная валюта)
type RedisConfig struct {
	Host      string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port      string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"2"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"settings:"`
}

// KafkaConfig - публикация событий об изменении курсов
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"rate_events"`
}

// RateAPIConfig - настройки внешнего API курсов
type RateAPIConfig struct {
	BaseURL             string        `yaml:"base_url" env:"RATE_API_BASE_URL" env-default:"https://api.dolarapp.dev/v1"`
	Timeout             time.Duration `yaml:"timeout" env:"RATE_API_TIMEOUT" env-default:"10s"`
	RetryDelay          time.Duration `yaml:"retry_delay" env:"RATE_API_RETRY_DELAY" env-default:"500ms"`
	CurrencyMockEnabled bool          `yaml:"currency_mock_enabled" env:"RATE_API_CURRENCY_MOCK_ENABLED" env-default:"false"`
	CurrencyMockDelay   time.Duration `yaml:"currency_mock_delay" env:"RATE_API_CURRENCY_MOCK_DELAY" env-default:"1s"`
}

// CacheConfig - локальный файловый кэш курсов
type CacheConfig struct {
	Dir string `yaml:"dir" env:"CACHE_DIR"` // По умолчанию <UserCacheDir>/currency-exchange
}

// FlagsConfig - манифест иконок флагов
type FlagsConfig struct {
	ManifestURL string `yaml:"manifest_url" env:"FLAGS_MANIFEST_URL" env-default:"https://raw.githubusercontent.com/Ssimboss/CurrencyExchangeApp/refs/heads/main/flags.json"`
}

// CronScheduleConfig - настройки расписания cron задач
type CronScheduleConfig struct {
	UpdateRates string `yaml:"update_rates" env:"CRON_UPDATE_RATES" env-default:"*/15 * * * *"` // Каждые 15 минут
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	LogstashAddr string `yaml:"logstash_addr" env:"LOGSTASH_ADDR"`
}

// Load загружает конфигурацию: .env (если есть), YAML из RATES_CONFIG_PATH (если задан),
// затем переменные окружения поверх
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = defaultCacheDir()
	}

	return &cfg, nil
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Address возвращает адрес HTTP сервера
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// defaultCacheDir возвращает пустую строку, если системная cache-директория не определена
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, cacheDirName)
}
