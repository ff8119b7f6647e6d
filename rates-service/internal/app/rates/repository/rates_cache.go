package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"currencyexchange/pkg/logger"
	"currencyexchange/pkg/metrics"
	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/util"
)

var (
	ErrCacheDirectoryNotFound = errors.New("cache directory not found")
	ErrFileContentNotFound    = errors.New("cache file content not found")
	ErrDataEncodingFailed     = errors.New("cache data encoding failed")
	ErrDataDecodingFailed     = errors.New("cache data decoding failed")
	ErrWriteFailed            = errors.New("cache file write failed")
)

const defaultSettingsTimeout = 3 * time.Second

// RatesCache хранит курсы в файле rates.json и выбранную валюту в SettingsRepository.
// Все изменения сериализуются через mu; файл перезаписывается целиком (read-merge-write).
type RatesCache struct {
	mu              sync.Mutex
	dir             string
	settings        SettingsRepository
	settingsTimeout time.Duration

	rates      *entity.RateSet
	ratesReady *util.Future[struct{}]

	selectedID    string
	hasSelected   bool
	selectedReady *util.Future[struct{}]

	// writeMu упорядочивает фоновые записи выбора, wg отслеживает их завершение
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

var _ RatesCacheRepository = (*RatesCache)(nil)

// NewRatesCache создает кэш и запускает однократное восстановление в фоне.
// Пустой dir означает, что cache-директория недоступна.
func NewRatesCache(dir string, settings SettingsRepository) *RatesCache {
	c := &RatesCache{
		dir:             dir,
		settings:        settings,
		settingsTimeout: defaultSettingsTimeout,
		ratesReady:      util.NewFuture[struct{}](),
		selectedReady:   util.NewFuture[struct{}](),
	}
	go c.restore()
	return c
}

// restore читает файл курсов и настройку выбранной валюты.
// Ошибки чтения превращаются в "нет кэша".
func (c *RatesCache) restore() {
	c.mu.Lock()
	rates, err := c.readRatesFile()
	if err != nil {
		if !errors.Is(err, ErrFileContentNotFound) {
			logger.Warn().Err(err).Str("dir", c.dir).Msg("Failed to restore cached rates")
		}
		rates = nil
	}
	c.rates = rates
	c.ratesReady.Resolve(struct{}{})
	c.mu.Unlock()

	logger.Debug().Int("rates", rates.Len()).Msg("Cached rates restored")

	ctx, cancel := context.WithTimeout(context.Background(), c.settingsTimeout)
	defer cancel()

	selectedID, ok, err := c.settings.GetString(ctx, entity.SelectedCurrencyIDKey)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to restore selected currency")
		ok = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Выбор, сделанный до завершения восстановления, свежее сохраненного
	if _, done := c.selectedReady.Peek(); done {
		return
	}
	c.selectedID, c.hasSelected = selectedID, ok
	c.selectedReady.Resolve(struct{}{})
}

// GetCachedRates возвращает копию сохраненного набора или nil
func (c *RatesCache) GetCachedRates(ctx context.Context) *entity.RateSet {
	if _, err := c.ratesReady.Wait(ctx); err != nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rates == nil {
		return nil
	}
	return c.rates.Clone()
}

// CacheRates сливает курсы с сохраненными (перезапись по коду) и атомарно заменяет файл
func (c *RatesCache) CacheRates(ctx context.Context, rates []entity.Rate) error {
	// Сначала дожидаемся восстановления, иначе запись затрет данные на диске
	if _, err := c.ratesReady.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := c.rates.Merge(rates)
	if err := c.writeRatesFile(merged); err != nil {
		metrics.RatesCacheWrites.WithLabelValues("failed").Inc()
		return err
	}
	c.rates = merged

	metrics.RatesCacheWrites.WithLabelValues("success").Inc()
	return nil
}

// GetCachedSelectedCurrency возвращает последний выбор пользователя
func (c *RatesCache) GetCachedSelectedCurrency(ctx context.Context) (string, bool) {
	if _, err := c.selectedReady.Wait(ctx); err != nil {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID, c.hasSelected
}

// CacheSelectedCurrency запоминает выбор сразу, а в хранилище пишет в фоне
func (c *RatesCache) CacheSelectedCurrency(ctx context.Context, currencyID string) {
	c.mu.Lock()
	c.selectedID = entity.NormalizeCurrencyID(currencyID)
	c.hasSelected = true
	c.selectedReady.Resolve(struct{}{})
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.persistSelected(context.WithoutCancel(ctx))
	}()
}

// persistSelected пишет актуальное значение выбора, поэтому порядок горутин не важен
func (c *RatesCache) persistSelected(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	selectedID := c.selectedID
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.settingsTimeout)
	defer cancel()

	if err := c.settings.SetString(ctx, entity.SelectedCurrencyIDKey, selectedID); err != nil {
		logger.Warn().Err(err).Str("currency_id", selectedID).Msg("Failed to persist selected currency")
	}
}

// Wait дожидается завершения фоновых записей
func (c *RatesCache) Wait() {
	c.wg.Wait()
}

func (c *RatesCache) filePath() (string, error) {
	if c.dir == "" {
		return "", ErrCacheDirectoryNotFound
	}
	return filepath.Join(c.dir, entity.RatesFileName), nil
}

func (c *RatesCache) readRatesFile() (*entity.RateSet, error) {
	path, err := c.filePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileContentNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrFileContentNotFound, err)
	}

	var rates entity.RateSet
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataDecodingFailed, err)
	}
	return &rates, nil
}

// writeRatesFile пишет во временный файл и переименовывает его поверх rates.json
func (c *RatesCache) writeRatesFile(rates *entity.RateSet) error {
	path, err := c.filePath()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDataEncodingFailed, err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheDirectoryNotFound, err)
	}

	tmp, err := os.CreateTemp(c.dir, entity.RatesFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}
