package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"currencyexchange/pkg/logger"
	"currencyexchange/pkg/metrics"
	"currencyexchange/rates-service/internal/app/rates/entity"
)

const (
	// DefaultBaseURL - адрес API курсов по умолчанию
	DefaultBaseURL = "https://api.dolarapp.dev/v1"

	currenciesPath = "tickers-currencies"
	tickersPath    = "tickers"

	ratesAttempts      = 3
	currenciesAttempts = 1
	flagsAttempts      = 1

	endpointCurrencies = "currencies"
	endpointTickers    = "tickers"
	endpointFlags      = "flags"
)

// MockCurrencies - список валют, который отдает эмуляция загрузки
var MockCurrencies = []string{"MXN", "ARS", "BRL", "COP"}

// CurrencyLoadMock подменяет загрузку списка валют фиксированным ответом с задержкой
type CurrencyLoadMock struct {
	enabled bool
	delay   time.Duration
}

// EmulateCurrencyLoad возвращает MockCurrencies через delay, не обращаясь к сети
func EmulateCurrencyLoad(delay time.Duration) CurrencyLoadMock {
	return CurrencyLoadMock{enabled: true, delay: delay}
}

// DisabledCurrencyLoadMock - загрузка списка валют идет через API
func DisabledCurrencyLoadMock() CurrencyLoadMock {
	return CurrencyLoadMock{}
}

func (m CurrencyLoadMock) Enabled() bool {
	return m.enabled
}

// RateAPIClientImpl реализует RateAPIClient и FlagsManifestFetcher.
// Все запросы идут через fetch: построение запроса, ограниченные повторы, чтение тела.
type RateAPIClientImpl struct {
	baseURL      *url.URL
	httpClient   *http.Client
	retryDelay   time.Duration
	currencyMock CurrencyLoadMock
}

var (
	_ RateAPIClient        = (*RateAPIClientImpl)(nil)
	_ FlagsManifestFetcher = (*RateAPIClientImpl)(nil)
)

// NewRateAPIClient создает HTTP клиент для API курсов валют
func NewRateAPIClient(baseURL string, timeout, retryDelay time.Duration, currencyMock CurrencyLoadMock) (*RateAPIClientImpl, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := parseHTTPURL(baseURL)
	if err != nil {
		return nil, err
	}
	// Пути эндпоинтов присоединяются относительно версии API
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return &RateAPIClientImpl{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelay:   retryDelay,
		currencyMock: currencyMock,
	}, nil
}

// FetchCurrencies получает список валют. В production делается одна попытка без повторов.
func (c *RateAPIClientImpl) FetchCurrencies(ctx context.Context) ([]string, error) {
	if c.currencyMock.enabled {
		return c.loadMockCurrencies(ctx)
	}

	body, err := c.fetch(ctx, c.endpointURL(currenciesPath, nil), currenciesAttempts, endpointCurrencies)
	if err != nil {
		return nil, err
	}

	var currencies []string
	if err := json.Unmarshal(body, &currencies); err != nil {
		metrics.RateAPIRequests.WithLabelValues(endpointCurrencies, "decode_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrDataDecodingFailed, err)
	}

	for i, currencyID := range currencies {
		currencies[i] = entity.NormalizeCurrencyID(currencyID)
	}

	return currencies, nil
}

// FetchRates получает курсы для валют. Сетевые ошибки повторяются до трех попыток,
// ошибка декодирования любого элемента прерывает весь пакет без повторов.
func (c *RateAPIClientImpl) FetchRates(ctx context.Context, currencyIDs []string) ([]entity.Rate, error) {
	if len(currencyIDs) == 0 {
		return []entity.Rate{}, nil
	}

	query := url.Values{}
	query.Set("currencies", strings.Join(currencyIDs, ","))

	body, err := c.fetch(ctx, c.endpointURL(tickersPath, query), ratesAttempts, endpointTickers)
	if err != nil {
		return nil, err
	}

	var rates []entity.Rate
	if err := json.Unmarshal(body, &rates); err != nil {
		metrics.RateAPIRequests.WithLabelValues(endpointTickers, "decode_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrRateDecodingFailed, err)
	}

	return rates, nil
}

// FetchFlagsManifest загружает манифест флагов одной попыткой
func (c *RateAPIClientImpl) FetchFlagsManifest(ctx context.Context, manifestURL string) (map[string]string, error) {
	parsed, err := parseHTTPURL(manifestURL)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, parsed, flagsAttempts, endpointFlags)
	if err != nil {
		return nil, err
	}

	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		metrics.RateAPIRequests.WithLabelValues(endpointFlags, "decode_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrDataDecodingFailed, err)
	}

	return manifest, nil
}

func (c *RateAPIClientImpl) loadMockCurrencies(ctx context.Context) ([]string, error) {
	timer := time.NewTimer(c.currencyMock.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		currencies := make([]string, len(MockCurrencies))
		copy(currencies, MockCurrencies)
		return currencies, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrMockLoadingFailed, ctx.Err())
	}
}

func (c *RateAPIClientImpl) endpointURL(path string, query url.Values) *url.URL {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if query != nil {
		// Запятые в списке валют оставляем как есть
		u.RawQuery = strings.ReplaceAll(query.Encode(), "%2C", ",")
	}
	return u
}

// fetch выполняет GET с ограниченным числом попыток.
// Повторяются только сетевые ошибки; любой полученный ответ с кодом не 200 возвращается сразу.
func (c *RateAPIClientImpl) fetch(ctx context.Context, u *url.URL, attempts int, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && c.retryDelay > 0 {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrDataFetchingFailed, ctx.Err())
			}
		}

		body, err := c.do(ctx, u, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *statusError
		if errors.As(err, &statusErr) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Msg("Rate API request failed")
	}

	return nil, fmt.Errorf("%w: %w", ErrDataFetchingFailed, lastErr)
}

func (c *RateAPIClientImpl) do(ctx context.Context, u *url.URL, endpoint string) ([]byte, error) {
	timer := metrics.NewAPITimer(endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		timer.Observe("transport_error")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timer.Observe("transport_error")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		timer.Observe("http_error")
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		timer.Observe("transport_error")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	timer.Observe("success")
	return body, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.code, e.body)
}

func parseHTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return parsed, nil
}
