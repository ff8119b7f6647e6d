package service

import (
	"context"
	"fmt"
	"sync"

	"currencyexchange/pkg/logger"
	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/util"
)

// DefaultFlagsManifestURL - манифест иконок флагов по умолчанию
const DefaultFlagsManifestURL = "https://raw.githubusercontent.com/Ssimboss/CurrencyExchangeApp/refs/heads/main/flags.json"

type manifestResult = entity.Result[map[string]string]

// FlagsService загружает манифест флагов один раз. Вызовы до окончания загрузки ждут ее,
// после ошибки следующий вызов запускает повторную загрузку.
type FlagsService struct {
	fetcher     FlagsManifestFetcher
	manifestURL string

	mu       sync.Mutex
	manifest *util.Future[manifestResult]
}

var _ FlagsServiceInterface = (*FlagsService)(nil)

// NewFlagsService создает сервис и сразу начинает загрузку манифеста
func NewFlagsService(fetcher FlagsManifestFetcher, manifestURL string) *FlagsService {
	if manifestURL == "" {
		manifestURL = DefaultFlagsManifestURL
	}

	s := &FlagsService{
		fetcher:     fetcher,
		manifestURL: manifestURL,
	}

	s.mu.Lock()
	s.startLoadLocked()
	s.mu.Unlock()

	return s
}

// FlagURL возвращает URL иконки флага валюты
func (s *FlagsService) FlagURL(ctx context.Context, currencyID string) (string, error) {
	s.mu.Lock()
	manifest := s.manifest
	if result, ok := manifest.Peek(); ok && !result.IsSuccess() {
		manifest = s.startLoadLocked()
	}
	s.mu.Unlock()

	result, err := manifest.Wait(ctx)
	if err != nil {
		return "", err
	}
	if !result.IsSuccess() {
		return "", result.Err
	}

	currencyID = entity.NormalizeCurrencyID(currencyID)
	url, ok := result.Value[currencyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFlagNotFound, currencyID)
	}
	return url, nil
}

func (s *FlagsService) startLoadLocked() *util.Future[manifestResult] {
	future := util.NewFuture[manifestResult]()
	s.manifest = future

	go func() {
		raw, err := s.fetcher.FetchFlagsManifest(context.Background(), s.manifestURL)
		if err != nil {
			logger.Warn().Err(err).Str("url", s.manifestURL).Msg("Failed to load flags manifest")
			future.Resolve(entity.Failure[map[string]string](err))
			return
		}

		manifest := make(map[string]string, len(raw))
		for currencyID, url := range raw {
			manifest[entity.NormalizeCurrencyID(currencyID)] = url
		}
		logger.Debug().Int("flags", len(manifest)).Msg("Flags manifest loaded")
		future.Resolve(entity.Success(manifest))
	}()

	return future
}
