package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"currencyexchange/pkg/logger"
	"currencyexchange/pkg/metrics"
	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/repository"
	"currencyexchange/rates-service/internal/app/rates/util"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const updateCycleKey = "update-rates"

// Option настраивает RatesService
type Option func(*RatesService)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(s *RatesService) {
		s.now = now
	}
}

// RatesService - владелец состояния курсов в памяти.
// Согласует кэш и внешний API, раздает текущее состояние и потоки обновлений подписчикам.
// Все переходы состояния выполняются под mu, поэтому наблюдатели не видят промежуточных значений.
type RatesService struct {
	cache  repository.RatesCacheRepository
	client RateAPIClient
	now    func() time.Time

	mu           sync.Mutex
	rates        entity.RateSetState
	currencies   entity.CurrenciesState
	selectedRate entity.RateState

	selectedRateSubs *util.Broadcaster[entity.RateState]
	currenciesSubs   *util.Broadcaster[entity.CurrenciesState]

	firstSelectedRate *util.Future[entity.Result[entity.Rate]]
	restored          *util.Future[struct{}]

	updates singleflight.Group
	// wg отслеживает восстановление, циклы обновления и фоновое сохранение
	wg sync.WaitGroup

	// Очередь сохранения курсов, защищена mu. Пишет один worker, в порядке циклов.
	persistQueue []persistItem
	persisting   bool
}

type persistItem struct {
	ctx   context.Context
	rates []entity.Rate
}

var _ RatesServiceInterface = (*RatesService)(nil)

// NewRatesService создает менеджер и запускает восстановление из кэша в фоне
func NewRatesService(cache repository.RatesCacheRepository, client RateAPIClient, opts ...Option) *RatesService {
	s := &RatesService{
		cache:             cache,
		client:            client,
		now:               time.Now,
		selectedRateSubs:  util.NewBroadcaster[entity.RateState](),
		currenciesSubs:    util.NewBroadcaster[entity.CurrenciesState](),
		firstSelectedRate: util.NewFuture[entity.Result[entity.Rate]](),
		restored:          util.NewFuture[struct{}](),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.selectedRateSubs.OnSizeChange(func(n int) {
		metrics.RateSubscribers.WithLabelValues("selected_rate").Set(float64(n))
	})
	s.currenciesSubs.OnSizeChange(func(n int) {
		metrics.RateSubscribers.WithLabelValues("currencies").Set(float64(n))
	})

	s.wg.Add(1)
	go s.restore()

	return s
}

// restore читает кэш курсов и выбранную валюту параллельно и применяет их,
// только если ни один цикл обновления еще не завершился
func (s *RatesService) restore() {
	defer s.wg.Done()
	defer s.restored.Resolve(struct{}{})

	var (
		cached      *entity.RateSet
		selectedID  string
		hasSelected bool
	)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		cached = s.cache.GetCachedRates(ctx)
		return nil
	})
	g.Go(func() error {
		selectedID, hasSelected = s.cache.GetCachedSelectedCurrency(ctx)
		return nil
	})
	_ = g.Wait()

	if cached.Len() == 0 {
		logger.Debug().Msg("No cached rates to restore")
		return
	}
	if !hasSelected {
		selectedID = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isPendingLocked() {
		logger.Info().Msg("Rates already loaded, cached state skipped")
		return
	}

	if err := s.applyLocked(cached.Rates(), selectedID); err != nil {
		logger.Warn().Err(err).Msg("Failed to apply cached rates")
		return
	}

	logger.Info().
		Int("rates", cached.Len()).
		Str("selected_currency", s.selectedCurrencyIDLocked()).
		Msg("Rates restored from cache")
}

// CurrentSelectedRate возвращает текущее состояние выбранного курса без ожидания
func (s *RatesService) CurrentSelectedRate() entity.RateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedRate
}

// CurrentCurrencies возвращает текущее состояние списка валют без ожидания
func (s *RatesService) CurrentCurrencies() entity.CurrenciesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCurrenciesState(s.currencies)
}

// SubscribeSelectedRate регистрирует подписчика; текущее значение приходит сразу.
// Подписку нужно закрыть через Close.
func (s *RatesService) SubscribeSelectedRate() *util.Subscription[entity.RateState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedRateSubs.Subscribe(s.selectedRate)
}

// SubscribeCurrencies регистрирует подписчика на список валют
func (s *RatesService) SubscribeCurrencies() *util.Subscription[entity.CurrenciesState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currenciesSubs.Subscribe(copyCurrenciesState(s.currencies))
}

// UpdateRates запускает цикл обновления курсов. Параллельные вызовы разделяют один цикл.
// Цикл не зависит от отмены ctx: вызывающий может перестать ждать, но цикл доработает до конца.
// Каждый вызов учитывается в wg до возврата, так что Wait после UpdateRates дождется цикла.
func (s *RatesService) UpdateRates(ctx context.Context) error {
	s.wg.Add(1)
	result := s.updates.DoChan(updateCycleKey, func() (interface{}, error) {
		return nil, s.runUpdateCycle(context.WithoutCancel(ctx))
	})

	done := make(chan singleflight.Result, 1)
	go func() {
		defer s.wg.Done()
		done <- <-result
	}()

	select {
	case res := <-done:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RatesService) runUpdateCycle(ctx context.Context) error {
	currencies, err := s.client.FetchCurrencies(ctx)
	if err == nil && len(currencies) == 0 {
		err = ErrEmptyCurrencies
	}
	if err != nil {
		return s.failCycle(fmt.Errorf("fetch currencies: %w", err))
	}

	rates, err := s.client.FetchRates(ctx, currencies)
	if err == nil && len(rates) == 0 {
		err = ErrEmptyRates
	}
	if err != nil {
		return s.failCycle(fmt.Errorf("fetch rates: %w", err))
	}

	s.mu.Lock()
	if err := s.applyLocked(rates, s.selectedCurrencyIDLocked()); err != nil {
		s.mu.Unlock()
		return s.failCycle(err)
	}
	selectedID := s.selectedCurrencyIDLocked()
	total := s.ratesLenLocked()
	// Выбор сохраняется под mu, чтобы порядок записей совпадал с порядком переходов
	s.cache.CacheSelectedCurrency(ctx, selectedID)
	s.enqueuePersistLocked(ctx, rates)
	s.mu.Unlock()

	metrics.RateUpdateCycles.WithLabelValues("success").Inc()
	logger.Info().
		Int("fetched", len(rates)).
		Int("total", total).
		Str("selected_currency", selectedID).
		Msg("Rates updated")

	return nil
}

// failCycle переводит холодное состояние в терминальную ошибку.
// В прогретом состоянии ошибка поглощается: уже показанные данные не откатываются.
func (s *RatesService) failCycle(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isPendingLocked() {
		metrics.RateUpdateCycles.WithLabelValues("absorbed").Inc()
		logger.Warn().Err(cause).Msg("Rates update failed, keeping previously loaded state")
		return fmt.Errorf("%w: %w", ErrLoadingFailed, cause)
	}

	metrics.RateUpdateCycles.WithLabelValues("failed").Inc()
	logger.Error().Err(cause).Msg("Initial rates loading failed")

	s.setRatesLocked(entity.Loaded(entity.Failure[*entity.RateSet](ErrLoadingFailed)))
	s.setSelectedRateLocked(entity.Loaded(entity.Failure[entity.Rate](ErrLoadingFailed)))

	return fmt.Errorf("%w: %w", ErrLoadingFailed, cause)
}

// applyLocked сливает курсы в набор и выбирает курс: прежняя валюта, если она пришла в batch,
// иначе первая валюта из batch. Вызывается под mu.
func (s *RatesService) applyLocked(batch []entity.Rate, selectedID string) error {
	if len(batch) == 0 {
		return ErrEmptyRates
	}

	merged := s.currentRateSetLocked().Merge(batch)

	nextID := entity.NormalizeCurrencyID(batch[0].CurrencyID)
	if selectedID != "" && containsCurrency(batch, selectedID) {
		nextID = entity.NormalizeCurrencyID(selectedID)
	}
	selected, _ := merged.Get(nextID)

	s.setRatesLocked(entity.Loaded(entity.Success(merged)))
	s.setSelectedRateLocked(entity.Loaded(entity.Success(selected)))
	return nil
}

// enqueuePersistLocked ставит курсы цикла в очередь на сохранение и при необходимости
// запускает worker. Вызывается под mu, поэтому порядок в очереди совпадает с порядком циклов.
func (s *RatesService) enqueuePersistLocked(ctx context.Context, rates []entity.Rate) {
	s.persistQueue = append(s.persistQueue, persistItem{ctx: ctx, rates: rates})
	if s.persisting {
		return
	}
	s.persisting = true
	s.wg.Add(1)
	go s.drainPersistQueue()
}

// drainPersistQueue сохраняет курсы по одному пакету; ошибки только логируются
func (s *RatesService) drainPersistQueue() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(s.persistQueue) == 0 {
			s.persisting = false
			s.mu.Unlock()
			return
		}
		item := s.persistQueue[0]
		s.persistQueue[0] = persistItem{}
		s.persistQueue = s.persistQueue[1:]
		s.mu.Unlock()

		if err := s.cache.CacheRates(item.ctx, item.rates); err != nil {
			logger.Warn().Err(err).Int("rates", len(item.rates)).Msg("Failed to cache rates")
		}
	}
}

// SelectRate делает валюту выбранной, если она есть в загруженном наборе.
// Для неизвестной валюты или незагруженного набора ничего не меняется.
func (s *RatesService) SelectRate(ctx context.Context, currencyID string) bool {
	currencyID = entity.NormalizeCurrencyID(currencyID)

	s.mu.Lock()
	set, ok := s.loadedRateSetLocked()
	if !ok {
		s.mu.Unlock()
		return false
	}
	rate, ok := set.Get(currencyID)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.setSelectedRateLocked(entity.Loaded(entity.Success(rate)))
	s.cache.CacheSelectedCurrency(context.WithoutCancel(ctx), currencyID)
	s.mu.Unlock()

	logger.Info().Str("currency_id", currencyID).Msg("Selected rate changed")
	return true
}

// AwaitSelectedRate ждет, пока выбранный курс впервые загрузится, затем отвечает мгновенно.
// После терминальной ошибки возвращает ErrLoadingFailed.
func (s *RatesService) AwaitSelectedRate(ctx context.Context) (entity.Rate, error) {
	if _, err := s.firstSelectedRate.Wait(ctx); err != nil {
		return entity.Rate{}, err
	}

	result, ok := s.CurrentSelectedRate().Value()
	if !ok {
		return entity.Rate{}, ErrSelectedRateNotLoaded
	}
	if !result.IsSuccess() {
		return entity.Rate{}, result.Err
	}
	return result.Value, nil
}

// WaitRestored ждет завершения восстановления из кэша
func (s *RatesService) WaitRestored(ctx context.Context) error {
	_, err := s.restored.Wait(ctx)
	return err
}

// Restored сообщает, завершилось ли восстановление из кэша
func (s *RatesService) Restored() bool {
	_, ok := s.restored.Peek()
	return ok
}

// Wait ждет завершения фоновых задач: восстановления, циклов обновления и сохранения
func (s *RatesService) Wait() {
	s.wg.Wait()
}

// Subscribers возвращает число активных подписчиков на выбранный курс и на список валют
func (s *RatesService) Subscribers() (selected, currencies int) {
	return s.selectedRateSubs.Len(), s.currenciesSubs.Len()
}

// Close отписывает всех подписчиков
func (s *RatesService) Close() {
	s.selectedRateSubs.CloseAll()
	s.currenciesSubs.CloseAll()
}

// IsRateExpired - курс устарел, если окно свежести истекло (строго меньше нуля)
func (s *RatesService) IsRateExpired(rate entity.Rate) bool {
	return s.ExpiryRemaining(rate) < 0
}

// ExpiryRemaining возвращает время до устаревания курса; отрицательное значение - уже устарел
func (s *RatesService) ExpiryRemaining(rate entity.Rate) time.Duration {
	return rate.Date.Add(entity.RateExpireInterval).Sub(s.now())
}

func (s *RatesService) setRatesLocked(state entity.RateSetState) {
	s.rates = state

	currencies := entity.Pending[entity.Result[[]string]]()
	if result, ok := state.Value(); ok {
		if result.IsSuccess() {
			currencies = entity.Loaded(entity.Success(result.Value.CurrencyIDs()))
			metrics.KnownCurrencies.Set(float64(result.Value.Len()))
		} else {
			currencies = entity.Loaded(entity.Failure[[]string](result.Err))
		}
	}
	s.currencies = currencies

	s.currenciesSubs.Publish(copyCurrenciesState(currencies))
}

func (s *RatesService) setSelectedRateLocked(state entity.RateState) {
	s.selectedRate = state
	s.selectedRateSubs.Publish(state)

	if result, ok := state.Value(); ok {
		s.firstSelectedRate.Resolve(result)
	}
}

func (s *RatesService) isPendingLocked() bool {
	return s.rates.IsPending() && s.currencies.IsPending() && s.selectedRate.IsPending()
}

func (s *RatesService) loadedRateSetLocked() (*entity.RateSet, bool) {
	result, ok := s.rates.Value()
	if !ok || !result.IsSuccess() {
		return nil, false
	}
	return result.Value, true
}

func (s *RatesService) currentRateSetLocked() *entity.RateSet {
	set, _ := s.loadedRateSetLocked()
	return set
}

func (s *RatesService) ratesLenLocked() int {
	return s.currentRateSetLocked().Len()
}

func (s *RatesService) selectedCurrencyIDLocked() string {
	result, ok := s.selectedRate.Value()
	if !ok || !result.IsSuccess() {
		return ""
	}
	return result.Value.CurrencyID
}

func containsCurrency(batch []entity.Rate, currencyID string) bool {
	currencyID = entity.NormalizeCurrencyID(currencyID)
	for _, rate := range batch {
		if entity.NormalizeCurrencyID(rate.CurrencyID) == currencyID {
			return true
		}
	}
	return false
}

// copyCurrenciesState отдает наружу копию слайса, чтобы подписчики не могли изменить состояние
func copyCurrenciesState(state entity.CurrenciesState) entity.CurrenciesState {
	result, ok := state.Value()
	if !ok || !result.IsSuccess() {
		return state
	}
	currencies := make([]string, len(result.Value))
	copy(currencies, result.Value)
	return entity.Loaded(entity.Success(currencies))
}
