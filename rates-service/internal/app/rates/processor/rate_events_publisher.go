package processor

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"currencyexchange/pkg/logger"
	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/infrastructure"
	"currencyexchange/rates-service/internal/app/rates/util"
)

const (
	publishTimeout = 5 * time.Second
	currenciesKey  = "currencies"
)

// RateStateSource - потоки состояния курсов
type RateStateSource interface {
	SubscribeSelectedRate() *util.Subscription[entity.RateState]
	SubscribeCurrencies() *util.Subscription[entity.CurrenciesState]
}

// RateEventsPublisher подписывается на потоки менеджера курсов и публикует изменения в Kafka.
// Одинаковые подряд значения не публикуются повторно.
type RateEventsPublisher struct {
	source    RateStateSource
	publisher infrastructure.MessagePublisher
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastRate       *entity.Rate
	lastCurrencies []string
	failed         bool
}

func NewRateEventsPublisher(source RateStateSource, publisher infrastructure.MessagePublisher) *RateEventsPublisher {
	return &RateEventsPublisher{
		source:    source,
		publisher: publisher,
		now:       time.Now,
	}
}

// Start подписывается на оба потока и запускает публикацию в отдельной горутине
func (p *RateEventsPublisher) Start(ctx context.Context) {
	logger.Info().Msg("Starting rate events publisher...")

	ctx, p.cancel = context.WithCancel(ctx)
	selectedSub := p.source.SubscribeSelectedRate()
	currenciesSub := p.source.SubscribeCurrencies()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer selectedSub.Close()
		defer currenciesSub.Close()
		p.run(ctx, selectedSub.Updates(), currenciesSub.Updates())
	}()
}

// Stop останавливает публикацию и закрывает producer
func (p *RateEventsPublisher) Stop() error {
	logger.Info().Msg("Stopping rate events publisher...")
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return p.publisher.Close()
}

func (p *RateEventsPublisher) run(ctx context.Context, selected <-chan entity.RateState, currencies <-chan entity.CurrenciesState) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-selected:
			if !ok {
				return
			}
			p.handleSelectedRate(ctx, state)
		case state, ok := <-currencies:
			if !ok {
				return
			}
			p.handleCurrencies(ctx, state)
		}
	}
}

func (p *RateEventsPublisher) handleSelectedRate(ctx context.Context, state entity.RateState) {
	result, ok := state.Value()
	if !ok {
		return
	}
	if !result.IsSuccess() {
		p.publishFailure(ctx)
		return
	}
	p.failed = false

	if p.lastRate != nil && *p.lastRate == result.Value {
		return
	}
	rate := result.Value
	p.lastRate = &rate

	p.publish(ctx, rate.CurrencyID, entity.RateEvent{
		EventType: entity.EventTypeSelectedRateChanged,
		Rate:      &rate,
	})
}

func (p *RateEventsPublisher) handleCurrencies(ctx context.Context, state entity.CurrenciesState) {
	result, ok := state.Value()
	if !ok {
		return
	}
	if !result.IsSuccess() {
		p.publishFailure(ctx)
		return
	}
	p.failed = false

	if p.lastCurrencies != nil && reflect.DeepEqual(p.lastCurrencies, result.Value) {
		return
	}
	p.lastCurrencies = result.Value

	p.publish(ctx, currenciesKey, entity.RateEvent{
		EventType:  entity.EventTypeCurrenciesUpdated,
		Currencies: result.Value,
	})
}

// publishFailure публикует одно событие на каждый переход в ошибку
func (p *RateEventsPublisher) publishFailure(ctx context.Context) {
	if p.failed {
		return
	}
	p.failed = true

	p.publish(ctx, currenciesKey, entity.RateEvent{
		EventType: entity.EventTypeRatesLoadingFailed,
	})
}

func (p *RateEventsPublisher) publish(ctx context.Context, key string, event entity.RateEvent) {
	event.HomeCurrency = entity.HomeCurrencyID
	event.Timestamp = p.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("event_type", event.EventType).Msg("Failed to marshal rate event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.publisher.PublishMessage(ctx, key, payload); err != nil {
		logger.Warn().Err(err).Str("event_type", event.EventType).Msg("Failed to publish rate event")
		return
	}

	logger.Debug().Str("event_type", event.EventType).Str("key", key).Msg("Rate event published")
}
