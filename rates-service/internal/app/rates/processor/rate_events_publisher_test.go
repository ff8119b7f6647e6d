package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMessagePublisher мок для MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// stateSource - источник состояния на реальных Broadcaster
type stateSource struct {
	selected   *util.Broadcaster[entity.RateState]
	currencies *util.Broadcaster[entity.CurrenciesState]
}

func newStateSource() *stateSource {
	return &stateSource{
		selected:   util.NewBroadcaster[entity.RateState](),
		currencies: util.NewBroadcaster[entity.CurrenciesState](),
	}
}

func (s *stateSource) SubscribeSelectedRate() *util.Subscription[entity.RateState] {
	return s.selected.Subscribe(entity.Pending[entity.Result[entity.Rate]]())
}

func (s *stateSource) SubscribeCurrencies() *util.Subscription[entity.CurrenciesState] {
	return s.currencies.Subscribe(entity.Pending[entity.Result[[]string]]())
}

type published struct {
	key   string
	event entity.RateEvent
}

func capturePublished(t *testing.T, publisher *MockMessagePublisher) <-chan published {
	t.Helper()
	events := make(chan published, 16)
	publisher.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			var event entity.RateEvent
			require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &event))
			events <- published{key: args.String(1), event: event}
		}).
		Return(nil)
	return events
}

func nextPublished(t *testing.T, events <-chan published) published {
	t.Helper()
	select {
	case p := <-events:
		return p
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
	return published{}
}

func assertNothingPublished(t *testing.T, events <-chan published) {
	t.Helper()
	select {
	case p := <-events:
		t.Fatalf("unexpected event: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitSubscribed(t *testing.T, source *stateSource) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return source.selected.Len() == 1 && source.currencies.Len() == 1
	}, time.Second, 5*time.Millisecond)
}

// ===================== RateEventsPublisher Tests =====================

func TestRateEventsPublisher_PublishesStateChanges(t *testing.T) {
	// Arrange
	source := newStateSource()
	publisher := new(MockMessagePublisher)
	events := capturePublished(t, publisher)
	publisher.On("Close").Return(nil)

	p := NewRateEventsPublisher(source, publisher)
	p.Start(context.Background())
	waitSubscribed(t, source)

	rate := entity.Rate{CurrencyID: "MXN", Ask: 18.41, Bid: 18.40, Date: time.Date(2025, 10, 20, 18, 0, 0, 0, time.UTC)}

	// Act
	source.currencies.Publish(entity.Loaded(entity.Success([]string{"MXN", "ARS"})))
	currenciesEvent := nextPublished(t, events)
	source.selected.Publish(entity.Loaded(entity.Success(rate)))
	rateEvent := nextPublished(t, events)

	// Assert
	assert.Equal(t, "currencies", currenciesEvent.key)
	assert.Equal(t, entity.EventTypeCurrenciesUpdated, currenciesEvent.event.EventType)
	assert.Equal(t, []string{"MXN", "ARS"}, currenciesEvent.event.Currencies)
	assert.Equal(t, "USDC", currenciesEvent.event.HomeCurrency)

	assert.Equal(t, "MXN", rateEvent.key)
	assert.Equal(t, entity.EventTypeSelectedRateChanged, rateEvent.event.EventType)
	require.NotNil(t, rateEvent.event.Rate)
	assert.Equal(t, rate, *rateEvent.event.Rate)

	// Повтор того же значения не публикуется
	source.selected.Publish(entity.Loaded(entity.Success(rate)))
	source.currencies.Publish(entity.Loaded(entity.Success([]string{"MXN", "ARS"})))
	assertNothingPublished(t, events)

	require.NoError(t, p.Stop())
	publisher.AssertCalled(t, "Close")
}

func TestRateEventsPublisher_FailurePublishedOnce(t *testing.T) {
	// Arrange
	source := newStateSource()
	publisher := new(MockMessagePublisher)
	events := capturePublished(t, publisher)
	publisher.On("Close").Return(nil)

	p := NewRateEventsPublisher(source, publisher)
	p.Start(context.Background())
	waitSubscribed(t, source)

	// Act - оба потока переходят в ошибку
	source.currencies.Publish(entity.Loaded(entity.Failure[[]string](errors.New("rates loading failed"))))
	failure := nextPublished(t, events)
	source.selected.Publish(entity.Loaded(entity.Failure[entity.Rate](errors.New("rates loading failed"))))

	// Assert
	assert.Equal(t, entity.EventTypeRatesLoadingFailed, failure.event.EventType)
	assertNothingPublished(t, events)

	require.NoError(t, p.Stop())
}

func TestRateEventsPublisher_PublishErrorDoesNotStopLoop(t *testing.T) {
	// Arrange
	source := newStateSource()
	publisher := new(MockMessagePublisher)
	publisher.On("PublishMessage", mock.Anything, "currencies", mock.Anything).Return(errors.New("broker down")).Once()
	delivered := make(chan struct{})
	publisher.On("PublishMessage", mock.Anything, "MXN", mock.Anything).
		Run(func(mock.Arguments) { close(delivered) }).
		Return(nil).Once()
	publisher.On("Close").Return(nil)

	p := NewRateEventsPublisher(source, publisher)
	p.Start(context.Background())
	waitSubscribed(t, source)

	// Act
	source.currencies.Publish(entity.Loaded(entity.Success([]string{"MXN"})))
	time.Sleep(20 * time.Millisecond)
	source.selected.Publish(entity.Loaded(entity.Success(entity.Rate{CurrencyID: "MXN", Ask: 1, Bid: 1})))

	// Assert
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("rate event was not published after broker error")
	}
	require.NoError(t, p.Stop())
	publisher.AssertExpectations(t)
}

func TestRateEventsPublisher_StopUnsubscribes(t *testing.T) {
	source := newStateSource()
	publisher := new(MockMessagePublisher)
	publisher.On("Close").Return(nil)

	p := NewRateEventsPublisher(source, publisher)
	p.Start(context.Background())
	waitSubscribed(t, source)

	require.NoError(t, p.Stop())

	assert.Equal(t, 0, source.selected.Len())
	assert.Equal(t, 0, source.currencies.Len())
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}
