package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Redis Метрики
// =============================================================================

var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики
// =============================================================================

var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Business Метрики (курсы валют)
// =============================================================================

// RateAPIRequests - запросы к внешнему API курсов, включая повторы
// Labels: endpoint (currencies, tickers, flags), status (success, transport_error, decode_error)
var RateAPIRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_api_requests_total",
		Help: "Total number of rate API requests",
	},
	[]string{"endpoint", "status"},
)

// RateAPIRequestDuration - время одного запроса к API
var RateAPIRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rate_api_request_duration_seconds",
		Help:    "Duration of rate API requests in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"endpoint"},
)

// RateUpdateCycles - циклы обновления курсов
// Labels: status (success, failed, absorbed)
var RateUpdateCycles = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_update_cycles_total",
		Help: "Total number of rate update cycles",
	},
	[]string{"status"},
)

// RatesCacheWrites - записи файла кэша курсов
var RatesCacheWrites = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rates_cache_writes_total",
		Help: "Total number of rates cache file writes",
	},
	[]string{"status"},
)

// RateSubscribers - активные подписчики потоков состояния
// Labels: stream (selected_rate, currencies)
var RateSubscribers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "rate_subscribers",
		Help: "Number of active rate state subscribers",
	},
	[]string{"stream"},
)

// KnownCurrencies - число валют в наборе курсов
var KnownCurrencies = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rates_known_currencies",
		Help: "Number of currencies in the current rate set",
	},
)
