package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"currencyexchange/pkg/logger"
	"currencyexchange/pkg/metrics"
)

// SetupRoutes настраивает все маршруты Rates Service с использованием Gin
func SetupRoutes(ratesHandler *RatesHandler, healthHandler *HealthCheckHandler) *gin.Engine {
	router := gin.New()

	// Recovery middleware для обработки panic
	router.Use(gin.Recovery())

	// JSON logging middleware для HTTP-запросов (ELK Stack)
	router.Use(logger.GinLoggerMiddleware())

	// Prometheus metrics middleware
	router.Use(metrics.GinPrometheusMiddleware("rates-service"))

	// CORS настройки
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/health/liveness", healthHandler.Liveness)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/currencies", ratesHandler.GetCurrencies)
		api.GET("/currencies/stream", ratesHandler.StreamCurrencies) // SSE

		rates := api.Group("/rates")
		{
			rates.GET("/selected", ratesHandler.GetSelectedRate)
			rates.PUT("/selected", ratesHandler.SelectRate)
			rates.GET("/selected/stream", ratesHandler.StreamSelectedRate) // SSE
			rates.POST("/refresh", ratesHandler.RefreshRates)              // Внеочередной цикл обновления
		}

		api.GET("/convert", ratesHandler.Convert)
		api.GET("/flags/:currency_id", ratesHandler.GetFlag)
	}

	return router
}
