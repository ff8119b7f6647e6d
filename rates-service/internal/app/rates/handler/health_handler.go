package handler

import (
	"context"
	"net/http"
	"time"

	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/service"

	"github.com/gin-gonic/gin"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthCheckHandler struct {
	settings     Pinger
	ratesService service.RatesServiceInterface
}

func NewHealthCheckHandler(settings Pinger, ratesService service.RatesServiceInterface) *HealthCheckHandler {
	return &HealthCheckHandler{
		settings:     settings,
		ratesService: ratesService,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthCheck обрабатывает GET /health
func (h *HealthCheckHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	if err := h.settings.Ping(ctx); err != nil {
		checks["redis"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["redis"] = "healthy"
	}

	// Устаревшие или незагруженные курсы - только предупреждение, сервис продолжает отдавать кэш
	checks["rates"] = h.checkRates()

	response := HealthResponse{
		Status:    overallStatus,
		Service:   "rates-service",
		Checks:    checks,
		Timestamp: time.Now(),
	}

	if overallStatus != "healthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Readiness обрабатывает GET /health/readiness
func (h *HealthCheckHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if !h.ratesService.Restored() {
		c.String(http.StatusServiceUnavailable, "rates cache not restored")
		return
	}

	if err := h.settings.Ping(ctx); err != nil {
		c.String(http.StatusServiceUnavailable, "redis not ready")
		return
	}

	c.String(http.StatusOK, "ready")
}

// Liveness обрабатывает GET /health/liveness
func (h *HealthCheckHandler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}

func (h *HealthCheckHandler) checkRates() string {
	state := h.ratesService.CurrentSelectedRate()
	switch entity.StatusOf(state) {
	case entity.LoadStatusLoading:
		return "warning: loading"
	case entity.LoadStatusFailed:
		return "warning: loading failed"
	}

	result, _ := state.Value()
	if h.ratesService.IsRateExpired(result.Value) {
		return "warning: outdated"
	}
	return "healthy"
}
