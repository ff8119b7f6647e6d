package handler

import (
	"errors"
	"io"
	"net/http"

	"currencyexchange/rates-service/internal/app/rates/entity"
	"currencyexchange/rates-service/internal/app/rates/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RatesHandler обрабатывает HTTP запросы к состоянию курсов
type RatesHandler struct {
	ratesService service.RatesServiceInterface
	flagsService service.FlagsServiceInterface
	converter    *service.CurrencyConverter
	validator    *validator.Validate
}

// NewRatesHandler создает новый обработчик курсов
func NewRatesHandler(
	ratesService service.RatesServiceInterface,
	flagsService service.FlagsServiceInterface,
	converter *service.CurrencyConverter,
) *RatesHandler {
	return &RatesHandler{
		ratesService: ratesService,
		flagsService: flagsService,
		converter:    converter,
		validator:    validator.New(),
	}
}

// GetCurrencies обрабатывает GET /api/v1/currencies
func (h *RatesHandler) GetCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, buildCurrenciesResponse(h.ratesService.CurrentCurrencies()))
}

// GetSelectedRate обрабатывает GET /api/v1/rates/selected
func (h *RatesHandler) GetSelectedRate(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildSelectedRateResponse(h.ratesService.CurrentSelectedRate()))
}

// SelectRate обрабатывает PUT /api/v1/rates/selected
func (h *RatesHandler) SelectRate(c *gin.Context) {
	var req entity.SelectRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	if entity.StatusOf(h.ratesService.CurrentCurrencies()) != entity.LoadStatusLoaded {
		c.JSON(http.StatusConflict, gin.H{"error": "Rates are not loaded"})
		return
	}

	if !h.ratesService.SelectRate(c.Request.Context(), req.CurrencyID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Currency not found"})
		return
	}

	c.JSON(http.StatusOK, h.buildSelectedRateResponse(h.ratesService.CurrentSelectedRate()))
}

// RefreshRates обрабатывает POST /api/v1/rates/refresh
func (h *RatesHandler) RefreshRates(c *gin.Context) {
	if err := h.ratesService.UpdateRates(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to update rates",
			"state": h.buildSelectedRateResponse(h.ratesService.CurrentSelectedRate()),
		})
		return
	}

	c.JSON(http.StatusOK, h.buildSelectedRateResponse(h.ratesService.CurrentSelectedRate()))
}

// StreamSelectedRate обрабатывает GET /api/v1/rates/selected/stream (Server-Sent Events)
func (h *RatesHandler) StreamSelectedRate(c *gin.Context) {
	sub := h.ratesService.SubscribeSelectedRate()
	defer sub.Close()

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("selected_rate", h.buildSelectedRateResponse(state))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// StreamCurrencies обрабатывает GET /api/v1/currencies/stream (Server-Sent Events)
func (h *RatesHandler) StreamCurrencies(c *gin.Context) {
	sub := h.ratesService.SubscribeCurrencies()
	defer sub.Close()

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("currencies", buildCurrenciesResponse(state))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Convert обрабатывает GET /api/v1/convert по выбранному курсу
func (h *RatesHandler) Convert(c *gin.Context) {
	var req entity.ConvertRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	result, ok := h.ratesService.CurrentSelectedRate().Value()
	if !ok || !result.IsSuccess() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Selected rate is not loaded"})
		return
	}
	rate := result.Value

	isSell := req.Side == "sell"
	converted, err := h.converter.Convert(req.Amount, req.From, req.To, rate, isSell)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedPair) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Currency pair does not match selected rate"})
			return
		}
		if errors.Is(err, service.ErrAmountOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Converted amount is out of range"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert amount"})
		return
	}
	rateUsed, _ := h.converter.AppliedRate(req.From, req.To, rate, isSell)

	c.JSON(http.StatusOK, entity.ConvertResponse{
		Amount:     req.Amount,
		From:       entity.NormalizeCurrencyID(req.From),
		To:         entity.NormalizeCurrencyID(req.To),
		Side:       req.Side,
		Result:     converted,
		RateUsed:   rateUsed,
		CurrencyID: rate.CurrencyID,
	})
}

// GetFlag обрабатывает GET /api/v1/flags/:currency_id
func (h *RatesHandler) GetFlag(c *gin.Context) {
	currencyID := entity.NormalizeCurrencyID(c.Param("currency_id"))

	url, err := h.flagsService.FlagURL(c.Request.Context(), currencyID)
	if err != nil {
		if errors.Is(err, service.ErrFlagNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Flag not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load flags manifest"})
		return
	}

	c.JSON(http.StatusOK, entity.FlagResponse{CurrencyID: currencyID, URL: url})
}

func (h *RatesHandler) buildSelectedRateResponse(state entity.RateState) entity.SelectedRateResponse {
	response := entity.SelectedRateResponse{Status: entity.StatusOf(state)}

	result, ok := state.Value()
	if ok && result.IsSuccess() {
		rate := result.Value
		response.Rate = &entity.RateResponse{
			CurrencyID:       rate.CurrencyID,
			Ask:              rate.Ask,
			Bid:              rate.Bid,
			Date:             rate.Date,
			Expired:          h.ratesService.IsRateExpired(rate),
			ExpiresInSeconds: h.ratesService.ExpiryRemaining(rate).Seconds(),
		}
	}
	return response
}

func buildCurrenciesResponse(state entity.CurrenciesState) entity.CurrenciesResponse {
	response := entity.CurrenciesResponse{Status: entity.StatusOf(state)}

	result, ok := state.Value()
	if ok && result.IsSuccess() {
		response.Currencies = result.Value
	}
	return response
}

// formatValidationError форматирует ошибки валидации
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
