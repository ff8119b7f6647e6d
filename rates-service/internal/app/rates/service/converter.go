package service

import (
	"fmt"
	"math"

	"currencyexchange/rates-service/internal/app/rates/entity"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// CurrencyConverter пересчитывает суммы в минимальных единицах между базовой валютой и валютой курса
type CurrencyConverter struct {
	homeCurrencyID string
}

func NewCurrencyConverter() *CurrencyConverter {
	return &CurrencyConverter{homeCurrencyID: entity.HomeCurrencyID}
}

// Convert переводит amount из from в to по курсу rate.
// Ask используется при продаже в базовую валюту и при покупке за базовую, иначе bid.
// Продажа округляется вниз, покупка вверх. Результат больше MaxInt64 дает ErrAmountOutOfRange.
func (c *CurrencyConverter) Convert(amount int64, from, to string, rate entity.Rate, isSell bool) (int64, error) {
	rateValue, err := c.AppliedRate(from, to, rate, isSell)
	if err != nil {
		return 0, err
	}

	value := decimal.NewFromInt(amount)
	rateDec := decimal.NewFromFloat(rateValue)

	var result decimal.Decimal
	if entity.NormalizeCurrencyID(from) == c.homeCurrencyID {
		result = value.Mul(rateDec)
	} else {
		result = value.Div(rateDec)
	}

	if isSell {
		result = result.Floor()
	} else {
		result = result.Ceil()
	}
	if result.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, result.String())
	}
	return result.IntPart(), nil
}

// AppliedRate возвращает сторону курса (ask или bid), которая будет применена
func (c *CurrencyConverter) AppliedRate(from, to string, rate entity.Rate, isSell bool) (float64, error) {
	from = entity.NormalizeCurrencyID(from)
	to = entity.NormalizeCurrencyID(to)

	if err := c.validatePair(from, to, rate); err != nil {
		return 0, err
	}

	isAsk := from == c.homeCurrencyID
	if isSell {
		isAsk = to == c.homeCurrencyID
	}
	if isAsk {
		return rate.Ask, nil
	}
	return rate.Bid, nil
}

func (c *CurrencyConverter) validatePair(from, to string, rate entity.Rate) error {
	foreign := rate.CurrencyID
	switch {
	case from == c.homeCurrencyID && to == foreign:
		return nil
	case to == c.homeCurrencyID && from == foreign:
		return nil
	default:
		return fmt.Errorf("%w: %s/%s with %s rate", ErrUnsupportedPair, from, to, foreign)
	}
}
