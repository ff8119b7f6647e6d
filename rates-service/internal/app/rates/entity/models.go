package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// HomeCurrencyID - фиксированная базовая валюта, против которой котируются все курсы
	HomeCurrencyID = "USDC"

	// BookPrefix - префикс внешнего идентификатора курса: usdc_mxn, usdc_ars
	BookPrefix = "usdc_"

	// RateDateLayout - формат даты курса (yyyy-MM-dd'T'HH:mm:ss.SSSSSSSSS)
	RateDateLayout = "2006-01-02T15:04:05.000000000"

	// RateExpireInterval - окно свежести курса
	RateExpireInterval = time.Hour
)

const (
	SelectedCurrencyIDKey = "selectedCurrencyID" // Ключ настройки выбранной валюты
	RatesFileName         = "rates.json"         // Файл кэша курсов в cache-директории
)

var (
	ErrMissingBook     = errors.New("rate book is missing")
	ErrInvalidBook     = errors.New("rate book has no " + BookPrefix + " prefix")
	ErrInvalidNumber   = errors.New("rate value is not a number")
	ErrInvalidDate     = errors.New("rate date has invalid format")
	ErrNonPositiveRate = errors.New("rate ask and bid must be positive")
)

// Rate - последний известный курс одной валюты относительно HomeCurrencyID.
// Неизменяемое значение, передается по значению.
type Rate struct {
	CurrencyID string    // Код валюты в верхнем регистре (MXN, ARS, ...)
	Ask        float64   // Курс продажи
	Bid        float64   // Курс покупки
	Date       time.Time // Время наблюдения курса
}

// rateJSON - внешнее представление курса (API и файл кэша)
type rateJSON struct {
	Ask  json.RawMessage `json:"ask"`
	Bid  json.RawMessage `json:"bid"`
	Book *string         `json:"book"`
	Date string          `json:"date"`
}

// NormalizeCurrencyID приводит код валюты к каноническому виду
func NormalizeCurrencyID(currencyID string) string {
	return strings.ToUpper(strings.TrimSpace(currencyID))
}

// Book возвращает внешний составной идентификатор курса
func (r Rate) Book() string {
	return BookPrefix + strings.ToLower(r.CurrencyID)
}

func (r Rate) MarshalJSON() ([]byte, error) {
	book := r.Book()
	ask, err := json.Marshal(r.Ask)
	if err != nil {
		return nil, err
	}
	bid, err := json.Marshal(r.Bid)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rateJSON{
		Ask:  ask,
		Bid:  bid,
		Book: &book,
		Date: r.Date.UTC().Format(RateDateLayout),
	})
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	var raw rateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Book == nil {
		return ErrMissingBook
	}
	if !strings.HasPrefix(*raw.Book, BookPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidBook, *raw.Book)
	}

	ask, err := decodeFlexibleFloat(raw.Ask)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	bid, err := decodeFlexibleFloat(raw.Bid)
	if err != nil {
		return fmt.Errorf("bid: %w", err)
	}
	if ask <= 0 || bid <= 0 {
		return ErrNonPositiveRate
	}

	// При разборе дробная часть секунд может быть любой длины
	date, err := time.ParseInLocation("2006-01-02T15:04:05", raw.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	*r = Rate{
		CurrencyID: NormalizeCurrencyID(strings.TrimPrefix(*raw.Book, BookPrefix)),
		Ask:        ask,
		Bid:        bid,
		Date:       date,
	}
	return nil
}

// decodeFlexibleFloat принимает как JSON число, так и числовую строку
func decodeFlexibleFloat(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidNumber
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, ErrInvalidNumber
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, str)
	}
	return number, nil
}

// RateSet - последний известный курс по каждому коду валюты.
// Растет только слиянием: новые курсы перезаписывают старые по ключу, записи не удаляются.
// Порядок кодов - порядок первого появления.
type RateSet struct {
	order []string
	rates map[string]Rate
}

// NewRateSet создает набор из списка курсов
func NewRateSet(rates ...Rate) *RateSet {
	set := &RateSet{rates: make(map[string]Rate, len(rates))}
	set.merge(rates)
	return set
}

// Merge возвращает новый набор: копия текущего плюс переданные курсы
func (s *RateSet) Merge(rates []Rate) *RateSet {
	merged := s.Clone()
	merged.merge(rates)
	return merged
}

func (s *RateSet) merge(rates []Rate) {
	for _, rate := range rates {
		rate.CurrencyID = NormalizeCurrencyID(rate.CurrencyID)
		if _, ok := s.rates[rate.CurrencyID]; !ok {
			s.order = append(s.order, rate.CurrencyID)
		}
		s.rates[rate.CurrencyID] = rate
	}
}

// Clone возвращает независимую копию набора
func (s *RateSet) Clone() *RateSet {
	if s == nil {
		return NewRateSet()
	}
	clone := &RateSet{
		order: make([]string, len(s.order)),
		rates: make(map[string]Rate, len(s.rates)),
	}
	copy(clone.order, s.order)
	for id, rate := range s.rates {
		clone.rates[id] = rate
	}
	return clone
}

func (s *RateSet) Get(currencyID string) (Rate, bool) {
	if s == nil {
		return Rate{}, false
	}
	rate, ok := s.rates[NormalizeCurrencyID(currencyID)]
	return rate, ok
}

func (s *RateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// CurrencyIDs возвращает коды валют в порядке появления
func (s *RateSet) CurrencyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Rates возвращает курсы в порядке появления
func (s *RateSet) Rates() []Rate {
	if s == nil {
		return nil
	}
	rates := make([]Rate, 0, len(s.order))
	for _, id := range s.order {
		rates = append(rates, s.rates[id])
	}
	return rates
}

// Map возвращает копию набора в виде map
func (s *RateSet) Map() map[string]Rate {
	result := make(map[string]Rate, s.Len())
	if s == nil {
		return result
	}
	for id, rate := range s.rates {
		result[id] = rate
	}
	return result
}

// MarshalJSON кодирует набор как объект "код -> курс" (формат rates.json)
func (s *RateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON восстанавливает набор; порядок кодов - алфавитный
func (s *RateSet) UnmarshalJSON(data []byte) error {
	var raw map[string]Rate
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	set := NewRateSet()
	for _, id := range ids {
		rate := raw[id]
		rate.CurrencyID = NormalizeCurrencyID(id)
		set.merge([]Rate{rate})
	}
	*s = *set
	return nil
}
