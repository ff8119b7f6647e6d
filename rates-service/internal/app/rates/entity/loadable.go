package entity

// LoadState - состояние значения: pending (еще загружается) или loaded.
// Нулевое значение - pending.
type LoadState[T any] struct {
	loaded bool
	value  T
}

// Pending возвращает состояние "еще загружается"
func Pending[T any]() LoadState[T] {
	return LoadState[T]{}
}

// Loaded возвращает загруженное состояние
func Loaded[T any](value T) LoadState[T] {
	return LoadState[T]{loaded: true, value: value}
}

func (s LoadState[T]) IsPending() bool {
	return !s.loaded
}

// Value возвращает значение и признак того, что оно загружено
func (s LoadState[T]) Value() (T, bool) {
	return s.value, s.loaded
}

// Result - успешное значение или восстановимая ошибка
type Result[T any] struct {
	Value T
	Err   error
}

func Success[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) IsSuccess() bool {
	return r.Err == nil
}

type (
	RateState       = LoadState[Result[Rate]]
	CurrenciesState = LoadState[Result[[]string]]
	RateSetState    = LoadState[Result[*RateSet]]
)

// LoadStatus - грубое состояние для потребителей: загружается / загружено / не удалось
type LoadStatus string

const (
	LoadStatusLoading LoadStatus = "loading"
	LoadStatusLoaded  LoadStatus = "loaded"
	LoadStatusFailed  LoadStatus = "failed"
)

// StatusOf сводит состояние к LoadStatus
func StatusOf[T any](state LoadState[Result[T]]) LoadStatus {
	result, ok := state.Value()
	switch {
	case !ok:
		return LoadStatusLoading
	case !result.IsSuccess():
		return LoadStatusFailed
	default:
		return LoadStatusLoaded
	}
}
