package util

import (
	"context"
	"sync"
)

// Future - одноразовое широковещательное значение.
// Первое Resolve освобождает всех ожидающих, последующие чтения возвращаются сразу.
type Future[T any] struct {
	mu       sync.Mutex
	done     chan struct{}
	value    T
	resolved bool
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve устанавливает значение. Возвращает false, если значение уже было установлено.
func (f *Future[T]) Resolve(value T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return false
	}
	f.value = value
	f.resolved = true
	close(f.done)
	return true
}

// Wait блокирует вызывающего до разрешения значения или отмены контекста
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek возвращает значение без ожидания
func (f *Future[T]) Peek() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.resolved
}

// Done закрывается после разрешения значения
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
