package util

import (
	"sync"

	"github.com/google/uuid"
)

// Broadcaster - реестр подписчиков, каждому доставляется только последнее значение.
// Медленный подписчик теряет промежуточные значения, издатель никогда не блокируется.
type Broadcaster[T any] struct {
	mu           sync.Mutex
	subs         map[uuid.UUID]*Subscription[T]
	onSizeChange func(int)
}

// Subscription - хэндл подписки с буфером на одно значение
type Subscription[T any] struct {
	id      uuid.UUID
	updates chan T
	owner   *Broadcaster[T]
	once    sync.Once
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[uuid.UUID]*Subscription[T])}
}

// Subscribe регистрирует подписчика и сразу кладет ему initial.
// Чтобы не пропустить изменения, вызывающий должен держать ту же блокировку, что и при Publish.
func (b *Broadcaster[T]) Subscribe(initial T) *Subscription[T] {
	sub := &Subscription[T]{
		id:      uuid.New(),
		updates: make(chan T, 1),
		owner:   b,
	}
	sub.updates <- initial

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.notifySizeLocked()
	b.mu.Unlock()

	return sub
}

// OnSizeChange задает функцию, вызываемую при изменении числа подписчиков
func (b *Broadcaster[T]) OnSizeChange(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSizeChange = fn
}

func (b *Broadcaster[T]) notifySizeLocked() {
	if b.onSizeChange != nil {
		b.onSizeChange(len(b.subs))
	}
}

// Publish доставляет значение всем подписчикам, вытесняя недочитанное
func (b *Broadcaster[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.updates <- value:
		default:
			// Буфер занят - выбрасываем старое значение
			select {
			case <-sub.updates:
			default:
			}
			sub.updates <- value
		}
	}
}

// Len возвращает число активных подписчиков
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll отписывает всех подписчиков
func (b *Broadcaster[T]) CloseAll() {
	b.mu.Lock()
	subs := make([]*Subscription[T], 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Broadcaster[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, sub.id)
	close(sub.updates)
	b.notifySizeLocked()
}

func (s *Subscription[T]) ID() uuid.UUID {
	return s.id
}

// Updates возвращает канал значений; закрывается после Close
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Close удаляет подписку из реестра. Повторный вызов безопасен.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.owner.remove(s)
	})
}
