package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ListenerID identifies a registered listener so it can be removed later.
type ListenerID string

// Bus is a process-wide, fire-and-forget broadcast of events of type T.
type Bus[T any] struct {
	listeners map[ListenerID]func(T)
	order     []ListenerID
	lock      sync.Mutex
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{
		listeners: make(map[ListenerID]func(T)),
	}
}

func (b *Bus[T]) AddListener(fn func(T)) ListenerID {
	id := ListenerID(uuid.NewString())
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[ListenerID]func(T))
	}
	b.listeners[id] = fn
	b.order = append(b.order, id)
	return id
}

// RemoveListener detaches a listener. Unknown IDs are ignored.
func (b *Bus[T]) RemoveListener(id ListenerID) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.listeners[id]; !ok {
		return
	}
	delete(b.listeners, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

// Emit delivers ev to every listener registered at the time of the call, in
// registration order. Listeners run outside the bus lock, so they may add or
// remove listeners themselves.
func (b *Bus[T]) Emit(ev T) {
	b.lock.Lock()
	snapshot := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.lock.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// Len reports the number of registered listeners.
func (b *Bus[T]) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.order)
}

// AuthFailed is broadcast when an authenticated request could not be recovered
// by a token refresh and the stored session has been discarded.
type AuthFailed struct {
	Reason error
	At     time.Time
}

var authFailed = NewBus[AuthFailed]()

// AuthFailedBus returns the process-wide AuthFailed bus.
func AuthFailedBus() *Bus[AuthFailed] {
	return authFailed
}
