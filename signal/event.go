package signal

import "sync"

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Event is a synchronous multi-subscriber notification.
// The zero value is ready to use.
type Event[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []handler[T]
}

// Subscribe registers fn and returns its cancellation token.
func (e *Event[T]) Subscribe(fn func(T)) *Subscription {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, handler[T]{id: id, fn: fn})
	e.mu.Unlock()

	return NewSubscription(func() { e.remove(id) })
}

// Once registers fn for a single delivery. The subscription cancels itself
// before fn runs, so fn may safely trigger the event again.
func (e *Event[T]) Once(fn func(T)) *Subscription {
	var sub *Subscription
	var mu sync.Mutex
	fired := false
	sub = e.Subscribe(func(v T) {
		mu.Lock()
		if fired {
			mu.Unlock()
			return
		}
		fired = true
		mu.Unlock()
		sub.Cancel()
		fn(v)
	})
	return sub
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers v to every handler registered at the time of the call.
func (e *Event[T]) Emit(v T) {
	e.mu.Lock()
	snapshot := make([]handler[T], len(e.handlers))
	copy(snapshot, e.handlers)
	e.mu.Unlock()

	for _, h := range snapshot {
		if !e.active(h.id) {
			continue
		}
		h.fn(v)
	}
}

// active reports whether handler id is still registered. A handler cancelled
// by an earlier handler in the same Emit must not run.
func (e *Event[T]) active(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.handlers {
		if h.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
