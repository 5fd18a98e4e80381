package signal

import "sync"

// Value holds a current value and notifies subscribers whenever it is Set.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	changed Event[T]
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores x and notifies every subscriber before returning.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	v.current = x
	v.mu.Unlock()

	v.changed.Emit(x)
}

// Subscribe registers fn for future changes only.
func (v *Value[T]) Subscribe(fn func(T)) *Subscription {
	return v.changed.Subscribe(fn)
}

// Watch registers fn for future changes and immediately calls it with the
// current value.
func (v *Value[T]) Watch(fn func(T)) *Subscription {
	sub := v.changed.Subscribe(fn)
	fn(v.Get())
	return sub
}

// Subscribers returns the number of registered subscribers.
func (v *Value[T]) Subscribers() int {
	return v.changed.Len()
}
