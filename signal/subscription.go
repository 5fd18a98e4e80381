package signal

import "sync"

// Subscription is a cancellation token for a registered handler.
// The zero value and a nil *Subscription are valid and cancel nothing.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps cancel so that it runs at most once.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel detaches the handler. Calling Cancel more than once is a no-op.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Group owns a set of subscriptions that are released together.
type Group struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Add attaches s to the group.
func (g *Group) Add(s *Subscription) {
	if s == nil {
		return
	}
	g.mu.Lock()
	g.subs = append(g.subs, s)
	g.mu.Unlock()
}

// Cancel cancels every subscription in the group and empties it.
// The group can be reused afterwards.
func (g *Group) Cancel() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

// Len returns the number of subscriptions currently held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}
