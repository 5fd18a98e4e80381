// Package signal provides the synchronous observer primitives shared by the
// media, capture, trackset, audiomix and vad packages.
//
// # Overview
//
// Every stateful component in peerkit exposes its outputs as a [Value] and its
// discrete notifications as an [Event]. Subscribing returns a [Subscription],
// a cancellation token that detaches the handler. A [Group] collects the
// subscriptions attached to one resource so they can be cancelled together
// whenever the resource is swapped:
//
//	var subs signal.Group
//	source.Watch(func(s *media.Stream) {
//	    subs.Cancel() // release listeners on the previous stream
//	    if s == nil {
//	        return
//	    }
//	    subs.Add(s.OnAddTrack(onAdd))
//	    subs.Add(s.OnRemoveTrack(onRemove))
//	})
//
// # Ordering
//
// Notifications are delivered synchronously on the goroutine that called
// Set or Emit, in subscription order, before the call returns. Handlers are
// invoked without any internal lock held, so a handler may freely read or
// write other values, including the one that notified it.
package signal
