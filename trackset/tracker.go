package trackset

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/signal"
)

// Tracker exposes the current tracks of a reactive stream handle.
type Tracker struct {
	mu         sync.Mutex
	generation uint64
	stream     *media.Stream
	tracks     []media.Track
	endSubs    map[media.Track]*signal.Subscription

	streamSubs signal.Group
	sourceSub  *signal.Subscription
	closed     bool

	value *signal.Value[[]media.Track]
}

// New creates a tracker bound to source and seeds it synchronously.
func New(source *signal.Value[*media.Stream]) *Tracker {
	t := &Tracker{
		endSubs: make(map[media.Track]*signal.Subscription),
		value:   signal.NewValue[[]media.Track](nil),
	}
	t.sourceSub = source.Watch(t.attach)
	return t
}

// Tracks returns a snapshot of the current track set.
func (t *Tracker) Tracks() []media.Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Value returns the reactive track set. Subscribers see every mutation.
func (t *Tracker) Value() *signal.Value[[]media.Track] {
	return t.value
}

// Stream returns the stream currently observed, or nil.
func (t *Tracker) Stream() *media.Stream {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stream
}

// Close detaches from the source and from the current stream.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.generation++
	t.stream = nil
	t.tracks = nil
	endSubs := t.endSubs
	t.endSubs = make(map[media.Track]*signal.Subscription)
	t.mu.Unlock()

	t.sourceSub.Cancel()
	t.streamSubs.Cancel()
	for _, sub := range endSubs {
		sub.Cancel()
	}
}

// attach switches the tracker to stream. Every listener on the previous
// stream is cancelled before the new one is observed.
func (t *Tracker) attach(stream *media.Stream) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.generation++
	gen := t.generation
	t.stream = stream
	t.tracks = nil
	endSubs := t.endSubs
	t.endSubs = make(map[media.Track]*signal.Subscription)
	t.mu.Unlock()

	t.streamSubs.Cancel()
	for _, sub := range endSubs {
		sub.Cancel()
	}

	if stream == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Tracker.attach",
		}).Debug("Track source cleared")
		t.publish(gen)
		return
	}

	t.streamSubs.Add(stream.OnAddTrack(func(track media.Track) { t.add(gen, track) }))
	t.streamSubs.Add(stream.OnRemoveTrack(func(track media.Track) { t.remove(gen, track) }))

	t.mu.Lock()
	if gen == t.generation {
		for _, track := range stream.Tracks() {
			t.insertLocked(gen, track)
		}
	}
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Tracker.attach",
		"stream_id": stream.ID(),
		"tracks":    len(t.Tracks()),
	}).Debug("Track source attached")

	t.publish(gen)
}

// insertLocked appends track if absent and wires its ended event.
// Tracks that already ended are never inserted.
func (t *Tracker) insertLocked(gen uint64, track media.Track) bool {
	if track.State() == media.TrackStateEnded {
		return false
	}
	for _, existing := range t.tracks {
		if existing == track {
			return false
		}
	}
	sub := track.OnEnded(func() { t.remove(gen, track) })
	// The track may end on its own goroutine before the handler is in place.
	if track.State() == media.TrackStateEnded {
		sub.Cancel()
		return false
	}
	t.tracks = append(t.tracks, track)
	t.endSubs[track] = sub
	return true
}

func (t *Tracker) add(gen uint64, track media.Track) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	inserted := t.insertLocked(gen, track)
	t.mu.Unlock()

	if inserted {
		t.publish(gen)
	}
}

func (t *Tracker) remove(gen uint64, track media.Track) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	idx := -1
	for i, existing := range t.tracks {
		if existing == track {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.tracks = append(t.tracks[:idx:idx], t.tracks[idx+1:]...)
	sub := t.endSubs[track]
	delete(t.endSubs, track)
	t.mu.Unlock()

	sub.Cancel()
	t.publish(gen)
}

func (t *Tracker) publish(gen uint64) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.value.Set(snapshot)
}

func (t *Tracker) snapshotLocked() []media.Track {
	result := make([]media.Track, len(t.tracks))
	copy(result, t.tracks)
	return result
}
