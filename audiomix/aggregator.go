package audiomix

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/metrics"
	"github.com/opd-ai/peerkit/signal"
	"github.com/opd-ai/peerkit/trackset"
)

// Peer is the per-peer connection record maintained by the session layer.
type Peer struct {
	ID     string
	Stream *signal.Value[*media.Stream]
}

// NewPeer creates a peer record holding stream, which may be nil.
func NewPeer(id string, stream *media.Stream) *Peer {
	return &Peer{ID: id, Stream: signal.NewValue(stream)}
}

type peerEntry struct {
	peer    *Peer
	tracker *trackset.Tracker
	sub     *signal.Subscription
}

func (e *peerEntry) close() {
	e.sub.Cancel()
	e.tracker.Close()
}

// Aggregator maintains one combined stream holding every peer's audio tracks.
type Aggregator struct {
	mu      sync.Mutex
	entries map[string]*peerEntry
	tracks  []media.Track
	endSubs map[media.Track]*signal.Subscription
	rebuilt uint64
	closed  bool

	peersSub *signal.Subscription
	stream   *signal.Value[*media.Stream]
	hasAudio *signal.Value[bool]
	metrics  *metrics.Metrics
}

// NewAggregator creates an aggregator over peers and computes the initial stream.
func NewAggregator(peers *signal.Value[map[string]*Peer], m *metrics.Metrics) *Aggregator {
	a := &Aggregator{
		entries:  make(map[string]*peerEntry),
		endSubs:  make(map[media.Track]*signal.Subscription),
		stream:   signal.NewValue[*media.Stream](nil),
		hasAudio: signal.NewValue(false),
		metrics:  m,
	}
	a.peersSub = peers.Watch(a.syncPeers)
	return a
}

// Stream returns the combined audio stream, nil while no peer carries audio.
func (a *Aggregator) Stream() *signal.Value[*media.Stream] {
	return a.stream
}

// HasAudio reports whether any peer currently contributes an audio track.
func (a *Aggregator) HasAudio() *signal.Value[bool] {
	return a.hasAudio
}

// Tracks returns a snapshot of the flattened audio track list.
func (a *Aggregator) Tracks() []media.Track {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]media.Track, len(a.tracks))
	copy(result, a.tracks)
	return result
}

// Close releases every tracker and handler and drops the combined stream.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	entries := a.entries
	a.entries = make(map[string]*peerEntry)
	endSubs := a.endSubs
	a.endSubs = make(map[media.Track]*signal.Subscription)
	a.tracks = nil
	a.mu.Unlock()

	a.peersSub.Cancel()
	for _, e := range entries {
		e.close()
	}
	for _, sub := range endSubs {
		sub.Cancel()
	}
	a.stream.Set(nil)
	a.setHasAudio(false)
}

// syncPeers reconciles per-peer trackers with the peer map.
func (a *Aggregator) syncPeers(peers map[string]*Peer) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	var stale []*peerEntry
	for id, e := range a.entries {
		if p, ok := peers[id]; !ok || p != e.peer {
			stale = append(stale, e)
			delete(a.entries, id)
		}
	}
	fresh := make(map[string]*Peer)
	for id, p := range peers {
		if p == nil || p.Stream == nil {
			continue
		}
		if _, ok := a.entries[id]; !ok {
			fresh[id] = p
		}
	}
	a.mu.Unlock()

	for _, e := range stale {
		e.close()
	}

	for id, p := range fresh {
		tracker := trackset.New(p.Stream)
		entry := &peerEntry{peer: p, tracker: tracker}
		entry.sub = tracker.Value().Subscribe(func([]media.Track) { a.recompute() })

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			entry.close()
			return
		}
		a.entries[id] = entry
		a.mu.Unlock()
	}

	if len(stale) > 0 || len(fresh) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Aggregator.syncPeers",
			"peers":    len(peers),
			"joined":   len(fresh),
			"left":     len(stale),
		}).Debug("Peer set changed")
	}

	a.recompute()
}

// recompute flattens every peer's audio tracks and replaces the combined
// stream when membership changed.
func (a *Aggregator) recompute() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(a.entries))
	for id := range a.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var next []media.Track
	for _, id := range ids {
		for _, t := range a.entries[id].tracker.Tracks() {
			if t.Kind() == media.KindAudio && !containsTrack(next, t) {
				next = append(next, t)
			}
		}
	}

	if sameTracks(a.tracks, next) {
		a.mu.Unlock()
		return
	}

	var released []*signal.Subscription
	for t, sub := range a.endSubs {
		if !containsTrack(next, t) {
			released = append(released, sub)
			delete(a.endSubs, t)
		}
	}
	for _, t := range next {
		if _, ok := a.endSubs[t]; !ok {
			track := t
			a.endSubs[track] = track.OnEnded(func() { a.removeTrack(track) })
		}
	}
	a.tracks = next
	a.mu.Unlock()

	for _, sub := range released {
		sub.Cancel()
	}
	a.publish()
}

// removeTrack drops exactly track from the flattened list. It runs once per
// track, from the track's ended event.
func (a *Aggregator) removeTrack(track media.Track) {
	a.mu.Lock()
	sub := a.endSubs[track]
	delete(a.endSubs, track)
	idx := -1
	for i, t := range a.tracks {
		if t == track {
			idx = i
			break
		}
	}
	if idx < 0 || a.closed {
		a.mu.Unlock()
		sub.Cancel()
		return
	}
	a.tracks = append(a.tracks[:idx:idx], a.tracks[idx+1:]...)
	a.mu.Unlock()

	sub.Cancel()
	a.publish()
}

// publish synthesizes a new combined stream from the current list, or nil
// when the list is empty.
func (a *Aggregator) publish() {
	a.mu.Lock()
	tracks := make([]media.Track, len(a.tracks))
	copy(tracks, a.tracks)
	var combined *media.Stream
	if len(tracks) > 0 {
		a.rebuilt++
		combined = media.NewStream(fmt.Sprintf("peer-audio-%d", a.rebuilt), tracks...)
	}
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Aggregator.publish",
		"tracks":   len(tracks),
	}).Debug("Combined peer audio stream replaced")

	a.metrics.ObserveAggregate(len(tracks))
	a.stream.Set(combined)
	a.setHasAudio(combined != nil)
}

func (a *Aggregator) setHasAudio(v bool) {
	if a.hasAudio.Get() != v {
		a.hasAudio.Set(v)
	}
}

func containsTrack(list []media.Track, t media.Track) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func sameTracks(a, b []media.Track) bool {
	if len(a) != len(b) {
		return false
	}
	for _, t := range a {
		if !containsTrack(b, t) {
			return false
		}
	}
	return true
}
