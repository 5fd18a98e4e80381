package media

import (
	"sync"

	"github.com/opd-ai/peerkit/signal"
)

// Stream is a collection of tracks, like the browser's MediaStream.
type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []Track

	added   signal.Event[Track]
	removed signal.Event[Track]
}

// NewStream creates a stream holding tracks. Duplicate tracks are ignored.
func NewStream(id string, tracks ...Track) *Stream {
	s := &Stream{id: id}
	for _, t := range tracks {
		if t != nil && s.indexOf(t) < 0 {
			s.tracks = append(s.tracks, t)
		}
	}
	return s
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// Tracks returns a snapshot of all tracks in insertion order.
func (s *Stream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Track, len(s.tracks))
	copy(result, s.tracks)
	return result
}

// AudioTracks returns a snapshot of the audio tracks.
func (s *Stream) AudioTracks() []Track {
	return s.byKind(KindAudio)
}

// VideoTracks returns a snapshot of the video tracks.
func (s *Stream) VideoTracks() []Track {
	return s.byKind(KindVideo)
}

func (s *Stream) byKind(kind Kind) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			result = append(result, t)
		}
	}
	return result
}

// HasAudio reports whether the stream carries at least one audio track.
func (s *Stream) HasAudio() bool {
	return len(s.AudioTracks()) > 0
}

// Active reports whether any track in the stream is live.
func (s *Stream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

// Len returns the number of tracks.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Contains reports whether track is a member of the stream.
func (s *Stream) Contains(track Track) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(track) >= 0
}

func (s *Stream) indexOf(track Track) int {
	for i, t := range s.tracks {
		if t == track {
			return i
		}
	}
	return -1
}

// AddTrack appends track and fires the addtrack event. Adding a member is a no-op.
func (s *Stream) AddTrack(track Track) {
	if track == nil {
		return
	}
	s.mu.Lock()
	if s.indexOf(track) >= 0 {
		s.mu.Unlock()
		return
	}
	s.tracks = append(s.tracks, track)
	s.mu.Unlock()

	s.added.Emit(track)
}

// RemoveTrack deletes track and fires the removetrack event. Removing a
// non-member is a no-op.
func (s *Stream) RemoveTrack(track Track) {
	s.mu.Lock()
	i := s.indexOf(track)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.tracks = append(s.tracks[:i:i], s.tracks[i+1:]...)
	s.mu.Unlock()

	s.removed.Emit(track)
}

// OnAddTrack registers fn for the addtrack event.
func (s *Stream) OnAddTrack(fn func(Track)) *signal.Subscription {
	return s.added.Subscribe(fn)
}

// OnRemoveTrack registers fn for the removetrack event.
func (s *Stream) OnRemoveTrack(fn func(Track)) *signal.Subscription {
	return s.removed.Subscribe(fn)
}

// Stop stops every track in the stream.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
