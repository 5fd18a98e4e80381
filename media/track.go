package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/opd-ai/peerkit/signal"
)

// Kind is the media kind of a track. It aliases pion's codec type.
type Kind = webrtc.RTPCodecType

const (
	KindAudio = webrtc.RTPCodecTypeAudio
	KindVideo = webrtc.RTPCodecTypeVideo
)

// TrackState represents the lifecycle state of a track.
type TrackState int32

const (
	// TrackStateLive indicates the track is producing media.
	TrackStateLive TrackState = iota
	// TrackStateEnded indicates the track has permanently stopped.
	TrackStateEnded
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Track is a single audio or video substream.
type Track interface {
	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind.
	Kind() Kind

	// Label returns a human-readable label for the track source.
	Label() string

	// State returns the current track state.
	State() TrackState

	// Stop releases the track locally. It does not fire the ended event.
	Stop()

	// OnEnded registers fn for the native end-of-life event.
	OnEnded(fn func()) *signal.Subscription
}

// BaseTrack provides the common Track implementation.
type BaseTrack struct {
	id    string
	label string
	kind  Kind
	state atomic.Int32

	ended    signal.Event[struct{}]
	stopOnce sync.Once
	onStop   func()
}

// NewTrack creates a live track.
func NewTrack(id string, kind Kind, label string) *BaseTrack {
	return &BaseTrack{id: id, kind: kind, label: label}
}

func (t *BaseTrack) ID() string    { return t.id }
func (t *BaseTrack) Kind() Kind    { return t.kind }
func (t *BaseTrack) Label() string { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// Stopped reports whether the track is no longer live.
func (t *BaseTrack) Stopped() bool {
	return t.State() == TrackStateEnded
}

// Stop ends the track without firing the ended event.
func (t *BaseTrack) Stop() {
	if t.state.Swap(int32(TrackStateEnded)) == int32(TrackStateEnded) {
		return
	}
	t.release()
}

// End ends the track and fires the ended event exactly once.
func (t *BaseTrack) End() {
	if t.state.Swap(int32(TrackStateEnded)) == int32(TrackStateEnded) {
		return
	}
	t.release()
	t.ended.Emit(struct{}{})
}

// OnEnded registers fn for the ended event.
func (t *BaseTrack) OnEnded(fn func()) *signal.Subscription {
	return t.ended.Subscribe(func(struct{}) { fn() })
}

// setReleaser installs a hook run once when the track leaves the live state.
func (t *BaseTrack) setReleaser(fn func()) {
	t.onStop = fn
}

func (t *BaseTrack) release() {
	t.stopOnce.Do(func() {
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// AudioTrack is an audio track that carries decoded PCM frames.
type AudioTrack struct {
	*BaseTrack
	samples signal.Event[[]float32]
}

// NewAudioTrack creates a live audio track.
func NewAudioTrack(id, label string) *AudioTrack {
	return &AudioTrack{BaseTrack: NewTrack(id, KindAudio, label)}
}

// Push publishes a frame of mono samples in [-1, 1] to every tap.
// Frames pushed after the track ended are dropped.
func (t *AudioTrack) Push(samples []float32) {
	if t.State() != TrackStateLive || len(samples) == 0 {
		return
	}
	t.samples.Emit(samples)
}

// OnSamples registers fn for every PCM frame.
func (t *AudioTrack) OnSamples(fn func([]float32)) *signal.Subscription {
	return t.samples.Subscribe(fn)
}

// SampleSource is implemented by tracks that expose decoded PCM.
type SampleSource interface {
	Track
	OnSamples(fn func([]float32)) *signal.Subscription
}

var (
	_ Track        = (*BaseTrack)(nil)
	_ SampleSource = (*AudioTrack)(nil)
)
