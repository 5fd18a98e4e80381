package audiomix

import (
	"context"
	"sync"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/signal"
)

// Sink receives PCM frames from one track of the playing stream.
type Sink func(trackID string, samples []float32)

// SinkOutput is an Output that forwards the PCM of every audio track in its
// source to a Sink while playing.
type SinkOutput struct {
	sink Sink

	mu      sync.Mutex
	source  *media.Stream
	playing bool
	taps    signal.Group

	playingEv signal.Event[struct{}]
	pauseEv   signal.Event[struct{}]
}

// NewSinkOutput creates a paused output writing to sink.
func NewSinkOutput(sink Sink) *SinkOutput {
	return &SinkOutput{sink: sink}
}

// SetSource replaces the source. A playing output pauses.
func (o *SinkOutput) SetSource(stream *media.Stream) {
	o.mu.Lock()
	o.source = stream
	wasPlaying := o.playing
	o.playing = false
	o.mu.Unlock()

	o.taps.Cancel()
	if wasPlaying {
		o.pauseEv.Emit(struct{}{})
	}
}

// Play taps every audio track of the source.
func (o *SinkOutput) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.source == nil {
		o.mu.Unlock()
		return ErrNoSource
	}
	if o.playing {
		o.mu.Unlock()
		return nil
	}
	o.playing = true
	source := o.source
	o.mu.Unlock()

	for _, t := range source.AudioTracks() {
		src, ok := t.(media.SampleSource)
		if !ok {
			continue
		}
		id := t.ID()
		o.taps.Add(src.OnSamples(func(pcm []float32) { o.sink(id, pcm) }))
	}

	o.playingEv.Emit(struct{}{})
	return nil
}

// Pause detaches the taps.
func (o *SinkOutput) Pause() {
	o.mu.Lock()
	wasPlaying := o.playing
	o.playing = false
	o.mu.Unlock()

	if !wasPlaying {
		return
	}
	o.taps.Cancel()
	o.pauseEv.Emit(struct{}{})
}

// Source returns the attached stream.
func (o *SinkOutput) Source() *media.Stream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

// OnPlaying registers fn for the playing event.
func (o *SinkOutput) OnPlaying(fn func()) *signal.Subscription {
	return o.playingEv.Subscribe(func(struct{}) { fn() })
}

// OnPause registers fn for the pause event.
func (o *SinkOutput) OnPause(fn func()) *signal.Subscription {
	return o.pauseEv.Subscribe(func(struct{}) { fn() })
}

var _ Output = (*SinkOutput)(nil)
