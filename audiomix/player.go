package audiomix

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/metrics"
	"github.com/opd-ai/peerkit/signal"
)

// ErrPlayback indicates the output refused to start playback.
var ErrPlayback = errors.New("playback failed")

// ErrNoSource indicates Play was requested without an attached stream.
var ErrNoSource = errors.New("no source attached")

// Output is an audio output element.
type Output interface {
	// SetSource attaches stream as the element's source. A nil stream detaches it.
	SetSource(stream *media.Stream)

	// Play starts playback of the current source.
	Play(ctx context.Context) error

	// Pause stops playback.
	Pause()

	// OnPlaying registers fn for the element's native playing event.
	OnPlaying(fn func()) *signal.Subscription

	// OnPause registers fn for the element's native pause event.
	OnPause(fn func()) *signal.Subscription
}

// Player keeps an Output attached to a changing stream.
type Player struct {
	ctx     context.Context
	out     Output
	playing *signal.Value[bool]
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   signal.Group
	closed bool
}

// NewPlayer attaches out to stream and starts playback of every new stream.
func NewPlayer(ctx context.Context, stream *signal.Value[*media.Stream], out Output, m *metrics.Metrics) *Player {
	p := &Player{
		ctx:     ctx,
		out:     out,
		playing: signal.NewValue(false),
		metrics: m,
	}

	p.subs.Add(out.OnPlaying(func() { p.setPlaying(true) }))
	p.subs.Add(out.OnPause(func() { p.setPlaying(false) }))
	p.subs.Add(stream.Watch(p.attach))

	return p
}

// Playing reports the output's actual play state.
func (p *Player) Playing() *signal.Value[bool] {
	return p.playing
}

// Play requests playback. The play state follows the output's events, not
// this request.
func (p *Player) Play() error {
	return p.play()
}

// Pause requests the output to pause.
func (p *Player) Pause() {
	p.out.Pause()
}

// Close detaches the player and its output.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.subs.Cancel()
	p.out.Pause()
	p.out.SetSource(nil)
	p.setPlaying(false)
}

func (p *Player) attach(stream *media.Stream) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	p.out.SetSource(stream)
	if stream == nil {
		return
	}
	if err := p.play(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Player.attach",
			"stream_id": stream.ID(),
			"error":     err.Error(),
		}).Warn("Combined audio stream attached but not playing")
	}
}

func (p *Player) play() error {
	if err := p.out.Play(p.ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Player.play",
			"error":    err.Error(),
		}).Error("Audio output refused to play")
		p.metrics.ObservePlaybackFailure()
		p.setPlaying(false)
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return nil
}

func (p *Player) setPlaying(v bool) {
	if p.playing.Get() != v {
		p.playing.Set(v)
	}
}
