package capture

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/signal"
)

// Coordinator derives the active local stream from the capture and
// screen-share inputs.
type Coordinator struct {
	mu         sync.Mutex
	capture    *media.Stream
	share      *media.Stream
	shareSubs  *signal.Group
	generation uint64

	active *signal.Value[*media.Stream]
}

// NewCoordinator creates a coordinator with no local media.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		active: signal.NewValue[*media.Stream](nil),
	}
}

// Active returns the active local stream signal. It holds the screen share
// when present, otherwise the capture stream, otherwise nil.
func (c *Coordinator) Active() *signal.Value[*media.Stream] {
	return c.active
}

// Capture returns the current capture stream.
func (c *Coordinator) Capture() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture
}

// ScreenShare returns the current screen-share stream.
func (c *Coordinator) ScreenShare() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.share
}

// SetCapture replaces the capture stream, stopping the previous one.
func (c *Coordinator) SetCapture(stream *media.Stream) {
	c.mu.Lock()
	if stream == c.capture {
		c.mu.Unlock()
		return
	}
	old := c.capture
	c.capture = stream
	c.mu.Unlock()

	stopStream(old, "capture")

	logrus.WithFields(logrus.Fields{
		"function":  "Coordinator.SetCapture",
		"stream_id": streamID(stream),
	}).Info("Capture stream set")

	c.publish()
}

// SetScreenShare replaces the screen-share stream. Any capture stream is
// stopped and cleared first, and the previous share is stopped.
func (c *Coordinator) SetScreenShare(stream *media.Stream) {
	c.mu.Lock()
	if stream == c.share {
		c.mu.Unlock()
		return
	}
	capture := c.capture
	oldShare := c.share
	oldSubs := c.shareSubs
	c.capture = nil
	c.share = stream
	c.shareSubs = nil
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	if oldSubs != nil {
		oldSubs.Cancel()
	}
	stopStream(capture, "capture")
	stopStream(oldShare, "screen share")

	if stream != nil {
		subs := c.watchShare(stream, gen)
		c.mu.Lock()
		if gen == c.generation {
			c.shareSubs = subs
			subs = nil
		}
		c.mu.Unlock()
		if subs != nil {
			subs.Cancel()
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Coordinator.SetScreenShare",
		"stream_id": streamID(stream),
	}).Info("Screen share set")

	c.publish()
}

// watchShare wires native end-of-track on every present and future share track.
func (c *Coordinator) watchShare(stream *media.Stream, gen uint64) *signal.Group {
	subs := &signal.Group{}
	watch := func(track media.Track) {
		subs.Add(track.OnEnded(func() { c.shareTrackEnded(stream, track, gen) }))
	}
	subs.Add(stream.OnAddTrack(watch))
	for _, track := range stream.Tracks() {
		if track.State() == media.TrackStateEnded {
			stream.RemoveTrack(track)
			continue
		}
		watch(track)
	}
	if stream.Len() == 0 {
		c.clearShare(gen)
	}
	return subs
}

func (c *Coordinator) shareTrackEnded(stream *media.Stream, track media.Track, gen uint64) {
	c.mu.Lock()
	current := gen == c.generation
	c.mu.Unlock()
	if !current {
		return
	}

	stream.RemoveTrack(track)

	logrus.WithFields(logrus.Fields{
		"function":  "Coordinator.shareTrackEnded",
		"stream_id": stream.ID(),
		"track_id":  track.ID(),
		"remaining": stream.Len(),
	}).Info("Screen share track ended")

	if stream.Len() == 0 {
		c.clearShare(gen)
		c.publish()
	}
}

// clearShare drops the share stream of generation gen.
func (c *Coordinator) clearShare(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.share == nil {
		c.mu.Unlock()
		return
	}
	c.share = nil
	subs := c.shareSubs
	c.shareSubs = nil
	c.generation++
	c.mu.Unlock()

	if subs != nil {
		subs.Cancel()
	}
}

// Reset stops and clears both inputs.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	capture := c.capture
	share := c.share
	subs := c.shareSubs
	c.capture = nil
	c.share = nil
	c.shareSubs = nil
	c.generation++
	c.mu.Unlock()

	if subs != nil {
		subs.Cancel()
	}
	stopStream(capture, "capture")
	stopStream(share, "screen share")
	c.publish()
}

func (c *Coordinator) publish() {
	c.mu.Lock()
	next := c.share
	if next == nil {
		next = c.capture
	}
	c.mu.Unlock()

	if c.active.Get() != next {
		c.active.Set(next)
	}
}

func stopStream(stream *media.Stream, source string) {
	if stream == nil {
		return
	}
	stream.Stop()
	logrus.WithFields(logrus.Fields{
		"function":  "stopStream",
		"source":    source,
		"stream_id": stream.ID(),
		"tracks":    stream.Len(),
	}).Debug("Stopped local stream")
}

func streamID(stream *media.Stream) string {
	if stream == nil {
		return ""
	}
	return stream.ID()
}
