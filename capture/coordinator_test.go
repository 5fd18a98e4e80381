package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerkit/media"
)

func cameraStream(id string) (*media.Stream, *media.BaseTrack, *media.AudioTrack) {
	video := media.NewTrack(id+"-video", media.KindVideo, "camera")
	audio := media.NewAudioTrack(id+"-audio", "microphone")
	return media.NewStream(id, video, audio), video, audio
}

func recordActive(c *Coordinator) *[]*media.Stream {
	var seen []*media.Stream
	c.Active().Subscribe(func(s *media.Stream) { seen = append(seen, s) })
	return &seen
}

func TestCoordinatorCaptureOnly(t *testing.T) {
	c := NewCoordinator()
	seen := recordActive(c)

	cam, _, _ := cameraStream("cam")
	c.SetCapture(cam)
	c.SetCapture(cam)

	assert.Same(t, cam, c.Active().Get())
	assert.Same(t, cam, c.Capture())
	assert.Len(t, *seen, 1)
}

func TestCoordinatorCaptureReplacementStopsPrevious(t *testing.T) {
	c := NewCoordinator()
	first, video, audio := cameraStream("first")
	second, _, _ := cameraStream("second")

	c.SetCapture(first)
	c.SetCapture(second)

	assert.True(t, video.Stopped())
	assert.True(t, audio.Stopped())
	assert.Same(t, second, c.Active().Get())
}

func TestCoordinatorScreenShareStopsCapture(t *testing.T) {
	c := NewCoordinator()
	cam, video, audio := cameraStream("cam")
	c.SetCapture(cam)

	screen := media.NewStream("screen", media.NewTrack("screen-video", media.KindVideo, "screen"))
	c.SetScreenShare(screen)

	assert.True(t, video.Stopped(), "camera video stopped")
	assert.True(t, audio.Stopped(), "microphone stopped")
	assert.Nil(t, c.Capture())
	assert.Same(t, screen, c.ScreenShare())
	assert.Same(t, screen, c.Active().Get())
}

func TestCoordinatorClearingShareStillClearsCapture(t *testing.T) {
	c := NewCoordinator()
	screen := media.NewStream("screen", media.NewTrack("sv", media.KindVideo, "screen"))
	c.SetScreenShare(screen)

	cam, video, _ := cameraStream("cam")
	c.SetCapture(cam)
	assert.Same(t, screen, c.Active().Get(), "screen share has priority")

	c.SetScreenShare(nil)
	assert.True(t, video.Stopped())
	assert.Nil(t, c.Capture())
	assert.Nil(t, c.Active().Get())
}

func TestCoordinatorShareTrackEnded(t *testing.T) {
	c := NewCoordinator()
	seen := recordActive(c)

	video := media.NewTrack("sv", media.KindVideo, "screen")
	audio := media.NewAudioTrack("sa", "system audio")
	screen := media.NewStream("screen", video, audio)
	c.SetScreenShare(screen)
	require.Same(t, screen, c.Active().Get())

	video.End()
	assert.False(t, screen.Contains(video))
	assert.Equal(t, 1, screen.Len())
	assert.Same(t, screen, c.Active().Get(), "smaller share stays active")

	audio.End()
	assert.Equal(t, 0, screen.Len())
	assert.Nil(t, c.ScreenShare())
	assert.Nil(t, c.Active().Get())
	assert.Equal(t, []*media.Stream{screen, nil}, *seen)
}

func TestCoordinatorShareTrackAddedLater(t *testing.T) {
	c := NewCoordinator()
	video := media.NewTrack("sv", media.KindVideo, "screen")
	screen := media.NewStream("screen", video)
	c.SetScreenShare(screen)

	audio := media.NewAudioTrack("sa", "system audio")
	screen.AddTrack(audio)

	video.End()
	assert.Same(t, screen, c.Active().Get())
	audio.End()
	assert.Nil(t, c.Active().Get())
}

func TestCoordinatorReplacedShareIgnoresOldEnds(t *testing.T) {
	c := NewCoordinator()
	oldTrack := media.NewTrack("old", media.KindVideo, "screen")
	oldShare := media.NewStream("old", oldTrack)
	c.SetScreenShare(oldShare)

	newShare := media.NewStream("new", media.NewTrack("new", media.KindVideo, "screen"))
	c.SetScreenShare(newShare)
	assert.True(t, oldTrack.Stopped())

	oldTrack.End()
	assert.Same(t, newShare, c.Active().Get())
	assert.Equal(t, 1, oldShare.Len(), "old share untouched after replacement")
}

func TestCoordinatorEmptyShare(t *testing.T) {
	c := NewCoordinator()
	ended := media.NewTrack("gone", media.KindVideo, "screen")
	ended.End()
	c.SetScreenShare(media.NewStream("empty", ended))

	assert.Nil(t, c.ScreenShare())
	assert.Nil(t, c.Active().Get())
}

func TestCoordinatorReset(t *testing.T) {
	c := NewCoordinator()
	cam, video, _ := cameraStream("cam")
	c.SetCapture(cam)

	c.Reset()
	assert.True(t, video.Stopped())
	assert.Nil(t, c.Capture())
	assert.Nil(t, c.Active().Get())
}
