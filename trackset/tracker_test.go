package trackset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/signal"
)

func TestTrackerSeedsFromSnapshot(t *testing.T) {
	a := media.NewAudioTrack("a1", "mic")
	v := media.NewTrack("v1", media.KindVideo, "cam")
	source := signal.NewValue(media.NewStream("s1", a, v))

	tracker := New(source)
	defer tracker.Close()

	assert.Equal(t, []media.Track{a, v}, tracker.Tracks())
	assert.Equal(t, []media.Track{a, v}, tracker.Value().Get())
}

func TestTrackerSkipsAlreadyEndedTracks(t *testing.T) {
	a := media.NewAudioTrack("a1", "mic")
	dead := media.NewAudioTrack("a2", "old")
	dead.End()

	tracker := New(signal.NewValue(media.NewStream("s1", a, dead)))
	defer tracker.Close()

	assert.Equal(t, []media.Track{a}, tracker.Tracks())
}

// endingTrack ends on the first OnEnded registration, before the handler is
// subscribed, like a remote track whose reader fails concurrently.
type endingTrack struct {
	*media.BaseTrack
}

func (e endingTrack) OnEnded(fn func()) *signal.Subscription {
	e.End()
	return e.BaseTrack.OnEnded(fn)
}

func TestTrackerSkipsTrackEndingDuringSubscribe(t *testing.T) {
	a := media.NewAudioTrack("a1", "mic")
	racing := endingTrack{media.NewTrack("a2", media.KindAudio, "remote")}
	source := signal.NewValue(media.NewStream("s1", a, racing))

	tracker := New(source)
	defer tracker.Close()
	assert.Equal(t, []media.Track{a}, tracker.Tracks())

	late := endingTrack{media.NewTrack("a3", media.KindAudio, "remote")}
	source.Get().AddTrack(late)
	assert.Equal(t, []media.Track{a}, tracker.Tracks())
}

func TestTrackerFollowsEvents(t *testing.T) {
	tests := []struct {
		name string
		run  func(s *media.Stream, a, b, c *media.AudioTrack)
		want func(a, b, c *media.AudioTrack) []media.Track
	}{
		{
			name: "add_then_remove",
			run: func(s *media.Stream, a, b, c *media.AudioTrack) {
				s.AddTrack(b)
				s.AddTrack(c)
				s.RemoveTrack(b)
			},
			want: func(a, b, c *media.AudioTrack) []media.Track { return []media.Track{a, c} },
		},
		{
			name: "end_removes",
			run: func(s *media.Stream, a, b, c *media.AudioTrack) {
				s.AddTrack(b)
				a.End()
			},
			want: func(a, b, c *media.AudioTrack) []media.Track { return []media.Track{b} },
		},
		{
			name: "duplicate_remove_is_idempotent",
			run: func(s *media.Stream, a, b, c *media.AudioTrack) {
				s.RemoveTrack(a)
				s.RemoveTrack(a)
				a.End()
			},
			want: func(a, b, c *media.AudioTrack) []media.Track { return []media.Track{} },
		},
		{
			name: "end_then_remove",
			run: func(s *media.Stream, a, b, c *media.AudioTrack) {
				s.AddTrack(b)
				b.End()
				s.RemoveTrack(b)
			},
			want: func(a, b, c *media.AudioTrack) []media.Track { return []media.Track{a} },
		},
		{
			name: "ended_track_added_later_is_ignored",
			run: func(s *media.Stream, a, b, c *media.AudioTrack) {
				c.End()
				s.AddTrack(c)
			},
			want: func(a, b, c *media.AudioTrack) []media.Track { return []media.Track{a} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := media.NewAudioTrack("a", "a")
			b := media.NewAudioTrack("b", "b")
			c := media.NewAudioTrack("c", "c")
			s := media.NewStream("s", a)

			tracker := New(signal.NewValue(s))
			defer tracker.Close()

			tt.run(s, a, b, c)
			assert.ElementsMatch(t, tt.want(a, b, c), tracker.Tracks())
		})
	}
}

func TestTrackerSwitchingStreamsReleasesListeners(t *testing.T) {
	a := media.NewAudioTrack("a1", "mic")
	first := media.NewStream("first", a)
	b := media.NewAudioTrack("b1", "mic")
	second := media.NewStream("second", b)

	source := signal.NewValue(first)
	tracker := New(source)
	defer tracker.Close()
	require.Equal(t, []media.Track{a}, tracker.Tracks())

	source.Set(second)
	assert.Equal(t, []media.Track{b}, tracker.Tracks())

	// Events on the old stream must not leak into the new set.
	first.AddTrack(media.NewAudioTrack("late", "late"))
	a.End()
	assert.Equal(t, []media.Track{b}, tracker.Tracks())
	assert.Same(t, second, tracker.Stream())
}

func TestTrackerNullStreamEmptiesSet(t *testing.T) {
	source := signal.NewValue(media.NewStream("s", media.NewAudioTrack("a", "a")))
	tracker := New(source)
	defer tracker.Close()

	var updates int
	tracker.Value().Subscribe(func([]media.Track) { updates++ })

	source.Set(nil)

	assert.Empty(t, tracker.Tracks())
	assert.Nil(t, tracker.Stream())
	assert.Equal(t, 1, updates)
}

func TestTrackerCloseDetaches(t *testing.T) {
	s := media.NewStream("s", media.NewAudioTrack("a", "a"))
	source := signal.NewValue(s)
	tracker := New(source)

	tracker.Close()
	tracker.Close()

	assert.Equal(t, 0, source.Subscribers())
	s.AddTrack(media.NewAudioTrack("b", "b"))
	assert.Empty(t, tracker.Tracks())
}
