package media

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// opusFrameBytes is the decode buffer size: 1920 int16 samples (40ms at 48kHz).
const opusFrameBytes = 1920 * 2

// RTPSource yields RTP packets for one remote track.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, error)
}

// Decoder converts one RTP payload into mono PCM samples in [-1, 1].
type Decoder interface {
	Decode(payload []byte) ([]float32, error)
}

type trackRemoteSource struct {
	track *webrtc.TrackRemote
}

func (s trackRemoteSource) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := s.track.ReadRTP()
	return pkt, err
}

// OpusDecoder decodes Opus payloads with the pure Go pion/opus decoder.
type OpusDecoder struct {
	decoder opus.Decoder
	output  []byte
}

// NewOpusDecoder creates a decoder with a reusable output buffer.
func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{
		decoder: opus.NewDecoder(),
		output:  make([]byte, opusFrameBytes),
	}
}

// Decode decodes payload into mono float samples. Stereo output is downmixed
// by averaging the interleaved channels.
func (d *OpusDecoder) Decode(payload []byte) ([]float32, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty opus payload")
	}

	bandwidth, isStereo, err := d.decoder.Decode(payload, d.output)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	// 20ms frames at the decoded bandwidth's sample rate
	count := bandwidth.SampleRate() / 50
	channels := 1
	if isStereo {
		channels = 2
	}
	if limit := len(d.output) / (2 * channels); count > limit || count <= 0 {
		count = limit
	}

	pcm := make([]float32, count)
	for i := 0; i < count; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sample := int16(d.output[off]) | int16(d.output[off+1])<<8
			sum += float32(sample) / 32768.0
		}
		pcm[i] = sum / float32(channels)
	}
	return pcm, nil
}

// RemoteAudioTrack is an AudioTrack fed by decoding RTP from a remote peer.
// The track ends natively when the RTP source fails.
type RemoteAudioTrack struct {
	*AudioTrack

	source  RTPSource
	decoder Decoder

	startOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRemoteAudioTrack wraps a pion remote track carrying Opus audio.
func NewRemoteAudioTrack(remote *webrtc.TrackRemote) *RemoteAudioTrack {
	return NewRemoteAudioTrackFromSource(remote.ID(), remote.Codec().MimeType, trackRemoteSource{track: remote}, NewOpusDecoder())
}

// NewRemoteAudioTrackFromSource builds a remote track over any RTP source and decoder.
func NewRemoteAudioTrackFromSource(id, label string, source RTPSource, decoder Decoder) *RemoteAudioTrack {
	t := &RemoteAudioTrack{
		AudioTrack: NewAudioTrack(id, label),
		source:     source,
		decoder:    decoder,
		done:       make(chan struct{}),
	}
	t.setReleaser(func() { close(t.done) })
	return t
}

// Start launches the read-and-decode loop. Subsequent calls are no-ops.
func (t *RemoteAudioTrack) Start() {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.readLoop()
	})
}

// Wait blocks until the read loop has exited.
func (t *RemoteAudioTrack) Wait() {
	t.wg.Wait()
}

func (t *RemoteAudioTrack) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *RemoteAudioTrack) readLoop() {
	defer t.wg.Done()

	frames := 0
	for {
		if t.stopped() {
			return
		}

		pkt, err := t.source.ReadRTP()
		if err != nil {
			if t.stopped() {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "RemoteAudioTrack.readLoop",
				"track_id": t.ID(),
				"frames":   frames,
				"error":    err.Error(),
			}).Info("Remote audio source ended")
			t.End()
			return
		}

		if pkt == nil || len(pkt.Payload) == 0 {
			continue
		}

		pcm, err := t.decoder.Decode(pkt.Payload)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "RemoteAudioTrack.readLoop",
				"track_id": t.ID(),
				"seq":      pkt.SequenceNumber,
				"error":    err.Error(),
			}).Debug("Dropping undecodable audio packet")
			continue
		}

		frames++
		t.Push(pcm)
	}
}
