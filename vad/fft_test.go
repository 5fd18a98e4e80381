package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/peerkit/media"
)

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 5.0, RMS([]float64{3, 4, 5, 6, 7, 5, 4, 6}), 0.5)
	assert.InDelta(t, 2.0, RMS([]float64{2, -2, 2, -2}), 1e-9)
}

func TestFFTFindsPeakBin(t *testing.T) {
	n := 64
	data := make([]complex128, n)
	for i, s := range sine(n, 1, 4) {
		data[i] = complex(float64(s), 0)
	}
	fft(data)

	peak := 0
	for i := 1; i < n/2; i++ {
		if abs(data[i]) > abs(data[peak]) {
			peak = i
		}
	}
	assert.Equal(t, 4, peak)
}

func abs(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}

func TestByteMagnitudeScale(t *testing.T) {
	assert.Equal(t, 0.0, byteMagnitude(0))
	assert.Equal(t, 0.0, byteMagnitude(1e-9))
	assert.Equal(t, 255.0, byteMagnitude(1))
	assert.InDelta(t, 127.5, byteMagnitude(0.000562341), 0.5) // -65 dB
}

func TestPCMContextLifecycle(t *testing.T) {
	ctx := NewPCMContext()
	track := media.NewAudioTrack("a", "a")
	stream := media.NewStream("s", track)

	_, err := ctx.NewAnalyser(stream, 300)
	assert.ErrorIs(t, err, ErrInvalidFFTSize)

	a, err := ctx.NewAnalyser(stream, 256)
	require.NoError(t, err)
	assert.Equal(t, 128, a.FrequencyBinCount())

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.True(t, ctx.Closed())

	_, err = ctx.NewAnalyser(stream, 256)
	assert.ErrorIs(t, err, ErrContextClosed)
}
