package vad

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/signal"
)

// ErrContextClosed is returned when building an analyser on a closed context.
var ErrContextClosed = errors.New("analysis context closed")

// ErrInvalidFFTSize is returned for analysis windows that are not a power of two.
var ErrInvalidFFTSize = errors.New("fft size must be a power of two")

// Analyser exposes frequency-domain magnitudes of a stream.
type Analyser interface {
	// FrequencyBinCount returns the number of bins, half the FFT size.
	FrequencyBinCount() int

	// FrequencyData fills dst with byte-scale magnitudes (0..255).
	FrequencyData(dst []float64)
}

// AnalysisContext owns the audio resources behind analysers.
type AnalysisContext interface {
	NewAnalyser(stream *media.Stream, fftSize int) (Analyser, error)
	Close() error
	Closed() bool
}

// ContextFactory opens a new analysis context.
type ContextFactory func() AnalysisContext

// PCMContext analyses the decoded PCM of media.SampleSource tracks.
type PCMContext struct {
	mu     sync.Mutex
	closed bool
	taps   signal.Group
}

// NewPCMContext opens a PCM analysis context.
func NewPCMContext() *PCMContext {
	return &PCMContext{}
}

// NewAnalyser taps every audio track of stream that exposes samples.
// Audio tracks without a PCM tap contribute silence.
func (c *PCMContext) NewAnalyser(stream *media.Stream, fftSize int) (Analyser, error) {
	if !isPowerOfTwo(fftSize) || fftSize < 32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFFTSize, fftSize)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrContextClosed
	}

	a := newPCMAnalyser(fftSize)
	taps := 0
	for _, t := range stream.AudioTracks() {
		src, ok := t.(media.SampleSource)
		if !ok {
			continue
		}
		c.taps.Add(src.OnSamples(a.write))
		taps++
	}

	logrus.WithFields(logrus.Fields{
		"function":  "PCMContext.NewAnalyser",
		"stream_id": stream.ID(),
		"fft_size":  fftSize,
		"taps":      taps,
	}).Debug("Analyser created")

	return a, nil
}

// Close releases every tap. Closing twice is a no-op.
func (c *PCMContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.taps.Cancel()
	return nil
}

// Closed reports whether Close was called.
func (c *PCMContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type pcmAnalyser struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	spectrum []complex128
}

func newPCMAnalyser(fftSize int) *pcmAnalyser {
	return &pcmAnalyser{
		ring:     make([]float64, fftSize),
		window:   hannWindow(fftSize),
		spectrum: make([]complex128, fftSize),
	}
}

func (a *pcmAnalyser) write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

func (a *pcmAnalyser) FrequencyBinCount() int {
	return len(a.ring) / 2
}

func (a *pcmAnalyser) FrequencyData(dst []float64) {
	a.mu.Lock()
	n := len(a.ring)
	for i := 0; i < n; i++ {
		sample := a.ring[(a.pos+i)%n]
		a.spectrum[i] = complex(sample*a.window[i], 0)
	}
	fft(a.spectrum)
	bins := n / 2
	for i := 0; i < bins && i < len(dst); i++ {
		dst[i] = byteMagnitude(cmplx.Abs(a.spectrum[i]) / float64(n))
	}
	a.mu.Unlock()
}

var _ AnalysisContext = (*PCMContext)(nil)
