package vad

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/media"
	"github.com/opd-ai/peerkit/metrics"
	"github.com/opd-ai/peerkit/signal"
)

const (
	// DefaultSpeakingThreshold is the RMS of byte-scale magnitudes above which
	// a stream counts as speaking.
	DefaultSpeakingThreshold = 10.0

	// DefaultInterval is the time between two samples.
	DefaultInterval = 100 * time.Millisecond

	// DefaultFFTSize is the analysis window in samples.
	DefaultFFTSize = 512
)

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Meter. Zero fields take the package defaults.
type Options struct {
	SpeakingThreshold float64
	Interval          time.Duration
	FFTSize           int

	Scheduler  Scheduler
	NewContext ContextFactory
	Metrics    *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.SpeakingThreshold <= 0 {
		o.SpeakingThreshold = DefaultSpeakingThreshold
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.FFTSize <= 0 {
		o.FFTSize = DefaultFFTSize
	}
	if o.Scheduler == nil {
		o.Scheduler = realScheduler{}
	}
	if o.NewContext == nil {
		o.NewContext = func() AnalysisContext { return NewPCMContext() }
	}
	return o
}

// Meter samples a stream's audio and reports whether someone is speaking.
type Meter struct {
	opts Options

	mu         sync.Mutex
	generation uint64
	actx       AnalysisContext
	analyser   Analyser
	bins       []float64
	timer      Timer
	samples    uint64
	closed     bool

	sourceSub *signal.Subscription
	speaking  *signal.Value[bool]
}

// NewMeter creates a meter following source.
func NewMeter(source *signal.Value[*media.Stream], opts Options) *Meter {
	m := &Meter{
		opts:     opts.withDefaults(),
		speaking: signal.NewValue(false),
	}
	m.sourceSub = source.Watch(m.attach)
	return m
}

// Speaking returns the speaking signal.
func (m *Meter) Speaking() *signal.Value[bool] {
	return m.speaking
}

// Samples returns the number of samples taken so far.
func (m *Meter) Samples() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// Close stops sampling and releases the analysis context.
func (m *Meter) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.sourceSub.Cancel()
	m.teardown()
}

// teardown stops the pending sample, closes the context and resets speaking.
// It returns the generation that subsequent setup must match.
func (m *Meter) teardown() uint64 {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	timer := m.timer
	actx := m.actx
	m.timer = nil
	m.actx = nil
	m.analyser = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if actx != nil {
		if err := actx.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Meter.teardown",
				"error":    err.Error(),
			}).Warn("Failed to close analysis context")
		}
	}
	m.setSpeaking(false)
	return gen
}

func (m *Meter) attach(stream *media.Stream) {
	gen := m.teardown()

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed || stream == nil || !stream.HasAudio() {
		return
	}

	actx := m.opts.NewContext()
	analyser, err := actx.NewAnalyser(stream, m.opts.FFTSize)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Meter.attach",
			"stream_id": stream.ID(),
			"error":     err.Error(),
		}).Error("Failed to build audio analyser")
		if cerr := actx.Close(); cerr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Meter.attach",
				"error":    cerr.Error(),
			}).Warn("Failed to close analysis context")
		}
		return
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if err := actx.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Meter.attach",
				"stream_id": stream.ID(),
				"error":     err.Error(),
			}).Warn("Failed to close superseded analysis context")
		}
		return
	}
	m.actx = actx
	m.analyser = analyser
	m.bins = make([]float64, analyser.FrequencyBinCount())
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Meter.attach",
		"stream_id": stream.ID(),
		"interval":  m.opts.Interval,
	}).Debug("Voice activity sampling started")

	m.sample(gen)
}

// sample takes one measurement and schedules the next.
func (m *Meter) sample(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.actx == nil || m.actx.Closed() {
		m.mu.Unlock()
		return
	}
	m.analyser.FrequencyData(m.bins)
	rms := RMS(m.bins)
	m.samples++
	m.mu.Unlock()

	m.setSpeaking(rms > m.opts.SpeakingThreshold)
	m.schedule(gen)
}

func (m *Meter) schedule(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.actx == nil || m.actx.Closed() {
		return
	}
	m.timer = m.opts.Scheduler.AfterFunc(m.opts.Interval, func() { m.sample(gen) })
}

func (m *Meter) setSpeaking(v bool) {
	if m.speaking.Get() == v {
		return
	}
	m.opts.Metrics.ObserveSpeaking(v)
	m.speaking.Set(v)
}
