package file

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Default estimator settings.
const (
	DefaultSampleInterval = 250 * time.Millisecond
	DefaultWindowSize     = 10
)

// SpeedOptions configures a SpeedEstimator. Zero fields take the defaults.
type SpeedOptions struct {
	SampleInterval time.Duration
	WindowSize     int
}

func (o SpeedOptions) withDefaults() SpeedOptions {
	if o.SampleInterval <= 0 {
		o.SampleInterval = DefaultSampleInterval
	}
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	return o
}

// SpeedEstimator turns a monotonically increasing byte counter into a
// sliding-window average throughput in bytes per second.
type SpeedEstimator struct {
	accessor func() uint64
	opts     SpeedOptions

	mu           sync.Mutex
	timeProvider TimeProvider
	window       []float64
	primed       bool
	lastBytes    uint64
	lastTime     time.Time
	generation   uint64
	stop         chan struct{}
}

// NewSpeedEstimator creates an estimator reading the counter through accessor.
func NewSpeedEstimator(accessor func() uint64, opts SpeedOptions) *SpeedEstimator {
	opts = opts.withDefaults()
	return &SpeedEstimator{
		accessor:     accessor,
		opts:         opts,
		timeProvider: defaultTimeProvider,
		window:       make([]float64, 0, opts.WindowSize),
	}
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (e *SpeedEstimator) SetTimeProvider(tp TimeProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeProvider = tp
}

// Start takes one sample immediately and then one every SampleInterval.
// The immediate sample only primes the counter, so time spent stopped never
// counts as idle throughput. Calling Start on a running estimator is a no-op.
func (e *SpeedEstimator) Start() {
	e.mu.Lock()
	if e.stop != nil {
		e.mu.Unlock()
		return
	}
	e.generation++
	gen := e.generation
	e.primed = false
	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":        "SpeedEstimator.Start",
		"sample_interval": e.opts.SampleInterval,
		"window_size":     e.opts.WindowSize,
	}).Debug("Speed estimation started")

	e.tick(gen)

	ticker := time.NewTicker(e.opts.SampleInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.tick(gen)
			}
		}
	}()
}

// Stop halts sampling. No sample is recorded after Stop returns; the
// window keeps its contents.
func (e *SpeedEstimator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop == nil {
		return
	}
	e.generation++
	close(e.stop)
	e.stop = nil
}

// Sample records one reading of the counter.
func (e *SpeedEstimator) Sample() {
	bytes := e.accessor()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(bytes)
}

func (e *SpeedEstimator) tick(gen uint64) {
	bytes := e.accessor()
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.record(bytes)
}

// record must be called with e.mu held.
func (e *SpeedEstimator) record(bytes uint64) {
	now := e.timeProvider.Now()
	if !e.primed {
		e.primed = true
		e.lastBytes = bytes
		e.lastTime = now
		return
	}

	dt := now.Sub(e.lastTime).Seconds()
	if bytes < e.lastBytes {
		logrus.WithFields(logrus.Fields{
			"function": "SpeedEstimator.record",
			"previous": e.lastBytes,
			"current":  bytes,
		}).Debug("Counter went backwards, sample dropped")
	} else if dt > 0 {
		e.window = append(e.window, float64(bytes-e.lastBytes)/dt)
		if len(e.window) > e.opts.WindowSize {
			e.window = e.window[1:]
		}
	}

	e.lastBytes = bytes
	e.lastTime = now
}

// Average returns the mean of the current window in bytes per second.
// ok is false until at least one speed has been recorded.
func (e *SpeedEstimator) Average() (speed float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.window) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range e.window {
		sum += s
	}
	return sum / float64(len(e.window)), true
}

// Running reports whether the periodic sampler is active.
func (e *SpeedEstimator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop != nil
}
