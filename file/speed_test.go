package file

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	currentTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.currentTime
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	return m.currentTime.Sub(t)
}

func (m *mockTimeProvider) advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{
		currentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type sampleStep struct {
	bytes   uint64
	advance time.Duration
}

func runSamples(est *SpeedEstimator, tp *mockTimeProvider, counter *uint64, steps []sampleStep) {
	for _, s := range steps {
		tp.advance(s.advance)
		*counter = s.bytes
		est.Sample()
	}
}

func TestSpeedEstimatorAverage(t *testing.T) {
	tests := []struct {
		name      string
		window    int
		steps     []sampleStep
		wantOK    bool
		wantSpeed float64
	}{
		{
			name:   "no samples",
			window: 10,
		},
		{
			name:   "first sample only primes",
			window: 10,
			steps:  []sampleStep{{bytes: 100}},
		},
		{
			name:      "two speeds averaged",
			window:    10,
			steps:     []sampleStep{{0, 0}, {100, 250 * time.Millisecond}, {250, 250 * time.Millisecond}},
			wantOK:    true,
			wantSpeed: 500,
		},
		{
			name:      "decreasing counter dropped",
			window:    10,
			steps:     []sampleStep{{0, 0}, {100, 250 * time.Millisecond}, {250, 250 * time.Millisecond}, {50, 250 * time.Millisecond}},
			wantOK:    true,
			wantSpeed: 500,
		},
		{
			name:   "bookkeeping advances after reset",
			window: 10,
			steps: []sampleStep{
				{0, 0},
				{1000, time.Second},
				{10, time.Second},
				{110, time.Second},
			},
			wantOK:    true,
			wantSpeed: (1000.0 + 100.0) / 2,
		},
		{
			name:      "zero elapsed time skipped",
			window:    10,
			steps:     []sampleStep{{0, 0}, {100, 0}, {200, time.Second}},
			wantOK:    true,
			wantSpeed: 100,
		},
		{
			name:   "oldest evicted",
			window: 2,
			steps: []sampleStep{
				{0, 0},
				{1000, time.Second},
				{1100, time.Second},
				{1400, time.Second},
			},
			wantOK:    true,
			wantSpeed: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counter uint64
			tp := newMockTimeProvider()
			est := NewSpeedEstimator(func() uint64 { return counter }, SpeedOptions{WindowSize: tt.window})
			est.SetTimeProvider(tp)

			runSamples(est, tp, &counter, tt.steps)

			speed, ok := est.Average()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantSpeed, speed, 1e-9)
		})
	}
}

func TestSpeedEstimatorDefaults(t *testing.T) {
	est := NewSpeedEstimator(func() uint64 { return 0 }, SpeedOptions{})
	assert.Equal(t, DefaultSampleInterval, est.opts.SampleInterval)
	assert.Equal(t, DefaultWindowSize, est.opts.WindowSize)
}

func TestSpeedEstimatorStartStop(t *testing.T) {
	var counter atomic.Uint64
	var reads atomic.Int64
	est := NewSpeedEstimator(func() uint64 {
		reads.Add(1)
		return counter.Add(1000)
	}, SpeedOptions{SampleInterval: 5 * time.Millisecond})

	est.Start()
	est.Start()
	require.True(t, est.Running())
	assert.GreaterOrEqual(t, reads.Load(), int64(1), "Start samples immediately")

	assert.Eventually(t, func() bool {
		_, ok := est.Average()
		return ok
	}, time.Second, 5*time.Millisecond)

	est.Stop()
	est.Stop()
	assert.False(t, est.Running())

	before, _ := est.Average()
	time.Sleep(30 * time.Millisecond)
	after, _ := est.Average()
	assert.Equal(t, before, after, "no samples after Stop")
}
