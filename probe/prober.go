package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/metrics"
)

// Timer is a pending countdown.
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

// Prober runs connectivity probes.
type Prober struct {
	factory   SessionFactory
	metrics   *metrics.Metrics
	scheduler Scheduler
}

// NewProber creates a prober building sessions with factory.
func NewProber(factory SessionFactory, m *metrics.Metrics) *Prober {
	return &Prober{factory: factory, metrics: m, scheduler: realScheduler{}}
}

// SetScheduler replaces the countdown scheduler for deterministic testing.
func (p *Prober) SetScheduler(s Scheduler) {
	p.scheduler = s
}

type probeResult struct {
	ok  bool
	err error
}

// probeRun is the state of one probe. It resolves exactly once.
type probeRun struct {
	server   string
	required CandidateType

	mu      sync.Mutex
	done    bool
	success bool
	timer   Timer
	result  chan probeResult
}

func (r *probeRun) onCandidate(c *Candidate) {
	if c == nil {
		r.finalize(nil)
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Prober.onCandidate",
		"server":   r.server,
		"type":     c.Type,
		"address":  c.Address,
	}).Debug("Candidate gathered")

	if c.matches(r.required) {
		r.mu.Lock()
		r.success = true
		r.mu.Unlock()
	}
	if c.Address != "" {
		r.finalize(nil)
	}
}

func (r *probeRun) setTimer(t Timer) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		t.Stop()
		return
	}
	r.timer = t
	r.mu.Unlock()
}

// finalize resolves the probe. A nil err resolves by the success flag.
func (r *probeRun) finalize(err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	timer := r.timer
	success := r.success
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if err == nil && !success {
		err = ErrProbeTimeout
	}
	r.result <- probeResult{ok: err == nil, err: err}
}

// Probe reports whether server yields a candidate qualifying under policy.
// It returns true with a nil error on success, otherwise false with
// ErrProbeTimeout, an error wrapping ErrNegotiation, or ctx.Err().
func (p *Prober) Probe(ctx context.Context, server IceServerConfig, policy Policy) (bool, error) {
	start := time.Now()
	ok, err := p.probe(ctx, server, policy)
	p.metrics.ObserveProbe(outcome(err), time.Since(start))

	fields := logrus.Fields{
		"function":  "Prober.Probe",
		"server":    server.String(),
		"policy":    policy.TransportPolicy,
		"required":  policy.RequiredCandidateType,
		"reachable": ok,
		"elapsed":   time.Since(start),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logrus.WithFields(fields).Info("ICE probe finished")
	return ok, err
}

func (p *Prober) probe(ctx context.Context, server IceServerConfig, policy Policy) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	session, err := p.factory.NewSession(server, policy.TransportPolicy)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNegotiation, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Prober.probe",
				"server":   server.String(),
				"error":    cerr.Error(),
			}).Warn("Failed to close probe session")
		}
	}()

	run := &probeRun{
		server:   server.String(),
		required: policy.RequiredCandidateType,
		result:   make(chan probeResult, 1),
	}
	session.OnCandidate(run.onCandidate)
	if reporter, ok := session.(ErrorReporter); ok {
		reporter.OnCandidateError(func(err error) {
			logrus.WithFields(logrus.Fields{
				"function": "Prober.probe",
				"server":   server.String(),
				"error":    err.Error(),
			}).Warn("ICE candidate error")
		})
	}
	run.setTimer(p.scheduler.AfterFunc(policy.timeout(), func() { run.finalize(nil) }))

	if err := session.Negotiate(); err != nil {
		run.finalize(fmt.Errorf("%w: %v", ErrNegotiation, err))
	}

	var res probeResult
	select {
	case res = <-run.result:
	case <-ctx.Done():
		run.finalize(ctx.Err())
		res = <-run.result
	}
	return res.ok, res.err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrProbeTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrNegotiation):
		return metrics.OutcomeNegotiation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}

// Filter probes servers concurrently and returns those that passed, in
// input order.
func (p *Prober) Filter(ctx context.Context, servers []IceServerConfig, policy Policy) []IceServerConfig {
	passed := make([]bool, len(servers))
	var wg sync.WaitGroup
	for i, server := range servers {
		wg.Add(1)
		go func(i int, server IceServerConfig) {
			defer wg.Done()
			ok, _ := p.Probe(ctx, server, policy)
			passed[i] = ok
		}(i, server)
	}
	wg.Wait()

	reachable := make([]IceServerConfig, 0, len(servers))
	for i, ok := range passed {
		if ok {
			reachable = append(reachable, servers[i])
		}
	}
	return reachable
}
