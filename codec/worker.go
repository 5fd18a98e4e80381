package codec

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerkit/metrics"
)

// ErrWorkerClosed is returned when posting to, or waiting on, a closed worker.
var ErrWorkerClosed = errors.New("codec worker closed")

// DefaultQueueSize is the buffer of a worker's request and response channels.
const DefaultQueueSize = 16

// Envelope wraps a message with the id that correlates a request with its
// response.
type Envelope[T any] struct {
	ID   uint64
	Body T
}

// Worker handles one request at a time on its own goroutine.
type Worker[Req any, Resp Response] struct {
	name    string
	handle  func(Req) Resp
	metrics *metrics.Metrics

	in  chan Envelope[Req]
	out chan Envelope[Resp]

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewWorker starts a worker named name running handle for every request.
func NewWorker[Req any, Resp Response](name string, handle func(Req) Resp, m *metrics.Metrics) *Worker[Req, Resp] {
	w := &Worker[Req, Resp]{
		name:    name,
		handle:  handle,
		metrics: m,
		in:      make(chan Envelope[Req], DefaultQueueSize),
		out:     make(chan Envelope[Resp], DefaultQueueSize),
		done:    make(chan struct{}),
	}
	go w.run()

	logrus.WithFields(logrus.Fields{
		"function": "NewWorker",
		"worker":   name,
	}).Debug("Codec worker started")
	return w
}

// Name returns the worker name used in logs and metrics.
func (w *Worker[Req, Resp]) Name() string {
	return w.name
}

// Post queues a request. It blocks while the queue is full.
func (w *Worker[Req, Resp]) Post(env Envelope[Req]) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerClosed
	}
	w.in <- env
	return nil
}

// Responses returns the channel answers are delivered on. It is closed once
// the worker has stopped and every queued request was answered.
func (w *Worker[Req, Resp]) Responses() <-chan Envelope[Resp] {
	return w.out
}

// Close stops accepting requests. Queued requests are still answered.
func (w *Worker[Req, Resp]) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.in)
	w.mu.Unlock()
}

// Done is closed when the worker goroutine has exited.
func (w *Worker[Req, Resp]) Done() <-chan struct{} {
	return w.done
}

func (w *Worker[Req, Resp]) run() {
	defer close(w.done)
	defer close(w.out)

	for env := range w.in {
		start := time.Now()
		resp := w.handle(env.Body)
		elapsed := time.Since(start)

		n, err := resp.outcome()
		w.metrics.ObserveCodecJob(w.name, err, n, elapsed)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Worker.run",
				"worker":   w.name,
				"id":       env.ID,
				"error":    err.Error(),
			}).Warn("Codec job failed")
		}

		w.out <- Envelope[Resp]{ID: env.ID, Body: resp}
	}
}

// Client issues requests to a worker and waits for the matching responses.
type Client[Req any, Resp Response] struct {
	worker *Worker[Req, Resp]

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Resp
	done    chan struct{}
}

// NewClient takes ownership of w and starts dispatching its responses.
func NewClient[Req any, Resp Response](w *Worker[Req, Resp]) *Client[Req, Resp] {
	c := &Client[Req, Resp]{
		worker:  w,
		pending: make(map[uint64]chan Resp),
		done:    make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Do posts req and waits for its response.
func (c *Client[Req, Resp]) Do(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan Resp, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.worker.Post(Envelope[Req]{ID: id, Body: req}); err != nil {
		c.forget(id)
		return zero, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return zero, ErrWorkerClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(id)
		return zero, ctx.Err()
	}
}

func (c *Client[Req, Resp]) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client[Req, Resp]) dispatch() {
	defer close(c.done)

	for env := range c.worker.Responses() {
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()

		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "Client.dispatch",
				"worker":   c.worker.Name(),
				"id":       env.ID,
			}).Debug("Dropping response for abandoned request")
			continue
		}
		ch <- env.Body
	}

	c.mu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// Pending returns the number of requests awaiting a response.
func (c *Client[Req, Resp]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops the worker and waits until every queued request was answered.
func (c *Client[Req, Resp]) Close() {
	c.worker.Close()
	<-c.done
}
