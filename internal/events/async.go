package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("publisher is closed")
)

type queued struct {
	ctx     context.Context
	event   Event
	flushed chan struct{}
}

// AsyncPublisher hands events to a background goroutine that forwards them,
// in order, to the wrapped publisher. Publish never waits on the network.
type AsyncPublisher struct {
	next    Publisher
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

// NewAsyncPublisher starts the delivery loop with room for size queued events.
func NewAsyncPublisher(next Publisher, logger *zap.Logger, size int) *AsyncPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: 10 * time.Second,
		queue:   make(chan queued, size),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish queues e. Values carried by ctx (the trace span) travel with the
// event; its cancellation does not.
func (p *AsyncPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), event: e}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush waits until every event queued before the call has been delivered.
func (p *AsyncPublisher) Flush(ctx context.Context) error {
	marker := queued{flushed: make(chan struct{})}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return p.wait(ctx, p.done)
	}
	select {
	case p.queue <- marker:
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	return p.wait(ctx, marker.flushed)
}

// Close stops accepting events and waits for the queue to drain.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	return p.wait(ctx, p.done)
}

func (p *AsyncPublisher) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) loop() {
	defer close(p.done)
	for q := range p.queue {
		if q.flushed != nil {
			close(q.flushed)
			continue
		}
		p.deliver(q)
	}
}

func (p *AsyncPublisher) deliver(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, p.timeout)
	defer cancel()
	if err := p.next.Publish(ctx, q.event); err != nil {
		p.logger.Warn("event not published",
			zap.String("event_id", q.event.EventID),
			zap.String("type", q.event.Type),
			zap.Error(err))
	}
}
