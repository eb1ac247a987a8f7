package store

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"stock_ledger/internal/apperrors"
)

// Writer saves snapshots in the background so mutations never wait on I/O.
// Only the latest snapshot per key is kept; older pending ones are dropped.
// Saves that still fail after retrying are logged and reported on Failures.
type Writer struct {
	gw     Gateway
	logger *zap.Logger

	initialInterval time.Duration
	maxElapsed      time.Duration

	mu      sync.Mutex
	pending map[string][]byte
	saving  bool
	waiters []chan struct{}

	wake     chan struct{}
	failures chan error
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithRetry sets the first retry delay and how long a single snapshot is retried.
func WithRetry(initial, maxElapsed time.Duration) WriterOption {
	return func(w *Writer) {
		w.initialInterval = initial
		w.maxElapsed = maxElapsed
	}
}

// NewWriter starts the background save loop.
func NewWriter(gw Gateway, logger *zap.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		gw:              gw,
		logger:          logger,
		initialInterval: 200 * time.Millisecond,
		maxElapsed:      30 * time.Second,
		pending:         make(map[string][]byte),
		wake:            make(chan struct{}, 1),
		failures:        make(chan error, 16),
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w
}

// Enqueue schedules data to be saved under key.
func (w *Writer) Enqueue(key string, data []byte) {
	w.mu.Lock()
	w.pending[key] = data
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Failures delivers a *apperrors.PersistenceError for every snapshot that could
// not be saved. Failures are dropped if nobody drains the channel.
func (w *Writer) Failures() <-chan error {
	return w.failures
}

// Flush blocks until every snapshot enqueued so far has been attempted.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.pending) == 0 && !w.saving {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending snapshots and stops the loop.
func (w *Writer) Close(ctx context.Context) error {
	err := w.Flush(ctx)
	w.cancel()
	<-w.done
	return err
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}
		w.drain()
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.saving = false
			for _, ch := range w.waiters {
				close(ch)
			}
			w.waiters = nil
			w.mu.Unlock()
			return
		}
		batch := w.pending
		w.pending = make(map[string][]byte)
		w.saving = true
		w.mu.Unlock()

		for key, data := range batch {
			w.save(key, data)
		}
	}
}

func (w *Writer) save(key string, data []byte) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.MaxElapsedTime = w.maxElapsed

	attempts := 0
	op := func() error {
		attempts++
		return w.gw.Save(w.ctx, key, data)
	}
	err := backoff.Retry(op, backoff.WithContext(b, w.ctx))
	if err == nil {
		w.logger.Debug("snapshot saved", zap.String("key", key), zap.Int("bytes", len(data)), zap.Int("attempts", attempts))
		return
	}

	w.logger.Error("failed to save snapshot", zap.String("key", key), zap.Int("attempts", attempts), zap.Error(err))
	select {
	case w.failures <- &apperrors.PersistenceError{Key: key, Err: err}:
	default:
		w.logger.Warn("persistence failure dropped, channel full", zap.String("key", key))
	}
}
