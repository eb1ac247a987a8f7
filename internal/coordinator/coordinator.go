package coordinator

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"stock_ledger/internal/events"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
)

// Inventory is the product side of the engine.
type Inventory interface {
	Register(p inventory.Product) error
	AdjustQuantity(barcode string, delta int) (inventory.Product, error)
	Edit(barcode string, f inventory.Fields) (inventory.Product, error)
	Remove(barcode string) (inventory.Product, error)
	Find(barcode string) (inventory.Product, bool)
	List() []inventory.Product
	Search(category, query string) []inventory.Product
	LowStock(threshold int) []inventory.Product
	Categories() []string
	Len() int
}

// Journal is the sale side of the engine.
type Journal interface {
	RecordSingle(line sales.Line) (sales.Transaction, error)
	RecordMulti(lines []sales.Line, multiSaleID string) ([]sales.Transaction, error)
	CancelSingle(id string) (sales.Transaction, error)
	CancelMulti(multiSaleID string) ([]sales.Transaction, error)
	ResetPeriod(pred func(sales.Transaction) bool) []sales.Transaction
	Find(id string) (sales.Transaction, bool)
	Group(multiSaleID string) []sales.Transaction
	Query(f sales.Filter) iter.Seq[sales.Transaction]
	TotalCash() decimal.Decimal
	Recompute() decimal.Decimal
	Transactions() []sales.Transaction
}

// SnapshotWriter receives serialised state after every mutation.
type SnapshotWriter interface {
	Enqueue(key string, data []byte)
}

// State is the explicitly owned engine state handed to the coordinator.
type State struct {
	Inventory Inventory
	Journal   Journal
}

// Coordinator is the only component that touches both the inventory and the
// journal. Every mutating operation runs validate-all then apply-all under one
// write lock; reads share a read lock and only ever see copies.
type Coordinator struct {
	mu      sync.RWMutex
	inv     Inventory
	journal Journal

	writer            SnapshotWriter
	publisher         events.Publisher
	outbox            *events.AsyncPublisher
	logger            *zap.Logger
	tracer            trace.Tracer
	now               func() time.Time
	newGroupID        func() string
	lowStockThreshold int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithWriter sets where snapshots go after each mutation.
func WithWriter(w SnapshotWriter) Option {
	return func(c *Coordinator) { c.writer = w }
}

// WithPublisher sets the event sink. Delivery happens in the background.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithTracer sets the tracer that wraps every mutation in a span.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithClock sets the clock used for period predicates.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithGroupIDGenerator sets how multi-sale ids are minted.
func WithGroupIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newGroupID = gen }
}

// WithLowStockThreshold sets the default threshold for LowStock and Dashboard.
func WithLowStockThreshold(n int) Option {
	return func(c *Coordinator) { c.lowStockThreshold = n }
}

// New creates a coordinator over state.
func New(state State, opts ...Option) *Coordinator {
	c := &Coordinator{
		inv:               state.Inventory,
		journal:           state.Journal,
		publisher:         events.NopPublisher{},
		tracer:            otel.Tracer("stock_ledger/coordinator"),
		now:               time.Now,
		newGroupID:        sales.NewID,
		lowStockThreshold: inventory.DefaultLowStockThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger, _ = zap.NewProduction()
	}
	c.outbox = events.NewAsyncPublisher(c.publisher, c.logger, eventQueueSize)
	return c
}

const eventQueueSize = 1024

// Close waits for queued events to be delivered.
func (c *Coordinator) Close(ctx context.Context) error {
	return c.outbox.Close(ctx)
}

// mutate runs fn under the write lock with ctx carrying the operation span.
// On success the snapshots named by keys are handed to the writer before the
// lock is released, so the writer always sees them in commit order.
func (c *Coordinator) mutate(ctx context.Context, op string, keys []string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "coordinator."+op, trace.WithAttributes(attrs...))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if c.writer != nil {
		snaps := c.encodeLocked(keys)
		for _, key := range keys {
			if data, ok := snaps[key]; ok {
				c.writer.Enqueue(key, data)
			}
		}
	}
	span.SetStatus(codes.Ok, op+" applied")
	return nil
}

// publish queues e for background delivery. It never blocks on the broker.
func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	e.EventID = sales.NewID()
	e.Timestamp = c.now().UTC()
	if err := c.outbox.Publish(ctx, e); err != nil {
		c.logger.Warn("event dropped", zap.String("type", e.Type), zap.Error(err))
	}
}
