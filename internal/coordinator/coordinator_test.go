package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"stock_ledger/internal/events"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
	"stock_ledger/internal/store"
)

var testNow = time.Date(2026, 5, 20, 14, 30, 0, 0, time.UTC)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

type fixture struct {
	coord  *Coordinator
	mem    *store.MemoryStore
	writer *store.Writer
	pub    *recordingPublisher
}

func product(barcode, name, price string, qty int) inventory.Product {
	return inventory.Product{
		Barcode:  barcode,
		Name:     name,
		Category: "Tops",
		Size:     "M",
		Color:    "Black",
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
}

func newFixture(t *testing.T, products []inventory.Product, txs []sales.Transaction) *fixture {
	t.Helper()
	ledger, err := inventory.NewLedger(products)
	require.NoError(t, err)
	n := 0
	journal, err := sales.NewJournal(txs,
		sales.WithClock(func() time.Time { return testNow }),
		sales.WithIDGenerator(func() string { n++; return fmt.Sprintf("tx-%d", n) }))
	require.NoError(t, err)

	return newFixtureWith(t, State{Inventory: ledger, Journal: journal})
}

func newFixtureWith(t *testing.T, state State) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemoryStore()
	writer := store.NewWriter(mem, logger)
	t.Cleanup(func() { _ = writer.Close(context.Background()) })
	pub := &recordingPublisher{}

	groups := 0
	coord := New(state,
		WithLogger(logger),
		WithWriter(writer),
		WithPublisher(pub),
		WithClock(func() time.Time { return testNow }),
		WithGroupIDGenerator(func() string { groups++; return fmt.Sprintf("group-%d", groups) }),
	)
	t.Cleanup(func() { _ = coord.Close(context.Background()) })
	return &fixture{coord: coord, mem: mem, writer: writer, pub: pub}
}

// published waits for queued events and returns their types in order.
func (f *fixture) published(t *testing.T) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.coord.outbox.Flush(ctx))
	return f.pub.Types()
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.writer.Flush(ctx))
}

func (f *fixture) quantity(t *testing.T, barcode string) int {
	t.Helper()
	p, ok := f.coord.FindProduct(barcode)
	require.True(t, ok, "product %s should exist", barcode)
	return p.Quantity
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNew_Defaults(t *testing.T) {
	ledger, _ := inventory.NewLedger(nil)
	journal, _ := sales.NewJournal(nil)
	c := New(State{Inventory: ledger, Journal: journal})

	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.tracer)
	assert.Equal(t, inventory.DefaultLowStockThreshold, c.lowStockThreshold)
	assert.NoError(t, c.Verify())
}

func TestLoad_RoundTrip(t *testing.T) {
	f := newFixture(t, []inventory.Product{product("A1", "Shirt", "10", 5), product("B1", "Pants", "25.50", 3)}, nil)
	ctx := context.Background()

	_, err := f.coord.Sell(ctx, "A1", 2)
	require.NoError(t, err)
	_, err = f.coord.SellMulti(ctx, []SaleLine{{Barcode: "A1", Quantity: 1}, {Barcode: "B1", Quantity: 2}})
	require.NoError(t, err)
	f.flush(t)

	state, err := Load(ctx, f.mem)
	require.NoError(t, err)
	reloaded := New(state, WithLogger(zaptest.NewLogger(t)))

	assert.True(t, reloaded.TotalCash().Equal(dec("81")))
	assert.True(t, reloaded.TotalCash().Equal(f.coord.TotalCash()))
	p, _ := reloaded.FindProduct("A1")
	assert.Equal(t, 2, p.Quantity)
	p, _ = reloaded.FindProduct("B1")
	assert.Equal(t, 1, p.Quantity)
	assert.NoError(t, reloaded.Verify())
}

func TestLoad_EmptyStore(t *testing.T) {
	state, err := Load(context.Background(), store.NewMemoryStore())
	require.NoError(t, err)
	c := New(state, WithLogger(zaptest.NewLogger(t)))
	assert.Empty(t, c.ListProducts())
	assert.True(t, c.TotalCash().IsZero())
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), store.KeyTransactions, []byte("{not json")))

	_, err := Load(context.Background(), mem)
	assert.ErrorContains(t, err, "decoding transactions")
}

func TestProducts_RegisterEditRemove(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	created, err := f.coord.RegisterProduct(ctx, product("A1", "Shirt", "10", 7))
	require.NoError(t, err)
	assert.Equal(t, 7, created.Quantity)

	_, err = f.coord.RegisterProduct(ctx, product("A1", "Other", "1", 1))
	assert.Error(t, err)

	_, err = f.coord.Sell(ctx, "A1", 1)
	require.NoError(t, err)

	moved, err := f.coord.EditProduct(ctx, "A1", inventory.Fields{NewBarcode: "A2", Name: "Linen Shirt", Price: dec("12")})
	require.NoError(t, err)
	assert.Equal(t, "A2", moved.Barcode)
	assert.Equal(t, 6, moved.Quantity)

	history := f.coord.QueryTransactions(sales.PeriodAll, "")
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, "A1", history.Transactions[0].Barcode, "history stays on the old barcode")
	assert.Equal(t, "Shirt", history.Transactions[0].ProductName)

	_, err = f.coord.RemoveProduct(ctx, "A2")
	require.NoError(t, err)
	_, ok := f.coord.FindProduct("A2")
	assert.False(t, ok)
	assert.Len(t, f.coord.QueryTransactions(sales.PeriodAll, "").Transactions, 1, "removal keeps the journal")

	assert.Contains(t, f.published(t), events.TypeProductRemoved)
}

func TestAdjustAndSetStock(t *testing.T) {
	f := newFixture(t, []inventory.Product{product("A1", "Shirt", "10", 5)}, nil)
	ctx := context.Background()

	p, err := f.coord.AdjustStock(ctx, "A1", 3)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)

	_, err = f.coord.AdjustStock(ctx, "A1", -9)
	assert.Error(t, err)
	assert.Equal(t, 8, f.quantity(t, "A1"))

	p, err = f.coord.SetStock(ctx, "A1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)

	_, err = f.coord.SetStock(ctx, "A1", -1)
	assert.Error(t, err)
	_, err = f.coord.SetStock(ctx, "missing", 4)
	assert.Error(t, err)

	f.flush(t)
	state, err := Load(ctx, f.mem)
	require.NoError(t, err)
	got, _ := state.Inventory.Find("A1")
	assert.Equal(t, 2, got.Quantity)
}

func TestQueries(t *testing.T) {
	older := sales.Transaction{
		ID: "old", Barcode: "A1", ProductName: "Shirt", Quantity: 1,
		Price: dec("10"), Amount: dec("10"), Date: testNow.AddDate(0, 0, -3),
	}
	f := newFixture(t, []inventory.Product{
		product("A1", "Shirt", "10", 10),
		product("B1", "Hat", "4", 2),
	}, []sales.Transaction{older})
	ctx := context.Background()

	_, err := f.coord.Sell(ctx, "B1", 1)
	require.NoError(t, err)

	all := f.coord.QueryTransactions(sales.PeriodAll, "")
	require.Len(t, all.Transactions, 2)
	assert.Equal(t, "tx-1", all.Transactions[0].ID, "newest first")
	assert.Equal(t, 2, all.Summary.Count)
	assert.True(t, all.Summary.Amount.Equal(dec("14")))

	today := f.coord.QueryTransactions(sales.PeriodToday, "")
	assert.Len(t, today.Transactions, 1)

	byName := f.coord.QueryTransactions(sales.PeriodWeek, "SHI")
	require.Len(t, byName.Transactions, 1)
	assert.Equal(t, "old", byName.Transactions[0].ID)

	low := f.coord.LowStock(0)
	require.Len(t, low, 1)
	assert.Equal(t, "B1", low[0].Barcode)

	d := f.coord.Dashboard()
	assert.Equal(t, 2, d.ProductCount)
	assert.Equal(t, 1, d.LowStockCount)
	assert.Equal(t, []string{"Tops"}, d.Categories)
	assert.True(t, d.TotalCash.Equal(dec("14")))
	assert.Equal(t, 1, d.Today.Count)
	assert.True(t, d.Today.Amount.Equal(dec("4")))

	assert.Len(t, f.coord.SearchProducts("", "hat"), 1)
	assert.Len(t, f.coord.ListProducts(), 2)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ledger, _ := inventory.NewLedger([]inventory.Product{product("A1", "Shirt", "10", 5)})
	journal, _ := sales.NewJournal(nil)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.TypeSaleRecorded && e.EventID != "" && e.Barcode == "A1"
	})).Return(errors.New("broker down")).Once()

	c := New(State{Inventory: ledger, Journal: journal},
		WithLogger(zaptest.NewLogger(t)),
		WithPublisher(pub))

	res, err := c.Sell(context.Background(), "A1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Product.Quantity)
	require.NoError(t, c.Close(context.Background()))
	pub.AssertExpectations(t)
}

// slowPublisher holds every delivery until release is closed.
type slowPublisher struct {
	release   chan struct{}
	delivered chan events.Event
}

func (p *slowPublisher) Publish(ctx context.Context, e events.Event) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.delivered <- e
	return nil
}

func TestSell_DoesNotWaitForPublisher(t *testing.T) {
	ledger, _ := inventory.NewLedger([]inventory.Product{product("A1", "Shirt", "10", 5)})
	journal, _ := sales.NewJournal(nil)
	pub := &slowPublisher{release: make(chan struct{}), delivered: make(chan events.Event, 4)}
	c := New(State{Inventory: ledger, Journal: journal},
		WithLogger(zaptest.NewLogger(t)),
		WithPublisher(pub))

	done := make(chan error, 1)
	go func() {
		_, err := c.Sell(context.Background(), "A1", 1)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sell blocked on the publisher")
	}

	close(pub.release)
	select {
	case e := <-pub.delivered:
		assert.Equal(t, events.TypeSaleRecorded, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event was never delivered")
	}
	require.NoError(t, c.Close(context.Background()))
}

func TestMutate_ParentsPublishToOperationSpan(t *testing.T) {
	ledger, _ := inventory.NewLedger([]inventory.Product{product("A1", "Shirt", "10", 5)})
	journal, _ := sales.NewJournal(nil)
	pub := &mockPublisher{}
	var got trace.SpanContext
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = trace.SpanContextFromContext(args.Get(0).(context.Context))
	}).Return(nil).Once()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	c := New(State{Inventory: ledger, Journal: journal},
		WithLogger(zaptest.NewLogger(t)),
		WithPublisher(pub),
		WithTracer(tp.Tracer("test")))

	_, err := c.AdjustStock(context.Background(), "A1", 1)
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))

	pub.AssertExpectations(t)
	assert.True(t, got.IsValid(), "publish should carry the operation span")
}

// orderedWriter records the last snapshot per key. The first Enqueue stalls
// so a competing mutation has the chance to overtake it.
type orderedWriter struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	last    map[string][]byte
}

func (w *orderedWriter) Enqueue(key string, data []byte) {
	w.mu.Lock()
	w.calls++
	first := w.calls == 1
	w.mu.Unlock()

	if first {
		close(w.entered)
		time.Sleep(50 * time.Millisecond)
	}

	w.mu.Lock()
	w.last[key] = data
	w.mu.Unlock()
}

func TestMutate_SnapshotsReachWriterInCommitOrder(t *testing.T) {
	ledger, _ := inventory.NewLedger([]inventory.Product{product("A1", "Shirt", "10", 5)})
	journal, _ := sales.NewJournal(nil)
	w := &orderedWriter{entered: make(chan struct{}), last: make(map[string][]byte)}
	c := New(State{Inventory: ledger, Journal: journal},
		WithLogger(zaptest.NewLogger(t)),
		WithWriter(w))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.Sell(ctx, "A1", 1)
		assert.NoError(t, err)
	}()
	<-w.entered
	go func() {
		defer wg.Done()
		_, err := c.Sell(ctx, "A1", 1)
		assert.NoError(t, err)
	}()
	wg.Wait()

	mem := store.NewMemoryStore()
	for key, data := range w.last {
		require.NoError(t, mem.Save(ctx, key, data))
	}
	state, err := Load(ctx, mem)
	require.NoError(t, err)

	saved, _ := state.Inventory.Find("A1")
	assert.Equal(t, 3, saved.Quantity)
	assert.Len(t, state.Journal.Transactions(), 2)
	live, _ := c.FindProduct("A1")
	assert.Equal(t, live.Quantity, saved.Quantity)
}
