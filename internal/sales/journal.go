package sales

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stock_ledger/internal/apperrors"
)

// Journal is the ordered, append-mostly list of sale transactions together with
// the running cash total. It is not safe for concurrent use.
type Journal struct {
	txs       []Transaction
	totalCash decimal.Decimal
	now       func() time.Time
	newID     func() string
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the time source used to date new transactions.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithIDGenerator overrides the transaction id source.
func WithIDGenerator(gen func() string) Option {
	return func(j *Journal) { j.newID = gen }
}

// NewJournal builds a journal from a loaded snapshot. The cash total is derived
// from the transactions rather than stored.
func NewJournal(txs []Transaction, opts ...Option) (*Journal, error) {
	j := &Journal{
		txs:   make([]Transaction, 0, len(txs)),
		now:   time.Now,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(j)
	}

	seen := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		if t.ID == "" {
			return nil, apperrors.Invalid("transaction without id in snapshot")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, apperrors.Invalid("duplicate transaction id %s in snapshot", t.ID)
		}
		seen[t.ID] = struct{}{}
		j.txs = append(j.txs, t)
	}
	j.totalCash = j.Recompute()
	return j, nil
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RecordSingle appends one transaction without a multi-sale group.
func (j *Journal) RecordSingle(line Line) (Transaction, error) {
	if err := validateLine(line); err != nil {
		return Transaction{}, err
	}
	t := j.build(line, j.now(), "")
	j.txs = append(j.txs, t)
	j.totalCash = j.totalCash.Add(t.Amount)
	return t, nil
}

// RecordMulti appends every line under the shared group id. If any line is
// malformed nothing is appended.
func (j *Journal) RecordMulti(lines []Line, multiSaleID string) ([]Transaction, error) {
	if multiSaleID == "" {
		return nil, apperrors.Invalid("multi-sale id is required")
	}
	if len(lines) == 0 {
		return nil, apperrors.Invalid("multi-sale needs at least one line")
	}
	if j.hasGroup(multiSaleID) {
		return nil, apperrors.Invalid("multi-sale id %s already used", multiSaleID)
	}
	for i, line := range lines {
		if err := validateLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
	}

	date := j.now()
	out := make([]Transaction, 0, len(lines))
	sum := decimal.Zero
	for _, line := range lines {
		t := j.build(line, date, multiSaleID)
		out = append(out, t)
		sum = sum.Add(t.Amount)
	}
	j.txs = append(j.txs, out...)
	j.totalCash = j.totalCash.Add(sum)
	return out, nil
}

// CancelSingle removes one transaction and takes its amount out of the cash total.
func (j *Journal) CancelSingle(id string) (Transaction, error) {
	for i, t := range j.txs {
		if t.ID == id {
			j.txs = append(j.txs[:i:i], j.txs[i+1:]...)
			j.totalCash = j.totalCash.Sub(t.Amount)
			return t, nil
		}
	}
	return Transaction{}, fmt.Errorf("transaction %s: %w", id, apperrors.ErrNotFound)
}

// CancelMulti removes every transaction of a multi-sale group in one step.
func (j *Journal) CancelMulti(multiSaleID string) ([]Transaction, error) {
	if multiSaleID == "" || !j.hasGroup(multiSaleID) {
		return nil, fmt.Errorf("multi-sale %s: %w", multiSaleID, apperrors.ErrNotFound)
	}
	return j.removeWhere(func(t Transaction) bool { return t.MultiSaleID == multiSaleID }), nil
}

// ResetPeriod removes every transaction matching pred and reduces the cash total
// by exactly their sum. Transactions outside pred are left untouched.
func (j *Journal) ResetPeriod(pred func(Transaction) bool) []Transaction {
	return j.removeWhere(pred)
}

// Find returns the transaction with the given id.
func (j *Journal) Find(id string) (Transaction, bool) {
	for _, t := range j.txs {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// Group returns the lines of a multi-sale in journal order.
func (j *Journal) Group(multiSaleID string) []Transaction {
	if multiSaleID == "" {
		return nil
	}
	var out []Transaction
	for _, t := range j.txs {
		if t.MultiSaleID == multiSaleID {
			out = append(out, t)
		}
	}
	return out
}

// TotalCash returns the maintained cash total.
func (j *Journal) TotalCash() decimal.Decimal {
	return j.totalCash
}

// Recompute sums the amounts of all live transactions independently of the
// maintained total.
func (j *Journal) Recompute() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range j.txs {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Len returns the number of live transactions.
func (j *Journal) Len() int {
	return len(j.txs)
}

// Transactions returns a copy of the journal in insertion order.
func (j *Journal) Transactions() []Transaction {
	out := make([]Transaction, len(j.txs))
	copy(out, j.txs)
	return out
}

// Query lazily yields the transactions matching f. The journal must not be
// mutated while the sequence is being consumed.
func (j *Journal) Query(f Filter) iter.Seq[Transaction] {
	match := f.Predicate()
	return func(yield func(Transaction) bool) {
		for _, t := range j.txs {
			if !match(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

func (j *Journal) build(line Line, date time.Time, multiSaleID string) Transaction {
	return Transaction{
		ID:          j.newID(),
		Barcode:     line.Barcode,
		ProductName: line.ProductName,
		Category:    line.Category,
		Size:        line.Size,
		Color:       line.Color,
		Price:       line.Price,
		Quantity:    line.Quantity,
		Amount:      line.Amount(),
		Date:        date,
		MultiSaleID: multiSaleID,
	}
}

func (j *Journal) hasGroup(multiSaleID string) bool {
	for _, t := range j.txs {
		if t.MultiSaleID == multiSaleID {
			return true
		}
	}
	return false
}

func (j *Journal) removeWhere(pred func(Transaction) bool) []Transaction {
	kept := make([]Transaction, 0, len(j.txs))
	var removed []Transaction
	sum := decimal.Zero
	for _, t := range j.txs {
		if pred(t) {
			removed = append(removed, t)
			sum = sum.Add(t.Amount)
			continue
		}
		kept = append(kept, t)
	}
	j.txs = kept
	j.totalCash = j.totalCash.Sub(sum)
	return removed
}

func validateLine(line Line) error {
	if strings.TrimSpace(line.Barcode) == "" {
		return apperrors.Invalid("barcode is required")
	}
	if line.Quantity <= 0 {
		return apperrors.Invalid("quantity must be greater than zero")
	}
	if line.Price.IsNegative() {
		return apperrors.Invalid("price must not be negative")
	}
	return nil
}
