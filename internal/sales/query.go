package sales

import (
	"iter"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock_ledger/internal/apperrors"
)

// Period selects transactions by date relative to the start of the current day.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. An empty name means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodToday, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", apperrors.Invalid("unknown period %q", s)
	}
}

// Since returns the earliest instant included in the period, or the zero time
// for PeriodAll. Week is seven days before today's midnight; month is the same
// day one calendar month earlier.
func (p Period) Since(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return today
	case PeriodWeek:
		return today.AddDate(0, 0, -7)
	case PeriodMonth:
		return today.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// Contains reports whether t falls inside the period as seen at now.
func (p Period) Contains(now, t time.Time) bool {
	if p == PeriodAll || p == "" {
		return true
	}
	return !t.Before(p.Since(now))
}

// Filter describes a read-only journal query.
type Filter struct {
	Period Period
	// Name is matched as a case-insensitive substring of the product name.
	Name string
	// Now anchors the period; zero means time.Now().
	Now time.Time
}

// Predicate compiles the filter into a match function.
func (f Filter) Predicate() func(Transaction) bool {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	needle := strings.ToLower(strings.TrimSpace(f.Name))
	return func(t Transaction) bool {
		if !f.Period.Contains(now, t.Date.In(now.Location())) {
			return false
		}
		return needle == "" || strings.Contains(strings.ToLower(t.ProductName), needle)
	}
}

// Summarize reduces a sequence of transactions to count, item total and amount total.
func Summarize(seq iter.Seq[Transaction]) Summary {
	s := Summary{Amount: decimal.Zero}
	for t := range seq {
		s.Count++
		s.Items += t.Quantity
		s.Amount = s.Amount.Add(t.Amount)
	}
	return s
}
