package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stock_ledger/internal/sales"
)

// Event types published after a successful mutation.
const (
	TypeSaleRecorded   = "sale.recorded"
	TypeSaleCancelled  = "sale.cancelled"
	TypePeriodClosed   = "period.closed"
	TypeStockAdjusted  = "stock.adjusted"
	TypeProductRemoved = "product.removed"
)

// Event describes one journal or inventory change.
type Event struct {
	EventID      string              `json:"event_id"`
	Type         string              `json:"type"`
	Barcode      string              `json:"barcode,omitempty"`
	MultiSaleID  string              `json:"multi_sale_id,omitempty"`
	Transactions []sales.Transaction `json:"transactions,omitempty"`
	Amount       decimal.Decimal     `json:"amount"`
	TotalCash    decimal.Decimal     `json:"total_cash"`
	Skipped      []string            `json:"skipped_restores,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Key picks the partitioning key: the group, then the barcode, then the event id.
func (e Event) Key() string {
	switch {
	case e.MultiSaleID != "":
		return e.MultiSaleID
	case e.Barcode != "":
		return e.Barcode
	default:
		return e.EventID
	}
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
