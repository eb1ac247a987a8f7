package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one sold line in the journal. Product fields are
// snapshotted at sale time so later product edits don't rewrite history.
type Transaction struct {
	ID          string          `json:"id"`
	Barcode     string          `json:"barcode"`
	ProductName string          `json:"productName"`
	Category    string          `json:"category"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	MultiSaleID string          `json:"multiSaleId,omitempty"`
}

// IsMultiSale reports whether the transaction belongs to a multi-item sale.
func (t Transaction) IsMultiSale() bool {
	return t.MultiSaleID != ""
}

// Line is a sale line before it is journaled.
type Line struct {
	Barcode     string
	ProductName string
	Category    string
	Size        string
	Color       string
	Price       decimal.Decimal
	Quantity    int
}

// Amount returns price * quantity.
func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary aggregates a set of transactions.
type Summary struct {
	Count  int             `json:"count"`
	Items  int             `json:"items"`
	Amount decimal.Decimal `json:"amount"`
}
