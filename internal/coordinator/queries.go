package coordinator

import (
	"slices"

	"github.com/shopspring/decimal"

	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
)

// QueryResult holds the filtered transactions and their aggregates.
type QueryResult struct {
	Transactions []sales.Transaction `json:"transactions"`
	Summary      sales.Summary       `json:"summary"`
}

// Dashboard summarises the shop at a glance.
type Dashboard struct {
	ProductCount  int             `json:"productCount"`
	LowStockCount int             `json:"lowStockCount"`
	Categories    []string        `json:"categories"`
	TotalCash     decimal.Decimal `json:"totalCash"`
	Today         sales.Summary   `json:"today"`
}

func (c *Coordinator) FindProduct(barcode string) (inventory.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inv.Find(barcode)
}

func (c *Coordinator) ListProducts() []inventory.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inv.List()
}

// SearchProducts filters by exact category and a name/category substring.
func (c *Coordinator) SearchProducts(category, query string) []inventory.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inv.Search(category, query)
}

// LowStock lists products below threshold; zero or less uses the configured default.
func (c *Coordinator) LowStock(threshold int) []inventory.Product {
	if threshold <= 0 {
		threshold = c.lowStockThreshold
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inv.LowStock(threshold)
}

// QueryTransactions returns the transactions in period whose product name
// contains name, newest first, with their summary.
func (c *Coordinator) QueryTransactions(period sales.Period, name string) QueryResult {
	f := sales.Filter{Period: period, Name: name, Now: c.now()}

	c.mu.RLock()
	txs := slices.Collect(c.journal.Query(f))
	c.mu.RUnlock()

	slices.Reverse(txs)
	return QueryResult{
		Transactions: txs,
		Summary:      sales.Summarize(slices.Values(txs)),
	}
}

func (c *Coordinator) TotalCash() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.journal.TotalCash()
}

func (c *Coordinator) Dashboard() Dashboard {
	today := sales.Filter{Period: sales.PeriodToday, Now: c.now()}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Dashboard{
		ProductCount:  c.inv.Len(),
		LowStockCount: len(c.inv.LowStock(c.lowStockThreshold)),
		Categories:    c.inv.Categories(),
		TotalCash:     c.journal.TotalCash(),
		Today:         sales.Summarize(c.journal.Query(today)),
	}
}
