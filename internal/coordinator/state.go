package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
	"stock_ledger/internal/store"
)

// Load reads the products and transactions snapshots from gw. A missing
// snapshot starts empty; a corrupt one is an error.
func Load(ctx context.Context, gw store.Gateway, opts ...sales.Option) (State, error) {
	var products []inventory.Product
	if err := loadJSON(ctx, gw, store.KeyProducts, &products); err != nil {
		return State{}, err
	}
	var txs []sales.Transaction
	if err := loadJSON(ctx, gw, store.KeyTransactions, &txs); err != nil {
		return State{}, err
	}

	ledger, err := inventory.NewLedger(products)
	if err != nil {
		return State{}, err
	}
	journal, err := sales.NewJournal(txs, opts...)
	if err != nil {
		return State{}, err
	}
	return State{Inventory: ledger, Journal: journal}, nil
}

func loadJSON(ctx context.Context, gw store.Gateway, key string, v any) error {
	data, err := gw.Load(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// encodeLocked serialises the requested snapshots. The caller holds the lock.
func (c *Coordinator) encodeLocked(keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		var v any
		switch key {
		case store.KeyProducts:
			v = c.inv.List()
		case store.KeyTransactions:
			v = c.journal.Transactions()
		default:
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			c.logger.Error("failed to encode snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		out[key] = data
	}
	return out
}

// Verify recomputes the cash total and checks every quantity is non-negative.
func (c *Coordinator) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if got, want := c.journal.TotalCash(), c.journal.Recompute(); !got.Equal(want) {
		return fmt.Errorf("total cash %s does not match journal sum %s", got, want)
	}
	for _, p := range c.inv.List() {
		if p.Quantity < 0 {
			return fmt.Errorf("product %s has negative quantity %d", p.Barcode, p.Quantity)
		}
	}
	return nil
}
