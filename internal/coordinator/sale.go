package coordinator

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"stock_ledger/internal/apperrors"
	"stock_ledger/internal/events"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
	"stock_ledger/internal/store"
)

var bothKeys = []string{store.KeyProducts, store.KeyTransactions}

// SaleLine is one requested line of a multi-item sale.
type SaleLine struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

// SaleResult is returned by Sell.
type SaleResult struct {
	Transaction sales.Transaction `json:"transaction"`
	Product     inventory.Product `json:"product"`
	TotalCash   decimal.Decimal   `json:"totalCash"`
}

// MultiSaleResult is returned by SellMulti.
type MultiSaleResult struct {
	MultiSaleID  string              `json:"multiSaleId"`
	Transactions []sales.Transaction `json:"transactions"`
	Amount       decimal.Decimal     `json:"amount"`
	TotalCash    decimal.Decimal     `json:"totalCash"`
}

// CancelResult is returned by CancelSale and CancelMultiSale.
type CancelResult struct {
	Removed  []sales.Transaction `json:"removed"`
	Restored []inventory.Product `json:"restored"`
	// SkippedRestores lists barcodes whose product no longer exists, so their
	// stock could not be put back.
	SkippedRestores []string        `json:"skippedRestores,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TotalCash       decimal.Decimal `json:"totalCash"`
}

// PartialRestore reports whether some stock could not be restored.
func (r CancelResult) PartialRestore() bool {
	return len(r.SkippedRestores) > 0
}

// CloseResult is returned by ClosePeriod.
type CloseResult struct {
	Removed   int             `json:"removed"`
	Amount    decimal.Decimal `json:"amount"`
	TotalCash decimal.Decimal `json:"totalCash"`
	// Nothing is set when no transaction matched; it is not an error.
	Nothing bool `json:"nothing"`
}

// Sell takes qty units of barcode out of stock and journals the sale.
func (c *Coordinator) Sell(ctx context.Context, barcode string, qty int) (SaleResult, error) {
	var res SaleResult
	err := c.mutate(ctx, "sell", bothKeys, func(ctx context.Context) error {
		if qty < 1 {
			return apperrors.Invalid("quantity must be at least 1")
		}
		p, ok := c.inv.Find(barcode)
		if !ok {
			return fmt.Errorf("product %s: %w", barcode, apperrors.ErrNotFound)
		}
		if qty > p.Quantity {
			return &apperrors.InsufficientStockError{Barcode: barcode, Requested: qty, Available: p.Quantity}
		}

		after, err := c.inv.AdjustQuantity(barcode, -qty)
		if err != nil {
			return err
		}
		t, err := c.journal.RecordSingle(lineFor(p, qty))
		if err != nil {
			c.revert([]SaleLine{{Barcode: barcode, Quantity: qty}})
			return fmt.Errorf("recording sale: %w", err)
		}

		res = SaleResult{Transaction: t, Product: after, TotalCash: c.journal.TotalCash()}
		c.publish(ctx, events.Event{
			Type:         events.TypeSaleRecorded,
			Barcode:      barcode,
			Transactions: []sales.Transaction{t},
			Amount:       t.Amount,
			TotalCash:    res.TotalCash,
		})
		return nil
	}, attribute.String("barcode", barcode), attribute.Int("quantity", qty))
	if err != nil {
		return SaleResult{}, err
	}

	c.logger.Info("sale recorded",
		zap.String("transaction_id", res.Transaction.ID),
		zap.String("barcode", barcode),
		zap.Int("quantity", qty),
		zap.String("amount", res.Transaction.Amount.String()),
		zap.Int("remaining", res.Product.Quantity))
	return res, nil
}

// SellMulti sells every line as one group. Lines are validated against a
// running copy of stock so repeated barcodes draw cumulatively; either every
// line is sold or none is.
func (c *Coordinator) SellMulti(ctx context.Context, lines []SaleLine) (MultiSaleResult, error) {
	var res MultiSaleResult
	err := c.mutate(ctx, "sell_multi", bothKeys, func(ctx context.Context) error {
		if len(lines) == 0 {
			return apperrors.Invalid("multi-sale needs at least one line")
		}

		products := make(map[string]inventory.Product)
		remaining := make(map[string]int)
		journalLines := make([]sales.Line, 0, len(lines))
		for i, l := range lines {
			if l.Quantity < 1 {
				return apperrors.Invalid("line %d: quantity must be at least 1", i)
			}
			p, seen := products[l.Barcode]
			if !seen {
				found, ok := c.inv.Find(l.Barcode)
				if !ok {
					return fmt.Errorf("line %d: product %s: %w", i, l.Barcode, apperrors.ErrNotFound)
				}
				p = found
				products[l.Barcode] = p
				remaining[l.Barcode] = p.Quantity
			}
			if l.Quantity > remaining[l.Barcode] {
				return &apperrors.InsufficientStockError{
					Barcode:   l.Barcode,
					Requested: l.Quantity,
					Available: remaining[l.Barcode],
				}
			}
			remaining[l.Barcode] -= l.Quantity
			journalLines = append(journalLines, lineFor(p, l.Quantity))
		}

		applied := make([]SaleLine, 0, len(lines))
		for _, l := range lines {
			if _, err := c.inv.AdjustQuantity(l.Barcode, -l.Quantity); err != nil {
				c.revert(applied)
				return err
			}
			applied = append(applied, l)
		}

		groupID := c.newGroupID()
		txs, err := c.journal.RecordMulti(journalLines, groupID)
		if err != nil {
			c.revert(applied)
			return fmt.Errorf("recording multi-sale: %w", err)
		}

		res = MultiSaleResult{
			MultiSaleID:  groupID,
			Transactions: txs,
			Amount:       sales.Summarize(slices.Values(txs)).Amount,
			TotalCash:    c.journal.TotalCash(),
		}
		c.publish(ctx, events.Event{
			Type:         events.TypeSaleRecorded,
			MultiSaleID:  groupID,
			Transactions: txs,
			Amount:       res.Amount,
			TotalCash:    res.TotalCash,
		})
		return nil
	}, attribute.Int("lines", len(lines)))
	if err != nil {
		return MultiSaleResult{}, err
	}

	c.logger.Info("multi-sale recorded",
		zap.String("multi_sale_id", res.MultiSaleID),
		zap.Int("lines", len(res.Transactions)),
		zap.String("amount", res.Amount.String()))
	return res, nil
}

// CancelSale removes one transaction and puts its quantity back in stock. A
// transaction that belongs to a multi-sale cancels the whole group. Stock is
// restored before the journal entry is removed. If the product has been
// deleted since the sale the restore is skipped and reported.
func (c *Coordinator) CancelSale(ctx context.Context, transactionID string) (CancelResult, error) {
	var res CancelResult
	var groupID string
	err := c.mutate(ctx, "cancel_sale", bothKeys, func(ctx context.Context) error {
		t, ok := c.journal.Find(transactionID)
		if !ok {
			return fmt.Errorf("transaction %s: %w", transactionID, apperrors.ErrNotFound)
		}
		if t.MultiSaleID != "" {
			groupID = t.MultiSaleID
			var err error
			res, err = c.cancelGroupLocked(ctx, groupID)
			return err
		}

		restored, skipped := c.restore([]sales.Transaction{t})
		removed, err := c.journal.CancelSingle(transactionID)
		if err != nil {
			c.unrestore([]sales.Transaction{t}, skipped)
			return fmt.Errorf("cancelling transaction: %w", err)
		}

		res = CancelResult{
			Removed:         []sales.Transaction{removed},
			Restored:        restored,
			SkippedRestores: skipped,
			Amount:          removed.Amount,
			TotalCash:       c.journal.TotalCash(),
		}
		c.publish(ctx, events.Event{
			Type:         events.TypeSaleCancelled,
			Barcode:      removed.Barcode,
			Transactions: res.Removed,
			Amount:       res.Amount,
			TotalCash:    res.TotalCash,
			Skipped:      skipped,
		})
		return nil
	}, attribute.String("transaction_id", transactionID))
	if err != nil {
		return CancelResult{}, err
	}

	fields := []zap.Field{zap.String("transaction_id", transactionID)}
	if groupID != "" {
		fields = append(fields, zap.String("multi_sale_id", groupID))
	}
	c.logCancel(res, fields...)
	return res, nil
}

// CancelMultiSale removes every line of a multi-sale group and restores the
// stock of each line whose product still exists.
func (c *Coordinator) CancelMultiSale(ctx context.Context, multiSaleID string) (CancelResult, error) {
	var res CancelResult
	err := c.mutate(ctx, "cancel_multi_sale", bothKeys, func(ctx context.Context) error {
		var err error
		res, err = c.cancelGroupLocked(ctx, multiSaleID)
		return err
	}, attribute.String("multi_sale_id", multiSaleID))
	if err != nil {
		return CancelResult{}, err
	}

	c.logCancel(res, zap.String("multi_sale_id", multiSaleID))
	return res, nil
}

// cancelGroupLocked cancels every line sharing multiSaleID. The caller holds
// the write lock.
func (c *Coordinator) cancelGroupLocked(ctx context.Context, multiSaleID string) (CancelResult, error) {
	group := c.journal.Group(multiSaleID)
	if len(group) == 0 {
		return CancelResult{}, fmt.Errorf("multi-sale %s: %w", multiSaleID, apperrors.ErrNotFound)
	}

	restored, skipped := c.restore(group)
	removed, err := c.journal.CancelMulti(multiSaleID)
	if err != nil {
		c.unrestore(group, skipped)
		return CancelResult{}, fmt.Errorf("cancelling multi-sale: %w", err)
	}

	res := CancelResult{
		Removed:         removed,
		Restored:        restored,
		SkippedRestores: skipped,
		Amount:          sales.Summarize(slices.Values(removed)).Amount,
		TotalCash:       c.journal.TotalCash(),
	}
	c.publish(ctx, events.Event{
		Type:         events.TypeSaleCancelled,
		MultiSaleID:  multiSaleID,
		Transactions: removed,
		Amount:       res.Amount,
		TotalCash:    res.TotalCash,
		Skipped:      skipped,
	})
	return res, nil
}

// ClosePeriod removes the transactions matching pred without touching stock.
// A period with nothing in it is reported through CloseResult.Nothing.
func (c *Coordinator) ClosePeriod(ctx context.Context, pred func(sales.Transaction) bool) (CloseResult, error) {
	if pred == nil {
		return CloseResult{}, apperrors.Invalid("period predicate is required")
	}

	var res CloseResult
	keys := []string{store.KeyTransactions}
	err := c.mutate(ctx, "close_period", keys, func(ctx context.Context) error {
		removed := c.journal.ResetPeriod(pred)
		res = CloseResult{
			Removed:   len(removed),
			Amount:    sales.Summarize(slices.Values(removed)).Amount,
			TotalCash: c.journal.TotalCash(),
			Nothing:   len(removed) == 0,
		}
		if !res.Nothing {
			c.publish(ctx, events.Event{
				Type:      events.TypePeriodClosed,
				Amount:    res.Amount,
				TotalCash: res.TotalCash,
			})
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	if res.Nothing {
		c.logger.Info("nothing to close")
		return res, nil
	}
	c.logger.Info("period closed",
		zap.Int("removed", res.Removed),
		zap.String("amount", res.Amount.String()),
		zap.String("total_cash", res.TotalCash.String()))
	return res, nil
}

// CloseRegister closes the named period as seen by the coordinator's clock.
func (c *Coordinator) CloseRegister(ctx context.Context, period sales.Period) (CloseResult, error) {
	return c.ClosePeriod(ctx, sales.Filter{Period: period, Now: c.now()}.Predicate())
}

// revert undoes inventory decrements already applied for lines.
func (c *Coordinator) revert(lines []SaleLine) {
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if _, err := c.inv.AdjustQuantity(l.Barcode, l.Quantity); err != nil {
			c.logger.Error("compensating stock reversal failed",
				zap.String("barcode", l.Barcode),
				zap.Int("quantity", l.Quantity),
				zap.Error(err))
		}
	}
}

// restore puts the quantity of each transaction back in stock, skipping
// products that no longer exist.
func (c *Coordinator) restore(txs []sales.Transaction) (restored []inventory.Product, skipped []string) {
	for _, t := range txs {
		if _, ok := c.inv.Find(t.Barcode); !ok {
			skipped = append(skipped, t.Barcode)
			continue
		}
		p, err := c.inv.AdjustQuantity(t.Barcode, t.Quantity)
		if err != nil {
			skipped = append(skipped, t.Barcode)
			continue
		}
		restored = append(restored, p)
	}
	return restored, skipped
}

// unrestore reverses restore when the journal removal fails.
func (c *Coordinator) unrestore(txs []sales.Transaction, skipped []string) {
	skip := make(map[string]int, len(skipped))
	for _, b := range skipped {
		skip[b]++
	}
	lines := make([]SaleLine, 0, len(txs))
	for _, t := range txs {
		if skip[t.Barcode] > 0 {
			skip[t.Barcode]--
			continue
		}
		lines = append(lines, SaleLine{Barcode: t.Barcode, Quantity: -t.Quantity})
	}
	c.revert(lines)
}

func (c *Coordinator) logCancel(res CancelResult, fields ...zap.Field) {
	if res.PartialRestore() {
		c.logger.Warn("sale cancelled with partial stock restore", append(fields,
			zap.Strings("skipped_barcodes", res.SkippedRestores),
			zap.String("amount", res.Amount.String()))...)
		return
	}
	c.logger.Info("sale cancelled", append(fields,
		zap.Int("lines", len(res.Removed)),
		zap.String("amount", res.Amount.String()))...)
}

func lineFor(p inventory.Product, qty int) sales.Line {
	return sales.Line{
		Barcode:     p.Barcode,
		ProductName: p.Name,
		Category:    p.Category,
		Size:        p.Size,
		Color:       p.Color,
		Price:       p.Price,
		Quantity:    qty,
	}
}
