package coordinator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"stock_ledger/internal/apperrors"
	"stock_ledger/internal/events"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/store"
)

var productKeys = []string{store.KeyProducts}

// RegisterProduct adds a new product with its explicit starting quantity.
func (c *Coordinator) RegisterProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	var created inventory.Product
	err := c.mutate(ctx, "register_product", productKeys, func(ctx context.Context) error {
		if err := c.inv.Register(p); err != nil {
			return err
		}
		created, _ = c.inv.Find(p.Barcode)
		return nil
	}, attribute.String("barcode", p.Barcode))
	if err != nil {
		return inventory.Product{}, err
	}

	c.logger.Info("product registered",
		zap.String("barcode", created.Barcode),
		zap.Int("initial_stock", created.Quantity))
	return created, nil
}

// EditProduct replaces the descriptive fields of a product. Moving it to a new
// barcode leaves existing transactions on the old one.
func (c *Coordinator) EditProduct(ctx context.Context, barcode string, f inventory.Fields) (inventory.Product, error) {
	var updated inventory.Product
	err := c.mutate(ctx, "edit_product", productKeys, func(ctx context.Context) error {
		var err error
		updated, err = c.inv.Edit(barcode, f)
		return err
	}, attribute.String("barcode", barcode))
	if err != nil {
		return inventory.Product{}, err
	}

	c.logger.Info("product updated", zap.String("barcode", barcode), zap.String("new_barcode", updated.Barcode))
	return updated, nil
}

// RemoveProduct deletes a product. The journal is not touched.
func (c *Coordinator) RemoveProduct(ctx context.Context, barcode string) (inventory.Product, error) {
	var removed inventory.Product
	err := c.mutate(ctx, "remove_product", productKeys, func(ctx context.Context) error {
		var err error
		if removed, err = c.inv.Remove(barcode); err != nil {
			return err
		}
		c.publish(ctx, events.Event{Type: events.TypeProductRemoved, Barcode: barcode})
		return nil
	}, attribute.String("barcode", barcode))
	if err != nil {
		return inventory.Product{}, err
	}

	c.logger.Info("product removed", zap.String("barcode", barcode))
	return removed, nil
}

// AdjustStock adds delta (which may be negative) to a product's quantity.
func (c *Coordinator) AdjustStock(ctx context.Context, barcode string, delta int) (inventory.Product, error) {
	var after inventory.Product
	err := c.mutate(ctx, "adjust_stock", productKeys, func(ctx context.Context) error {
		var err error
		if after, err = c.inv.AdjustQuantity(barcode, delta); err != nil {
			return err
		}
		c.publish(ctx, events.Event{Type: events.TypeStockAdjusted, Barcode: barcode})
		return nil
	}, attribute.String("barcode", barcode), attribute.Int("delta", delta))
	if err != nil {
		return inventory.Product{}, err
	}

	c.logger.Info("stock adjusted",
		zap.String("barcode", barcode),
		zap.Int("delta", delta),
		zap.Int("quantity", after.Quantity))
	return after, nil
}

// SetStock overwrites a product's quantity, expressed as an adjustment by the
// difference so the zero floor is still enforced by the inventory.
func (c *Coordinator) SetStock(ctx context.Context, barcode string, target int) (inventory.Product, error) {
	if target < 0 {
		return inventory.Product{}, apperrors.Invalid("quantity must not be negative")
	}

	var after inventory.Product
	err := c.mutate(ctx, "set_stock", productKeys, func(ctx context.Context) error {
		p, ok := c.inv.Find(barcode)
		if !ok {
			return fmt.Errorf("product %s: %w", barcode, apperrors.ErrNotFound)
		}
		var err error
		if after, err = c.inv.AdjustQuantity(barcode, target-p.Quantity); err != nil {
			return err
		}
		c.publish(ctx, events.Event{Type: events.TypeStockAdjusted, Barcode: barcode})
		return nil
	}, attribute.String("barcode", barcode), attribute.Int("target", target))
	if err != nil {
		return inventory.Product{}, err
	}

	c.logger.Info("stock set", zap.String("barcode", barcode), zap.Int("quantity", after.Quantity))
	return after, nil
}
