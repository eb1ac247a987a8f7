package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stock_ledger/internal/apperrors"
)

// Ledger owns the set of products and their quantities. It is not safe for
// concurrent use; the coordinator serialises access.
type Ledger struct {
	m map[string]*Product
}

// NewLedger builds a ledger from a loaded snapshot. Duplicate barcodes or
// negative quantities in the snapshot are rejected.
func NewLedger(products []Product) (*Ledger, error) {
	l := &Ledger{m: make(map[string]*Product, len(products))}
	for _, p := range products {
		if err := l.Register(p); err != nil {
			return nil, fmt.Errorf("loading product %q: %w", p.Barcode, err)
		}
	}
	return l, nil
}

// Register inserts a new product with its explicit starting quantity.
func (l *Ledger) Register(p Product) error {
	p.Barcode = strings.TrimSpace(p.Barcode)
	if p.Barcode == "" {
		return apperrors.Invalid("barcode is required")
	}
	if _, ok := l.m[p.Barcode]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateBarcode, p.Barcode)
	}
	if err := validateDescriptive(p.Name, p.Price); err != nil {
		return err
	}
	if p.Quantity < 0 {
		return apperrors.Invalid("quantity must not be negative")
	}

	stored := p.clone()
	l.m[p.Barcode] = &stored
	return nil
}

// AdjustQuantity applies delta to the product's quantity. It is the only path
// that changes a quantity, so the zero floor is enforced here.
func (l *Ledger) AdjustQuantity(barcode string, delta int) (Product, error) {
	p, ok := l.m[barcode]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", barcode, apperrors.ErrNotFound)
	}
	if p.Quantity+delta < 0 {
		return Product{}, &apperrors.InsufficientStockError{
			Barcode:   barcode,
			Requested: -delta,
			Available: p.Quantity,
		}
	}
	p.Quantity += delta
	return p.clone(), nil
}

// Edit replaces the descriptive fields of a product without touching its quantity.
func (l *Ledger) Edit(barcode string, f Fields) (Product, error) {
	p, ok := l.m[barcode]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", barcode, apperrors.ErrNotFound)
	}

	target := strings.TrimSpace(f.NewBarcode)
	if target == "" {
		target = barcode
	}
	if target != barcode {
		if _, taken := l.m[target]; taken {
			return Product{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicateBarcode, target)
		}
	}
	if err := validateDescriptive(f.Name, f.Price); err != nil {
		return Product{}, err
	}

	updated := Product{
		Barcode:  target,
		Name:     f.Name,
		Category: f.Category,
		Size:     f.Size,
		Color:    f.Color,
		Price:    f.Price,
		Quantity: p.Quantity,
		Photo:    f.Photo,
	}.clone()

	if target != barcode {
		delete(l.m, barcode)
	}
	l.m[target] = &updated
	return updated.clone(), nil
}

// Remove deletes a product. Historical transactions keep their own snapshot.
func (l *Ledger) Remove(barcode string) (Product, error) {
	p, ok := l.m[barcode]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", barcode, apperrors.ErrNotFound)
	}
	delete(l.m, barcode)
	return p.clone(), nil
}

// Find returns a copy of the product stored under barcode.
func (l *Ledger) Find(barcode string) (Product, bool) {
	p, ok := l.m[barcode]
	if !ok {
		return Product{}, false
	}
	return p.clone(), true
}

// Len returns the number of registered products.
func (l *Ledger) Len() int {
	return len(l.m)
}

// List returns every product ordered by barcode.
func (l *Ledger) List() []Product {
	return l.filter(func(Product) bool { return true })
}

// Search returns the products in category (any category when empty) whose name
// or category contains query, ignoring case.
func (l *Ledger) Search(category, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	return l.filter(func(p Product) bool {
		if category != "" && p.Category != category {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q)
	})
}

// LowStock returns the products whose quantity is below threshold.
func (l *Ledger) LowStock(threshold int) []Product {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return l.filter(func(p Product) bool { return p.Quantity < threshold })
}

// Categories returns the distinct, sorted category names in use.
func (l *Ledger) Categories() []string {
	seen := make(map[string]struct{})
	for _, p := range l.m {
		if p.Category != "" {
			seen[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) filter(keep func(Product) bool) []Product {
	out := make([]Product, 0, len(l.m))
	for _, p := range l.m {
		if keep(*p) {
			out = append(out, p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out
}

func validateDescriptive(name string, price decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.Invalid("name is required")
	}
	if price.IsNegative() {
		return apperrors.Invalid("price must not be negative")
	}
	return nil
}
