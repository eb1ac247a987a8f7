package inventory

import "github.com/shopspring/decimal"

// DefaultLowStockThreshold is the quantity below which a product counts as low on stock.
const DefaultLowStockThreshold = 5

// Photo is an opaque reference to a product image.
type Photo struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Product represents one barcode-identified item in the shop.
type Product struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Photo    *Photo          `json:"photo,omitempty"`
}

// Fields holds the descriptive, editable part of a product. A non-empty NewBarcode
// moves the product to a new lookup key.
type Fields struct {
	NewBarcode string
	Name       string
	Category   string
	Size       string
	Color      string
	Price      decimal.Decimal
	Photo      *Photo
}

func (p Product) clone() Product {
	if p.Photo != nil {
		photo := *p.Photo
		p.Photo = &photo
	}
	return p
}
