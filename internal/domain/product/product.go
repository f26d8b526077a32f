package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when a requested variant does not exist
	// or belongs to a different product.
	ErrVariantNotFound = errors.New("product variant not found")
)

// Product represents a catalog item available for purchase. Prices are in
// integer cents; Weight is in kilograms and feeds parcel calculations for
// shipping rates.
type Product struct {
	ID           string
	Title        string
	SKU          string
	Description  string
	PriceInCents int64
	Currency     string
	Stock        int
	WeightKg     decimal.Decimal
	ImageURL     string
}

// Variant is a purchasable variation of a product (size, colour, bundle).
// A nil PriceInCents means the variant sells at the product's base price.
type Variant struct {
	ID           string
	ProductID    string
	Title        string
	SKU          string
	PriceInCents *int64
	Stock        int
	WeightKg     decimal.NullDecimal
}

// Repository defines read operations for the product catalog. Soft-deleted
// rows (deleted_at set) are never returned.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetVariant(ctx context.Context, productID, variantID string) (*Variant, error)
	ListVariants(ctx context.Context, productID string) ([]Variant, error)
}

// ResolvePrice returns the unit price for a product/variant pair: the variant
// override when present, the product base price otherwise.
func ResolvePrice(p *Product, v *Variant) int64 {
	if v != nil && v.PriceInCents != nil {
		return *v.PriceInCents
	}
	return p.PriceInCents
}

// ResolveStock returns the stock that gates add-to-cart: the variant's own
// stock when a variant is selected, the product's otherwise.
func ResolveStock(p *Product, v *Variant) int {
	if v != nil {
		return v.Stock
	}
	return p.Stock
}
