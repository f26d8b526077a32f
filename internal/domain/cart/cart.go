package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a cart id does not resolve to a row.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a line item id does not resolve to a row
	// in the given cart.
	ErrItemNotFound = errors.New("cart line item not found")
)

// Cart is a mutable pre-purchase collection of line items tied to a browser
// session. All monetary fields are integer cents. Discount, tax and shipping
// exist in the schema but the cart layer always keeps them at zero, so
// TotalInCents == SubtotalInCents.
type Cart struct {
	ID               string
	CustomerID       string
	SubtotalInCents  int64
	DiscountInCents  int64
	TaxInCents       int64
	ShippingInCents  int64
	TotalInCents     int64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
}

// LineItem is one product/variant/quantity/price entry within a cart.
// Title and SKU are denormalized snapshots taken at add time.
// Invariant: TotalPriceInCents == int64(Quantity) * UnitPriceInCents.
type LineItem struct {
	ID                string
	CartID            string
	ProductID         string
	VariantID         string
	Title             string
	SKU               string
	Quantity          int
	UnitPriceInCents  int64
	TotalPriceInCents int64
}

// Repository defines persistence operations for carts and their line items.
//
// UpsertItem merges into an existing (cart, product, variant) line by adding
// quantities and recomputing the line total from the stored unit price; the
// merge must be atomic under concurrent adds. RecalcTotals recomputes the
// cart's subtotal/total from the current line items in a single statement.
type Repository interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	ListItems(ctx context.Context, cartID string) ([]LineItem, error)
	GetItem(ctx context.Context, cartID, itemID string) (*LineItem, error)
	UpsertItem(ctx context.Context, item *LineItem) (*LineItem, error)
	SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*LineItem, error)
	DeleteItem(ctx context.Context, cartID, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
	RecalcTotals(ctx context.Context, cartID string) (*Cart, error)
}
