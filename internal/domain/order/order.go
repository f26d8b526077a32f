package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when an order id does not resolve to a row.
	ErrNotFound = errors.New("order not found")
	// ErrEventAlreadyProcessed is returned when a webhook event id has already
	// materialized an order. Redeliveries must be acked, not re-processed.
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")
	// ErrEmptyCart is returned when materialization is attempted from a cart
	// with no line items.
	ErrEmptyCart = errors.New("cart has no line items")
)

// Order statuses. Orders are created directly in the paid state because they
// only come into existence from a successful payment webhook.
const (
	StatusPaid = "paid"

	PaymentStatusPaid = "paid"

	FulfillmentStatusUnfulfilled = "unfulfilled"
	FulfillmentStatusFulfilled   = "fulfilled"
)

// PaymentLinkage ties an order back to the payment provider's records.
type PaymentLinkage struct {
	Provider        string `json:"provider"`
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// ShipmentRecord is one fulfillment shipment attached to an order. The list
// on the order is append-only.
type ShipmentRecord struct {
	Carrier        string    `json:"carrier,omitempty"`
	Service        string    `json:"service,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	TrackingURL    string    `json:"tracking_url,omitempty"`
	LabelURL       string    `json:"label_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Order is an immutable snapshot of a cart's contents captured at successful
// payment. Only the status fields and the shipments list mutate afterwards.
type Order struct {
	ID                string
	CartID            string
	CustomerID        string
	SubtotalInCents   int64
	DiscountInCents   int64
	TaxInCents        int64
	ShippingInCents   int64
	TotalInCents      int64
	Currency          string
	Status            string
	PaymentStatus     string
	FulfillmentStatus string
	Payment           PaymentLinkage
	Shipments         []ShipmentRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LineItem is one product/variant/quantity/price entry within an order,
// copied verbatim from the cart line at materialization time.
type LineItem struct {
	ID                string
	OrderID           string
	ProductID         string
	VariantID         string
	Title             string
	SKU               string
	Quantity          int
	UnitPriceInCents  int64
	TotalPriceInCents int64
}

// Repository defines persistence operations for orders.
//
// CreateFromCart must atomically record the webhook event id, insert the
// order and its line items, delete the source cart's line items, and zero the
// cart's totals. A duplicate event id yields ErrEventAlreadyProcessed with no
// other effect.
type Repository interface {
	CreateFromCart(ctx context.Context, eventID string, o *Order, items []LineItem) error
	// EventProcessed reports whether a webhook event id has already
	// materialized an order.
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	Get(ctx context.Context, id string) (*Order, []LineItem, error)
	AppendShipment(ctx context.Context, orderID string, rec ShipmentRecord) (*Order, error)
}
