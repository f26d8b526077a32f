package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/ironankr/storefront/internal/domain/cart"
)

// CompletedCheckout carries the fields the materializer needs from a
// provider's "checkout completed" event.
type CompletedCheckout struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	CartID          string
}

// Materializer turns a paid cart into an immutable order. It is invoked from
// the payment webhook handler only.
type Materializer struct {
	carts  cart.Repository
	orders Repository
	now    func() time.Time
}

// NewMaterializer creates a Materializer over the given repositories.
func NewMaterializer(carts cart.Repository, orders Repository) *Materializer {
	return &Materializer{
		carts:  carts,
		orders: orders,
		now:    time.Now,
	}
}

// Materialize copies the cart referenced by the checkout's client reference
// into order rows: totals are carried over as-is, status fields start at
// paid/paid/unfulfilled, and the payment linkage is persisted. The cart's
// line items are purged and its totals zeroed in the same transaction, keyed
// by the webhook event id so a redelivered event returns
// ErrEventAlreadyProcessed instead of minting a second order.
func (m *Materializer) Materialize(ctx context.Context, cc CompletedCheckout) (*Order, error) {
	// Consult the event ledger before touching the cart. The first delivery
	// purges the cart's lines, so a redelivery must short-circuit here
	// rather than trip the empty-cart rejection below.
	processed, err := m.orders.EventProcessed(ctx, cc.EventID)
	if err != nil {
		return nil, errors.Wrap(err, "check event ledger")
	}
	if processed {
		return nil, ErrEventAlreadyProcessed
	}

	c, err := m.carts.Get(ctx, cc.CartID)
	if err != nil {
		return nil, err
	}

	lines, err := m.carts.ListItems(ctx, cc.CartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	now := m.now()
	o := &Order{
		ID:                uuid.New().String(),
		CartID:            c.ID,
		CustomerID:        c.CustomerID,
		SubtotalInCents:   c.SubtotalInCents,
		DiscountInCents:   c.DiscountInCents,
		TaxInCents:        c.TaxInCents,
		ShippingInCents:   c.ShippingInCents,
		TotalInCents:      c.TotalInCents,
		Currency:          c.Currency,
		Status:            StatusPaid,
		PaymentStatus:     PaymentStatusPaid,
		FulfillmentStatus: FulfillmentStatusUnfulfilled,
		Payment: PaymentLinkage{
			Provider:        "stripe",
			SessionID:       cc.SessionID,
			PaymentIntentID: cc.PaymentIntentID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	items := make([]LineItem, len(lines))
	for i, l := range lines {
		items[i] = LineItem{
			ID:                uuid.New().String(),
			OrderID:           o.ID,
			ProductID:         l.ProductID,
			VariantID:         l.VariantID,
			Title:             l.Title,
			SKU:               l.SKU,
			Quantity:          l.Quantity,
			UnitPriceInCents:  l.UnitPriceInCents,
			TotalPriceInCents: l.TotalPriceInCents,
		}
	}

	if err := m.orders.CreateFromCart(ctx, cc.EventID, o, items); err != nil {
		return nil, err
	}
	return o, nil
}
