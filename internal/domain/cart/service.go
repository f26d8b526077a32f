package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironankr/storefront/internal/domain/product"
)

// Sentinel errors for cart mutations.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrOutOfStock      = errors.New("product is out of stock")
)

// DefaultTTL is how long a freshly minted cart stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// AddItemRequest holds the input for adding a product to a cart.
type AddItemRequest struct {
	CartID    string
	ProductID string
	VariantID string
	Quantity  int
}

// Service implements the cart operations: ensure, fetch, add, update quantity,
// remove and clear. Every mutation is followed by a totals recalculation.
type Service struct {
	carts    Repository
	products product.Repository
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a cart Service. A zero ttl falls back to DefaultTTL.
func NewService(carts Repository, products product.Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		carts:    carts,
		products: products,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Ensure resolves a client-supplied cart id to a persisted cart. When the id
// is empty or no longer resolves to a row, a new zeroed cart is minted with
// the configured expiry. The caller persists the returned id client-side.
func (s *Service) Ensure(ctx context.Context, id string) (*Cart, error) {
	if id != "" {
		c, err := s.carts.Get(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "resolve cart")
		}
	}

	now := s.now()
	c := &Cart{
		ID:        uuid.New().String(),
		Currency:  "usd",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// Get fetches the cart row and its line items in parallel. Items are ordered
// by title.
func (s *Service) Get(ctx context.Context, id string) (*Cart, []LineItem, error) {
	var (
		c     *Cart
		items []LineItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = s.carts.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.carts.ListItems(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return c, items, nil
}

// ListItems returns the cart's line items ordered by title.
func (s *Service) ListItems(ctx context.Context, cartID string) ([]LineItem, error) {
	return s.carts.ListItems(ctx, cartID)
}

// AddItem adds a product (or variant) to the cart, merging into an existing
// line for the same (product, variant) pair. The unit price is resolved at
// add time: variant override when present, product base price otherwise.
// Products with zero stock are rejected; stock is informational only and no
// reservation happens.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*Cart, *LineItem, error) {
	if req.Quantity <= 0 {
		return nil, nil, ErrInvalidQuantity
	}

	if _, err := s.carts.Get(ctx, req.CartID); err != nil {
		return nil, nil, err
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, nil, err
	}

	var v *product.Variant
	if req.VariantID != "" {
		v, err = s.products.GetVariant(ctx, req.ProductID, req.VariantID)
		if err != nil {
			return nil, nil, err
		}
	}

	if product.ResolveStock(p, v) <= 0 {
		return nil, nil, ErrOutOfStock
	}

	unitPrice := product.ResolvePrice(p, v)
	item := &LineItem{
		ID:                uuid.New().String(),
		CartID:            req.CartID,
		ProductID:         req.ProductID,
		VariantID:         req.VariantID,
		Title:             snapshotTitle(p, v),
		SKU:               snapshotSKU(p, v),
		Quantity:          req.Quantity,
		UnitPriceInCents:  unitPrice,
		TotalPriceInCents: int64(req.Quantity) * unitPrice,
	}

	merged, err := s.carts.UpsertItem(ctx, item)
	if err != nil {
		return nil, nil, errors.Wrap(err, "upsert line item")
	}

	c, err := s.carts.RecalcTotals(ctx, req.CartID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recalc totals")
	}
	return c, merged, nil
}

// UpdateItemQuantity sets a line item's quantity, clamping requests below 1
// up to 1, and recomputes the line total from the stored unit price.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*Cart, *LineItem, error) {
	if quantity < 1 {
		quantity = 1
	}

	item, err := s.carts.SetItemQuantity(ctx, cartID, itemID, quantity)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.carts.RecalcTotals(ctx, cartID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recalc totals")
	}
	return c, item, nil
}

// RemoveItem deletes a single line item and recalculates the cart totals.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) (*Cart, error) {
	if err := s.carts.DeleteItem(ctx, cartID, itemID); err != nil {
		return nil, err
	}
	c, err := s.carts.RecalcTotals(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "recalc totals")
	}
	return c, nil
}

// Clear deletes every line item in the cart, zeroing its totals.
func (s *Service) Clear(ctx context.Context, cartID string) (*Cart, error) {
	if _, err := s.carts.Get(ctx, cartID); err != nil {
		return nil, err
	}
	if err := s.carts.DeleteItems(ctx, cartID); err != nil {
		return nil, errors.Wrap(err, "delete line items")
	}
	c, err := s.carts.RecalcTotals(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "recalc totals")
	}
	return c, nil
}

// snapshotTitle denormalizes the display title onto the line item.
func snapshotTitle(p *product.Product, v *product.Variant) string {
	if v != nil && v.Title != "" {
		return p.Title + " / " + v.Title
	}
	return p.Title
}

// snapshotSKU denormalizes the SKU onto the line item.
func snapshotSKU(p *product.Product, v *product.Variant) string {
	if v != nil && v.SKU != "" {
		return v.SKU
	}
	return p.SKU
}
