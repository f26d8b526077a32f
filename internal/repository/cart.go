package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironankr/storefront/internal/domain/cart"
)

const (
	cartColumns = `id, customer_id, subtotal_in_cents, discount_in_cents, tax_in_cents,
		shipping_in_cents, total_in_cents, currency, created_at, updated_at, expires_at`

	// Expired carts are treated as missing so the service mints a fresh one.
	getCartSQL = `SELECT ` + cartColumns + `
		FROM carts WHERE id = $1 AND expires_at > now()`

	createCartSQL = `INSERT INTO carts (id, customer_id, currency, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	lineItemColumns = `id, cart_id, product_id, variant_id, title, sku, quantity,
		unit_price_in_cents, total_price_in_cents`

	listItemsSQL = `SELECT ` + lineItemColumns + `
		FROM cart_line_items WHERE cart_id = $1 ORDER BY title`

	getItemSQL = `SELECT ` + lineItemColumns + `
		FROM cart_line_items WHERE cart_id = $1 AND id = $2`

	// Merge-on-add: a second add of the same (cart, product, variant) pair
	// lands on the unique constraint and increments the existing line, with
	// the total recomputed from the price stored at first add.
	upsertItemSQL = `INSERT INTO cart_line_items
		(id, cart_id, product_id, variant_id, title, sku, quantity, unit_price_in_cents, total_price_in_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cart_id, product_id, variant_id) DO UPDATE SET
			quantity = cart_line_items.quantity + EXCLUDED.quantity,
			total_price_in_cents = (cart_line_items.quantity + EXCLUDED.quantity)::bigint * cart_line_items.unit_price_in_cents,
			updated_at = now()
		RETURNING ` + lineItemColumns

	setItemQuantitySQL = `UPDATE cart_line_items SET
			quantity = $3,
			total_price_in_cents = $3::bigint * unit_price_in_cents,
			updated_at = now()
		WHERE cart_id = $1 AND id = $2
		RETURNING ` + lineItemColumns

	deleteItemSQL  = `DELETE FROM cart_line_items WHERE cart_id = $1 AND id = $2`
	deleteItemsSQL = `DELETE FROM cart_line_items WHERE cart_id = $1`

	// Single-statement recalculation: subtotal is summed from the current
	// lines, discount/tax/shipping stay zero, total equals subtotal.
	recalcTotalsSQL = `WITH line_totals AS (
			SELECT COALESCE(SUM(total_price_in_cents), 0) AS subtotal
			FROM cart_line_items WHERE cart_id = $1
		)
		UPDATE carts SET
			subtotal_in_cents = line_totals.subtotal,
			discount_in_cents = 0,
			tax_in_cents = 0,
			shipping_in_cents = 0,
			total_in_cents = line_totals.subtotal,
			updated_at = now()
		FROM line_totals
		WHERE carts.id = $1
		RETURNING ` + cartColumns
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns a non-expired cart by id, or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}
	return &c, nil
}

// Create inserts a zeroed cart row.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.pool.Exec(ctx, createCartSQL,
		c.ID, nullable(c.CustomerID), c.Currency, c.CreatedAt, c.UpdatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// ListItems returns the cart's line items ordered by title.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items for cart %q: %w", cartID, err)
	}
	return pgx.CollectRows(rows, scanLineItem)
}

// GetItem returns a single line item scoped to its cart.
func (r *CartRepository) GetItem(ctx context.Context, cartID, itemID string) (*cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, cartID, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", itemID, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", itemID, err)
	}
	return &item, nil
}

// UpsertItem inserts the line or atomically merges it into the existing
// (cart, product, variant) line.
func (r *CartRepository) UpsertItem(ctx context.Context, item *cart.LineItem) (*cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, upsertItemSQL,
		item.ID, item.CartID, item.ProductID, nullable(item.VariantID),
		item.Title, item.SKU, item.Quantity, item.UnitPriceInCents, item.TotalPriceInCents,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting item for cart %q: %w", item.CartID, err)
	}

	merged, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("upserting item for cart %q: %w", item.CartID, err)
	}
	return &merged, nil
}

// SetItemQuantity updates the quantity and recomputes the line total from the
// stored unit price in one statement.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, setItemQuantitySQL, cartID, itemID, quantity)
	if err != nil {
		return nil, fmt.Errorf("setting quantity for item %q: %w", itemID, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("setting quantity for item %q: %w", itemID, err)
	}
	return &item, nil
}

// DeleteItem removes a single line item.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	tag, err := r.pool.Exec(ctx, deleteItemSQL, cartID, itemID)
	if err != nil {
		return fmt.Errorf("deleting item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItems removes every line item in the cart.
func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, deleteItemsSQL, cartID)
	if err != nil {
		return fmt.Errorf("clearing cart %q: %w", cartID, err)
	}
	return nil
}

// RecalcTotals recomputes the cart's totals from its current line items.
func (r *CartRepository) RecalcTotals(ctx context.Context, cartID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, recalcTotalsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("recalculating totals for cart %q: %w", cartID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("recalculating totals for cart %q: %w", cartID, err)
	}
	return &c, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c          cart.Cart
		customerID *string
	)
	err := row.Scan(
		&c.ID, &customerID, &c.SubtotalInCents, &c.DiscountInCents, &c.TaxInCents,
		&c.ShippingInCents, &c.TotalInCents, &c.Currency, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt,
	)
	c.CustomerID = orEmpty(customerID)
	return c, err
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var (
		item      cart.LineItem
		variantID *string
	)
	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &variantID, &item.Title, &item.SKU,
		&item.Quantity, &item.UnitPriceInCents, &item.TotalPriceInCents,
	)
	item.VariantID = orEmpty(variantID)
	return item, err
}
