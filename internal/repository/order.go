package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironankr/storefront/internal/domain/order"
)

const (
	recordEventSQL = `INSERT INTO webhook_events (id, event_type, order_id)
		VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`

	eventProcessedSQL = `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE id = $1)`

	orderColumns = `id, cart_id, customer_id, subtotal_in_cents, discount_in_cents,
		tax_in_cents, shipping_in_cents, total_in_cents, currency,
		status, payment_status, fulfillment_status, payment, shipments,
		created_at, updated_at`

	createOrderSQL = `INSERT INTO orders
		(id, cart_id, customer_id, subtotal_in_cents, discount_in_cents,
		 tax_in_cents, shipping_in_cents, total_in_cents, currency,
		 status, payment_status, fulfillment_status, payment, shipments,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	orderItemColumns = `id, order_id, product_id, variant_id, title, sku, quantity,
		unit_price_in_cents, total_price_in_cents`

	listOrderItemsSQL = `SELECT ` + orderItemColumns + `
		FROM order_line_items WHERE order_id = $1 ORDER BY title`

	purgeCartItemsSQL = `DELETE FROM cart_line_items WHERE cart_id = $1`

	zeroCartTotalsSQL = `UPDATE carts SET
			subtotal_in_cents = 0, discount_in_cents = 0, tax_in_cents = 0,
			shipping_in_cents = 0, total_in_cents = 0, updated_at = now()
		WHERE id = $1`

	appendShipmentSQL = `UPDATE orders SET
			shipments = shipments || jsonb_build_array($2::jsonb),
			fulfillment_status = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart materializes an order inside a single transaction: the
// webhook event id is recorded first, so a redelivered event conflicts and
// rolls back with ErrEventAlreadyProcessed before any order rows exist. The
// source cart's line items are purged and its totals zeroed in the same
// transaction.
func (r *OrderRepository) CreateFromCart(ctx context.Context, eventID string, o *order.Order, items []order.LineItem) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, recordEventSQL, eventID, "checkout.session.completed", o.ID)
		if err != nil {
			return fmt.Errorf("recording webhook event %q: %w", eventID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrEventAlreadyProcessed
		}

		paymentJSON, err := json.Marshal(o.Payment)
		if err != nil {
			return fmt.Errorf("marshaling payment linkage: %w", err)
		}
		shipmentsJSON, err := json.Marshal(shipmentsOrEmpty(o.Shipments))
		if err != nil {
			return fmt.Errorf("marshaling shipments: %w", err)
		}

		_, err = tx.Exec(ctx, createOrderSQL,
			o.ID, o.CartID, nullable(o.CustomerID),
			o.SubtotalInCents, o.DiscountInCents, o.TaxInCents, o.ShippingInCents, o.TotalInCents,
			o.Currency, o.Status, o.PaymentStatus, o.FulfillmentStatus,
			paymentJSON, shipmentsJSON, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		rows := make([][]any, len(items))
		for i, item := range items {
			rows[i] = []any{
				item.ID, item.OrderID, item.ProductID, nullable(item.VariantID),
				item.Title, item.SKU, item.Quantity,
				item.UnitPriceInCents, item.TotalPriceInCents,
			}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"order_line_items"},
			[]string{
				"id", "order_id", "product_id", "variant_id", "title", "sku",
				"quantity", "unit_price_in_cents", "total_price_in_cents",
			},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copying line items for order %q: %w", o.ID, err)
		}

		if _, err := tx.Exec(ctx, purgeCartItemsSQL, o.CartID); err != nil {
			return fmt.Errorf("purging cart %q: %w", o.CartID, err)
		}
		if _, err := tx.Exec(ctx, zeroCartTotalsSQL, o.CartID); err != nil {
			return fmt.Errorf("zeroing totals for cart %q: %w", o.CartID, err)
		}
		return nil
	})
	return err
}

// EventProcessed reports whether eventID is present in the webhook ledger.
func (r *OrderRepository) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var processed bool
	if err := r.pool.QueryRow(ctx, eventProcessedSQL, eventID).Scan(&processed); err != nil {
		return false, fmt.Errorf("checking webhook event %q: %w", eventID, err)
	}
	return processed, nil
}

// Get returns an order and its line items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, []order.LineItem, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, order.ErrNotFound
		}
		return nil, nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing items for order %q: %w", id, err)
	}
	items, err := pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, nil, fmt.Errorf("listing items for order %q: %w", id, err)
	}

	return &o, items, nil
}

// AppendShipment appends one shipment record to the order's append-only
// shipment list and marks the order fulfilled, atomically.
func (r *OrderRepository) AppendShipment(ctx context.Context, orderID string, rec order.ShipmentRecord) (*order.Order, error) {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling shipment record: %w", err)
	}

	rows, err := r.pool.Query(ctx, appendShipmentSQL, orderID, recJSON, order.FulfillmentStatusFulfilled)
	if err != nil {
		return nil, fmt.Errorf("appending shipment to order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("appending shipment to order %q: %w", orderID, err)
	}
	return &o, nil
}

func shipmentsOrEmpty(s []order.ShipmentRecord) []order.ShipmentRecord {
	if s == nil {
		return []order.ShipmentRecord{}
	}
	return s
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		customerID    *string
		paymentJSON   []byte
		shipmentsJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.CartID, &customerID, &o.SubtotalInCents, &o.DiscountInCents,
		&o.TaxInCents, &o.ShippingInCents, &o.TotalInCents, &o.Currency,
		&o.Status, &o.PaymentStatus, &o.FulfillmentStatus, &paymentJSON, &shipmentsJSON,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.CustomerID = orEmpty(customerID)

	if err := json.Unmarshal(paymentJSON, &o.Payment); err != nil {
		return o, fmt.Errorf("unmarshaling payment linkage: %w", err)
	}
	if err := json.Unmarshal(shipmentsJSON, &o.Shipments); err != nil {
		return o, fmt.Errorf("unmarshaling shipments: %w", err)
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.LineItem, error) {
	var (
		item      order.LineItem
		variantID *string
	)
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &variantID, &item.Title, &item.SKU,
		&item.Quantity, &item.UnitPriceInCents, &item.TotalPriceInCents,
	)
	item.VariantID = orEmpty(variantID)
	return item, err
}
