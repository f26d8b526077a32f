package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/product"
)

type cartView struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id,omitempty"`
	SubtotalInCents int64          `json:"subtotal_in_cents"`
	DiscountInCents int64          `json:"discount_in_cents"`
	TaxInCents      int64          `json:"tax_in_cents"`
	ShippingInCents int64          `json:"shipping_in_cents"`
	TotalInCents    int64          `json:"total_in_cents"`
	Currency        string         `json:"currency"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	Items           []lineItemView `json:"items"`
}

type lineItemView struct {
	ID                string `json:"id"`
	ProductID         string `json:"product_id"`
	VariantID         string `json:"variant_id,omitempty"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Quantity          int    `json:"quantity"`
	UnitPriceInCents  int64  `json:"unit_price_in_cents"`
	TotalPriceInCents int64  `json:"total_price_in_cents"`
}

func toCartView(c *cart.Cart, items []cart.LineItem) cartView {
	v := cartView{
		ID:              c.ID,
		CustomerID:      c.CustomerID,
		SubtotalInCents: c.SubtotalInCents,
		DiscountInCents: c.DiscountInCents,
		TaxInCents:      c.TaxInCents,
		ShippingInCents: c.ShippingInCents,
		TotalInCents:    c.TotalInCents,
		Currency:        c.Currency,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		ExpiresAt:       c.ExpiresAt,
		Items:           []lineItemView{},
	}
	for _, item := range items {
		v.Items = append(v.Items, toLineItemView(&item))
	}
	return v
}

func toLineItemView(item *cart.LineItem) lineItemView {
	return lineItemView{
		ID:                item.ID,
		ProductID:         item.ProductID,
		VariantID:         item.VariantID,
		Title:             item.Title,
		SKU:               item.SKU,
		Quantity:          item.Quantity,
		UnitPriceInCents:  item.UnitPriceInCents,
		TotalPriceInCents: item.TotalPriceInCents,
	}
}

type ensureCartRequest struct {
	CartID string `json:"cart_id"`
}

// handleEnsureCart resolves a client-held cart id to a live cart, minting a
// fresh one when the id is empty, unknown, or expired. The body is optional.
func (h *Handler) handleEnsureCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ensureCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	ensured, err := h.carts.Ensure(ctx, req.CartID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	c, items, err := h.carts.Get(ctx, ensured.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toCartView(c, items))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, items, err := h.carts.Get(r.Context(), r.PathValue("cartID"))
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "cart not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartView(c, items))
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"required"`
}

type cartItemResponse struct {
	Cart cartView     `json:"cart"`
	Item lineItemView `json:"item"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	c, item, err := h.carts.AddItem(ctx, cart.AddItemRequest{
		CartID:    r.PathValue("cartID"),
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "cart not found")
		case errors.Is(err, cart.ErrInvalidQuantity):
			writeError(w, r, http.StatusUnprocessableEntity, "quantity must be greater than 0")
		case errors.Is(err, cart.ErrOutOfStock):
			writeError(w, r, http.StatusConflict, "product is out of stock")
		case errors.Is(err, product.ErrNotFound):
			writeError(w, r, http.StatusUnprocessableEntity, "product not found")
		case errors.Is(err, product.ErrVariantNotFound):
			writeError(w, r, http.StatusUnprocessableEntity, "variant not found")
		default:
			internalError(w, r, err)
		}
		return
	}

	items, err := h.carts.ListItems(ctx, c.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, cartItemResponse{
		Cart: toCartView(c, items),
		Item: toLineItemView(item),
	})
}

// updateItemRequest uses a pointer so an explicit zero survives validation:
// absent quantity is rejected, quantity <= 0 reaches the service's clamp.
type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateItemRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	c, item, err := h.carts.UpdateItemQuantity(ctx, r.PathValue("cartID"), r.PathValue("itemID"), *req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) || errors.Is(err, cart.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "cart item not found")
			return
		}
		internalError(w, r, err)
		return
	}

	items, err := h.carts.ListItems(ctx, c.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, cartItemResponse{
		Cart: toCartView(c, items),
		Item: toLineItemView(item),
	})
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.carts.RemoveItem(ctx, r.PathValue("cartID"), r.PathValue("itemID"))
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) || errors.Is(err, cart.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "cart item not found")
			return
		}
		internalError(w, r, err)
		return
	}

	items, err := h.carts.ListItems(ctx, c.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toCartView(c, items))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), r.PathValue("cartID"))
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "cart not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartView(c, nil))
}
