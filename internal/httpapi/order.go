package httpapi

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/order"
)

type orderView struct {
	ID                string                 `json:"id"`
	CartID            string                 `json:"cart_id"`
	CustomerID        string                 `json:"customer_id,omitempty"`
	SubtotalInCents   int64                  `json:"subtotal_in_cents"`
	DiscountInCents   int64                  `json:"discount_in_cents"`
	TaxInCents        int64                  `json:"tax_in_cents"`
	ShippingInCents   int64                  `json:"shipping_in_cents"`
	TotalInCents      int64                  `json:"total_in_cents"`
	Currency          string                 `json:"currency"`
	Status            string                 `json:"status"`
	PaymentStatus     string                 `json:"payment_status"`
	FulfillmentStatus string                 `json:"fulfillment_status"`
	Payment           order.PaymentLinkage   `json:"payment"`
	Shipments         []order.ShipmentRecord `json:"shipments"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Items             []orderItemView        `json:"items"`
}

type orderItemView struct {
	ID                string `json:"id"`
	ProductID         string `json:"product_id"`
	VariantID         string `json:"variant_id,omitempty"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Quantity          int    `json:"quantity"`
	UnitPriceInCents  int64  `json:"unit_price_in_cents"`
	TotalPriceInCents int64  `json:"total_price_in_cents"`
}

func toOrderView(o *order.Order, items []order.LineItem) orderView {
	v := orderView{
		ID:                o.ID,
		CartID:            o.CartID,
		CustomerID:        o.CustomerID,
		SubtotalInCents:   o.SubtotalInCents,
		DiscountInCents:   o.DiscountInCents,
		TaxInCents:        o.TaxInCents,
		ShippingInCents:   o.ShippingInCents,
		TotalInCents:      o.TotalInCents,
		Currency:          o.Currency,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Payment:           o.Payment,
		Shipments:         o.Shipments,
		Items:             []orderItemView{},
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if v.Shipments == nil {
		v.Shipments = []order.ShipmentRecord{}
	}
	for _, item := range items {
		v.Items = append(v.Items, orderItemView{
			ID:                item.ID,
			ProductID:         item.ProductID,
			VariantID:         item.VariantID,
			Title:             item.Title,
			SKU:               item.SKU,
			Quantity:          item.Quantity,
			UnitPriceInCents:  item.UnitPriceInCents,
			TotalPriceInCents: item.TotalPriceInCents,
		})
	}
	return v
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, items, err := h.orders.Get(r.Context(), r.PathValue("orderID"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderView(o, items))
}
