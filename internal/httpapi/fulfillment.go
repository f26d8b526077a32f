package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/fulfillment"
	"github.com/ironankr/storefront/internal/domain/order"
)

type markFulfilledRequest struct {
	OrderID        string `json:"order_id" validate:"required"`
	Carrier        string `json:"carrier" validate:"required"`
	Service        string `json:"service"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
	TrackingURL    string `json:"tracking_url"`
	LabelURL       string `json:"label_url"`
}

// handleMarkFulfilled appends a shipment record to the order and marks it
// fulfilled. The shipment log is append-only; repeat calls add records.
func (h *Handler) handleMarkFulfilled(w http.ResponseWriter, r *http.Request) {
	var req markFulfilledRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.fulfillment.MarkFulfilled(r.Context(), fulfillment.MarkFulfilledRequest{
		OrderID:        req.OrderID,
		Carrier:        req.Carrier,
		Service:        req.Service,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		LabelURL:       req.LabelURL,
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderView(o, nil))
}

type shippingRatesRequest struct {
	OrderID string              `json:"order_id" validate:"required"`
	To      fulfillment.Address `json:"to" validate:"required"`
	Parcel  *fulfillment.Parcel `json:"parcel"`
}

type shippingRatesResponse struct {
	Rates []fulfillment.Rate `json:"rates"`
}

// handleShippingRates quotes carrier rates for an order. Without an explicit
// parcel the weight is derived from catalog weights of the order's items.
func (h *Handler) handleShippingRates(w http.ResponseWriter, r *http.Request) {
	var req shippingRatesRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	rates, err := h.fulfillment.Rates(r.Context(), fulfillment.RateRequest{
		OrderID: req.OrderID,
		To:      req.To,
		Parcel:  req.Parcel,
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "order not found")
		case errors.Is(err, fulfillment.ErrNoParcelWeight):
			writeError(w, r, http.StatusUnprocessableEntity, "cannot determine parcel weight")
		default:
			internalError(w, r, err)
		}
		return
	}

	if rates == nil {
		rates = []fulfillment.Rate{}
	}
	writeJSON(w, r, http.StatusOK, shippingRatesResponse{Rates: rates})
}

type purchaseLabelRequest struct {
	RateID string `json:"rate_id" validate:"required"`
}

func (h *Handler) handlePurchaseLabel(w http.ResponseWriter, r *http.Request) {
	var req purchaseLabelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "rate_id required")
		return
	}

	label, err := h.fulfillment.PurchaseLabel(r.Context(), req.RateID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, label)
}
