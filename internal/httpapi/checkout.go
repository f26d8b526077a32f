package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/checkout"
)

type createCheckoutRequest struct {
	CartID string `json:"cart_id" validate:"required"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// handleCreateCheckout creates a hosted checkout session for the cart and
// returns the redirect URL. Empty carts never reach the payment provider.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "cart_id required")
		return
	}

	sess, err := h.checkout.CreateSession(r.Context(), req.CartID)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "cart not found")
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, r, http.StatusUnprocessableEntity, "cart has no line items")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, checkoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
	})
}
