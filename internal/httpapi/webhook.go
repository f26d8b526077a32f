package httpapi

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/order"
	"github.com/ironankr/storefront/internal/stripe"
)

// maxWebhookBody bounds webhook payload size; real checkout events are a few
// kilobytes.
const maxWebhookBody = 1 << 20

type webhookAck struct {
	Received bool `json:"received"`
}

// handleStripeWebhook verifies the delivery signature, then materializes an
// order for checkout.session.completed events. Redeliveries of an already
// processed event are acknowledged without side effects so the provider stops
// retrying. Unrelated event types are acknowledged and ignored.
func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "cannot read payload")
		return
	}

	evt, err := h.webhooks.VerifyAndParse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		lg.Warn("webhook rejected", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	if evt.Type != stripe.EventCheckoutCompleted {
		lg.Debug("ignoring webhook event", zap.String("event_type", evt.Type))
		writeJSON(w, r, http.StatusOK, webhookAck{Received: true})
		return
	}

	if evt.ClientReferenceID == "" {
		lg.Warn("checkout completed without client reference", zap.String("event_id", evt.ID))
		writeError(w, r, http.StatusBadRequest, "missing client_reference_id")
		return
	}

	o, err := h.materializer.Materialize(ctx, order.CompletedCheckout{
		EventID:         evt.ID,
		SessionID:       evt.SessionID,
		PaymentIntentID: evt.PaymentIntentID,
		CartID:          evt.ClientReferenceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEventAlreadyProcessed):
			lg.Info("webhook event already processed", zap.String("event_id", evt.ID))
			writeJSON(w, r, http.StatusOK, webhookAck{Received: true})
		case errors.Is(err, cart.ErrNotFound):
			lg.Warn("paid cart not found", zap.String("cart_id", evt.ClientReferenceID))
			writeError(w, r, http.StatusBadRequest, "cart not found")
		case errors.Is(err, order.ErrEmptyCart):
			lg.Warn("paid cart has no line items", zap.String("cart_id", evt.ClientReferenceID))
			writeError(w, r, http.StatusBadRequest, "cart has no line items")
		default:
			internalError(w, r, err)
		}
		return
	}

	lg.Info("order materialized",
		zap.String("order_id", o.ID),
		zap.String("cart_id", o.CartID),
		zap.String("event_id", evt.ID),
		zap.Int64("total_in_cents", o.TotalInCents),
	)
	writeJSON(w, r, http.StatusOK, webhookAck{Received: true})
}
