// Package httpapi exposes the storefront over HTTP: the public cart, product,
// checkout and webhook endpoints plus the API-key gated order and fulfillment
// endpoints. Routes use the net/http method patterns, request bodies are
// validated with go-playground/validator.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/ironankr/storefront/internal/domain/auth"
	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/checkout"
	"github.com/ironankr/storefront/internal/domain/fulfillment"
	"github.com/ironankr/storefront/internal/domain/order"
	"github.com/ironankr/storefront/internal/domain/product"
	"github.com/ironankr/storefront/internal/stripe"
)

// Deps carries the domain services and ports the Handler delegates to.
type Deps struct {
	Products     product.Repository
	Carts        *cart.Service
	Checkout     *checkout.Service
	Orders       order.Repository
	Materializer *order.Materializer
	Fulfillment  *fulfillment.Service
	Webhooks     *stripe.WebhookVerifier
	APIKeys      auth.Repository
	APIKeyPepper string
}

// Handler implements the HTTP endpoints, delegating business logic to the
// injected domain services.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	checkout     *checkout.Service
	orders       order.Repository
	materializer *order.Materializer
	fulfillment  *fulfillment.Service
	webhooks     *stripe.WebhookVerifier
	apikeys      auth.Repository
	apiKeyPepper string
	validate     *validator.Validate
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		products:     deps.Products,
		carts:        deps.Carts,
		checkout:     deps.Checkout,
		orders:       deps.Orders,
		materializer: deps.Materializer,
		fulfillment:  deps.Fulfillment,
		webhooks:     deps.Webhooks,
		apikeys:      deps.APIKeys,
		apiKeyPepper: deps.APIKeyPepper,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes registers every endpoint on mux. The order and fulfillment endpoints
// require a valid API key; everything else is public.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/carts", h.handleEnsureCart)
	mux.HandleFunc("GET /api/carts/{cartID}", h.handleGetCart)
	mux.HandleFunc("POST /api/carts/{cartID}/items", h.handleAddItem)
	mux.HandleFunc("PATCH /api/carts/{cartID}/items/{itemID}", h.handleUpdateItem)
	mux.HandleFunc("DELETE /api/carts/{cartID}/items/{itemID}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /api/carts/{cartID}/items", h.handleClearCart)

	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/products/{productID}", h.handleGetProduct)

	mux.HandleFunc("POST /api/checkout", h.handleCreateCheckout)
	mux.HandleFunc("POST /api/stripe/webhook", h.handleStripeWebhook)

	mux.Handle("GET /api/orders/{orderID}", h.requireAPIKey(http.HandlerFunc(h.handleGetOrder)))
	mux.Handle("POST /api/fulfillment/mark-fulfilled", h.requireAPIKey(http.HandlerFunc(h.handleMarkFulfilled)))
	mux.Handle("POST /api/shipping/rates", h.requireAPIKey(http.HandlerFunc(h.handleShippingRates)))
	mux.Handle("POST /api/shipping/purchase", h.requireAPIKey(http.HandlerFunc(h.handlePurchaseLabel)))
}

// decode unmarshals the request body into dst and runs struct validation.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.Wrap(err, "validate body")
	}
	return nil
}
