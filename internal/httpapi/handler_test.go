package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironankr/storefront/internal/domain/auth"
	"github.com/ironankr/storefront/internal/domain/cart"
	"github.com/ironankr/storefront/internal/domain/checkout"
	"github.com/ironankr/storefront/internal/domain/fulfillment"
	"github.com/ironankr/storefront/internal/domain/order"
	"github.com/ironankr/storefront/internal/domain/product"
	"github.com/ironankr/storefront/internal/stripe"
)

const (
	testWebhookSecret = "whsec_test"
	testAPIKey        = "ankr_test_key"
	testPepper        = "pepper"
)

// --- Mock implementations ---

type memCartRepo struct {
	carts map[string]*cart.Cart
	items map[string][]cart.LineItem
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		carts: make(map[string]*cart.Cart),
		items: make(map[string][]cart.LineItem),
	}
}

func (m *memCartRepo) Get(_ context.Context, id string) (*cart.Cart, error) {
	c, ok := m.carts[id]
	if !ok || !c.ExpiresAt.After(time.Now()) {
		return nil, cart.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCartRepo) Create(_ context.Context, c *cart.Cart) error {
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *memCartRepo) ListItems(_ context.Context, cartID string) ([]cart.LineItem, error) {
	return append([]cart.LineItem(nil), m.items[cartID]...), nil
}

func (m *memCartRepo) GetItem(_ context.Context, cartID, itemID string) (*cart.LineItem, error) {
	for _, item := range m.items[cartID] {
		if item.ID == itemID {
			cp := item
			return &cp, nil
		}
	}
	return nil, cart.ErrItemNotFound
}

func (m *memCartRepo) UpsertItem(_ context.Context, item *cart.LineItem) (*cart.LineItem, error) {
	items := m.items[item.CartID]
	for i := range items {
		if items[i].ProductID == item.ProductID && items[i].VariantID == item.VariantID {
			items[i].Quantity += item.Quantity
			items[i].TotalPriceInCents = int64(items[i].Quantity) * items[i].UnitPriceInCents
			cp := items[i]
			return &cp, nil
		}
	}
	m.items[item.CartID] = append(items, *item)
	cp := *item
	return &cp, nil
}

func (m *memCartRepo) SetItemQuantity(_ context.Context, cartID, itemID string, quantity int) (*cart.LineItem, error) {
	items := m.items[cartID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].Quantity = quantity
			items[i].TotalPriceInCents = int64(quantity) * items[i].UnitPriceInCents
			cp := items[i]
			return &cp, nil
		}
	}
	return nil, cart.ErrItemNotFound
}

func (m *memCartRepo) DeleteItem(_ context.Context, cartID, itemID string) error {
	items := m.items[cartID]
	for i := range items {
		if items[i].ID == itemID {
			m.items[cartID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (m *memCartRepo) DeleteItems(_ context.Context, cartID string) error {
	m.items[cartID] = nil
	return nil
}

func (m *memCartRepo) RecalcTotals(_ context.Context, cartID string) (*cart.Cart, error) {
	c, ok := m.carts[cartID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	var subtotal int64
	for _, item := range m.items[cartID] {
		subtotal += item.TotalPriceInCents
	}
	c.SubtotalInCents = subtotal
	c.TotalInCents = subtotal
	cp := *c
	return &cp, nil
}

type memProductRepo struct {
	products []product.Product
	variants map[string][]product.Variant
}

func (m *memProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, nil
}

func (m *memProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *memProductRepo) GetVariant(_ context.Context, productID, variantID string) (*product.Variant, error) {
	for _, v := range m.variants[productID] {
		if v.ID == variantID {
			cp := v
			return &cp, nil
		}
	}
	return nil, product.ErrVariantNotFound
}

func (m *memProductRepo) ListVariants(_ context.Context, productID string) ([]product.Variant, error) {
	return m.variants[productID], nil
}

// memOrderRepo keeps orders in memory with the same event idempotency and
// cart purge behaviour as the transactional implementation.
type memOrderRepo struct {
	carts  *memCartRepo
	events map[string]bool
	orders map[string]*order.Order
	items  map[string][]order.LineItem
}

func newMemOrderRepo(carts *memCartRepo) *memOrderRepo {
	return &memOrderRepo{
		carts:  carts,
		events: make(map[string]bool),
		orders: make(map[string]*order.Order),
		items:  make(map[string][]order.LineItem),
	}
}

func (m *memOrderRepo) CreateFromCart(_ context.Context, eventID string, o *order.Order, items []order.LineItem) error {
	if m.events[eventID] {
		return order.ErrEventAlreadyProcessed
	}
	m.events[eventID] = true
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = items
	m.carts.items[o.CartID] = nil
	if c, ok := m.carts.carts[o.CartID]; ok {
		c.SubtotalInCents = 0
		c.TotalInCents = 0
	}
	return nil
}

func (m *memOrderRepo) EventProcessed(_ context.Context, eventID string) (bool, error) {
	return m.events[eventID], nil
}

func (m *memOrderRepo) Get(_ context.Context, id string) (*order.Order, []order.LineItem, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil, order.ErrNotFound
	}
	return o, m.items[id], nil
}

func (m *memOrderRepo) AppendShipment(_ context.Context, orderID string, rec order.ShipmentRecord) (*order.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Shipments = append(o.Shipments, rec)
	o.FulfillmentStatus = order.FulfillmentStatusFulfilled
	return o, nil
}

type memAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *memAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

type mockCheckoutProvider struct {
	calls int
}

func (m *mockCheckoutProvider) CreateSession(_ context.Context, params checkout.SessionParams) (*checkout.Session, error) {
	m.calls++
	return &checkout.Session{
		ID:  "cs_test_1",
		URL: "https://checkout.stripe.com/c/pay/cs_test_1",
	}, nil
}

type mockShippingProvider struct{}

func (m *mockShippingProvider) GetRates(_ context.Context, _, _ fulfillment.Address, _ fulfillment.Parcel) ([]fulfillment.Rate, error) {
	return []fulfillment.Rate{{ID: "rate_1", Carrier: "usps", Service: "Priority", Amount: decimal.RequireFromString("7.80"), Currency: "USD", EstimatedDays: 2}}, nil
}

func (m *mockShippingProvider) PurchaseLabel(_ context.Context, _ string) (*fulfillment.Label, error) {
	return &fulfillment.Label{Status: "SUCCESS", Carrier: "usps", TrackingNumber: "9400"}, nil
}

// --- Test fixture ---

type fixture struct {
	srv      *httptest.Server
	carts    *memCartRepo
	orders   *memOrderRepo
	provider *mockCheckoutProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	carts := newMemCartRepo()
	orders := newMemOrderRepo(carts)
	provider := &mockCheckoutProvider{}

	products := &memProductRepo{
		products: []product.Product{
			{
				ID:           "p-hoodie",
				Title:        "Harbor Anchor Hoodie",
				SKU:          "ANKR-HOOD-001",
				PriceInCents: 6500,
				Currency:     "usd",
				Stock:        10,
				WeightKg:     decimal.RequireFromString("0.65"),
			},
		},
		variants: map[string][]product.Variant{
			"p-hoodie": {{ID: "v-large", ProductID: "p-hoodie", Title: "Large", SKU: "ANKR-HOOD-001-L", Stock: 5}},
		},
	}

	keyHash := hex.EncodeToString(HashAPIKey(testPepper, testAPIKey))
	apikeys := &memAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		keyHash: {ID: "key-1", KeyHash: keyHash, Name: "test", Scopes: []string{"orders"}},
	}}

	cartSvc := cart.NewService(carts, products, 0)
	checkoutSvc := checkout.NewService(carts, provider, checkout.Config{
		SuccessURL: "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example.com/cart",
	})
	fulfillmentSvc := fulfillment.NewService(orders, products, &mockShippingProvider{}, fulfillment.Address{
		Name: "Warehouse", City: "Portland", Country: "US",
	})

	h := NewHandler(Deps{
		Products:     products,
		Carts:        cartSvc,
		Checkout:     checkoutSvc,
		Orders:       orders,
		Materializer: order.NewMaterializer(carts, orders),
		Fulfillment:  fulfillmentSvc,
		Webhooks:     stripe.NewWebhookVerifier(testWebhookSecret, 0),
		APIKeys:      apikeys,
		APIKeyPepper: testPepper,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, carts: carts, orders: orders, provider: provider}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

// postWebhook delivers the raw payload bytes with a valid Stripe-Signature
// header unless sig overrides it.
func (f *fixture) postWebhook(t *testing.T, payload []byte, sig string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/stripe/webhook", bytes.NewReader(payload))
	require.NoError(t, err)
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (f *fixture) newCartWithItem(t *testing.T, quantity int) (cartID, itemID string) {
	t.Helper()

	resp, body := f.do(t, http.MethodPost, "/api/carts", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c cartView
	require.NoError(t, json.Unmarshal(body, &c))

	resp, body = f.do(t, http.MethodPost, "/api/carts/"+c.ID+"/items",
		map[string]any{"product_id": "p-hoodie", "quantity": quantity}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var added cartItemResponse
	require.NoError(t, json.Unmarshal(body, &added))
	return c.ID, added.Item.ID
}

func signPayload(ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedEvent(eventID, cartID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_1",
			"client_reference_id": %q,
			"payment_intent": "pi_test_1",
			"amount_total": 13000,
			"currency": "usd"
		}}
	}`, eventID, cartID))
}

// --- Tests ---

func TestCartLifecycle(t *testing.T) {
	f := newFixture(t)

	// Mint a cart.
	resp, body := f.do(t, http.MethodPost, "/api/carts", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c cartView
	require.NoError(t, json.Unmarshal(body, &c))
	assert.NotEmpty(t, c.ID)
	assert.Empty(t, c.Items)

	// Resolving the same id returns the same cart.
	resp, body = f.do(t, http.MethodPost, "/api/carts", map[string]string{"cart_id": c.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved cartView
	require.NoError(t, json.Unmarshal(body, &resolved))
	assert.Equal(t, c.ID, resolved.ID)

	// Add an item.
	resp, body = f.do(t, http.MethodPost, "/api/carts/"+c.ID+"/items",
		map[string]any{"product_id": "p-hoodie", "quantity": 2}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var added cartItemResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 2, added.Item.Quantity)
	assert.Equal(t, int64(13000), added.Item.TotalPriceInCents)
	assert.Equal(t, int64(13000), added.Cart.TotalInCents)

	// Adding the same product merges.
	resp, body = f.do(t, http.MethodPost, "/api/carts/"+c.ID+"/items",
		map[string]any{"product_id": "p-hoodie", "quantity": 1}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, added.Item.ID, added.Cart.Items[0].ID)
	assert.Equal(t, 3, added.Item.Quantity)
	assert.Len(t, added.Cart.Items, 1)

	// Update quantity.
	resp, body = f.do(t, http.MethodPatch, "/api/carts/"+c.ID+"/items/"+added.Item.ID,
		map[string]any{"quantity": 1}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, 1, added.Item.Quantity)
	assert.Equal(t, int64(6500), added.Cart.TotalInCents)

	// Remove the item.
	resp, body = f.do(t, http.MethodDelete, "/api/carts/"+c.ID+"/items/"+added.Item.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var afterRemove cartView
	require.NoError(t, json.Unmarshal(body, &afterRemove))
	assert.Empty(t, afterRemove.Items)
	assert.Zero(t, afterRemove.TotalInCents)
}

func TestCartErrors(t *testing.T) {
	f := newFixture(t)
	cartID, _ := f.newCartWithItem(t, 1)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"unknown cart", http.MethodGet, "/api/carts/00000000-0000-0000-0000-000000000000", nil, http.StatusNotFound},
		{"unknown product on add", http.MethodPost, "/api/carts/" + cartID + "/items", map[string]any{"product_id": "nope", "quantity": 1}, http.StatusUnprocessableEntity},
		{"zero quantity on add", http.MethodPost, "/api/carts/" + cartID + "/items", map[string]any{"product_id": "p-hoodie", "quantity": 0}, http.StatusBadRequest},
		{"missing body on add", http.MethodPost, "/api/carts/" + cartID + "/items", nil, http.StatusBadRequest},
		{"unknown item on update", http.MethodPatch, "/api/carts/" + cartID + "/items/missing", map[string]any{"quantity": 2}, http.StatusNotFound},
		{"missing quantity on update", http.MethodPatch, "/api/carts/" + cartID + "/items/missing", map[string]any{}, http.StatusBadRequest},
		{"unknown item on delete", http.MethodDelete, "/api/carts/" + cartID + "/items/missing", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var errResp errorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, tt.wantStatus, errResp.Code)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestUpdateItemClampsQuantity(t *testing.T) {
	f := newFixture(t)
	cartID, itemID := f.newCartWithItem(t, 3)

	// An explicit zero is a valid body and clamps like any other non-positive
	// quantity.
	for _, quantity := range []int{0, -5} {
		resp, body := f.do(t, http.MethodPatch, "/api/carts/"+cartID+"/items/"+itemID,
			map[string]any{"quantity": quantity}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "quantity %d", quantity)

		var updated cartItemResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		assert.Equal(t, 1, updated.Item.Quantity, "quantity %d clamps to 1", quantity)
		assert.Equal(t, int64(6500), updated.Cart.TotalInCents)
	}
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []productView
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ANKR-HOOD-001", list[0].SKU)
	assert.Empty(t, list[0].Variants, "list response omits variants")

	resp, body = f.do(t, http.MethodGet, "/api/products/p-hoodie", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p productView
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, int64(6500), p.PriceInCents)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "v-large", p.Variants[0].ID)
	assert.Equal(t, int64(6500), p.Variants[0].PriceInCents, "variant without override sells at base price")

	resp, _ = f.do(t, http.MethodGet, "/api/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	t.Run("creates a session for a non-empty cart", func(t *testing.T) {
		cartID, _ := f.newCartWithItem(t, 2)

		resp, body := f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cart_id": cartID}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out checkoutResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, "cs_test_1", out.SessionID)
		assert.NotEmpty(t, out.URL)
	})

	t.Run("empty cart is rejected before the provider", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/carts", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var c cartView
		require.NoError(t, json.Unmarshal(body, &c))

		before := f.provider.calls
		resp, _ = f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cart_id": c.ID}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, before, f.provider.calls)
	})

	t.Run("unknown cart", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/checkout", map[string]string{"cart_id": "missing"}, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing cart_id", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/checkout", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture(t)

	t.Run("completed checkout materializes an order and empties the cart", func(t *testing.T) {
		cartID, _ := f.newCartWithItem(t, 2)
		payload := checkoutCompletedEvent("evt_1", cartID)

		resp, body := f.postWebhook(t, payload, signPayload(time.Now(), payload))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"received": true}`, string(body))

		require.Len(t, f.orders.orders, 1)
		for _, o := range f.orders.orders {
			assert.Equal(t, cartID, o.CartID)
			assert.Equal(t, order.StatusPaid, o.Status)
			assert.Equal(t, "cs_test_1", o.Payment.SessionID)
		}

		// The cart is emptied in the same operation.
		resp, body = f.do(t, http.MethodGet, "/api/carts/"+cartID, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var c cartView
		require.NoError(t, json.Unmarshal(body, &c))
		assert.Empty(t, c.Items)
		assert.Zero(t, c.TotalInCents)
	})

	t.Run("redelivery is acknowledged without a second order", func(t *testing.T) {
		cartID, _ := f.newCartWithItem(t, 1)
		payload := checkoutCompletedEvent("evt_2", cartID)

		resp, _ := f.postWebhook(t, payload, signPayload(time.Now(), payload))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ordersBefore := len(f.orders.orders)

		resp, body := f.postWebhook(t, payload, signPayload(time.Now(), payload))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"received": true}`, string(body))
		assert.Len(t, f.orders.orders, ordersBefore)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		payload := checkoutCompletedEvent("evt_3", "cart-x")

		resp, _ := f.postWebhook(t, payload, "t=1,v1=deadbeef")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = f.postWebhook(t, payload, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unrelated event types are acknowledged", func(t *testing.T) {
		payload := []byte(`{"id": "evt_4", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`)

		resp, body := f.postWebhook(t, payload, signPayload(time.Now(), payload))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"received": true}`, string(body))
	})
}

func TestAPIKeyGate(t *testing.T) {
	f := newFixture(t)

	// Materialize an order to fetch.
	cartID, _ := f.newCartWithItem(t, 1)
	payload := checkoutCompletedEvent("evt_gate", cartID)
	resp, _ := f.postWebhook(t, payload, signPayload(time.Now(), payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orderID string
	for id := range f.orders.orders {
		orderID = id
	}

	t.Run("missing key", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/orders/"+orderID, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong key", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/orders/"+orderID, nil, map[string]string{APIKeyHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key fetches the order", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, "/api/orders/"+orderID, nil, map[string]string{APIKeyHeader: testAPIKey})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var o orderView
		require.NoError(t, json.Unmarshal(body, &o))
		assert.Equal(t, orderID, o.ID)
		assert.Equal(t, cartID, o.CartID)
		assert.Equal(t, "unfulfilled", o.FulfillmentStatus)
		require.Len(t, o.Items, 1)
		assert.Equal(t, "p-hoodie", o.Items[0].ProductID)
	})

	t.Run("unknown order", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/api/orders/missing", nil, map[string]string{APIKeyHeader: testAPIKey})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestFulfillmentEndpoints(t *testing.T) {
	f := newFixture(t)
	withKey := map[string]string{APIKeyHeader: testAPIKey}

	cartID, _ := f.newCartWithItem(t, 2)
	payload := checkoutCompletedEvent("evt_ful", cartID)
	resp, _ := f.postWebhook(t, payload, signPayload(time.Now(), payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orderID string
	for id := range f.orders.orders {
		orderID = id
	}

	t.Run("rates", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/shipping/rates", map[string]any{
			"order_id": orderID,
			"to":       map[string]string{"name": "Customer", "street1": "2 Pier St", "city": "Seattle", "state": "WA", "zip": "98101", "country": "US"},
		}, withKey)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out shippingRatesResponse
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Rates, 1)
		assert.Equal(t, "rate_1", out.Rates[0].ID)
	})

	t.Run("purchase label", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/shipping/purchase", map[string]string{"rate_id": "rate_1"}, withKey)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var label fulfillment.Label
		require.NoError(t, json.Unmarshal(body, &label))
		assert.Equal(t, "SUCCESS", label.Status)
	})

	t.Run("mark fulfilled appends a shipment", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/api/fulfillment/mark-fulfilled", map[string]string{
			"order_id":        orderID,
			"carrier":         "usps",
			"service":         "Priority",
			"tracking_number": "9400100000000000000000",
		}, withKey)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var o orderView
		require.NoError(t, json.Unmarshal(body, &o))
		assert.Equal(t, "fulfilled", o.FulfillmentStatus)
		require.Len(t, o.Shipments, 1)
		assert.Equal(t, "usps", o.Shipments[0].Carrier)
	})

	t.Run("gated without key", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/api/shipping/purchase", map[string]string{"rate_id": "rate_1"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
