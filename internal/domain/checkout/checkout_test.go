package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironankr/storefront/internal/domain/cart"
)

// --- Mock implementations ---

type mockCartRepo struct {
	cart  *cart.Cart
	items []cart.LineItem
}

func (m *mockCartRepo) Get(_ context.Context, id string) (*cart.Cart, error) {
	if m.cart == nil || m.cart.ID != id {
		return nil, cart.ErrNotFound
	}
	return m.cart, nil
}

func (m *mockCartRepo) Create(_ context.Context, _ *cart.Cart) error { return nil }

func (m *mockCartRepo) ListItems(_ context.Context, _ string) ([]cart.LineItem, error) {
	return m.items, nil
}

func (m *mockCartRepo) GetItem(_ context.Context, _, _ string) (*cart.LineItem, error) {
	return nil, cart.ErrItemNotFound
}

func (m *mockCartRepo) UpsertItem(_ context.Context, _ *cart.LineItem) (*cart.LineItem, error) {
	return nil, nil
}

func (m *mockCartRepo) SetItemQuantity(_ context.Context, _, _ string, _ int) (*cart.LineItem, error) {
	return nil, nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, _, _ string) error  { return nil }
func (m *mockCartRepo) DeleteItems(_ context.Context, _ string) error    { return nil }
func (m *mockCartRepo) RecalcTotals(_ context.Context, _ string) (*cart.Cart, error) {
	return m.cart, nil
}

type mockProvider struct {
	calls  int
	params SessionParams
	sess   *Session
	err    error
}

func (m *mockProvider) CreateSession(_ context.Context, params SessionParams) (*Session, error) {
	m.calls++
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return m.sess, nil
}

// --- Helpers ---

func testCart() *cart.Cart {
	return &cart.Cart{
		ID:              "cart-1",
		SubtotalInCents: 14800,
		TotalInCents:    14800,
		Currency:        "usd",
		ExpiresAt:       time.Now().Add(time.Hour),
	}
}

func testItems() []cart.LineItem {
	return []cart.LineItem{
		{
			ID:                "item-1",
			CartID:            "cart-1",
			ProductID:         "p-hoodie",
			Title:             "Harbor Anchor Hoodie",
			SKU:               "ANKR-HOOD-001",
			Quantity:          2,
			UnitPriceInCents:  6500,
			TotalPriceInCents: 13000,
		},
		{
			ID:                "item-2",
			CartID:            "cart-1",
			ProductID:         "p-mug",
			Title:             "Deckhand Enamel Mug",
			SKU:               "ANKR-MUG-014",
			Quantity:          1,
			UnitPriceInCents:  1800,
			TotalPriceInCents: 1800,
		},
	}
}

// --- Tests ---

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		SuccessURL: "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example.com/cart",
	}

	t.Run("maps cart lines into provider items", func(t *testing.T) {
		provider := &mockProvider{sess: &Session{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"}}
		s := NewService(&mockCartRepo{cart: testCart(), items: testItems()}, provider, cfg)

		sess, err := s.CreateSession(ctx, "cart-1")
		require.NoError(t, err)
		assert.Equal(t, "cs_test_1", sess.ID)
		assert.Equal(t, "https://pay.example.com/cs_test_1", sess.URL)

		require.Equal(t, 1, provider.calls)
		p := provider.params
		assert.Equal(t, "cart-1", p.ClientReferenceID, "cart id must round-trip via client reference")
		assert.Equal(t, "usd", p.Currency)
		require.Len(t, p.Items, 2)
		assert.Equal(t, "Harbor Anchor Hoodie", p.Items[0].Name)
		assert.Equal(t, int64(6500), p.Items[0].UnitAmount)
		assert.Equal(t, 2, p.Items[0].Quantity)
		assert.Equal(t, "ANKR-MUG-014", p.Items[1].SKU)
	})

	t.Run("redirect URLs carry the cart id without mangling placeholders", func(t *testing.T) {
		provider := &mockProvider{sess: &Session{ID: "cs_test_2", URL: "u"}}
		s := NewService(&mockCartRepo{cart: testCart(), items: testItems()}, provider, cfg)

		_, err := s.CreateSession(ctx, "cart-1")
		require.NoError(t, err)

		assert.Contains(t, provider.params.SuccessURL, "{CHECKOUT_SESSION_ID}")
		assert.Contains(t, provider.params.SuccessURL, "&cart_id=cart-1")
		assert.Equal(t, "https://shop.example.com/cart?cart_id=cart-1", provider.params.CancelURL)
	})

	t.Run("empty cart never reaches the provider", func(t *testing.T) {
		provider := &mockProvider{sess: &Session{ID: "cs_test_3", URL: "u"}}
		s := NewService(&mockCartRepo{cart: testCart()}, provider, cfg)

		_, err := s.CreateSession(ctx, "cart-1")
		assert.ErrorIs(t, err, ErrEmptyCart)
		assert.Zero(t, provider.calls)
	})

	t.Run("unknown cart", func(t *testing.T) {
		provider := &mockProvider{}
		s := NewService(&mockCartRepo{}, provider, cfg)

		_, err := s.CreateSession(ctx, "cart-1")
		assert.ErrorIs(t, err, cart.ErrNotFound)
		assert.Zero(t, provider.calls)
	})
}
