package checkout

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/cart"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no line
// items. The payment provider is never called in that case.
var ErrEmptyCart = errors.New("cart has no line items")

// LineItem is a provider-facing view of a cart line: display name, SKU
// metadata, unit amount in cents and quantity. Quantity adjustment on the
// provider's hosted page is disallowed.
type LineItem struct {
	Name       string
	SKU        string
	UnitAmount int64
	Quantity   int
}

// Session is a created hosted-checkout session.
type Session struct {
	ID  string
	URL string
}

// SessionParams is the input to Provider.CreateSession.
type SessionParams struct {
	// ClientReferenceID round-trips through the provider and comes back on the
	// completion webhook; it carries the cart id.
	ClientReferenceID string
	Currency          string
	Items             []LineItem
	SuccessURL        string
	CancelURL         string
}

// Provider creates hosted checkout sessions with a payment provider.
type Provider interface {
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
}

// Config holds the redirect targets for the hosted payment page. The
// provider substitutes its session id placeholder into the success URL.
type Config struct {
	SuccessURL string
	CancelURL  string
}

// Service creates checkout sessions from carts.
type Service struct {
	carts    cart.Repository
	provider Provider
	cfg      Config
}

// NewService creates a checkout Service.
func NewService(carts cart.Repository, provider Provider, cfg Config) *Service {
	return &Service{
		carts:    carts,
		provider: provider,
		cfg:      cfg,
	}
}

// CreateSession validates that the cart exists and has at least one line
// item, maps the lines into provider line items, and creates a hosted
// checkout session. The returned URL is handed to the client for redirect.
func (s *Service) CreateSession(ctx context.Context, cartID string) (*Session, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	lines, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]LineItem, len(lines))
	for i, l := range lines {
		items[i] = LineItem{
			Name:       l.Title,
			SKU:        l.SKU,
			UnitAmount: l.UnitPriceInCents,
			Quantity:   l.Quantity,
		}
	}

	sess, err := s.provider.CreateSession(ctx, SessionParams{
		ClientReferenceID: c.ID,
		Currency:          c.Currency,
		Items:             items,
		SuccessURL:        withCartID(s.cfg.SuccessURL, c.ID),
		CancelURL:         withCartID(s.cfg.CancelURL, c.ID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	return sess, nil
}

// withCartID appends the cart id as a query parameter. Plain concatenation
// instead of url.Values: the configured URLs may carry the provider's literal
// session id placeholder, which must not be percent-encoded.
func withCartID(base, cartID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "cart_id=" + url.QueryEscape(cartID)
}
