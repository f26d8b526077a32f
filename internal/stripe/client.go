// Package stripe is a minimal client for the parts of the Stripe REST API the
// storefront uses: creating hosted Checkout Sessions and verifying webhook
// deliveries. The official SDK would pull in the entire API surface for two
// calls, so the requests are issued directly.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/ironankr/storefront/internal/domain/checkout"
)

const defaultBaseURL = "https://api.stripe.com"

// ErrMissingCredentials is returned when the client is constructed without a
// secret key.
var ErrMissingCredentials = errors.New("stripe secret key is not configured")

// APIError is a non-2xx response from the Stripe API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe api error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the Stripe REST API.
type Client struct {
	http      *http.Client
	secretKey string
	baseURL   string
}

var _ checkout.Provider = (*Client)(nil)

// NewClient creates a Stripe client. baseURL overrides the production API
// host (used in tests); empty means api.stripe.com.
func NewClient(secretKey, baseURL string) (*Client, error) {
	if secretKey == "" {
		return nil, ErrMissingCredentials
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		secretKey: secretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// sessionResponse is the subset of the Checkout Session object we read back.
type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates a hosted Checkout Session in payment mode. Line items
// are priced inline (price_data) in the cart's currency; quantity adjustment
// on the hosted page is left disabled.
func (c *Client) CreateSession(ctx context.Context, params checkout.SessionParams) (*checkout.Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", params.ClientReferenceID)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)

	for i, item := range params.Items {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", params.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.SKU != "" {
			form.Set(prefix+"[price_data][product_data][metadata][sku]", item.SKU)
		}
	}

	var resp sessionResponse
	if err := c.postForm(ctx, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return &checkout.Session{ID: resp.ID, URL: resp.URL}, nil
}

// postForm issues an authenticated form-encoded POST and decodes the JSON
// response into out.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
