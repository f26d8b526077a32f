// Package shippo is a thin client for the two Shippo REST resources the
// storefront uses: shipment rate quoting and label purchase.
package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ironankr/storefront/internal/domain/fulfillment"
)

const defaultBaseURL = "https://api.goshippo.com"

// ErrMissingCredentials is returned when the client is constructed without an
// API token.
var ErrMissingCredentials = errors.New("shippo api token is not configured")

// APIError is a non-2xx response from the Shippo API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shippo api error (status %d): %s", e.StatusCode, e.Body)
}

// Client calls the Shippo REST API.
type Client struct {
	http    *http.Client
	token   string
	baseURL string
}

var _ fulfillment.ShippingProvider = (*Client)(nil)

// NewClient creates a Shippo client. baseURL overrides the production host
// (used in tests); empty means api.goshippo.com.
func NewClient(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 20 * time.Second},
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Wire types. Shippo sends monetary amounts and dimensions as strings.

type address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type parcel struct {
	Length       decimal.Decimal `json:"length"`
	Width        decimal.Decimal `json:"width"`
	Height       decimal.Decimal `json:"height"`
	DistanceUnit string          `json:"distance_unit"`
	Weight       decimal.Decimal `json:"weight"`
	MassUnit     string          `json:"mass_unit"`
}

type shipmentRequest struct {
	AddressFrom address  `json:"address_from"`
	AddressTo   address  `json:"address_to"`
	Parcels     []parcel `json:"parcels"`
	Async       bool     `json:"async"`
}

type rate struct {
	ObjectID      string          `json:"object_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Provider      string          `json:"provider"`
	Servicelevel  servicelevel    `json:"servicelevel"`
	EstimatedDays int             `json:"estimated_days"`
}

type servicelevel struct {
	Name string `json:"name"`
}

type shipmentResponse struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
	Rates    []rate `json:"rates"`
}

type transactionRequest struct {
	Rate          string `json:"rate"`
	LabelFileType string `json:"label_file_type"`
	Async         bool   `json:"async"`
}

type transactionResponse struct {
	Status         string   `json:"status"`
	TrackingNumber string   `json:"tracking_number"`
	TrackingURL    string   `json:"tracking_url_provider"`
	LabelURL       string   `json:"label_url"`
	Messages       []apiMsg `json:"messages"`
	Rate           struct {
		Provider     string       `json:"provider"`
		Servicelevel servicelevel `json:"servicelevel"`
	} `json:"rate"`
}

type apiMsg struct {
	Text string `json:"text"`
}

// GetRates creates a synchronous shipment and returns its carrier rate
// quotes.
func (c *Client) GetRates(ctx context.Context, from, to fulfillment.Address, p fulfillment.Parcel) ([]fulfillment.Rate, error) {
	req := shipmentRequest{
		AddressFrom: toWireAddress(from),
		AddressTo:   toWireAddress(to),
		Parcels: []parcel{{
			Length:       p.LengthCm,
			Width:        p.WidthCm,
			Height:       p.HeightCm,
			DistanceUnit: "cm",
			Weight:       p.WeightKg,
			MassUnit:     "kg",
		}},
		Async: false,
	}

	var resp shipmentResponse
	if err := c.post(ctx, "/shipments/", req, &resp); err != nil {
		return nil, err
	}

	rates := make([]fulfillment.Rate, len(resp.Rates))
	for i, r := range resp.Rates {
		rates[i] = fulfillment.Rate{
			ID:            r.ObjectID,
			Carrier:       r.Provider,
			Service:       r.Servicelevel.Name,
			Amount:        r.Amount,
			Currency:      r.Currency,
			EstimatedDays: r.EstimatedDays,
		}
	}
	return rates, nil
}

// PurchaseLabel buys a label for a previously quoted rate.
func (c *Client) PurchaseLabel(ctx context.Context, rateID string) (*fulfillment.Label, error) {
	req := transactionRequest{
		Rate:          rateID,
		LabelFileType: "PDF",
		Async:         false,
	}

	var resp transactionResponse
	if err := c.post(ctx, "/transactions/", req, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "ERROR" {
		msg := "transaction failed"
		if len(resp.Messages) > 0 {
			msg = resp.Messages[0].Text
		}
		return nil, errors.Errorf("purchase label for rate %s: %s", rateID, msg)
	}

	return &fulfillment.Label{
		Status:         resp.Status,
		Carrier:        resp.Rate.Provider,
		Service:        resp.Rate.Servicelevel.Name,
		TrackingNumber: resp.TrackingNumber,
		TrackingURL:    resp.TrackingURL,
		LabelURL:       resp.LabelURL,
	}, nil
}

func toWireAddress(a fulfillment.Address) address {
	return address{
		Name:    a.Name,
		Street1: a.Street1,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
		Phone:   a.Phone,
		Email:   a.Email,
	}
}

// post issues an authenticated JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "ShippoToken "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
