package fulfillment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ironankr/storefront/internal/domain/order"
	"github.com/ironankr/storefront/internal/domain/product"
)

// ErrNoParcelWeight is returned when neither the request nor the catalog can
// produce a positive parcel weight for a rate quote.
var ErrNoParcelWeight = errors.New("cannot determine parcel weight")

// Address is a shipping address in the carrier API's shape.
type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel describes a single package. Dimensions are in centimeters, weight in
// kilograms.
type Parcel struct {
	LengthCm decimal.Decimal `json:"length_cm"`
	WidthCm  decimal.Decimal `json:"width_cm"`
	HeightCm decimal.Decimal `json:"height_cm"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// Rate is one carrier rate quote.
type Rate struct {
	ID            string          `json:"id"`
	Carrier       string          `json:"carrier"`
	Service       string          `json:"service"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EstimatedDays int             `json:"estimated_days"`
}

// Label is a purchased shipping label.
type Label struct {
	Status         string `json:"status"`
	Carrier        string `json:"carrier"`
	Service        string `json:"service"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	LabelURL       string `json:"label_url"`
}

// ShippingProvider is the carrier API port (implemented by the Shippo client).
type ShippingProvider interface {
	GetRates(ctx context.Context, from, to Address, parcel Parcel) ([]Rate, error)
	PurchaseLabel(ctx context.Context, rateID string) (*Label, error)
}

// MarkFulfilledRequest is the input for marking an order fulfilled.
type MarkFulfilledRequest struct {
	OrderID        string
	Carrier        string
	Service        string
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
}

// RateRequest is the input for quoting shipping rates for an order. When
// Parcel is nil the parcel weight is derived from the catalog weights of the
// order's line items.
type RateRequest struct {
	OrderID string
	To      Address
	Parcel  *Parcel
}

// Service glues orders to the carrier API: rate quotes, label purchase, and
// the append-only shipment log on the order.
type Service struct {
	orders   order.Repository
	products product.Repository
	provider ShippingProvider
	shipFrom Address
	now      func() time.Time
}

// NewService creates a fulfillment Service. shipFrom is the warehouse address
// used as the origin of every shipment.
func NewService(orders order.Repository, products product.Repository, provider ShippingProvider, shipFrom Address) *Service {
	return &Service{
		orders:   orders,
		products: products,
		provider: provider,
		shipFrom: shipFrom,
		now:      time.Now,
	}
}

// MarkFulfilled appends a shipment record to the order and flips its
// fulfillment status to fulfilled.
func (s *Service) MarkFulfilled(ctx context.Context, req MarkFulfilledRequest) (*order.Order, error) {
	rec := order.ShipmentRecord{
		Carrier:        req.Carrier,
		Service:        req.Service,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		LabelURL:       req.LabelURL,
		CreatedAt:      s.now(),
	}
	o, err := s.orders.AppendShipment(ctx, req.OrderID, rec)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Rates quotes carrier rates for shipping an order to the given address.
func (s *Service) Rates(ctx context.Context, req RateRequest) ([]Rate, error) {
	parcel, err := s.resolveParcel(ctx, req)
	if err != nil {
		return nil, err
	}

	rates, err := s.provider.GetRates(ctx, s.shipFrom, req.To, parcel)
	if err != nil {
		return nil, errors.Wrap(err, "get rates")
	}
	return rates, nil
}

// PurchaseLabel buys a label for a previously quoted rate. The caller is
// expected to follow up with MarkFulfilled once the parcel ships.
func (s *Service) PurchaseLabel(ctx context.Context, rateID string) (*Label, error) {
	label, err := s.provider.PurchaseLabel(ctx, rateID)
	if err != nil {
		return nil, errors.Wrap(err, "purchase label")
	}
	return label, nil
}

// resolveParcel uses the request's parcel when given, otherwise derives the
// total weight from the catalog weights of the order's line items. A default
// box size is assumed for derived parcels.
func (s *Service) resolveParcel(ctx context.Context, req RateRequest) (Parcel, error) {
	if req.Parcel != nil {
		return *req.Parcel, nil
	}

	_, items, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return Parcel{}, err
	}

	weight := decimal.Zero
	for _, item := range items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return Parcel{}, errors.Wrapf(err, "resolve weight for product %s", item.ProductID)
		}
		w := p.WeightKg
		if item.VariantID != "" {
			v, err := s.products.GetVariant(ctx, item.ProductID, item.VariantID)
			if err == nil && v.WeightKg.Valid {
				w = v.WeightKg.Decimal
			}
		}
		weight = weight.Add(w.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if !weight.IsPositive() {
		return Parcel{}, ErrNoParcelWeight
	}

	return Parcel{
		LengthCm: decimal.NewFromInt(30),
		WidthCm:  decimal.NewFromInt(25),
		HeightCm: decimal.NewFromInt(10),
		WeightKg: weight,
	}, nil
}
