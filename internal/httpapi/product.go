package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/ironankr/storefront/internal/domain/product"
)

type productView struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	SKU          string          `json:"sku"`
	Description  string          `json:"description,omitempty"`
	PriceInCents int64           `json:"price_in_cents"`
	Currency     string          `json:"currency"`
	Stock        int             `json:"stock"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
	ImageURL     string          `json:"image_url,omitempty"`
	Variants     []variantView   `json:"variants,omitempty"`
}

type variantView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SKU          string `json:"sku"`
	PriceInCents int64  `json:"price_in_cents"`
	Stock        int    `json:"stock"`
}

func toProductView(p *product.Product, variants []product.Variant) productView {
	v := productView{
		ID:           p.ID,
		Title:        p.Title,
		SKU:          p.SKU,
		Description:  p.Description,
		PriceInCents: p.PriceInCents,
		Currency:     p.Currency,
		Stock:        p.Stock,
		WeightKg:     p.WeightKg,
		ImageURL:     p.ImageURL,
	}
	for i := range variants {
		v.Variants = append(v.Variants, toVariantView(p, &variants[i]))
	}
	return v
}

// toVariantView resolves the effective price for the variant: the override
// when set, the product base price otherwise.
func toVariantView(p *product.Product, v *product.Variant) variantView {
	return variantView{
		ID:           v.ID,
		Title:        v.Title,
		SKU:          v.SKU,
		PriceInCents: product.ResolvePrice(p, v),
		Stock:        product.ResolveStock(p, v),
	}
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}

	views := make([]productView, len(products))
	for i := range products {
		views[i] = toProductView(&products[i], nil)
	}
	writeJSON(w, r, http.StatusOK, views)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("productID")

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, err)
		return
	}

	variants, err := h.products.ListVariants(ctx, id)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toProductView(p, variants))
}
