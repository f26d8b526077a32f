package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironankr/storefront/internal/domain/product"
)

const (
	productColumns = `id, title, sku, description, price_in_cents, currency, stock, weight_kg, image_url`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE deleted_at IS NULL ORDER BY title`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1 AND deleted_at IS NULL`

	variantColumns = `id, product_id, title, sku, price_in_cents, stock, weight_kg`

	getVariantSQL = `SELECT ` + variantColumns + `
		FROM product_variants WHERE id = $2 AND product_id = $1 AND deleted_at IS NULL`

	listVariantsSQL = `SELECT ` + variantColumns + `
		FROM product_variants WHERE product_id = $1 AND deleted_at IS NULL ORDER BY title`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all live products ordered by title.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single live product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetVariant returns a live variant scoped to its product.
func (r *ProductRepository) GetVariant(ctx context.Context, productID, variantID string) (*product.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q: %w", variantID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrVariantNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", variantID, err)
	}
	return &v, nil
}

// ListVariants returns the live variants of a product ordered by title.
func (r *ProductRepository) ListVariants(ctx context.Context, productID string) ([]product.Variant, error) {
	rows, err := r.pool.Query(ctx, listVariantsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing variants for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.SKU, &p.Description, &p.PriceInCents,
		&p.Currency, &p.Stock, &p.WeightKg, &p.ImageURL,
	)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (product.Variant, error) {
	var v product.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Title, &v.SKU, &v.PriceInCents,
		&v.Stock, &v.WeightKg,
	)
	return v, err
}
