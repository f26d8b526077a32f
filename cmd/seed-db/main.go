// Command seed-db loads a demo catalog and a fulfillment API key into the
// database. It is intended for local development and CI environments.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ironankr/storefront/internal/httpapi"
	"github.com/ironankr/storefront/internal/repository"
)

const (
	upsertProductSQL = `INSERT INTO products
		(id, title, sku, description, price_in_cents, currency, stock, weight_kg, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			sku = EXCLUDED.sku,
			description = EXCLUDED.description,
			price_in_cents = EXCLUDED.price_in_cents,
			currency = EXCLUDED.currency,
			stock = EXCLUDED.stock,
			weight_kg = EXCLUDED.weight_kg,
			image_url = EXCLUDED.image_url,
			updated_at = now(),
			deleted_at = NULL`

	upsertVariantSQL = `INSERT INTO product_variants
		(id, product_id, title, sku, price_in_cents, stock, weight_kg)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			sku = EXCLUDED.sku,
			price_in_cents = EXCLUDED.price_in_cents,
			stock = EXCLUDED.stock,
			weight_kg = EXCLUDED.weight_kg,
			updated_at = now(),
			deleted_at = NULL`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET
			name = EXCLUDED.name,
			scopes = EXCLUDED.scopes,
			active = TRUE`
)

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type productJSON struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	SKU          string          `json:"sku"`
	Description  string          `json:"description"`
	PriceInCents int64           `json:"price_in_cents"`
	Currency     string          `json:"currency"`
	Stock        int             `json:"stock"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
	ImageURL     string          `json:"image_url"`
	Variants     []variantJSON   `json:"variants"`
}

type variantJSON struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	SKU          string               `json:"sku"`
	PriceInCents *int64               `json:"price_in_cents"`
	Stock        int                  `json:"stock"`
	WeightKg     *decimal.NullDecimal `json:"weight_kg"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "fulfillment API key to seed (or ANKR_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ANKR_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANKR_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or ANKR_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ANKR_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool dbExecutor, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Title, p.SKU, p.Description, p.PriceInCents,
			p.Currency, p.Stock, p.WeightKg, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))

		for _, v := range p.Variants {
			if _, err := pool.Exec(ctx, upsertVariantSQL,
				v.ID, p.ID, v.Title, v.SKU, v.PriceInCents, v.Stock, v.WeightKg,
			); err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.SKU)
			}
			slog.Info("upserted variant", slog.String("id", v.ID), slog.String("title", v.Title))
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool dbExecutor, apiKey, pepper string) error {
	slog.Info("seeding fulfillment API key")

	keyHash := hex.EncodeToString(httpapi.HashAPIKey(pepper, apiKey))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL,
		uuid.New().String(), keyHash, "Fulfillment dashboard key", []string{"orders", "fulfillment"},
	); err != nil {
		return errors.Wrap(err, "upsert fulfillment API key")
	}

	slog.Info("upserted API key", slog.String("name", "Fulfillment dashboard key"))

	return nil
}
