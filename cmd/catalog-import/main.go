// Command catalog-import loads supplier product feeds into the catalog. Feeds
// are gzip-compressed JSONL files, one product per line. Feeds are parsed
// concurrently; a bloom filter drops duplicate SKUs across feeds so the first
// occurrence wins.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ironankr/storefront/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 50_000
)

// productNamespace seeds deterministic product ids from SKUs, so re-running an
// import updates rows instead of duplicating them.
var productNamespace = uuid.MustParse("8a9e9c41-2f6d-4a6e-9f6e-3f6a1c2b4d5e")

const upsertProductSQL = `INSERT INTO products
	(id, title, sku, description, price_in_cents, currency, stock, weight_kg, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (sku) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		price_in_cents = EXCLUDED.price_in_cents,
		currency = EXCLUDED.currency,
		stock = EXCLUDED.stock,
		weight_kg = EXCLUDED.weight_kg,
		image_url = EXCLUDED.image_url,
		updated_at = now(),
		deleted_at = NULL`

// feedRecord is one line of a supplier feed.
type feedRecord struct {
	SKU          string          `json:"sku"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PriceInCents int64           `json:"price_in_cents"`
	Currency     string          `json:"currency"`
	Stock        int             `json:"stock"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
	ImageURL     string          `json:"image_url"`
}

func main() {
	var (
		feedsDir    string
		databaseURL string
	)

	flag.StringVar(&feedsDir, "feeds-dir", "feeds", "directory containing *.jsonl.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedsDir, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, feedsDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedsDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds found in %s", feedsDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Readers parse feeds concurrently; a single writer owns the bloom filter
	// and the database connection, so no locking is needed.
	records := make(chan feedRecord, 1024)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(parseFeed(rctx, f, records))
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	var imported, skipped uint64
	g.Go(func() error {
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		for rec := range records {
			if seen.TestString(rec.SKU) {
				skipped++
				continue
			}
			seen.AddString(rec.SKU)

			id := uuid.NewSHA1(productNamespace, []byte(rec.SKU)).String()
			if _, err := pool.Exec(gctx, upsertProductSQL,
				id, rec.Title, rec.SKU, rec.Description, rec.PriceInCents,
				rec.Currency, rec.Stock, rec.WeightKg, rec.ImageURL,
			); err != nil {
				return errors.Wrapf(err, "upsert product %s", rec.SKU)
			}

			imported++
			if imported%progressEvery == 0 {
				slog.Info("import progress", slog.Uint64("imported", imported))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("feeds", len(files)),
		slog.Uint64("imported", imported),
		slog.Uint64("skipped_duplicates", skipped),
	)
	return nil
}

// parseFeed streams one gzipped JSONL feed into the records channel. Lines
// that fail to parse or carry no SKU are logged and skipped.
func parseFeed(ctx context.Context, path string, records chan<- feedRecord) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var lineNo int
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineNo++
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec feedRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				slog.Warn("skipping malformed line",
					slog.String("feed", filepath.Base(path)),
					slog.Int("line", lineNo),
					slog.String("error", err.Error()),
				)
				continue
			}
			if rec.SKU == "" {
				slog.Warn("skipping record without sku",
					slog.String("feed", filepath.Base(path)),
					slog.Int("line", lineNo),
				)
				continue
			}
			if rec.Currency == "" {
				rec.Currency = "usd"
			}

			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed parsed", slog.String("feed", filepath.Base(path)), slog.Int("lines", lineNo))
		return nil
	}
}
