// Command api-server runs the Iron ankr storefront API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	storefront "github.com/ironankr/storefront/internal/app"
)

func main() {
	app.Run(run)
}

func run(ctx context.Context, lg *zap.Logger, t *app.Telemetry) error {
	cfg, err := storefront.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	return storefront.Run(ctx, lg, t, cfg)
}
