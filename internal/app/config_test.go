package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform:5432/app")
	t.Setenv("PORT", "9090")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_platform")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_platform")
	t.Setenv("SHIPPO_API_TOKEN", "shippo_platform")
	t.Setenv("SHIPPO_BASE_URL", "https://shippo.test")
	t.Setenv("SHIP_FROM_NAME", "Dockside Warehouse")
	t.Setenv("SHIP_FROM_STREET1", "1 Pier Rd")
	t.Setenv("SHIP_FROM_CITY", "Portsmouth")
	t.Setenv("SHIP_FROM_STATE", "NH")
	t.Setenv("SHIP_FROM_ZIP", "03801")
	t.Setenv("SHIP_FROM_COUNTRY", "GB")

	t.Run("bare variables fill defaulted fields", func(t *testing.T) {
		cfg := Config{Addr: "0.0.0.0:8080"}
		cfg.ShipFrom.Name = "Iron ankr Fulfillment"
		cfg.ShipFrom.Country = "US"
		cfg.applyPlatformDefaults()

		assert.Equal(t, "postgres://platform:5432/app", cfg.DatabaseURL)
		assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
		assert.Equal(t, "sk_test_platform", cfg.Stripe.SecretKey)
		assert.Equal(t, "whsec_platform", cfg.Stripe.WebhookSecret)
		assert.Equal(t, "shippo_platform", cfg.Shippo.APIToken)
		assert.Equal(t, "https://shippo.test", cfg.Shippo.BaseURL)
		assert.Equal(t, "Dockside Warehouse", cfg.ShipFrom.Name)
		assert.Equal(t, "1 Pier Rd", cfg.ShipFrom.Street1)
		assert.Equal(t, "Portsmouth", cfg.ShipFrom.City)
		assert.Equal(t, "NH", cfg.ShipFrom.State)
		assert.Equal(t, "03801", cfg.ShipFrom.Zip)
		assert.Equal(t, "GB", cfg.ShipFrom.Country)
	})

	t.Run("explicit configuration wins", func(t *testing.T) {
		cfg := Config{Addr: "0.0.0.0:4000", DatabaseURL: "postgres://explicit:5432/app"}
		cfg.Stripe.SecretKey = "sk_explicit"
		cfg.Shippo.BaseURL = "https://mock.local"
		cfg.ShipFrom.Name = "East Wing"
		cfg.ShipFrom.Country = "CA"
		cfg.applyPlatformDefaults()

		assert.Equal(t, "postgres://explicit:5432/app", cfg.DatabaseURL)
		assert.Equal(t, "0.0.0.0:4000", cfg.Addr)
		assert.Equal(t, "sk_explicit", cfg.Stripe.SecretKey)
		assert.Equal(t, "https://mock.local", cfg.Shippo.BaseURL)
		assert.Equal(t, "East Wing", cfg.ShipFrom.Name)
		assert.Equal(t, "CA", cfg.ShipFrom.Country)
	})
}
