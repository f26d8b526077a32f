package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ANKR_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ANKR_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (ANKR_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Cart         CartConfig
	Stripe       StripeConfig
	Shippo       ShippoConfig
	ShipFrom     ShipFromConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CartConfig controls cart lifecycle behaviour.
type CartConfig struct {
	TTL time.Duration `default:"720h" usage:"How long a cart stays valid after creation"`
}

// StripeConfig holds the payment provider credentials and redirect targets.
// The success URL may carry the provider's {CHECKOUT_SESSION_ID} placeholder.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe secret key (ANKR_STRIPE_SECRETKEY or STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook endpoint secret" flag:"stripe-webhook-secret"`
	SuccessURL    string `default:"http://localhost:3000/checkout/success" usage:"Redirect URL after successful payment" flag:"stripe-success-url"`
	CancelURL     string `default:"http://localhost:3000/cart" usage:"Redirect URL after cancelled payment" flag:"stripe-cancel-url"`
	BaseURL       string `default:"" usage:"Override for the Stripe API base URL (tests)" flag:"stripe-base-url"`
}

// ShippoConfig holds the carrier API credentials.
type ShippoConfig struct {
	APIToken string `usage:"Shippo API token (ANKR_SHIPPO_APITOKEN or SHIPPO_API_TOKEN)" flag:"shippo-api-token"`
	BaseURL  string `default:"" usage:"Override for the Shippo API base URL (tests)" flag:"shippo-base-url"`
}

// ShipFromConfig is the warehouse address used as the origin of every
// shipment.
type ShipFromConfig struct {
	Name    string `default:"Iron ankr Fulfillment" usage:"Warehouse contact name"`
	Street1 string `usage:"Warehouse street address"`
	City    string `usage:"Warehouse city"`
	State   string `usage:"Warehouse state or region"`
	Zip     string `usage:"Warehouse postal code"`
	Country string `default:"US" usage:"Warehouse country code"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ANKR",
		Files:     []string{"config.yaml", "/etc/ankr/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ANKR_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("Stripe secret key is required: set ANKR_STRIPE_SECRETKEY or STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("Stripe webhook secret is required: set ANKR_STRIPE_WEBHOOKSECRET or STRIPE_WEBHOOK_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) and the providers' conventional names to the application's
// ANKR_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Stripe.SecretKey == "" {
		c.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		c.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}
	if c.Shippo.APIToken == "" {
		c.Shippo.APIToken = os.Getenv("SHIPPO_API_TOKEN")
	}
	if c.Shippo.BaseURL == "" {
		c.Shippo.BaseURL = os.Getenv("SHIPPO_BASE_URL")
	}

	// Warehouse address. Name and Country carry non-empty defaults, so the
	// platform variable only wins while the default is still in place.
	if v := os.Getenv("SHIP_FROM_NAME"); v != "" && c.ShipFrom.Name == "Iron ankr Fulfillment" {
		c.ShipFrom.Name = v
	}
	if c.ShipFrom.Street1 == "" {
		c.ShipFrom.Street1 = os.Getenv("SHIP_FROM_STREET1")
	}
	if c.ShipFrom.City == "" {
		c.ShipFrom.City = os.Getenv("SHIP_FROM_CITY")
	}
	if c.ShipFrom.State == "" {
		c.ShipFrom.State = os.Getenv("SHIP_FROM_STATE")
	}
	if c.ShipFrom.Zip == "" {
		c.ShipFrom.Zip = os.Getenv("SHIP_FROM_ZIP")
	}
	if v := os.Getenv("SHIP_FROM_COUNTRY"); v != "" && c.ShipFrom.Country == "US" {
		c.ShipFrom.Country = v
	}
}
