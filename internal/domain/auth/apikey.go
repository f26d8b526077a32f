// Package auth defines the API key model used to gate the merchant-facing
// order and fulfillment endpoints.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned by Repository lookups when no active key
// matches the supplied hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo describes a provisioned API key. The raw key is never stored;
// KeyHash carries its peppered HMAC-SHA256 in hex.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository resolves API keys by their stored hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
