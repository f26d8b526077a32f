package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ironankr/storefront/internal/domain/auth"
)

// APIKeyHeader is the header carrying the raw API key on gated endpoints.
const APIKeyHeader = "api_key"

// HashAPIKey computes the HMAC-SHA256 of a raw API key under the server
// pepper. Keys are stored hashed, so a leaked table alone is not enough to
// forge requests.
func HashAPIKey(pepper, key string) []byte {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// requireAPIKey authenticates the request by hashing the provided API key,
// looking it up in the repository, and performing a constant-time comparison
// to prevent timing attacks.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeError(w, r, http.StatusUnauthorized, "api key required")
			return
		}

		sum := HashAPIKey(h.apiKeyPepper, key)
		info, err := h.apikeys.FindByHash(r.Context(), hex.EncodeToString(sum))
		if err != nil {
			if !errors.Is(err, auth.ErrKeyNotFound) {
				zctx.From(r.Context()).Error("api key lookup failed", zap.Error(err))
			}
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		zctx.From(r.Context()).Debug("api key accepted", zap.String("key_name", info.Name))
		next.ServeHTTP(w, r)
	})
}
