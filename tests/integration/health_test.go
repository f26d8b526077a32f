//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealthProbes(t *testing.T) {
	for _, endpoint := range []string{"/livez", "/readyz"} {
		t.Run(endpoint, func(t *testing.T) {
			resp := doGet(t, endpoint)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s: expected 200, got %d", endpoint, resp.StatusCode)
			}

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("GET %s: expected status ok, got %q", endpoint, body.Status)
			}
		})
	}
}

func TestHealthyProbesOmitChecks(t *testing.T) {
	resp := doGet(t, "/readyz")
	defer resp.Body.Close()

	body := decodeJSON[healthResponse](t, resp)
	if len(body.Checks) != 0 {
		t.Fatalf("healthy readiness response should omit checks, got %v", body.Checks)
	}
}
