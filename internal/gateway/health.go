package gateway

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string  `json:"status"` // "ok" or "degraded"
	Provider      string  `json:"provider"`
	VaultOK       bool    `json:"vault_ok"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the vault is reachable, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(g.startedAt).Seconds(),
		}
		if g.selector != nil {
			resp.Provider = g.selector.Active()
		}
		if info, err := os.Stat(g.vaultPath); err == nil && info.IsDir() {
			resp.VaultOK = true
		} else {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
