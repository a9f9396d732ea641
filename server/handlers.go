package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/onnwee/dropbot/config"
	"github.com/onnwee/dropbot/ledger"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	joined    func() []string
	connected func() bool
	startedAt time.Time
}

// NewHandlers creates a Handlers instance. joined and connected report the
// bot's live chat state.
func NewHandlers(cfg *config.Config, l *ledger.Ledger, joined func() []string, connected func() bool) *Handlers {
	return &Handlers{
		cfg:       cfg,
		ledger:    l,
		joined:    joined,
		connected: connected,
		startedAt: time.Now().UTC(),
	}
}

// HandleHealthz responds to liveness probes.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes: chat credentials must be present
// and the IRC connection up.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"credentials", h.cfg.ValidateChatReady},
		{"chat_connection", func() error {
			if !h.connected() {
				return fmt.Errorf("not connected to twitch chat")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports uptime, the joined channel list, and ledger stats.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	channels := h.joined()
	sort.Strings(channels)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"chat_connected":  h.connected(),
		"joined_channels": channels,
		"ledger":          h.ledger.Snapshot(),
		"command_prefix":  h.cfg.CommandPrefix,
	})
}
