package backendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestClaimSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/claim" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode claim body: %v", err)
		}
		if body["channel"] != "#bob" || body["username"] != "alice" {
			t.Errorf("claim body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "discountCode": "DROP-ALICE-1234"})
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	res, err := c.RequestClaim(context.Background(), "#bob", "alice")
	if err != nil {
		t.Fatalf("RequestClaim() error = %v", err)
	}
	if !res.OK || res.DiscountCode != "DROP-ALICE-1234" {
		t.Errorf("result = %+v, want ok with code", res)
	}
}

func TestRequestClaimFailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		response   map[string]any
		status     int
		wantReason Reason
		wantRetry  int
		wantMsg    string
	}{
		{
			name:       "cooldown carries retry seconds",
			response:   map[string]any{"ok": false, "reason": "cooldown", "retryAfterSeconds": 17},
			status:     http.StatusTooManyRequests,
			wantReason: ReasonCooldown,
			wantRetry:  17,
		},
		{
			name:       "plan limit carries message",
			response:   map[string]any{"ok": false, "reason": "plan_limit", "message": "upgrade your plan"},
			status:     http.StatusForbidden,
			wantReason: ReasonPlanLimit,
			wantMsg:    "upgrade your plan",
		},
		{
			name:       "channel not registered",
			response:   map[string]any{"ok": false, "reason": "not_found"},
			status:     http.StatusNotFound,
			wantReason: ReasonNotFound,
		},
		{
			name:       "feature disabled",
			response:   map[string]any{"ok": false, "reason": "disabled"},
			status:     http.StatusOK,
			wantReason: ReasonDisabled,
		},
		{
			name:       "store not connected",
			response:   map[string]any{"ok": false, "reason": "not_connected"},
			status:     http.StatusOK,
			wantReason: ReasonNotConnected,
		},
		{
			name:       "already claimed this stream",
			response:   map[string]any{"ok": false, "reason": "limit_reached"},
			status:     http.StatusOK,
			wantReason: ReasonLimitReached,
		},
		{
			name:       "unrecognized reason maps to unknown",
			response:   map[string]any{"ok": false, "reason": "quantum_flux"},
			status:     http.StatusTeapot,
			wantReason: ReasonUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			c := &Client{BaseURL: server.URL}
			res, err := c.RequestClaim(context.Background(), "#bob", "alice")
			if err != nil {
				t.Fatalf("RequestClaim() error = %v", err)
			}
			if res.OK {
				t.Fatal("result.OK = true, want failure")
			}
			if res.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if res.RetryAfterSeconds != tt.wantRetry {
				t.Errorf("retryAfterSeconds = %d, want %d", res.RetryAfterSeconds, tt.wantRetry)
			}
			if res.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestRequestClaimNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := &Client{BaseURL: server.URL}
	res, err := c.RequestClaim(context.Background(), "#bob", "alice")
	if err != nil {
		t.Fatalf("RequestClaim() error = %v", err)
	}
	if res.OK || res.Reason != ReasonNetworkError {
		t.Errorf("result = %+v, want network_error", res)
	}
}

func TestRequestClaimNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	res, err := c.RequestClaim(context.Background(), "#bob", "alice")
	if err != nil {
		t.Fatalf("RequestClaim() error = %v", err)
	}
	if res.OK || res.Reason != ReasonHTTPError {
		t.Errorf("result = %+v, want http_error", res)
	}
}

func TestListChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channels": []string{"bob", "carol"}})
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	channels, err := c.ListChannels(context.Background())
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	if len(channels) != 2 || channels[0] != "bob" || channels[1] != "carol" {
		t.Errorf("channels = %v, want [bob carol]", channels)
	}
}

func TestListChannelsNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	if _, err := c.ListChannels(context.Background()); err == nil {
		t.Error("expected error for ok=false roster response")
	}
}
