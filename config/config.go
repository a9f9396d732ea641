// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (Twitch chat, Shopify admin), use the Validate* helpers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// GlobalDropScope controls whether the drop command's cooldown gate is shared
// across every channel the bot sits in or tracked per channel.
type GlobalDropScope string

const (
	ScopeProcess GlobalDropScope = "process"
	ScopeChannel GlobalDropScope = "channel"
)

type Config struct {
	// Twitch
	TwitchBotUsername string
	TwitchOAuthToken  string
	TwitchChannels    []string

	// Shopify
	ShopifyStoreDomain string
	ShopifyAdminToken  string
	ShopifyAPIVersion  string

	// Bot behaviour
	CommandPrefix   string
	OwnerUsername   string
	GlobalDropScope GlobalDropScope

	// Backend (claim + roster API)
	BackendBaseURL string

	// Channel sync
	ChannelSyncInterval time.Duration
	JoinDelay           time.Duration
}

// Load reads environment variables and applies defaults. It doesn't fail if
// credentials are missing; use ValidateChatReady/ValidateShopifyReady when you
// require them. Missing optional variables disable features (e.g., direct issuance).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	if v := os.Getenv("TWITCH_CHANNELS"); v != "" {
		for _, ch := range strings.Split(v, ",") {
			ch = strings.ToLower(strings.TrimSpace(ch))
			if ch != "" {
				cfg.TwitchChannels = append(cfg.TwitchChannels, ch)
			}
		}
	}

	cfg.ShopifyStoreDomain = os.Getenv("SHOPIFY_STORE_DOMAIN")
	cfg.ShopifyAdminToken = os.Getenv("SHOPIFY_ADMIN_TOKEN")
	cfg.ShopifyAPIVersion = os.Getenv("SHOPIFY_API_VERSION")
	if cfg.ShopifyAPIVersion == "" {
		cfg.ShopifyAPIVersion = "2024-01"
	}

	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}
	cfg.OwnerUsername = strings.ToLower(os.Getenv("OWNER_USERNAME"))

	switch GlobalDropScope(os.Getenv("GLOBAL_DROP_SCOPE")) {
	case ScopeChannel:
		cfg.GlobalDropScope = ScopeChannel
	case ScopeProcess, "":
		cfg.GlobalDropScope = ScopeProcess
	default:
		return nil, fmt.Errorf("invalid GLOBAL_DROP_SCOPE %q (want process or channel)", os.Getenv("GLOBAL_DROP_SCOPE"))
	}

	cfg.BackendBaseURL = os.Getenv("BACKEND_BASE_URL")
	if cfg.BackendBaseURL == "" {
		cfg.BackendBaseURL = "http://localhost:4000"
	}

	cfg.ChannelSyncInterval = 5 * time.Minute
	if v := os.Getenv("CHANNEL_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CHANNEL_SYNC_INTERVAL %q: %v", v, err)
		}
		cfg.ChannelSyncInterval = d
	}

	cfg.JoinDelay = 600 * time.Millisecond
	if v := os.Getenv("JOIN_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid JOIN_DELAY %q: %v", v, err)
		}
		cfg.JoinDelay = d
	}

	return cfg, nil
}

// ValidateChatReady checks required fields for connecting the IRC client.
// Missing chat credentials are fatal at startup, before any connection attempt.
func (c *Config) ValidateChatReady() error {
	if c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

// ValidateShopifyReady checks required fields for issuing discounts directly
// against the Shopify admin API.
func (c *Config) ValidateShopifyReady() error {
	if c.ShopifyStoreDomain == "" || c.ShopifyAdminToken == "" {
		return fmt.Errorf("missing shopify env: require SHOPIFY_STORE_DOMAIN, SHOPIFY_ADMIN_TOKEN")
	}
	return nil
}
