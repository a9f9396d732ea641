// Command dropbot is the main entrypoint for the discount drop chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Twitch IRC and dispatches chat commands.
//   - Keeps channel membership in sync with the backend roster.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM. Missing chat credentials are fatal
// before any connection is attempted; missing Shopify credentials only
// disable direct issuance (the drop command).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/dropbot/backendapi"
	"github.com/onnwee/dropbot/chat"
	"github.com/onnwee/dropbot/command"
	"github.com/onnwee/dropbot/config"
	"github.com/onnwee/dropbot/ledger"
	"github.com/onnwee/dropbot/server"
	"github.com/onnwee/dropbot/shopify"
	"github.com/onnwee/dropbot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("chat credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("dropbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger: the only state the bot keeps, process-lifetime and in-memory.
	var opts []ledger.Option
	if cfg.GlobalDropScope == config.ScopeChannel {
		opts = append(opts, ledger.WithPerChannelDrops())
	}
	led := ledger.New(opts...)

	backend := &backendapi.Client{BaseURL: cfg.BackendBaseURL}

	// With Shopify credentials the bot issues codes itself; without them the
	// drop command is disabled and viewer discounts go through the backend.
	var issuer command.DropIssuer
	var personal command.PersonalIssuer
	if err := cfg.ValidateShopifyReady(); err != nil {
		slog.Warn("shopify not configured; direct issuance disabled", slog.Any("err", err))
	} else {
		sc := &shopify.Client{
			StoreDomain: cfg.ShopifyStoreDomain,
			AdminToken:  cfg.ShopifyAdminToken,
			APIVersion:  cfg.ShopifyAPIVersion,
		}
		issuer = sc
		personal = sc
	}

	dispatcher := command.NewDispatcher(cfg.CommandPrefix, cfg.OwnerUsername, led)
	bot := chat.NewBot(cfg, dispatcher, backend)
	command.RegisterBuiltins(dispatcher, command.Deps{
		Backend:        backend,
		Personal:       personal,
		Issuer:         issuer,
		ResyncChannels: bot.Sync().SyncOnce,
	})

	// HTTP server (health/readiness/status/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handlers := server.NewHandlers(cfg, led, bot.Sync().Joined, bot.Connected)
	go func() {
		if err := server.Start(ctx, handlers, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	slog.Info("starting bot",
		slog.String("username", cfg.TwitchBotUsername),
		slog.String("prefix", cfg.CommandPrefix),
		slog.Int("static_channels", len(cfg.TwitchChannels)))
	go func() {
		if err := bot.Run(ctx, cfg.ChannelSyncInterval); err != nil {
			slog.Error("chat connection ended", slog.Any("err", err))
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
