package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/dropbot/command"
	"github.com/onnwee/dropbot/config"
	"github.com/onnwee/dropbot/telemetry"
)

// Bot ties the IRC client to the command dispatcher.
type Bot struct {
	client     *twitch.Client
	dispatcher *command.Dispatcher
	sync       *Synchronizer
	static     []string
	connected  atomic.Bool
}

// NewBot builds the IRC client and wires message handling. The roster source
// drives auto-join; the static channel list from config is joined at connect.
func NewBot(cfg *config.Config, d *command.Dispatcher, roster RosterSource) *Bot {
	client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	b := &Bot{
		client:     client,
		dispatcher: d,
		sync:       NewSynchronizer(roster, client, cfg.JoinDelay),
		static:     cfg.TwitchChannels,
	}

	client.OnConnect(func() {
		b.connected.Store(true)
		telemetry.SetChatConnected(true)
		slog.Info("connected to twitch chat")
	})

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		// Each message carries its own correlation id through dispatch and
		// any external calls it triggers.
		ctx := telemetry.WithCorrelation(context.Background(), uuid.New().String())
		reply, ok := d.Dispatch(ctx, command.Message{
			Channel:  "#" + strings.ToLower(msg.Channel),
			Username: strings.ToLower(msg.User.Name),
			Text:     msg.Message,
		})
		if ok {
			client.Say(msg.Channel, reply)
		}
	})

	return b
}

// Sync exposes the synchronizer (reload command, status endpoint).
func (b *Bot) Sync() *Synchronizer { return b.sync }

// Connected reports whether the IRC connection is up.
func (b *Bot) Connected() bool { return b.connected.Load() }

// Run joins the static channels, starts the periodic roster sync, and blocks
// on the IRC connection until the context is cancelled.
func (b *Bot) Run(ctx context.Context, syncInterval time.Duration) error {
	if len(b.static) > 0 {
		b.client.Join(b.static...)
		b.sync.MarkJoined(b.static...)
	}

	go b.sync.Start(ctx, syncInterval)

	// Handle context cancellation by closing the client.
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := b.client.Disconnect(); err != nil {
			slog.Warn("twitch chat disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	err := b.client.Connect()
	b.connected.Store(false)
	telemetry.SetChatConnected(false)
	if ctx.Err() != nil {
		<-done
		return nil
	}
	if err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	return err
}
