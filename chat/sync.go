package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/dropbot/telemetry"
)

// RosterSource lists the channels the bot should sit in.
type RosterSource interface {
	ListChannels(ctx context.Context) ([]string, error)
}

// Joiner joins IRC channels. *twitch.Client satisfies it.
type Joiner interface {
	Join(channels ...string)
}

// Synchronizer reconciles the joined-channel set against the roster. The set
// only grows: a channel dropping off the roster does not trigger a part.
type Synchronizer struct {
	Roster    RosterSource
	Joiner    Joiner
	JoinDelay time.Duration

	mu     sync.Mutex
	joined map[string]struct{}
}

// NewSynchronizer returns a synchronizer with an empty join set.
func NewSynchronizer(roster RosterSource, joiner Joiner, joinDelay time.Duration) *Synchronizer {
	return &Synchronizer{
		Roster:    roster,
		Joiner:    joiner,
		JoinDelay: joinDelay,
		joined:    make(map[string]struct{}),
	}
}

// MarkJoined records channels joined outside the sync loop (the static list).
func (s *Synchronizer) MarkJoined(channels ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		s.joined[normalize(ch)] = struct{}{}
	}
	telemetry.SetJoinedChannels(len(s.joined))
}

// Joined returns an unordered snapshot of the join set.
func (s *Synchronizer) Joined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for ch := range s.joined {
		out = append(out, ch)
	}
	return out
}

func (s *Synchronizer) has(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joined[channel]
	return ok
}

// SyncOnce fetches the roster and joins every channel not already in the
// join set, pausing JoinDelay between joins. A roster fetch failure aborts
// the pass; individual join problems are the IRC client's to report and do
// not halt remaining joins.
func (s *Synchronizer) SyncOnce(ctx context.Context) error {
	channels, err := s.Roster.ListChannels(ctx)
	if err != nil {
		if telemetry.ChannelSyncFailures != nil {
			telemetry.ChannelSyncFailures.Inc()
		}
		return err
	}

	for _, ch := range channels {
		ch = normalize(ch)
		if ch == "" || s.has(ch) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Joiner.Join(ch)
		s.mu.Lock()
		s.joined[ch] = struct{}{}
		n := len(s.joined)
		s.mu.Unlock()
		telemetry.SetJoinedChannels(n)
		slog.Info("joined channel", slog.String("channel", ch), slog.Int("total", n))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.JoinDelay):
		}
	}
	return nil
}

// Start runs SyncOnce immediately, then on every interval tick until the
// context is cancelled. Sync failures are logged and retried next tick.
func (s *Synchronizer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("channel sync: started", slog.Duration("interval", interval))
	for {
		if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("channel sync failed", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func normalize(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}
