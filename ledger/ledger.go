// Package ledger tracks who may claim a discount and when. It holds three
// kinds of in-memory state: per-command-per-user cooldown expiries, the
// most-recently-claimed discount code per (channel, user) with a lifetime
// window, and the shared cooldown gate for stream-wide drops.
//
// All state is volatile: it is created lazily on first use and lives for the
// process lifetime. Cooldown entries are never deleted; they become inert once
// their expiry passes and are overwritten on next use. Claims expire lazily:
// an entry older than the lifetime window is reported as absent but not purged.
//
// Unlike a cooperatively-scheduled runtime, goroutines mutate the ledger from
// the IRC handler and the HTTP status handler concurrently, so every operation
// takes the mutex.
package ledger

import (
	"sync"
	"time"
)

const (
	// DefaultClaimLifetime is how long a claimed code stays visible to the
	// claimer before a fresh claim is allowed.
	DefaultClaimLifetime = 10 * time.Minute

	// DefaultGlobalDropCooldown gates successive stream-wide drops.
	DefaultGlobalDropCooldown = 5 * time.Minute
)

// Claim is a recorded discount claim for one (channel, user) pair.
type Claim struct {
	Code      string
	CreatedAt time.Time
}

type cooldownKey struct {
	command string
	user    string
}

type claimKey struct {
	channel string
	user    string
}

// Ledger answers eligibility questions and records state transitions.
// The zero value is not usable; construct with New.
type Ledger struct {
	mu sync.Mutex

	// Now is the clock used for all expiry math. Tests override it.
	Now func() time.Time

	claimLifetime      time.Duration
	globalDropCooldown time.Duration
	perChannelDrops    bool

	cooldowns map[cooldownKey]time.Time
	claims    map[claimKey]Claim

	// lastGlobalDrop keys by channel when perChannelDrops is set, otherwise
	// by the empty string (one gate for the whole process).
	lastGlobalDrop map[string]time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClaimLifetime overrides the claim visibility window.
func WithClaimLifetime(d time.Duration) Option {
	return func(l *Ledger) { l.claimLifetime = d }
}

// WithGlobalDropCooldown overrides the stream-wide drop gate duration.
func WithGlobalDropCooldown(d time.Duration) Option {
	return func(l *Ledger) { l.globalDropCooldown = d }
}

// WithPerChannelDrops scopes the drop gate per channel instead of process-wide.
func WithPerChannelDrops() Option {
	return func(l *Ledger) { l.perChannelDrops = true }
}

// New returns an empty ledger with the reference policy durations.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		Now:                time.Now,
		claimLifetime:      DefaultClaimLifetime,
		globalDropCooldown: DefaultGlobalDropCooldown,
		cooldowns:          make(map[cooldownKey]time.Time),
		claims:             make(map[claimKey]Claim),
		lastGlobalDrop:     make(map[string]time.Time),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// RemainingCooldown reports the whole seconds left on a (command, user)
// cooldown, rounded up. Zero means not on cooldown; never negative.
func (l *Ledger) RemainingCooldown(command, user string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.cooldowns[cooldownKey{command, user}]
	if !ok {
		return 0
	}
	left := expiry.Sub(l.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// SetCooldown starts (or restarts) a cooldown for a (command, user) pair.
// Overwrites any prior expiry; cooldowns do not stack.
func (l *Ledger) SetCooldown(command, user string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldowns[cooldownKey{command, user}] = l.Now().Add(d)
}

// RecordClaim stores the code a user just claimed in a channel, replacing any
// prior claim for that pair.
func (l *Ledger) RecordClaim(channel, user, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.claims[claimKey{channel, user}] = Claim{Code: code, CreatedAt: l.Now()}
}

// ActiveClaim returns the stored claim for (channel, user) if it is still
// inside the lifetime window, and whether one was found.
func (l *Ledger) ActiveClaim(channel, user string) (Claim, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.claims[claimKey{channel, user}]
	if !ok {
		return Claim{}, false
	}
	if l.Now().Sub(c.CreatedAt) > l.claimLifetime {
		return Claim{}, false
	}
	return c, true
}

// GlobalDropReady reports whether the stream-wide drop gate for the channel
// has elapsed. With the process-wide scope the channel argument is ignored.
func (l *Ledger) GlobalDropReady(channel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.lastGlobalDrop[l.dropKey(channel)]
	if !ok {
		return true
	}
	return l.Now().Sub(last) >= l.globalDropCooldown
}

// GlobalDropRemaining reports whole seconds until the drop gate reopens,
// rounded up. Zero when ready.
func (l *Ledger) GlobalDropRemaining(channel string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.lastGlobalDrop[l.dropKey(channel)]
	if !ok {
		return 0
	}
	left := l.globalDropCooldown - l.Now().Sub(last)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// MarkGlobalDropUsed closes the drop gate for the channel (or the whole
// process, depending on scope) as of now.
func (l *Ledger) MarkGlobalDropUsed(channel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastGlobalDrop[l.dropKey(channel)] = l.Now()
}

func (l *Ledger) dropKey(channel string) string {
	if l.perChannelDrops {
		return channel
	}
	return ""
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	CooldownEntries int `json:"cooldown_entries"`
	ClaimEntries    int `json:"claim_entries"`
	ActiveClaims    int `json:"active_claims"`
}

// Snapshot counts the ledger's entries, including inert ones.
func (l *Ledger) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Stats{CooldownEntries: len(l.cooldowns), ClaimEntries: len(l.claims)}
	now := l.Now()
	for _, c := range l.claims {
		if now.Sub(c.CreatedAt) <= l.claimLifetime {
			s.ActiveClaims++
		}
	}
	return s
}
