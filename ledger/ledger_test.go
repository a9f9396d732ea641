package ledger

import (
	"testing"
	"time"
)

// fakeClock drives the ledger's Now hook deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestLedger(c *fakeClock, opts ...Option) *Ledger {
	l := New(opts...)
	l.Now = c.now
	return l
}

func TestRemainingCooldownLifecycle(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)

	if got := l.RemainingCooldown("discount", "alice"); got != 0 {
		t.Fatalf("before first use: RemainingCooldown = %d, want 0", got)
	}

	l.SetCooldown("discount", "alice", 30*time.Second)
	if got := l.RemainingCooldown("discount", "alice"); got != 30 {
		t.Errorf("immediately after set: RemainingCooldown = %d, want 30", got)
	}

	clock.advance(29 * time.Second)
	if got := l.RemainingCooldown("discount", "alice"); got != 1 {
		t.Errorf("1s before expiry: RemainingCooldown = %d, want 1", got)
	}

	clock.advance(1 * time.Second)
	if got := l.RemainingCooldown("discount", "alice"); got != 0 {
		t.Errorf("exactly at expiry: RemainingCooldown = %d, want 0", got)
	}

	clock.advance(time.Hour)
	if got := l.RemainingCooldown("discount", "alice"); got != 0 {
		t.Errorf("long after expiry: RemainingCooldown = %d, want 0 (never negative)", got)
	}
}

func TestRemainingCooldownRoundsUp(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.SetCooldown("ping", "bob", 10*time.Second)
	clock.advance(9500 * time.Millisecond)
	if got := l.RemainingCooldown("ping", "bob"); got != 1 {
		t.Errorf("RemainingCooldown = %d, want 1 (ceil of 0.5s)", got)
	}
}

func TestSetCooldownOverwritesWithoutStacking(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.SetCooldown("ping", "bob", time.Minute)
	l.SetCooldown("ping", "bob", 10*time.Second)
	if got := l.RemainingCooldown("ping", "bob"); got != 10 {
		t.Errorf("RemainingCooldown = %d, want 10 after overwrite", got)
	}
}

func TestCooldownsAreScopedPerCommandAndUser(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.SetCooldown("discount", "alice", time.Minute)
	if got := l.RemainingCooldown("discount", "bob"); got != 0 {
		t.Errorf("other user on cooldown: got %d, want 0", got)
	}
	if got := l.RemainingCooldown("ping", "alice"); got != 0 {
		t.Errorf("other command on cooldown: got %d, want 0", got)
	}
}

func TestActiveClaimLifetimeWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)

	if _, ok := l.ActiveClaim("#bob", "alice"); ok {
		t.Fatal("expected no claim before first record")
	}

	l.RecordClaim("#bob", "alice", "DROP-ALICE-1234")

	clock.advance(DefaultClaimLifetime - time.Millisecond)
	c, ok := l.ActiveClaim("#bob", "alice")
	if !ok {
		t.Fatal("claim should still be active just before lifetime")
	}
	if c.Code != "DROP-ALICE-1234" {
		t.Errorf("claim code = %q, want DROP-ALICE-1234", c.Code)
	}

	clock.advance(2 * time.Millisecond)
	if _, ok := l.ActiveClaim("#bob", "alice"); ok {
		t.Error("claim should be expired just after lifetime")
	}
}

func TestRecordClaimOverwrites(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.RecordClaim("#bob", "alice", "DROP-ALICE-1111")
	clock.advance(time.Minute)
	l.RecordClaim("#bob", "alice", "DROP-ALICE-2222")
	c, ok := l.ActiveClaim("#bob", "alice")
	if !ok || c.Code != "DROP-ALICE-2222" {
		t.Errorf("ActiveClaim = %+v ok=%v, want overwritten code", c, ok)
	}
}

func TestClaimsScopedByChannel(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.RecordClaim("#bob", "alice", "DROP-ALICE-1234")
	if _, ok := l.ActiveClaim("#carol", "alice"); ok {
		t.Error("claim in #bob must not be visible in #carol")
	}
}

func TestGlobalDropGateProcessScope(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)

	if !l.GlobalDropReady("#bob") {
		t.Fatal("gate should start open")
	}
	l.MarkGlobalDropUsed("#bob")
	if l.GlobalDropReady("#bob") {
		t.Error("gate should be closed right after use")
	}
	// Process scope: a drop in one channel gates every channel.
	if l.GlobalDropReady("#carol") {
		t.Error("process-wide gate must block other channels too")
	}
	if got := l.GlobalDropRemaining("#carol"); got != 300 {
		t.Errorf("GlobalDropRemaining = %d, want 300", got)
	}

	clock.advance(DefaultGlobalDropCooldown)
	if !l.GlobalDropReady("#bob") {
		t.Error("gate should reopen after the cooldown window")
	}
	if got := l.GlobalDropRemaining("#bob"); got != 0 {
		t.Errorf("GlobalDropRemaining = %d, want 0 when ready", got)
	}
}

func TestGlobalDropGatePerChannelScope(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock, WithPerChannelDrops())
	l.MarkGlobalDropUsed("#bob")
	if l.GlobalDropReady("#bob") {
		t.Error("#bob gate should be closed")
	}
	if !l.GlobalDropReady("#carol") {
		t.Error("per-channel gate must not leak into #carol")
	}
}

func TestSnapshotCountsActiveAndInert(t *testing.T) {
	clock := newFakeClock()
	l := newTestLedger(clock)
	l.SetCooldown("ping", "alice", time.Second)
	l.RecordClaim("#bob", "alice", "DROP-ALICE-1234")
	l.RecordClaim("#bob", "carol", "DROP-CAROL-5678")
	clock.advance(DefaultClaimLifetime + time.Minute)
	l.RecordClaim("#bob", "dave", "DROP-DAVE-9999")

	s := l.Snapshot()
	if s.CooldownEntries != 1 {
		t.Errorf("CooldownEntries = %d, want 1 (inert entries are kept)", s.CooldownEntries)
	}
	if s.ClaimEntries != 3 {
		t.Errorf("ClaimEntries = %d, want 3 (expired claims are not purged)", s.ClaimEntries)
	}
	if s.ActiveClaims != 1 {
		t.Errorf("ActiveClaims = %d, want 1", s.ActiveClaims)
	}
}
