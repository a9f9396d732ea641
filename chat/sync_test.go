package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRoster struct {
	calls    int
	channels [][]string
	err      error
}

func (r *fakeRoster) ListChannels(context.Context) ([]string, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.channels) == 0 {
		return nil, nil
	}
	out := r.channels[0]
	if len(r.channels) > 1 {
		r.channels = r.channels[1:]
	}
	return out, nil
}

type fakeJoiner struct {
	joined []string
}

func (j *fakeJoiner) Join(channels ...string) {
	j.joined = append(j.joined, channels...)
}

func TestSyncOnceJoinsMissingChannels(t *testing.T) {
	roster := &fakeRoster{channels: [][]string{{"bob", "#Carol", " dave "}}}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, time.Millisecond)

	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	want := []string{"bob", "carol", "dave"}
	if len(joiner.joined) != len(want) {
		t.Fatalf("joined = %v, want %v", joiner.joined, want)
	}
	for i, ch := range want {
		if joiner.joined[i] != ch {
			t.Errorf("joined[%d] = %q, want %q", i, joiner.joined[i], ch)
		}
	}
}

func TestSyncOnceSkipsAlreadyJoined(t *testing.T) {
	roster := &fakeRoster{channels: [][]string{{"bob", "carol"}}}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, time.Millisecond)
	s.MarkJoined("bob")

	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}
	if len(joiner.joined) != 1 || joiner.joined[0] != "carol" {
		t.Errorf("joined = %v, want [carol]", joiner.joined)
	}
}

func TestSyncNeverParts(t *testing.T) {
	roster := &fakeRoster{channels: [][]string{
		{"bob", "carol"},
		{"bob"}, // carol left the roster
	}}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, time.Millisecond)

	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("first SyncOnce() error = %v", err)
	}
	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("second SyncOnce() error = %v", err)
	}

	// carol stays in the join set even though the roster dropped her.
	joined := s.Joined()
	if len(joined) != 2 {
		t.Errorf("join set = %v, want both channels retained", joined)
	}
	if len(joiner.joined) != 2 {
		t.Errorf("join calls = %v, want no re-joins and no parts", joiner.joined)
	}
}

func TestSyncOnceRosterFailure(t *testing.T) {
	roster := &fakeRoster{err: errors.New("backend down")}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, time.Millisecond)

	if err := s.SyncOnce(context.Background()); err == nil {
		t.Error("expected roster fetch error to propagate")
	}
	if len(joiner.joined) != 0 {
		t.Errorf("joined = %v, want none on roster failure", joiner.joined)
	}
}

func TestSyncOnceStopsOnCancel(t *testing.T) {
	roster := &fakeRoster{channels: [][]string{{"a", "b", "c", "d"}}}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	err := s.SyncOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SyncOnce() error = %v, want context.Canceled", err)
	}
	if len(joiner.joined) >= 4 {
		t.Errorf("joined all %d channels despite cancellation", len(joiner.joined))
	}
}

func TestStartRunsImmediatelyThenOnTicks(t *testing.T) {
	roster := &fakeRoster{channels: [][]string{{"bob"}}}
	joiner := &fakeJoiner{}
	s := NewSynchronizer(roster, joiner, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	if roster.calls < 2 {
		t.Errorf("roster calls = %d, want immediate pass plus ticks", roster.calls)
	}
	if len(joiner.joined) != 1 {
		t.Errorf("joined = %v, want exactly one join across passes", joiner.joined)
	}
}
