package combat

import (
	"testing"
	"time"
)

func newTestTracker() (*Tracker, *time.Time) {
	clock := time.Date(2026, time.August, 25, 12, 0, 0, 0, time.Local)
	t := NewTracker()
	t.now = func() time.Time { return clock }
	return t, &clock
}

func TestSessionLifecycle(t *testing.T) {
	tracker, clock := newTestTracker()

	var snaps []Snapshot
	tracker.SetUpdateHandler(func(s Snapshot) { snaps = append(snaps, s) })

	if tracker.Active() {
		t.Fatal("tracker active before any damage")
	}

	tracker.AddDamage("You", 10, "a gnoll pup")
	*clock = clock.Add(10 * time.Second)
	tracker.AddDamage("You", 20, "a gnoll pup")
	tracker.AddDamage("Mira", 5, "a gnoll pup")

	if !tracker.Active() {
		t.Fatal("tracker not active")
	}

	tracker.End()
	if tracker.Active() {
		t.Fatal("tracker active after End")
	}

	// One snapshot per damage event, plus exactly one final.
	if len(snaps) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(snaps))
	}
	var finals int
	for _, s := range snaps {
		if s.Ended {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("got %d final snapshots, want 1", finals)
	}

	final := snaps[len(snaps)-1]
	if !final.Ended || final.Active {
		t.Errorf("final snapshot = %+v", final)
	}
	if final.Target != "a gnoll pup" || final.Duration != 10 {
		t.Errorf("final target/duration = %q/%v", final.Target, final.Duration)
	}
	if len(final.Players) != 2 || final.Players[0].Name != "You" || final.Players[0].Damage != 30 {
		t.Errorf("players = %+v", final.Players)
	}
	if got := final.Players[0].DPS; got != 3 {
		t.Errorf("DPS = %v, want 3", got)
	}

	// Ending an idle tracker emits nothing.
	tracker.End()
	if len(snaps) != 4 {
		t.Errorf("End while idle emitted a snapshot")
	}
}

func TestTargetLabel(t *testing.T) {
	tracker, _ := newTestTracker()

	// No named target yet.
	tracker.AddDamage("You", 5, "")
	if got := tracker.Snapshot().Target; got != "Combat" {
		t.Errorf("no-target label = %q, want Combat", got)
	}

	tracker.AddDamage("You", 5, "a gnoll pup")
	if got := tracker.Snapshot().Target; got != "a gnoll pup" {
		t.Errorf("single-target label = %q", got)
	}

	tracker.AddDamage("You", 5, "an orc centurion")
	if got := tracker.Snapshot().Target; got != "2 targets" {
		t.Errorf("multi-target label = %q", got)
	}
}

func TestDurationClamp(t *testing.T) {
	tracker, _ := newTestTracker()

	// All damage at the same instant: duration clamps to 0.1 so DPS stays
	// finite.
	tracker.AddDamage("You", 10, "a gnoll pup")
	snap := tracker.Snapshot()
	if snap.Duration != 0.1 {
		t.Errorf("duration = %v, want 0.1", snap.Duration)
	}
	if snap.Players[0].DPS != 100 {
		t.Errorf("DPS = %v, want 100", snap.Players[0].DPS)
	}
}

func TestCheckTimeout(t *testing.T) {
	tracker, clock := newTestTracker()

	tracker.AddDamage("You", 10, "a gnoll pup")
	tracker.CheckTimeout(8 * time.Second)
	if !tracker.Active() {
		t.Fatal("session ended before timeout")
	}

	*clock = clock.Add(9 * time.Second)
	tracker.CheckTimeout(8 * time.Second)
	if tracker.Active() {
		t.Fatal("session survived past timeout")
	}

	// A new session starts cleanly afterwards.
	tracker.AddDamage("Mira", 3, "an orc")
	snap := tracker.Snapshot()
	if len(snap.Players) != 1 || snap.Players[0].Name != "Mira" {
		t.Errorf("new session players = %+v", snap.Players)
	}
}

func TestSnapshotWhileIdle(t *testing.T) {
	tracker, _ := newTestTracker()
	snap := tracker.Snapshot()
	if snap.Active || snap.Ended || len(snap.Players) != 0 {
		t.Errorf("idle snapshot = %+v", snap)
	}
}
