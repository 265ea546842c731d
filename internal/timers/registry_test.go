package timers

import (
	"testing"
	"time"
)

func TestRegistryRefreshNeverShortens(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(time.Minute)})
	if !r.Has("Courage", "You") {
		t.Fatal("timer not added")
	}

	// An earlier or equal end time is a no-op.
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(30 * time.Second)})
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(time.Minute)})
	if got := r.All()[0].EndTime; !got.Equal(base.Add(time.Minute)) {
		t.Errorf("end time shortened to %v", got)
	}

	// A later end time refreshes.
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(2 * time.Minute)})
	if got := r.All()[0].EndTime; !got.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("refresh not applied: %v", got)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistrySeparateTargets(t *testing.T) {
	r := NewRegistry()
	end := time.Now().Add(time.Minute)

	r.Add(&Timer{SpellName: "Tashani", Target: "a gnoll", EndTime: end})
	r.Add(&Timer{SpellName: "Tashani", Target: "an orc", EndTime: end})
	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}

	r.RemoveAllForTarget("a gnoll")
	if r.Has("Tashani", "a gnoll") || !r.Has("Tashani", "an orc") {
		t.Error("RemoveAllForTarget removed the wrong timers")
	}
}

func TestRegistryCheckExpired(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(time.Minute)})
	r.Add(&Timer{SpellName: "Valor", Target: "You", EndTime: base.Add(-time.Second)})

	expired := r.CheckExpired(base)
	if len(expired) != 1 || expired[0].SpellName != "Valor" {
		t.Fatalf("expired = %+v", expired)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d after expiry, want 1", r.Count())
	}

	// End time equal to now expires too.
	r.Add(&Timer{SpellName: "Haste", Target: "You", EndTime: base})
	if got := r.CheckExpired(base); len(got) != 1 || got[0].SpellName != "Haste" {
		t.Errorf("boundary expiry = %+v", got)
	}
}

func TestRegistryAllOrdering(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	r.Add(&Timer{SpellName: "Tashani", Target: "a gnoll", EndTime: base.Add(time.Minute), Category: CategoryDebuff})
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: base.Add(2 * time.Minute), Category: CategorySelfBuff})
	r.Add(&Timer{SpellName: "Aegis", Target: "You", EndTime: base.Add(time.Minute), Category: CategorySelfBuff})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d timers", len(all))
	}
	if all[0].SpellName != "Aegis" || all[1].SpellName != "Courage" || all[2].SpellName != "Tashani" {
		t.Errorf("order = %s, %s, %s", all[0].SpellName, all[1].SpellName, all[2].SpellName)
	}
}

func TestRegistryChangeHandler(t *testing.T) {
	r := NewRegistry()
	fired := 0
	r.SetChangedHandler(func() { fired++ })

	end := time.Now().Add(time.Minute)
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: end})
	r.Add(&Timer{SpellName: "Courage", Target: "You", EndTime: end}) // no-op refresh
	r.Remove("Courage", "You")
	r.Remove("Courage", "You") // already gone

	if fired != 2 {
		t.Errorf("handler fired %d times, want 2", fired)
	}
}

func TestTimerRemainingAndPercent(t *testing.T) {
	base := time.Now()
	timer := &Timer{EndTime: base.Add(30 * time.Second), TotalDuration: 60}

	if got := timer.RemainingAt(base); got != 30 {
		t.Errorf("RemainingAt = %v, want 30", got)
	}
	if got := timer.PercentAt(base); got != 50 {
		t.Errorf("PercentAt = %v, want 50", got)
	}
	if got := timer.RemainingAt(base.Add(time.Minute)); got != 0 {
		t.Errorf("RemainingAt past end = %v, want 0", got)
	}
}
