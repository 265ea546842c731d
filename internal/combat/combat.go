// Package combat accumulates per-attacker damage into combat sessions with
// a timeout-based boundary.
package combat

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PlayerDamage is one attacker's share of a combat session.
type PlayerDamage struct {
	Name   string  `json:"name"`
	Damage int     `json:"damage"`
	DPS    float64 `json:"dps"`
}

// Snapshot is the state of the current (or just-ended) combat session.
type Snapshot struct {
	Active     bool           `json:"active"`
	Ended      bool           `json:"ended"`
	Target     string         `json:"target"`
	NumTargets int            `json:"numTargets"`
	Duration   float64        `json:"duration"`
	Players    []PlayerDamage `json:"players"`
}

// Tracker owns the current combat session. A session starts lazily on the
// first damage and ends on timeout, on a kill, or on the character's death.
type Tracker struct {
	mu         sync.Mutex
	active     bool
	start      time.Time
	damage     map[string]int
	targets    map[string]bool
	lastDamage time.Time

	onUpdate func(Snapshot)

	now func() time.Time
}

// NewTracker creates an idle combat tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// SetUpdateHandler registers the callback receiving every snapshot: one per
// damage event while the session runs, plus exactly one final snapshot with
// Ended set when it closes.
func (t *Tracker) SetUpdateHandler(fn func(Snapshot)) {
	t.mu.Lock()
	t.onUpdate = fn
	t.mu.Unlock()
}

// AddDamage records damage dealt by attacker, starting a session if none is
// active. target may be empty for lines that do not name one.
func (t *Tracker) AddDamage(attacker string, amount int, target string) {
	t.mu.Lock()
	if !t.active {
		t.active = true
		t.start = t.now()
		t.damage = make(map[string]int)
		t.targets = make(map[string]bool)
	}
	if target != "" {
		t.targets[target] = true
	}
	t.damage[attacker] += amount
	t.lastDamage = t.now()
	snap := t.snapshotLocked(false)
	fn := t.onUpdate
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// CheckTimeout ends the session when no damage has landed within timeout.
func (t *Tracker) CheckTimeout(timeout time.Duration) {
	t.mu.Lock()
	expired := t.active && !t.lastDamage.IsZero() && t.now().Sub(t.lastDamage) > timeout
	t.mu.Unlock()

	if expired {
		t.End()
	}
}

// End closes the active session, emitting the final snapshot. A no-op when
// idle.
func (t *Tracker) End() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	snap := t.snapshotLocked(true)
	t.active = false
	t.lastDamage = time.Time{}
	fn := t.onUpdate
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Active reports whether a session is running.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Snapshot returns the current session state without ending it.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return Snapshot{}
	}
	return t.snapshotLocked(false)
}

func (t *Tracker) snapshotLocked(final bool) Snapshot {
	duration := t.now().Sub(t.start).Seconds()
	if duration <= 0 {
		duration = 0.1
	}

	players := make([]PlayerDamage, 0, len(t.damage))
	for name, dmg := range t.damage {
		players = append(players, PlayerDamage{
			Name:   name,
			Damage: dmg,
			DPS:    float64(dmg) / duration,
		})
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Damage > players[j].Damage
	})

	var target string
	switch len(t.targets) {
	case 0:
		target = "Combat"
	case 1:
		for name := range t.targets {
			target = name
		}
	default:
		target = fmt.Sprintf("%d targets", len(t.targets))
	}

	return Snapshot{
		Active:     !final,
		Ended:      final,
		Target:     target,
		NumTargets: len(t.targets),
		Duration:   duration,
		Players:    players,
	}
}
