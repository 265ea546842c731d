// Package timers tracks active buff/debuff timers and correlates spell
// casting with landing messages from the log stream.
package timers

import (
	"sort"
	"sync"
	"time"

	"eqwatch/internal/spelldb"
)

// Category groups timers for display ordering.
type Category int

const (
	CategorySelfBuff Category = iota
	CategoryReceivedBuff
	CategoryDebuff
	CategoryOtherBuff
)

func (c Category) String() string {
	switch c {
	case CategorySelfBuff:
		return "self"
	case CategoryReceivedBuff:
		return "received"
	case CategoryDebuff:
		return "debuff"
	case CategoryOtherBuff:
		return "other"
	}
	return "unknown"
}

// Timer is an active buff or debuff on a target.
type Timer struct {
	SpellName     string
	Target        string
	EndTime       time.Time
	TotalDuration int // seconds
	Category      Category
	Spell         *spelldb.Spell
}

// RemainingAt returns seconds left at the reference time, floored at zero.
func (t *Timer) RemainingAt(ref time.Time) float64 {
	remaining := t.EndTime.Sub(ref).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentAt returns the fraction of the timer remaining at ref, as 0-100.
func (t *Timer) PercentAt(ref time.Time) float64 {
	if t.TotalDuration <= 0 {
		return 0
	}
	return t.RemainingAt(ref) / float64(t.TotalDuration) * 100
}

type timerKey struct {
	spell  string
	target string
}

// Registry holds the active timers, keyed by (spell, target). A refresh
// never shortens a timer: replacing an entry requires a strictly later end
// time. Safe for use from the ingestion goroutine and the expiry ticker.
type Registry struct {
	mu       sync.Mutex
	timers   map[timerKey]*Timer
	onChange func()
}

// NewRegistry creates an empty timer registry.
func NewRegistry() *Registry {
	return &Registry{timers: make(map[timerKey]*Timer)}
}

// SetChangedHandler registers a callback fired after every mutation that
// changed the timer set.
func (r *Registry) SetChangedHandler(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Add inserts a timer, or refreshes an existing (spell, target) entry when
// the new end time is strictly later. A shorter or equal recast is a no-op.
func (r *Registry) Add(timer *Timer) {
	r.mu.Lock()
	key := timerKey{timer.SpellName, timer.Target}
	if existing, ok := r.timers[key]; ok && !timer.EndTime.After(existing.EndTime) {
		r.mu.Unlock()
		return
	}
	r.timers[key] = timer
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Remove deletes the timer for (spell, target) if present.
func (r *Registry) Remove(spellName, target string) *Timer {
	r.mu.Lock()
	key := timerKey{spellName, target}
	timer, ok := r.timers[key]
	if ok {
		delete(r.timers, key)
	}
	fn := r.onChange
	r.mu.Unlock()

	if ok && fn != nil {
		fn()
	}
	return timer
}

// RemoveAllForTarget deletes every timer on the given target.
func (r *Registry) RemoveAllForTarget(target string) {
	r.mu.Lock()
	removed := false
	for key := range r.timers {
		if key.target == target {
			delete(r.timers, key)
			removed = true
		}
	}
	fn := r.onChange
	r.mu.Unlock()

	if removed && fn != nil {
		fn()
	}
}

// Clear deletes every timer.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.timers = make(map[timerKey]*Timer)
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// CheckExpired removes and returns every timer whose end time has passed.
func (r *Registry) CheckExpired(now time.Time) []*Timer {
	r.mu.Lock()
	var expired []*Timer
	for key, timer := range r.timers {
		if !now.Before(timer.EndTime) {
			expired = append(expired, timer)
			delete(r.timers, key)
		}
	}
	fn := r.onChange
	r.mu.Unlock()

	if len(expired) > 0 && fn != nil {
		fn()
	}
	return expired
}

// Has reports whether a timer exists for (spell, target).
func (r *Registry) Has(spellName, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[timerKey{spellName, target}]
	return ok
}

// Count returns the number of active timers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// All returns the active timers ordered by (category, end time, spell name).
// The category order groups self-buffs, received buffs, debuffs, and buffs
// on others for display; it carries no other meaning.
func (r *Registry) All() []*Timer {
	r.mu.Lock()
	timers := make([]*Timer, 0, len(r.timers))
	for _, t := range r.timers {
		timers = append(timers, t)
	}
	r.mu.Unlock()

	sort.Slice(timers, func(i, j int) bool {
		a, b := timers[i], timers[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return a.SpellName < b.SpellName
	})
	return timers
}
