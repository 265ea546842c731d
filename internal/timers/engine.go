package timers

import (
	"strings"
	"sync"
	"time"

	"eqwatch/internal/combat"
	"eqwatch/internal/eqlog"
	"eqwatch/internal/spelldb"
)

// ItemMemory is the learned-items store the engine consults for instant-cast
// clickies and feeds with observed cast times and spell associations.
type ItemMemory interface {
	SpellForItem(item string) (string, bool)
	RecordCastTime(item string, ms int)
	LearnItemSpell(item, spell string)
}

// pendingCast is the single in-flight cast awaiting a landing message. At
// most one exists; it is replaced or cleared, never merged.
type pendingCast struct {
	spellName string
	wallClock time.Time // when the cast line was seen
	logTime   time.Time // the cast line's log timestamp
	itemName  string    // set when the cast came from clicking an item
}

// Engine consumes the ordered entry stream and drives the timer registry and
// combat tracker: cast/landing correlation, fade and worn-off removal, death
// clearing, damage accumulation. Entries must be fed from a single goroutine
// delivering them in log order; the adjacency rules below depend on it.
// Pending is safe to call from other goroutines.
type Engine struct {
	parser   *eqlog.Parser
	db       *spelldb.DB
	registry *Registry
	combat   *combat.Tracker
	items    ItemMemory

	level  int
	window time.Duration

	mu          sync.Mutex // guards pending against concurrent Pending reads
	pending     *pendingCast
	lastWasCast bool // the previous processed entry was a cast begin

	onBuffWarning func(kind string)

	now func() time.Time
}

// NewEngine wires the correlation engine. level is the character level used
// for duration formulas; window is the maximum cast-to-landing time.
func NewEngine(parser *eqlog.Parser, db *spelldb.DB, registry *Registry, tracker *combat.Tracker, items ItemMemory, level int, window time.Duration) *Engine {
	return &Engine{
		parser:   parser,
		db:       db,
		registry: registry,
		combat:   tracker,
		items:    items,
		level:    level,
		window:   window,
		now:      time.Now,
	}
}

// SetBuffWarningHandler registers the callback for buff-fading warnings.
func (e *Engine) SetBuffWarningHandler(fn func(kind string)) {
	e.onBuffWarning = fn
}

// Pending returns the in-flight cast's display name and cast start, for the
// casting bar. The item name wins over the spell name when both are known.
func (e *Engine) Pending() (name string, itemName string, started time.Time, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return "", "", time.Time{}, false
	}
	return e.pending.spellName, e.pending.itemName, e.pending.wallClock, true
}

// Process classifies one entry and applies its timer and combat effects.
func (e *Engine) Process(entry eqlog.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg := entry.Message

	// One-shot adjacency: only the entry immediately after a cast begin
	// may attach an item glow to it.
	prevWasCast := e.lastWasCast
	e.lastWasCast = false

	if e.parser.IsBlacklisted(entry) {
		return
	}

	if e.parser.IsDeath(entry) {
		e.registry.Clear()
		e.combat.End()
		return
	}

	if e.parser.IsCastFailure(entry) {
		e.pending = nil
		return
	}

	if spellName, ok := e.parser.ParseCasting(entry); ok {
		e.pending = &pendingCast{
			spellName: spellName,
			wallClock: e.now(),
			logTime:   entry.Timestamp,
		}
		e.lastWasCast = true
		return
	}

	if itemName, ok := e.parser.ParseItemGlow(entry); ok {
		e.handleItemGlow(itemName, entry, prevWasCast)
		return
	}

	if fades := e.db.FindByFades(msg); len(fades) > 0 {
		for _, spell := range fades {
			e.registry.Remove(spell.Name, "You")
		}
		return
	}

	if spellName, ok := e.parser.ParseWornOff(entry); ok {
		e.registry.Remove(spellName, "You")
		return
	}

	if spells := e.db.FindByCastOnYou(msg); len(spells) > 0 {
		e.handleCastOnYou(spells, entry)
		return
	}

	e.checkCastOnOther(msg)

	if kind, ok := e.parser.BuffWarning(entry); ok {
		if e.onBuffWarning != nil {
			e.onBuffWarning(kind)
		}
		return
	}

	if target, amount, ok := e.parser.ParseYourDamage(entry); ok {
		e.combat.AddDamage("You", amount, target)
		return
	}
	if target, amount, ok := e.parser.ParseNonMeleeDamage(entry); ok {
		e.combat.AddDamage("You", amount, target)
		return
	}
	if attacker, target, amount, ok := e.parser.ParseOtherDamage(entry); ok {
		e.combat.AddDamage(attacker, amount, target)
		return
	}

	if target, ok := e.parser.ParseYouSlain(entry); ok {
		e.registry.RemoveAllForTarget(target)
		e.combat.End()
		return
	}
	if e.parser.IsOtherSlain(entry) {
		e.combat.End()
		return
	}
}

// handleItemGlow attaches a glow to the pending cast when it immediately
// follows the cast line, or synthesizes a pending cast for a learned
// instant-click item when nothing is being cast.
func (e *Engine) handleItemGlow(itemName string, entry eqlog.Entry, prevWasCast bool) {
	if e.pending != nil && e.pending.itemName == "" {
		// If the cast was not the immediately preceding entry, the glow
		// is unrelated (casting while clicking something else).
		if prevWasCast {
			e.pending.itemName = itemName
		}
		return
	}

	if e.pending == nil {
		spellName, ok := e.items.SpellForItem(itemName)
		if !ok {
			return
		}
		e.pending = &pendingCast{
			spellName: spellName,
			wallClock: e.now(),
			logTime:   entry.Timestamp,
			itemName:  itemName,
		}
	}
}

// handleCastOnYou correlates a landing-on-you message against the pending
// cast. Without a correlation the landing still creates a timer, categorized
// as a buff received from someone else.
func (e *Engine) handleCastOnYou(spells []*spelldb.Spell, entry eqlog.Entry) {
	isSelfCast := false
	prefer := ""
	itemName := ""
	var castStart time.Time

	if e.pending != nil {
		elapsed := entry.Timestamp.Sub(e.pending.logTime)
		if elapsed < e.window {
			for _, s := range spells {
				if s.Name == e.pending.spellName {
					isSelfCast = true
					prefer = s.Name
					itemName = e.pending.itemName
					castStart = e.pending.wallClock
					e.pending = nil
					break
				}
			}
		}
	}

	if itemName != "" && !castStart.IsZero() {
		e.recordItemCastTime(itemName, castStart)
	}

	spell := e.db.BestMatch(spells, prefer)
	if spell == nil {
		return
	}
	if itemName != "" {
		e.items.LearnItemSpell(itemName, spell.Name)
	}

	duration := spell.Duration(e.level)
	if duration <= 0 {
		return
	}
	category := CategoryReceivedBuff
	if isSelfCast {
		category = CategorySelfBuff
	}
	e.registry.Add(&Timer{
		SpellName:     spell.Name,
		Target:        "You",
		EndTime:       e.now().Add(time.Duration(duration) * time.Second),
		TotalDuration: duration,
		Category:      category,
		Spell:         spell,
	})
}

// checkCastOnOther matches a landing-on-someone-else message to the pending
// cast. Suffixes are scanned in catalog load order and the scan stops at the
// first suffix that correlates; when two suffixes both match a message the
// outcome follows load order, which mirrors the catalog's documented
// tie-break behavior.
func (e *Engine) checkCastOnOther(msg string) {
	if e.pending == nil {
		return
	}

	e.db.OtherSuffixes(func(suffix string, spells []*spelldb.Spell) bool {
		if suffix == "" || !strings.HasSuffix(msg, suffix) {
			return true
		}

		target := msg[:len(msg)-len(suffix)]
		if target == "" || strings.HasPrefix(target, " ") {
			return true
		}

		prefer := ""
		if e.now().Sub(e.pending.wallClock) < e.window {
			for _, s := range spells {
				if s.Name == e.pending.spellName {
					prefer = s.Name
					break
				}
			}
		}
		if prefer == "" {
			return true
		}

		itemName := e.pending.itemName
		castStart := e.pending.wallClock
		e.pending = nil

		spell := e.db.BestMatch(spells, prefer)
		if spell == nil {
			return false
		}

		if itemName != "" {
			e.recordItemCastTime(itemName, castStart)
			e.items.LearnItemSpell(itemName, spell.Name)
		}

		duration := spell.Duration(e.level)
		if duration <= 0 {
			return false
		}

		category := CategoryDebuff
		if spell.Beneficial {
			category = CategoryOtherBuff
		}
		e.registry.Add(&Timer{
			SpellName:     spell.Name,
			Target:        target,
			EndTime:       e.now().Add(time.Duration(duration) * time.Second),
			TotalDuration: duration,
			Category:      category,
			Spell:         spell,
		})
		return false
	})
}

// recordItemCastTime stores the observed click-to-landing time for an item,
// rounded to the nearest second.
func (e *Engine) recordItemCastTime(itemName string, castStart time.Time) {
	elapsed := e.now().Sub(castStart)
	rounded := int(elapsed.Round(time.Second) / time.Millisecond)
	if rounded > 0 {
		e.items.RecordCastTime(itemName, rounded)
	}
}

// LoadHistory replays raw entries from a backward scan and recreates timers
// still running, compensating for spans where game time stood still:
// remaining = duration - (wall - paused), where paused sums the parts of the
// logout and zone periods after the cast.
func (e *Engine) LoadHistory(entries []eqlog.Entry, logoutPeriods, zonePeriods []eqlog.TimePeriod) int {
	type activeCast struct {
		castTime time.Time
		spell    *spelldb.Spell
	}
	active := make(map[timerKey]activeCast)

	var pendingItemSpell string
	var pendingItemTime time.Time

	for _, entry := range entries {
		msg := entry.Message

		if e.parser.IsDeath(entry) {
			active = make(map[timerKey]activeCast)
			pendingItemSpell = ""
			continue
		}

		// Item glows in history only matter when the item is already
		// known; there is no casting bar to correlate against.
		if itemName, ok := e.parser.ParseItemGlow(entry); ok {
			if spellName, known := e.items.SpellForItem(itemName); known {
				pendingItemSpell = spellName
				pendingItemTime = entry.Timestamp
			}
			continue
		}

		if fades := e.db.FindByFades(msg); len(fades) > 0 {
			for _, spell := range fades {
				delete(active, timerKey{spell.Name, "You"})
			}
			continue
		}

		if spells := e.db.FindByCastOnYou(msg); len(spells) > 0 {
			prefer := ""
			if pendingItemSpell != "" {
				if entry.Timestamp.Sub(pendingItemTime) < e.window {
					for _, s := range spells {
						if s.Name == pendingItemSpell {
							prefer = pendingItemSpell
							break
						}
					}
				}
				pendingItemSpell = ""
			}
			if spell := e.db.BestMatch(spells, prefer); spell != nil {
				if spell.Duration(e.level) > 0 {
					active[timerKey{spell.Name, "You"}] = activeCast{entry.Timestamp, spell}
				}
			}
		}
	}

	loaded := 0
	now := e.now()

	for key, cast := range active {
		duration := cast.spell.Duration(e.level)

		var paused time.Duration
		for _, p := range logoutPeriods {
			paused += p.TimeAfter(cast.castTime)
		}
		for _, p := range zonePeriods {
			paused += p.TimeAfter(cast.castTime)
		}

		wall := now.Sub(cast.castTime)
		remaining := time.Duration(duration)*time.Second - (wall - paused)
		if remaining <= 0 {
			continue
		}

		e.registry.Add(&Timer{
			SpellName:     cast.spell.Name,
			Target:        key.target,
			EndTime:       now.Add(remaining),
			TotalDuration: duration,
			Category:      CategoryReceivedBuff,
			Spell:         cast.spell,
		})
		loaded++
	}
	return loaded
}
