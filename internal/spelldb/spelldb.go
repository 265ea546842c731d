package spelldb

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Spell field positions inside the ^-delimited spells file.
const (
	fieldID          = 0
	fieldName        = 1
	fieldCastOnYou   = 6
	fieldCastOnOther = 7
	fieldFades       = 8
	fieldCastTimeMS  = 13
	fieldFormula     = 16
	fieldBase        = 17
	fieldTargetType  = 40
	fieldBeneficial  = 83

	minFields = 85
)

// targetTypeSelf marks spells that can only land on the caster.
const targetTypeSelf = 6

// Spell is one record from the spells file.
type Spell struct {
	ID                   int
	Name                 string
	CastOnYou            string
	CastOnOther          string
	Fades                string
	DurationFormula      int
	DurationBase         int
	CastTimeMS           int
	TargetType           int
	Beneficial           bool
	ReplacedBy           int
	ReplacementExpansion string
}

// Duration returns the spell's duration in seconds at the given caster level.
func (s *Spell) Duration(level int) int {
	return DurationSeconds(s.DurationFormula, s.DurationBase, level)
}

// HasDuration reports whether the spell has any duration at all.
func (s *Spell) HasDuration() bool {
	return !(s.DurationFormula == 0 && s.DurationBase == 0)
}

// IsSelfOnly reports whether the spell can only target the caster.
func (s *Spell) IsSelfOnly() bool {
	return s.TargetType == targetTypeSelf
}

// legacyExpansions are the expansions available under the target ruleset.
// A spell superseded by a version from one of these is itself still current;
// a spell whose replacement comes from a later expansion never existed here,
// so the record that replaced it must not be tracked.
var legacyExpansions = map[string]bool{
	"Classic": true,
	"Kunark":  true,
	"Velious": true,
	"Hole":    true,
	"":        true,
}

// DB indexes the spell file for the lookups the timer engine needs:
// exact name, "cast on you" message, "cast on other" message suffix, and
// "spell fades" message.
type DB struct {
	byName        map[string]*Spell
	byID          map[int]*Spell
	byCastOnYou   map[string][]*Spell
	byCastOnOther map[string][]*Spell
	otherSuffixes []string // insertion order of byCastOnOther keys
	byFades       map[string][]*Spell
	castTimes     map[string]int // max observed cast time per name, unfiltered
	whitelist     map[string]bool
	loaded        int
	skipped       int
}

// Load reads the spells file and an optional whitelist file. A missing
// spells file yields an empty database and a missing whitelist disables
// whitelist enforcement; neither is fatal.
func Load(spellsPath, whitelistPath string) (*DB, error) {
	db := &DB{
		byName:        make(map[string]*Spell),
		byID:          make(map[int]*Spell),
		byCastOnYou:   make(map[string][]*Spell),
		byCastOnOther: make(map[string][]*Spell),
		byFades:       make(map[string][]*Spell),
		castTimes:     make(map[string]int),
	}

	if whitelistPath != "" {
		if err := db.loadWhitelist(whitelistPath); err != nil {
			log.Printf("spelldb: no whitelist: %v", err)
		}
	}

	f, err := os.Open(spellsPath)
	if err != nil {
		log.Printf("spelldb: spells file not found: %v", err)
		return db, nil
	}
	defer f.Close()

	var all []*Spell
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		db.scanCastTime(line)

		spell, ok := parseRecord(line)
		if !ok {
			db.skipped++
			continue
		}
		all = append(all, spell)
		db.byID[spell.ID] = spell
	}
	if err := scanner.Err(); err != nil {
		return db, fmt.Errorf("read spells file: %w", err)
	}

	for _, spell := range all {
		if !db.isValid(spell) {
			continue
		}
		db.index(spell)
		db.loaded++
	}

	log.Printf("spelldb: loaded %d spells (%d cast times, %d records skipped)",
		db.loaded, len(db.castTimes), db.skipped)
	return db, nil
}

func (db *DB) loadWhitelist(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	db.whitelist = make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			db.whitelist[name] = true
		}
	}
	log.Printf("spelldb: whitelist holds %d spells", len(db.whitelist))
	return scanner.Err()
}

// scanCastTime tracks the maximum cast time seen for a spell name across
// every record variant, independent of validity filtering. The casting bar
// needs cast times even for spells the timer engine will never track.
func (db *DB) scanCastTime(line string) {
	fields := strings.Split(line, "^")
	if len(fields) <= fieldCastTimeMS {
		return
	}
	name := fields[fieldName]
	if strings.Contains(name, "GM") {
		return
	}
	ms, err := strconv.Atoi(fields[fieldCastTimeMS])
	if err != nil {
		return
	}
	if prev, ok := db.castTimes[name]; !ok || ms > prev {
		db.castTimes[name] = ms
	}
}

func parseRecord(line string) (*Spell, bool) {
	fields := strings.Split(line, "^")
	if len(fields) < minFields {
		return nil, false
	}

	name := fields[fieldName]
	if strings.Contains(name, "GM") {
		return nil, false
	}

	id, err := strconv.Atoi(fields[fieldID])
	if err != nil {
		return nil, false
	}
	castTime, err := strconv.Atoi(fields[fieldCastTimeMS])
	if err != nil {
		return nil, false
	}
	formula, err := strconv.Atoi(fields[fieldFormula])
	if err != nil {
		return nil, false
	}
	base, err := strconv.Atoi(fields[fieldBase])
	if err != nil {
		return nil, false
	}
	targetType, err := strconv.Atoi(fields[fieldTargetType])
	if err != nil {
		return nil, false
	}
	beneficial, err := strconv.Atoi(fields[fieldBeneficial])
	if err != nil {
		return nil, false
	}

	expansion, replacedBy := parseReplacement(fields)

	return &Spell{
		ID:                   id,
		Name:                 name,
		CastOnYou:            fields[fieldCastOnYou],
		CastOnOther:          fields[fieldCastOnOther],
		Fades:                fields[fieldFades],
		DurationFormula:      formula,
		DurationBase:         base,
		CastTimeMS:           castTime,
		TargetType:           targetType,
		Beneficial:           beneficial == 1,
		ReplacedBy:           replacedBy,
		ReplacementExpansion: expansion,
	}, true
}

// parseReplacement reads the trailing "!Expansion:<name>" marker and the
// replacement spell id from the last two delimited fields.
func parseReplacement(fields []string) (expansion string, replacedBy int) {
	if len(fields) < 2 {
		return "", 0
	}
	if id, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
		replacedBy = id
	}
	marker := fields[len(fields)-2]
	if rest, ok := strings.CutPrefix(marker, "!Expansion:"); ok {
		expansion = rest
	}
	return expansion, replacedBy
}

// isValid applies the ruleset filter. The whitelist, when present, wins
// outright. A spell nothing replaced is always valid. Otherwise the spell is
// excluded only when its replacement came from an expansion that exists under
// the target ruleset.
func (db *DB) isValid(spell *Spell) bool {
	if db.whitelist != nil && !db.whitelist[spell.Name] {
		return false
	}
	if spell.ReplacedBy == 0 {
		return true
	}
	return !legacyExpansions[spell.ReplacementExpansion]
}

func (db *DB) index(spell *Spell) {
	db.byName[spell.Name] = spell

	if spell.CastOnYou != "" {
		db.byCastOnYou[spell.CastOnYou] = append(db.byCastOnYou[spell.CastOnYou], spell)
	}
	if spell.CastOnOther != "" {
		if _, seen := db.byCastOnOther[spell.CastOnOther]; !seen {
			db.otherSuffixes = append(db.otherSuffixes, spell.CastOnOther)
		}
		db.byCastOnOther[spell.CastOnOther] = append(db.byCastOnOther[spell.CastOnOther], spell)
	}
	if spell.Fades != "" {
		db.byFades[spell.Fades] = append(db.byFades[spell.Fades], spell)
	}
}

// Count returns the number of indexed (valid) spells.
func (db *DB) Count() int { return db.loaded }

// GetByName returns the valid spell with the exact name, or nil.
func (db *DB) GetByName(name string) *Spell {
	return db.byName[name]
}

// GetByID returns a spell by id from the unfiltered table, or nil.
func (db *DB) GetByID(id int) *Spell {
	return db.byID[id]
}

// CastTimeMS returns the maximum cast time observed for a spell name, in
// milliseconds, or 0 when unknown. Not subject to validity filtering.
func (db *DB) CastTimeMS(name string) int {
	return db.castTimes[name]
}

// FindByCastOnYou returns every valid spell whose "cast on you" message
// equals the full message text.
func (db *DB) FindByCastOnYou(message string) []*Spell {
	return db.byCastOnYou[message]
}

// FindByCastOnOther returns every valid spell whose "cast on other" suffix
// ends the message. The live line reads "<target><suffix>", so this is a
// suffix scan; several suffixes can match the same message and all their
// candidates are returned.
func (db *DB) FindByCastOnOther(message string) []*Spell {
	var results []*Spell
	for _, suffix := range db.otherSuffixes {
		if strings.HasSuffix(message, suffix) {
			results = append(results, db.byCastOnOther[suffix]...)
		}
	}
	return results
}

// OtherSuffixes returns the known "cast on other" suffixes in catalog load
// order, together with their candidate spells, via the visit callback.
// Iteration stops when visit returns false.
func (db *DB) OtherSuffixes(visit func(suffix string, spells []*Spell) bool) {
	for _, suffix := range db.otherSuffixes {
		if !visit(suffix, db.byCastOnOther[suffix]) {
			return
		}
	}
}

// FindByFades returns every valid spell whose fade message equals the text.
func (db *DB) FindByFades(message string) []*Spell {
	return db.byFades[message]
}

// BestMatch picks one spell from a candidate list. A supplied preferred name
// wins when present; otherwise the first candidate with a real duration;
// otherwise the first candidate.
func (db *DB) BestMatch(spells []*Spell, preferName string) *Spell {
	if len(spells) == 0 {
		return nil
	}
	if preferName != "" {
		for _, s := range spells {
			if s.Name == preferName {
				return s
			}
		}
	}
	for _, s := range spells {
		if s.HasDuration() {
			return s
		}
	}
	return spells[0]
}
