package spelldb

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// record builds one catalog line with the named fields set and everything
// else zeroed. The trailing pair is the expansion marker and replacement id.
type record struct {
	id          int
	name        string
	castOnYou   string
	castOnOther string
	fades       string
	castTimeMS  int
	formula     int
	base        int
	targetType  int
	beneficial  int
	expansion   string
	replacedBy  int
}

func (r record) line() string {
	fields := make([]string, 90)
	for i := range fields {
		fields[i] = "0"
	}
	fields[fieldID] = strconv.Itoa(r.id)
	fields[fieldName] = r.name
	fields[fieldCastOnYou] = r.castOnYou
	fields[fieldCastOnOther] = r.castOnOther
	fields[fieldFades] = r.fades
	fields[fieldCastTimeMS] = strconv.Itoa(r.castTimeMS)
	fields[fieldFormula] = strconv.Itoa(r.formula)
	fields[fieldBase] = strconv.Itoa(r.base)
	fields[fieldTargetType] = strconv.Itoa(r.targetType)
	fields[fieldBeneficial] = strconv.Itoa(r.beneficial)
	fields = append(fields, "!Expansion:"+r.expansion, strconv.Itoa(r.replacedBy))
	return strings.Join(fields, "^")
}

func writeCatalog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spells_us.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadFiltersRecords(t *testing.T) {
	path := writeCatalog(t,
		record{id: 1, name: "Courage", castOnYou: "You feel courageous.", formula: 1, base: 27, beneficial: 1}.line(),
		record{id: 2, name: "GM Blast", castOnYou: "You explode."}.line(),
		"3^Too Short^^^^^^",
		record{id: 4, name: "Old Haste", castOnYou: "You speed up.", expansion: "Kunark", replacedBy: 5}.line(),
		record{id: 5, name: "New Haste", castOnYou: "You speed up again.", expansion: "Luclin", replacedBy: 6}.line(),
	)

	db, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Courage plus New Haste; the GM record, the short record, and the
	// spell replaced within the legacy era are all out.
	if db.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", db.Count())
	}
	if db.GetByName("Courage") == nil {
		t.Error("Courage missing")
	}
	if db.GetByName("GM Blast") != nil {
		t.Error("GM record survived filtering")
	}
	if db.GetByName("Old Haste") != nil {
		t.Error("spell replaced within legacy expansions survived")
	}
	if db.GetByName("New Haste") == nil {
		t.Error("spell replaced by a later expansion should be kept")
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	db, err := Load(filepath.Join(t.TempDir(), "nope.txt"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if db.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", db.Count())
	}
}

func TestWhitelistRestrictsCatalog(t *testing.T) {
	catalog := writeCatalog(t,
		record{id: 1, name: "Courage", formula: 1, base: 27}.line(),
		record{id: 2, name: "Valor", formula: 1, base: 27}.line(),
	)
	whitelist := filepath.Join(t.TempDir(), "whitelist.txt")
	if err := os.WriteFile(whitelist, []byte("Courage\n"), 0644); err != nil {
		t.Fatalf("write whitelist: %v", err)
	}

	db, err := Load(catalog, whitelist)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if db.GetByName("Courage") == nil {
		t.Error("whitelisted spell missing")
	}
	if db.GetByName("Valor") != nil {
		t.Error("non-whitelisted spell survived")
	}
}

func TestCastTimeIgnoresFiltering(t *testing.T) {
	path := writeCatalog(t,
		record{id: 1, name: "Gate", castTimeMS: 5000, expansion: "Classic", replacedBy: 2}.line(),
		record{id: 2, name: "Gate", castTimeMS: 4000}.line(),
	)

	db, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Maximum across every variant, including the filtered record.
	if got := db.CastTimeMS("Gate"); got != 5000 {
		t.Errorf("CastTimeMS(Gate) = %d, want 5000", got)
	}
	if got := db.CastTimeMS("Unknown"); got != 0 {
		t.Errorf("CastTimeMS(Unknown) = %d, want 0", got)
	}
}

func TestFindByCastOnOtherSuffixOrder(t *testing.T) {
	path := writeCatalog(t,
		record{id: 1, name: "Greater Shield", castOnOther: "'s skin shimmers.", formula: 4, base: 100}.line(),
		record{id: 2, name: "Lesser Shield", castOnOther: " shimmers.", formula: 4, base: 50}.line(),
	)

	db, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Both suffixes end the message; candidates arrive in load order.
	results := db.FindByCastOnOther("Borak's skin shimmers.")
	if len(results) != 2 {
		t.Fatalf("got %d candidates, want 2", len(results))
	}
	if results[0].Name != "Greater Shield" || results[1].Name != "Lesser Shield" {
		t.Errorf("candidate order = %s, %s; want Greater Shield, Lesser Shield",
			results[0].Name, results[1].Name)
	}

	var visited []string
	db.OtherSuffixes(func(suffix string, spells []*Spell) bool {
		visited = append(visited, suffix)
		return true
	})
	if len(visited) != 2 || visited[0] != "'s skin shimmers." {
		t.Errorf("suffix visit order = %v", visited)
	}

	// Early stop.
	visited = nil
	db.OtherSuffixes(func(suffix string, spells []*Spell) bool {
		visited = append(visited, suffix)
		return false
	})
	if len(visited) != 1 {
		t.Errorf("visit after stop: %v", visited)
	}
}

func TestBestMatch(t *testing.T) {
	instant := &Spell{Name: "Instant"}
	timed := &Spell{Name: "Timed", DurationFormula: 4, DurationBase: 10}
	other := &Spell{Name: "Other", DurationFormula: 4, DurationBase: 20}
	db := &DB{}

	if got := db.BestMatch(nil, ""); got != nil {
		t.Errorf("empty candidates: got %v", got)
	}
	if got := db.BestMatch([]*Spell{instant, timed, other}, "Other"); got != other {
		t.Errorf("preferred name not honored: got %v", got.Name)
	}
	if got := db.BestMatch([]*Spell{instant, timed}, "Missing"); got != timed {
		t.Errorf("duration tie-break: got %v", got.Name)
	}
	if got := db.BestMatch([]*Spell{instant}, ""); got != instant {
		t.Errorf("fallback to first: got %v", got.Name)
	}
}

func TestSpellHelpers(t *testing.T) {
	s := &Spell{DurationFormula: 4, DurationBase: 10, TargetType: 6}
	if !s.HasDuration() {
		t.Error("HasDuration() = false")
	}
	if !s.IsSelfOnly() {
		t.Error("IsSelfOnly() = false for target type 6")
	}
	if got := s.Duration(60); got != 60 {
		t.Errorf("Duration(60) = %d, want 60", got)
	}

	instant := &Spell{}
	if instant.HasDuration() {
		t.Error("zero formula and base should have no duration")
	}
}
