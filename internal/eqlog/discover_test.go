package eqlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiscoverCharacters(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "eqlog_Mira_P1999Green.txt")
	recent := filepath.Join(dir, "eqlog_Borak_P1999Green.txt")
	other := filepath.Join(dir, "eqlog_Tobin_P1999Blue.txt")
	for _, p := range []string{old, recent, other} {
		if err := os.WriteFile(p, []byte("x\n"), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logs, err := DiscoverCharacters(dir, "P1999Green")
	if err != nil {
		t.Fatalf("DiscoverCharacters: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2: %+v", len(logs), logs)
	}
	if logs[0].Character != "Borak" || logs[1].Character != "Mira" {
		t.Errorf("order = %s, %s; want Borak, Mira", logs[0].Character, logs[1].Character)
	}

	cl, ok := FindCharacterLog(dir, "P1999Green", "mira")
	if !ok || cl.Character != "Mira" {
		t.Errorf("FindCharacterLog(mira) = %+v, %v", cl, ok)
	}
	if _, ok := FindCharacterLog(dir, "P1999Green", "Nobody"); ok {
		t.Error("FindCharacterLog found a missing character")
	}
}
