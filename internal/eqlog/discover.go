package eqlog

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var logNamePattern = regexp.MustCompile(`^eqlog_([^_]+)_`)

// CharacterLog is one discovered character log file.
type CharacterLog struct {
	Character string
	Path      string
	Modified  time.Time
}

// DiscoverCharacters lists character log files for the given server tag,
// most recently written first.
func DiscoverCharacters(logDir, server string) ([]CharacterLog, error) {
	pattern := filepath.Join(logDir, "eqlog_*_"+server+".txt")
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	var logs []CharacterLog
	for _, path := range paths {
		m := logNamePattern.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logs = append(logs, CharacterLog{
			Character: m[1],
			Path:      path,
			Modified:  info.ModTime(),
		})
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Modified.After(logs[j].Modified)
	})
	return logs, nil
}

// FindCharacterLog locates a specific character's log file, by
// case-insensitive name match.
func FindCharacterLog(logDir, server, name string) (CharacterLog, bool) {
	logs, err := DiscoverCharacters(logDir, server)
	if err != nil {
		return CharacterLog{}, false
	}
	for _, l := range logs {
		if strings.EqualFold(l.Character, name) {
			return l, true
		}
	}
	return CharacterLog{}, false
}
