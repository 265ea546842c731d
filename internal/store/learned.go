// Package store persists engine state between sessions: the chat archive
// and the learned-items file.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// learnedItem is the on-disk record for one item: a histogram of observed
// cast times (ms, as string keys) to occurrence counts, and the spell the
// item was seen to cast.
type learnedItem struct {
	CastTimesMS map[string]int `json:"cast_times_ms,omitempty"`
	SpellName   string         `json:"spell_name,omitempty"`
}

// LearnedItems accumulates item-to-spell associations and empirical cast
// times observed at runtime. Saving merges into the on-disk data rather
// than overwriting it, so observations from parallel sessions survive.
type LearnedItems struct {
	mu        sync.Mutex
	path      string
	items     map[string]*learnedItem
	castTimes map[string]int // best known cast time per item, ms
}

// LoadLearnedItems reads the learned-items file. A missing or unreadable
// file yields an empty store; it is not an error.
func LoadLearnedItems(path string) *LearnedItems {
	l := &LearnedItems{
		path:      path,
		items:     make(map[string]*learnedItem),
		castTimes: make(map[string]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("store: could not read learned items: %v", err)
		}
		return l
	}
	if err := json.Unmarshal(data, &l.items); err != nil {
		log.Printf("store: could not parse learned items: %v", err)
		return l
	}

	// Seed runtime cast times with the most frequently observed value.
	for name, item := range l.items {
		bestMS, bestCount := 0, 0
		for msStr, count := range item.CastTimesMS {
			ms, err := strconv.Atoi(msStr)
			if err != nil {
				continue
			}
			if count > bestCount {
				bestMS, bestCount = ms, count
			}
		}
		if bestMS > 0 {
			l.castTimes[name] = bestMS
		}
	}

	log.Printf("store: loaded %d learned items (%d with cast times)", len(l.items), len(l.castTimes))
	return l
}

// SpellForItem returns the spell an item is known to cast.
func (l *LearnedItems) SpellForItem(item string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if info, ok := l.items[item]; ok && info.SpellName != "" {
		return info.SpellName, true
	}
	return "", false
}

// CastTimeMS returns the best known cast time for an item, or 0.
func (l *LearnedItems) CastTimeMS(item string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.castTimes[item]
}

// RecordCastTime notes an observed click-to-landing time for an item. The
// observation joins the on-disk histogram at the next Save.
func (l *LearnedItems) RecordCastTime(item string, ms int) {
	if ms <= 0 {
		return
	}
	l.mu.Lock()
	l.castTimes[item] = ms
	l.mu.Unlock()
}

// LearnItemSpell associates a spell with an item. An existing association is
// never overwritten. New associations are saved immediately so they survive
// a crash.
func (l *LearnedItems) LearnItemSpell(item, spell string) {
	l.mu.Lock()
	info, ok := l.items[item]
	if !ok {
		info = &learnedItem{}
		l.items[item] = info
	}
	if info.SpellName != "" {
		l.mu.Unlock()
		return
	}
	info.SpellName = spell
	l.mu.Unlock()

	log.Printf("store: learned item spell: %s -> %s", item, spell)
	if err := l.Save(); err != nil {
		log.Printf("store: could not save learned items: %v", err)
	}
}

// Save merges the session's observations into the learned-items file.
func (l *LearnedItems) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Re-read the file so observations written by another session since
	// our load are kept.
	existing := make(map[string]*learnedItem)
	if data, err := os.ReadFile(l.path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			existing = make(map[string]*learnedItem)
		}
	}

	for item, ms := range l.castTimes {
		info, ok := existing[item]
		if !ok {
			info = &learnedItem{}
			existing[item] = info
		}
		if info.CastTimesMS == nil {
			info.CastTimesMS = make(map[string]int)
		}
		info.CastTimesMS[strconv.Itoa(ms)]++
	}

	for item, session := range l.items {
		if session.SpellName == "" {
			continue
		}
		info, ok := existing[item]
		if !ok {
			info = &learnedItem{}
			existing[item] = info
		}
		if info.SpellName == "" {
			info.SpellName = session.SpellName
		}
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("encode learned items: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write learned items: %w", err)
	}
	return nil
}
