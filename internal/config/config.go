// Package config loads eqwatch settings from a TOML file, falling back to
// sensible defaults when the file is missing or partially filled in.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all user-tunable settings.
type Config struct {
	// LogDir is the EverQuest Logs directory containing eqlog_*.txt files.
	LogDir string `toml:"log_dir"`
	// Server is the server tag in log file names, e.g. "P1999Green".
	Server string `toml:"server"`
	// Character pins a character name; empty means auto-discover the most
	// recently written log.
	Character string `toml:"character"`
	// Level is the assumed character level for spell duration formulas.
	Level int `toml:"level"`

	// SpellsFile is the path to the spells_us.txt catalog dump.
	SpellsFile string `toml:"spells_file"`
	// WhitelistFile optionally restricts the catalog to listed spell names.
	WhitelistFile string `toml:"whitelist_file"`
	// DataDir holds the chat archive and learned-items file.
	DataDir string `toml:"data_dir"`

	// CastWindowSeconds bounds how long after a cast line a landing message
	// may still be attributed to that cast.
	CastWindowSeconds int `toml:"cast_window_seconds"`
	// CombatTimeoutSeconds ends a combat session after this much quiet.
	CombatTimeoutSeconds int `toml:"combat_timeout_seconds"`
	// HistoryHours is how far back to replay the log at startup.
	HistoryHours int `toml:"history_hours"`

	// ChannelBackfill caps how many recent messages per public channel are
	// loaded at startup; DMBackfill caps distinct tell conversations.
	ChannelBackfill int `toml:"channel_backfill"`
	DMBackfill      int `toml:"dm_backfill"`

	// FeedEnabled starts a local websocket event feed for external tools.
	FeedEnabled bool   `toml:"feed_enabled"`
	FeedAddr    string `toml:"feed_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := "."
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "eqwatch")
	}
	return Config{
		Server:               "P1999Green",
		Level:                60,
		DataDir:              dataDir,
		CastWindowSeconds:    12,
		CombatTimeoutSeconds: 8,
		HistoryHours:         24,
		ChannelBackfill:      50,
		DMBackfill:           10,
		FeedEnabled:          false,
		FeedAddr:             "127.0.0.1:8199",
	}
}

// Load reads the config file at path over the defaults. A missing file is
// fine; a malformed one is reported and the defaults are used.
func Load(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: could not read %s: %v", path, err)
		}
		return cfg
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		log.Printf("config: could not parse %s: %v, using defaults", path, err)
		return Default()
	}
	return cfg
}

// Save writes the config back to path.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LearnedItemsPath is where the learned-items file lives under DataDir.
func (c Config) LearnedItemsPath() string {
	return filepath.Join(c.DataDir, "learned_items.json")
}

// ChatDBPath is where the chat archive lives under DataDir.
func (c Config) ChatDBPath() string {
	return filepath.Join(c.DataDir, "chat.db")
}
