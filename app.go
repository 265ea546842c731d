package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eqwatch/internal/combat"
	"eqwatch/internal/config"
	"eqwatch/internal/eqlog"
	"eqwatch/internal/feed"
	"eqwatch/internal/spelldb"
	"eqwatch/internal/store"
	"eqwatch/internal/timers"
)

// App struct
type App struct {
	ctx context.Context
	cfg config.Config

	db      *spelldb.DB
	learned *store.LearnedItems
	chatLog *store.ChatLog
	hub     *feed.Hub

	// mu guards the per-session fields below, built on the watcher
	// goroutine once a character log appears and read by the update loop
	// and the frontend bindings.
	mu         sync.Mutex
	parser     *eqlog.Parser
	registry   *timers.Registry
	tracker    *combat.Tracker
	engine     *timers.Engine
	character  string
	logPath    string
	cancelTail context.CancelFunc

	stopTick       chan struct{}
	windowVisible  bool
	lastCastActive bool
}

// NewApp creates a new App application struct
func NewApp(cfg config.Config) *App {
	return &App{
		cfg:      cfg,
		hub:      feed.NewHub(),
		stopTick: make(chan struct{}),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.windowVisible = true
	a.RegisterToggleHotkey()

	db, err := spelldb.Load(a.cfg.SpellsFile, a.cfg.WhitelistFile)
	if err != nil {
		fmt.Printf("Failed to load spell catalog: %v\n", err)
		a.emitStatus(false, fmt.Sprintf("Spell catalog error: %v", err))
		return
	}
	a.db = db
	fmt.Printf("Spell catalog loaded: %d spells\n", db.Count())

	a.learned = store.LoadLearnedItems(a.cfg.LearnedItemsPath())

	chatLog, err := store.OpenChatLog(a.cfg.ChatDBPath())
	if err != nil {
		// The overlay still works without the archive.
		fmt.Printf("Failed to open chat archive: %v\n", err)
	} else {
		a.chatLog = chatLog
	}

	if a.cfg.FeedEnabled {
		feed.NewServer(a.hub, a.cfg.FeedAddr).Start(ctx)
	}

	go a.findCharacterAndRun()
	go a.updateLoop()
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	close(a.stopTick)
	a.mu.Lock()
	cancel := a.cancelTail
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if a.learned != nil {
		if err := a.learned.Save(); err != nil {
			fmt.Printf("Failed to save learned items: %v\n", err)
		}
	}
	if a.chatLog != nil {
		a.chatLog.Close()
	}
}

// findCharacterAndRun waits for a character log to appear, then starts the
// ingestion session for it. It keeps polling so the overlay can be launched
// before the game.
func (a *App) findCharacterAndRun() {
	for {
		char, path, ok := a.pickCharacter()
		if ok {
			a.mu.Lock()
			a.character = char
			a.logPath = path
			a.mu.Unlock()
			fmt.Printf("Watching %s (%s)\n", char, path)
			a.emitStatus(true, fmt.Sprintf("Watching %s", char))
			a.runSession()
			return
		}

		a.emitStatus(false, "Waiting for a character log...")
		select {
		case <-a.stopTick:
			return
		case <-time.After(3 * time.Second):
		}
	}
}

// pickCharacter resolves the character to watch: the pinned name from the
// config if set, otherwise the most recently written log for the server.
func (a *App) pickCharacter() (name, path string, ok bool) {
	if a.cfg.Character != "" {
		cl, found := eqlog.FindCharacterLog(a.cfg.LogDir, a.cfg.Server, a.cfg.Character)
		if !found {
			return "", "", false
		}
		return cl.Character, cl.Path, true
	}

	logs, err := eqlog.DiscoverCharacters(a.cfg.LogDir, a.cfg.Server)
	if err != nil {
		fmt.Printf("Character discovery failed: %v\n", err)
		return "", "", false
	}
	if len(logs) == 0 {
		return "", "", false
	}
	return logs[0].Character, logs[0].Path, true
}

// runSession builds the pipeline for the chosen character, replays history,
// then tails the log until shutdown.
func (a *App) runSession() {
	parser := eqlog.NewParser(a.character)

	registry := timers.NewRegistry()
	registry.SetChangedHandler(a.emitTimers)

	tracker := combat.NewTracker()
	tracker.SetUpdateHandler(a.emitCombat)

	engine := timers.NewEngine(parser, a.db, registry, tracker, a.learned,
		a.cfg.Level, time.Duration(a.cfg.CastWindowSeconds)*time.Second)
	engine.SetBuffWarningHandler(a.emitBuffWarning)

	tailCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.parser = parser
	a.registry = registry
	a.tracker = tracker
	a.engine = engine
	a.cancelTail = cancel
	a.mu.Unlock()

	a.loadHistory()

	tailer := eqlog.NewTailer(a.logPath, parser, a.handleEntry)
	if err := tailer.Run(tailCtx); err != nil {
		fmt.Printf("Log tail stopped: %v\n", err)
		a.emitStatus(false, fmt.Sprintf("Log tail error: %v", err))
	}
}

// handleEntry routes one live log line through the timer engine and the
// chat pipeline.
func (a *App) handleEntry(entry eqlog.Entry) {
	a.engine.Process(entry)

	if msg := a.parser.ParseChatMessage(entry); msg != nil {
		a.archiveChat([]eqlog.ChatMessage{*msg})
		a.emitChat(*msg)
		return
	}
	if msg := a.parser.ParseWho(entry); msg != nil {
		a.emitChat(*msg)
	}
}

// updateLoop drives time-based state: timer expiry, combat idle timeout,
// and the casting bar.
func (a *App) updateLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopTick:
			return
		case <-ticker.C:
			registry, tracker, engine := a.session()
			if registry != nil {
				for _, t := range registry.CheckExpired(time.Now()) {
					a.emitTimerExpired(t)
				}
			}
			if tracker != nil {
				tracker.CheckTimeout(time.Duration(a.cfg.CombatTimeoutSeconds) * time.Second)
			}
			if engine != nil {
				a.emitCastingBar(engine)
			}
		}
	}
}

// session returns the current session components, all nil until a character
// log has been found.
func (a *App) session() (*timers.Registry, *combat.Tracker, *timers.Engine) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry, a.tracker, a.engine
}

// archiveChat writes messages to the sqlite archive if it is open.
func (a *App) archiveChat(messages []eqlog.ChatMessage) {
	if a.chatLog == nil || len(messages) == 0 {
		return
	}
	if _, err := a.chatLog.Save(messages); err != nil {
		fmt.Printf("Failed to archive chat: %v\n", err)
	}
}

// GetStatus returns the current watcher status for the frontend.
func (a *App) GetStatus() map[string]interface{} {
	a.mu.Lock()
	character := a.character
	a.mu.Unlock()

	if character == "" {
		return map[string]interface{}{
			"watching": false,
			"message":  "Waiting for a character log...",
		}
	}
	return map[string]interface{}{
		"watching":  true,
		"character": character,
		"server":    a.cfg.Server,
		"message":   fmt.Sprintf("Watching %s", character),
	}
}

// GetTimers returns the active timer list for the frontend.
func (a *App) GetTimers() []map[string]interface{} {
	registry, _, _ := a.session()
	if registry == nil {
		return nil
	}
	return timerPayload(registry.All(), time.Now())
}

// GetCombat returns the current combat snapshot for the frontend.
func (a *App) GetCombat() combat.Snapshot {
	_, tracker, _ := a.session()
	if tracker == nil {
		return combat.Snapshot{}
	}
	return tracker.Snapshot()
}

// GetConversations lists archived conversations, most recent first.
func (a *App) GetConversations() []string {
	if a.chatLog == nil {
		return nil
	}
	ids, err := a.chatLog.Conversations()
	if err != nil {
		fmt.Printf("Failed to list conversations: %v\n", err)
		return nil
	}
	return ids
}

// GetRecentMessages returns up to limit archived messages for a
// conversation, oldest first.
func (a *App) GetRecentMessages(conversationID string, limit int) []eqlog.ChatMessage {
	if a.chatLog == nil {
		return nil
	}
	msgs, err := a.chatLog.Recent(conversationID, limit)
	if err != nil {
		fmt.Printf("Failed to load conversation %s: %v\n", conversationID, err)
		return nil
	}
	return msgs
}
