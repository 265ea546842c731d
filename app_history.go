package main

import (
	"fmt"
	"time"

	"eqwatch/internal/eqlog"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// loadHistory replays recent log history before live tailing starts: active
// timers are reconstructed with logout and zone downtime deducted, and the
// most recent chat is backfilled into the archive and the frontend.
func (a *App) loadHistory() {
	a.restoreTimers()
	a.backfillChat()
}

func (a *App) restoreTimers() {
	cutoff := time.Now().Add(-time.Duration(a.cfg.HistoryHours) * time.Hour)
	scanner := eqlog.NewScanner(a.logPath, a.character)

	entries, err := scanner.LoadRawSince(cutoff)
	if err != nil {
		fmt.Printf("Failed to read log history: %v\n", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	logouts := eqlog.FindLogoutPeriods(entries)
	zones := eqlog.FindZonePeriods(entries)

	restored := a.engine.LoadHistory(entries, logouts, zones)
	fmt.Printf("History: %d entries scanned, %d timers restored (%d logouts, %d zone loads)\n",
		len(entries), restored, len(logouts), len(zones))
	a.emitTimers()
}

func (a *App) backfillChat() {
	scanner := eqlog.NewScanner(a.logPath, a.character)

	messages, err := scanner.LoadChatByCount(eqlog.ChatQuotas{
		MaxChannelMessages: a.cfg.ChannelBackfill,
		MaxDMConversations: a.cfg.DMBackfill,
	})
	if err != nil {
		fmt.Printf("Failed to backfill chat: %v\n", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	a.archiveChat(messages)
	fmt.Printf("Chat backfill: %d messages\n", len(messages))

	payload := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, chatPayload(m))
	}
	runtime.EventsEmit(a.ctx, "chat:history", map[string]interface{}{
		"messages": payload,
	})
	a.hub.Broadcast(feedEvent("chat:history", map[string]interface{}{
		"messages": payload,
	}))
}
