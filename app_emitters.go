package main

import (
	"time"

	"eqwatch/internal/combat"
	"eqwatch/internal/eqlog"
	"eqwatch/internal/feed"
	"eqwatch/internal/timers"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Every event the frontend receives is mirrored onto the external feed so
// stream overlays and other local tools see the same stream.

func feedEvent(name string, payload interface{}) feed.Event {
	return feed.Event{Name: name, Payload: payload}
}

func (a *App) emit(name string, payload map[string]interface{}) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, name, payload)
	}
	a.hub.Broadcast(feedEvent(name, payload))
}

func (a *App) emitStatus(watching bool, message string) {
	a.mu.Lock()
	character := a.character
	a.mu.Unlock()
	a.emit("watch:status", map[string]interface{}{
		"watching":  watching,
		"character": character,
		"message":   message,
	})
}

func timerPayload(list []*timers.Timer, now time.Time) []map[string]interface{} {
	payload := make([]map[string]interface{}, 0, len(list))
	for _, t := range list {
		payload = append(payload, map[string]interface{}{
			"spellName": t.SpellName,
			"target":    t.Target,
			"category":  t.Category.String(),
			"remaining": t.RemainingAt(now),
			"percent":   t.PercentAt(now),
			"total":     t.TotalDuration,
		})
	}
	return payload
}

func (a *App) emitTimers() {
	registry, _, _ := a.session()
	if registry == nil {
		return
	}
	a.emit("timers:update", map[string]interface{}{
		"timers": timerPayload(registry.All(), time.Now()),
	})
}

func (a *App) emitTimerExpired(t *timers.Timer) {
	a.emit("timers:expired", map[string]interface{}{
		"spellName": t.SpellName,
		"target":    t.Target,
		"category":  t.Category.String(),
	})
	a.emitTimers()
}

func chatPayload(m eqlog.ChatMessage) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":    m.Timestamp.Format(time.RFC3339),
		"channel":      string(m.Channel),
		"sender":       m.Sender,
		"content":      m.Content,
		"isOutgoing":   m.IsOutgoing,
		"tellTarget":   m.TellTarget,
		"conversation": m.ConversationID(),
	}
}

func (a *App) emitChat(m eqlog.ChatMessage) {
	a.emit("chat:message", chatPayload(m))
}

func (a *App) emitCombat(s combat.Snapshot) {
	players := make([]map[string]interface{}, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, map[string]interface{}{
			"name":   p.Name,
			"damage": p.Damage,
			"dps":    p.DPS,
		})
	}
	a.emit("combat:update", map[string]interface{}{
		"active":   s.Active,
		"ended":    s.Ended,
		"target":   s.Target,
		"duration": s.Duration,
		"players":  players,
	})
}

func (a *App) emitBuffWarning(kind string) {
	a.emit("notification:buff", map[string]interface{}{
		"kind":    kind,
		"message": "Your " + kind + " is fading!",
	})
}

// emitCastingBar reports progress of an in-flight cast. The bar total comes
// from the catalog for spells and from learned timings for clicked items.
func (a *App) emitCastingBar(engine *timers.Engine) {
	name, itemName, started, ok := engine.Pending()
	if !ok {
		if a.lastCastActive {
			a.lastCastActive = false
			a.emit("cast:update", map[string]interface{}{"active": false})
		}
		return
	}

	totalMS := a.db.CastTimeMS(name)
	if totalMS == 0 && itemName != "" && a.learned != nil {
		totalMS = a.learned.CastTimeMS(itemName)
	}

	elapsedMS := int(time.Since(started) / time.Millisecond)
	a.lastCastActive = true
	a.emit("cast:update", map[string]interface{}{
		"active":    true,
		"spellName": name,
		"itemName":  itemName,
		"elapsedMs": elapsedMS,
		"totalMs":   totalMS,
	})
}
