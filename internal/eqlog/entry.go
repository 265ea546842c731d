// Package eqlog reads and classifies EverQuest client log files: the
// timestamped line envelope, chat channels, spell and combat lines, the live
// tail, and the bounded-memory history scanners.
package eqlog

import (
	"strings"
	"time"
)

// TimestampLayout is the envelope every log line carries:
// [Tue Aug 25 21:03:11 2026] <message>
const TimestampLayout = "Mon Jan 2 15:04:05 2006"

// Entry is one parsed log line.
type Entry struct {
	Timestamp time.Time
	Message   string
}

// Channel identifies a chat channel.
type Channel string

const (
	ChannelGuild   Channel = "guild"
	ChannelOOC     Channel = "ooc"
	ChannelGroup   Channel = "group"
	ChannelShout   Channel = "shout"
	ChannelAuction Channel = "auction"
	ChannelTell    Channel = "tell"
	ChannelSay     Channel = "say"
	ChannelRandom  Channel = "random"
	ChannelWho     Channel = "who"
)

// ChatMessage is a single chat message derived from one or more log lines.
type ChatMessage struct {
	Timestamp  time.Time `json:"timestamp"`
	Channel    Channel   `json:"channel"`
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	IsOutgoing bool      `json:"isOutgoing"`
	TellTarget string    `json:"tellTarget,omitempty"` // for tells, the other party
}

// ConversationID keys the conversation a message belongs to: the channel
// name, or "tell:<name>" for direct messages.
func (m *ChatMessage) ConversationID() string {
	if m.Channel == ChannelTell {
		target := m.TellTarget
		if target == "" {
			target = "unknown"
		}
		return "tell:" + strings.ToLower(target)
	}
	return string(m.Channel)
}

// TimePeriod is a span during which game time was not advancing for the
// character (logged out, or sitting on a loading screen). Used only while
// reconstructing timers from history.
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// Duration returns the period's length.
func (p TimePeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// TimeAfter returns how much of the period falls after t.
func (p TimePeriod) TimeAfter(t time.Time) time.Duration {
	if !t.Before(p.End) {
		return 0
	}
	if !t.After(p.Start) {
		return p.Duration()
	}
	return p.End.Sub(t)
}
