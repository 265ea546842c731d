package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	_ "modernc.org/sqlite"

	"eqwatch/internal/eqlog"
)

const chatSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	channel TEXT NOT NULL,
	sender TEXT NOT NULL,
	content TEXT NOT NULL,
	is_outgoing INTEGER NOT NULL DEFAULT 0,
	tell_target TEXT NOT NULL DEFAULT '',
	conversation TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_identity
	ON messages(timestamp, sender, content);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation, timestamp);
`

// ChatLog archives chat messages in a local sqlite database. A duplicate is
// any message with the same timestamp, sender, and content as one already
// stored; re-ingesting overlapping history is a no-op.
type ChatLog struct {
	db     *sql.DB
	filter *bloom.BloomFilter
}

// OpenChatLog opens (creating if needed) the chat archive at path and seeds
// the duplicate filter from existing rows.
func OpenChatLog(path string) (*ChatLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chat db: %w", err)
	}
	if _, err := db.Exec(chatSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init chat schema: %w", err)
	}

	c := &ChatLog{
		db:     db,
		filter: bloom.NewWithEstimates(500000, 0.001),
	}

	rows, err := db.Query(`SELECT timestamp, sender, content FROM messages`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed chat filter: %w", err)
	}
	defer rows.Close()

	seeded := 0
	for rows.Next() {
		var ts, sender, content string
		if err := rows.Scan(&ts, &sender, &content); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed chat filter: %w", err)
		}
		c.filter.AddString(messageKey(ts, sender, content))
		seeded++
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed chat filter: %w", err)
	}

	log.Printf("store: chat archive ready, %d messages indexed", seeded)
	return c, nil
}

func (c *ChatLog) Close() error {
	return c.db.Close()
}

func messageKey(timestamp, sender, content string) string {
	return timestamp + "|" + sender + "|" + content
}

// Save stores messages that are not already archived and returns how many
// were new. The bloom filter screens out the bulk of known duplicates; the
// unique index catches its false positives.
func (c *ChatLog) Save(messages []eqlog.ChatMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin chat save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO messages
			(timestamp, channel, sender, content, is_outgoing, tell_target, conversation)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare chat save: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range messages {
		ts := m.Timestamp.Format(time.RFC3339)
		key := messageKey(ts, m.Sender, m.Content)
		if c.filter.TestString(key) {
			// Probably archived already; let the unique index decide.
			var n int
			err := tx.QueryRow(
				`SELECT COUNT(*) FROM messages WHERE timestamp = ? AND sender = ? AND content = ?`,
				ts, m.Sender, m.Content).Scan(&n)
			if err == nil && n > 0 {
				continue
			}
		}
		res, err := stmt.Exec(ts, string(m.Channel), m.Sender, m.Content,
			boolToInt(m.IsOutgoing), m.TellTarget, m.ConversationID())
		if err != nil {
			return 0, fmt.Errorf("save chat message: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
		c.filter.AddString(key)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chat save: %w", err)
	}
	return inserted, nil
}

// Recent returns up to limit messages for a conversation, oldest first.
func (c *ChatLog) Recent(conversationID string, limit int) ([]eqlog.ChatMessage, error) {
	rows, err := c.db.Query(`
		SELECT timestamp, channel, sender, content, is_outgoing, tell_target
		FROM messages
		WHERE conversation = ?
		ORDER BY timestamp DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []eqlog.ChatMessage
	for rows.Next() {
		var ts, channel string
		var m eqlog.ChatMessage
		var outgoing int
		if err := rows.Scan(&ts, &channel, &m.Sender, &m.Content, &outgoing, &m.TellTarget); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		m.Channel = eqlog.Channel(channel)
		m.IsOutgoing = outgoing != 0
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			m.Timestamp = t
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	// Newest-first query for the limit; present oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Conversations lists distinct conversation ids, most recently active first.
func (c *ChatLog) Conversations() ([]string, error) {
	rows, err := c.db.Query(`
		SELECT conversation, MAX(timestamp) AS latest
		FROM messages
		GROUP BY conversation
		ORDER BY latest DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, latest string
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, fmt.Errorf("scan conversations: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
