package eqlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// historyChunkSize is how much of the file each backward step reads. Large
// enough to keep seek counts low on multi-gigabyte logs, small enough to
// bound memory during backfill.
const historyChunkSize = 2 * 1024 * 1024

// logoutGap is the silence threshold treated as a logout during history
// reconstruction.
const logoutGap = 5 * time.Minute

// ChatQuotas bounds the count-based chat backfill.
type ChatQuotas struct {
	MaxChannelMessages int // per fixed channel
	MaxDMConversations int // distinct tell partners
}

// quotaChannels are the channels the count-based scan fills independently.
var quotaChannels = []Channel{
	ChannelGuild, ChannelOOC, ChannelGroup, ChannelShout, ChannelAuction,
}

// Scanner reads already-written history from a log file in bounded memory by
// scanning backward in fixed-size chunks. Each scan uses its own Parser so
// in-flight multi-line state never leaks into or out of the live stream.
type Scanner struct {
	path          string
	characterName string
}

// NewScanner creates a history scanner for one character's log file.
func NewScanner(path, characterName string) *Scanner {
	return &Scanner{path: path, characterName: characterName}
}

// LoadRawSince returns every parseable entry with a timestamp at or after
// cutoff, oldest first. The file is walked backward chunk by chunk only far
// enough to find the cutoff boundary, then read forward once.
func (s *Scanner) LoadRawSince(cutoff time.Time) ([]Entry, error) {
	parser := NewParser(s.characterName)

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	start, err := findCutoffOffset(f, parser, cutoff)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = forwardScan(f, start, func(line string) {
		if entry, ok := parser.ParseLine(line); ok {
			if !entry.Timestamp.Before(cutoff) {
				entries = append(entries, entry)
			}
		}
	})
	return entries, err
}

// LoadChatSince returns chat messages with timestamps at or after cutoff,
// oldest first.
func (s *Scanner) LoadChatSince(cutoff time.Time) ([]ChatMessage, error) {
	parser := NewParser(s.characterName)

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	start, err := findCutoffOffset(f, parser, cutoff)
	if err != nil {
		return nil, err
	}

	var messages []ChatMessage
	err = forwardScan(f, start, func(line string) {
		entry, ok := parser.ParseLine(line)
		if !ok || entry.Timestamp.Before(cutoff) {
			return
		}
		if msg := parser.ParseChatMessage(entry); msg != nil {
			messages = append(messages, *msg)
		}
	})
	return messages, err
}

// LoadChatByCount scans backward until every channel quota is satisfied and
// the distinct-DM cap is reached (or the file start is hit), returning the
// collected messages oldest first. Within each chunk, messages are parsed in
// file order but counted newest first, so the quotas keep the most recent
// traffic. Tells are bounded by conversation count, not message count: once
// a partner is admitted, all of their messages in the scanned range are kept.
func (s *Scanner) LoadChatByCount(quotas ChatQuotas) ([]ChatMessage, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek log end: %w", err)
	}

	channelCounts := make(map[Channel]int)
	dmPartners := make(map[string]bool)

	haveEnough := func() bool {
		for _, ch := range quotaChannels {
			if channelCounts[ch] < quotas.MaxChannelMessages {
				return false
			}
		}
		return len(dmPartners) >= quotas.MaxDMConversations
	}

	var messages []ChatMessage // accumulated newest first
	endPos := size

	for endPos > 0 && !haveEnough() {
		chunkStart, lines, err := readChunkBefore(f, endPos)
		if err != nil {
			return nil, err
		}

		// Parse in file order so multi-line sequences resolve, then
		// apply quotas newest first.
		parser := NewParser(s.characterName)
		var chunk []ChatMessage
		for _, line := range lines {
			if entry, ok := parser.ParseLine(line); ok {
				if msg := parser.ParseChatMessage(entry); msg != nil {
					chunk = append(chunk, *msg)
				}
			}
		}

		for i := len(chunk) - 1; i >= 0; i-- {
			msg := chunk[i]
			if msg.Channel == ChannelTell {
				partner := "unknown"
				if msg.TellTarget != "" {
					partner = msg.TellTarget
				}
				key := strings.ToLower(partner)
				if dmPartners[key] || len(dmPartners) < quotas.MaxDMConversations {
					dmPartners[key] = true
					messages = append(messages, msg)
				}
			} else if channelCounts[msg.Channel] < quotas.MaxChannelMessages {
				channelCounts[msg.Channel]++
				messages = append(messages, msg)
			}
		}

		if chunkStart >= endPos {
			break
		}
		endPos = chunkStart
	}

	// Oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// FindLogoutPeriods derives logged-out spans from timestamp gaps in an
// oldest-first entry slice.
func FindLogoutPeriods(entries []Entry) []TimePeriod {
	var periods []TimePeriod
	var last time.Time

	for _, entry := range entries {
		if !last.IsZero() && entry.Timestamp.Sub(last) > logoutGap {
			periods = append(periods, TimePeriod{Start: last, End: entry.Timestamp})
		}
		last = entry.Timestamp
	}
	return periods
}

// FindZonePeriods derives loading-screen spans: a span opens at the first
// loading marker and closes at the next non-loading entry.
func FindZonePeriods(entries []Entry) []TimePeriod {
	parser := NewParser("")
	var periods []TimePeriod
	var loadingStart time.Time
	loading := false

	for _, entry := range entries {
		if parser.IsLoading(entry) {
			if !loading {
				loading = true
				loadingStart = entry.Timestamp
			}
		} else if loading {
			periods = append(periods, TimePeriod{Start: loadingStart, End: entry.Timestamp})
			loading = false
		}
	}
	return periods
}

// findCutoffOffset walks the file backward chunk by chunk and returns the
// byte offset of a line start at or before the first entry older than
// cutoff, or 0 if the whole file is newer.
func findCutoffOffset(f *os.File, parser *Parser, cutoff time.Time) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek log end: %w", err)
	}

	endPos := size
	for endPos > 0 {
		chunkStart, lines, err := readChunkBefore(f, endPos)
		if err != nil {
			return 0, err
		}
		if len(lines) > 0 {
			if entry, ok := parser.ParseLine(lines[0]); ok {
				if entry.Timestamp.Before(cutoff) {
					return chunkStart, nil
				}
			}
		}
		if chunkStart >= endPos {
			break
		}
		endPos = chunkStart
	}
	return 0, nil
}

// readChunkBefore reads the chunk of complete lines ending at endPos. It
// seeks back one chunk, discards the partial line the seek probably landed
// inside (except at the true file start), and returns the offset of the
// first complete line plus every line up to endPos.
func readChunkBefore(f *os.File, endPos int64) (chunkStart int64, lines []string, err error) {
	startPos := endPos - historyChunkSize
	if startPos < 0 {
		startPos = 0
	}
	if _, err := f.Seek(startPos, io.SeekStart); err != nil {
		return 0, nil, fmt.Errorf("seek chunk: %w", err)
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	chunkStart = startPos

	if startPos > 0 {
		skipped, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return endPos, nil, nil
			}
			return 0, nil, fmt.Errorf("skip partial line: %w", err)
		}
		chunkStart += int64(len(skipped))
	}

	pos := chunkStart
	for pos < endPos {
		line, err := reader.ReadString('\n')
		if line != "" {
			pos += int64(len(line))
			lines = append(lines, line)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, nil, fmt.Errorf("read chunk: %w", err)
		}
	}
	return chunkStart, lines, nil
}

// forwardScan reads the file from start to the end, one line at a time.
func forwardScan(f *os.File, start int64, handle func(line string)) error {
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("seek forward scan: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		handle(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("forward scan: %w", err)
	}
	return nil
}
