package eqlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval bounds how long the tailer sleeps when no data is pending.
// fsnotify write events wake it earlier; the timer covers setups where
// notifications are unreliable (network mounts, Wine prefixes).
const pollInterval = 100 * time.Millisecond

// Tailer follows a log file from its current end and feeds every complete
// new line through the handler, one line at a time, in file order. The
// handler runs synchronously on the tail goroutine, so downstream state
// machines see a strictly ordered stream.
type Tailer struct {
	path    string
	parser  *Parser
	handler func(Entry)
}

// NewTailer creates a tailer for path. Parsed entries are passed to handler.
func NewTailer(path string, parser *Parser, handler func(Entry)) *Tailer {
	return &Tailer{path: path, parser: parser, handler: handler}
}

// Run tails the file until ctx is cancelled or a terminal I/O error occurs.
// I/O failures are returned to the caller; the tailer does not retry.
func (t *Tailer) Run(ctx context.Context) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log end: %w", err)
	}

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(t.path); err == nil {
			events = make(chan fsnotify.Event)
			go func() {
				for ev := range watcher.Events {
					if ev.Op&fsnotify.Write != 0 {
						select {
						case events <- ev:
						default:
						}
					}
				}
			}()
		} else {
			log.Printf("tailer: watch %s: %v (falling back to polling)", t.path, err)
		}
	} else {
		log.Printf("tailer: fsnotify unavailable: %v (falling back to polling)", err)
	}

	reader := bufio.NewReader(f)
	var partial strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			text := line
			if partial.Len() > 0 {
				text = partial.String() + line
				partial.Reset()
			}
			if entry, ok := t.parser.ParseLine(text); ok {
				t.handler(entry)
			}
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("read log: %w", err)
		}

		// The file can end mid-line while the client is still writing it.
		// Hold the fragment until the rest arrives.
		if line != "" {
			partial.WriteString(line)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-events:
		case <-time.After(pollInterval):
		}
	}
}
