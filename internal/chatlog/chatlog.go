// Package chatlog persists conversations as plain-text append logs,
// one file per assistant per day.
package chatlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhome/assistant/internal/observability"
)

// Message is one folded chat line for the dashboard history view.
type Message struct {
	Message string `json:"message"`
}

// Log appends conversation lines for one assistant.
type Log struct {
	dir       string
	assistant string
	logger    zerolog.Logger

	mu sync.Mutex

	// test seam
	now func() time.Time
}

// New creates the log directory if needed.
func New(dir, assistant string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chatlog dir: %w", err)
	}
	return &Log{
		dir:       dir,
		assistant: assistant,
		logger:    observability.ComponentLogger("chatlog"),
		now:       time.Now,
	}, nil
}

// filename returns the log file for a date (formatted 2006-01-02).
func (l *Log) filename(date string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_chatlog-%s.txt", l.assistant, date))
}

// Append writes a line to today's log. Write failures are logged, never
// propagated; losing a log line must not fail a session.
func (l *Log) Append(text string) {
	l.appendRaw(text + "\n")
}

// AppendPartial writes text without a trailing newline, so a streamed
// reply can be built up across calls.
func (l *Log) AppendPartial(text string) {
	l.appendRaw(text)
}

func (l *Log) appendRaw(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := l.filename(l.now().Format("2006-01-02"))
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to open chat log")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to append chat log")
	}
}

// User logs the user's side of an exchange.
func (l *Log) User(transcript string) {
	l.Append("")
	l.Append(fmt.Sprintf("You: %s ", transcript))
}

// Assistant logs a complete assistant reply.
func (l *Log) Assistant(assistantName, text string) {
	l.Append(fmt.Sprintf("%s: %s ", assistantName, text))
}

// ForDate returns the folded messages of one day's log. Lines that start
// with neither speaker prefix are continuations of the previous message.
// A missing file yields an empty slice.
func (l *Log) ForDate(date string) []Message {
	f, err := os.Open(l.filename(date))
	if err != nil {
		return []Message{}
	}
	defer f.Close()

	youPrefix := "You: "
	assistantPrefix := l.assistant + ": "

	var folded []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, youPrefix) || hasAssistantPrefix(line, assistantPrefix) {
			folded = append(folded, line)
		} else if len(folded) > 0 {
			folded[len(folded)-1] += "\n" + line
		} else {
			folded = append(folded, line)
		}
	}

	messages := make([]Message, 0, len(folded))
	for _, m := range folded {
		messages = append(messages, Message{Message: strings.TrimSpace(m)})
	}
	return messages
}

// hasAssistantPrefix matches the assistant prefix case-insensitively,
// since profile names are display-cased but log keys are not.
func hasAssistantPrefix(line, prefix string) bool {
	return len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix)
}
