// Package logsink hosts the buffered logging worker: a consumer that
// queues log entries and flushes them to a set of endpoints on a timer,
// on demand, or when the buffer fills up.
package logsink

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Level classifies a log entry.
type Level uint8

const (
	// LevelDebug is diagnostic output.
	LevelDebug Level = iota
	// LevelInfo is routine output.
	LevelInfo
	// LevelWarn is recoverable trouble.
	LevelWarn
	// LevelError is a failure.
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one buffered log record.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   Level             `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// NewEntry stamps an entry with the current time.
func NewEntry(level Level, message string, attrs map[string]string) Entry {
	return Entry{Time: time.Now(), Level: level, Message: message, Attrs: attrs}
}

// Format renders the entry as a single log line.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(e.Time.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, " [%s] %s", e.Level, e.Message)

	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Attrs[k])
		}
	}
	return b.String()
}
