// Package logger provides the per-session transcript that ends up as
// the test_log artifact next to the reports.
package logger

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"
)

const stampFormat = "2006/01/02 15:04:05 "

// SessionLogger collects the human-readable transcript of one probe
// session. Concurrent probe workers share a single instance, so every
// write goes through the mutex.
type SessionLogger struct {
	mu  sync.Mutex
	buf bytes.Buffer
	id  string
}

// NewSessionLogger creates a new logger for a test session.
func NewSessionLogger(id string) *SessionLogger {
	return &SessionLogger{id: id}
}

// Section starts a probe section in the transcript.
func (l *SessionLogger) Section(format string, v ...interface{}) {
	l.Printf("=== "+format, v...)
}

// Printf appends a timestamped line.
func (l *SessionLogger) Printf(format string, v ...interface{}) {
	l.write(fmt.Sprintf(format, v...))
}

// Print appends a timestamped line.
func (l *SessionLogger) Print(v ...interface{}) {
	l.write(fmt.Sprint(v...))
}

func (l *SessionLogger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.WriteString(time.Now().Format(stampFormat))
	l.buf.WriteString(line)

	if !strings.HasSuffix(line, "\n") {
		l.buf.WriteByte('\n')
	}
}

// GetID returns the session ID.
func (l *SessionLogger) GetID() string {
	return l.id
}

// Contents returns a copy of the transcript so far. Safe to call while
// probes are still writing.
func (l *SessionLogger) Contents() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]byte, l.buf.Len())
	copy(out, l.buf.Bytes())

	return out
}
