package processmgr

import (
	"bytes"
	"strings"
	"sync"
)

const (
	// DefaultDiagnosticLines bounds the per-run stderr history.
	DefaultDiagnosticLines = 200

	// maxLineBytes caps a single unterminated line; longer output is split.
	maxLineBytes = 64 * 1024
)

// logBuffer is a thread-safe circular buffer of stderr lines with O(1) append
// and O(N) read. It implements io.Writer so it can be handed to exec.Cmd as
// the child's stderr; bytes are split on '\n' and a trailing '\r' is dropped.
type logBuffer struct {
	entries []string
	head    int // next write position
	size    int // current number of entries
	pending []byte
	mu      sync.RWMutex
}

func newLogBuffer(capacity int) *logBuffer {
	if capacity <= 0 {
		capacity = DefaultDiagnosticLines
	}
	return &logBuffer{entries: make([]string, capacity)}
}

// Write appends complete lines and keeps a partial tail for the next call.
func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			b.pending = append(b.pending, p...)
			if len(b.pending) >= maxLineBytes {
				b.appendLocked(string(b.pending))
				b.pending = b.pending[:0]
			}
			break
		}
		b.pending = append(b.pending, p[:i]...)
		b.appendLocked(string(b.pending))
		b.pending = b.pending[:0]
		p = p[i+1:]
	}
	return n, nil
}

// Flush turns an unterminated tail into a line. Called once the child is reaped.
func (b *logBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) > 0 {
		b.appendLocked(string(b.pending))
		b.pending = b.pending[:0]
	}
}

// Append adds a line, overwriting the oldest when full.
func (b *logBuffer) Append(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(entry)
}

func (b *logBuffer) appendLocked(entry string) {
	entry = strings.TrimRight(entry, "\r")
	capN := len(b.entries)
	b.entries[b.head] = entry
	b.head = (b.head + 1) % capN
	if b.size < capN {
		b.size++
	}
}

// Read returns the last N lines (newest → oldest) in a new slice.
// lines <= 0 or above capacity returns everything buffered.
func (b *logBuffer) Read(lines int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	capN := len(b.entries)
	if b.size == 0 {
		return nil
	}
	if lines <= 0 || lines > capN {
		lines = capN
	}
	n := min(b.size, lines)

	result := make([]string, n)
	newest := (b.head - 1 + capN) % capN
	for i := 0; i < n; i++ {
		result[i] = b.entries[(newest-i+capN)%capN]
	}
	return result
}

// Last returns the newest non-blank line, or "".
func (b *logBuffer) Last() string {
	for _, l := range b.Read(0) {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}
