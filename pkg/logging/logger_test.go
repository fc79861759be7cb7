package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer makes bytes.Buffer safe against the writer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogger_TextFormat(t *testing.T) {
	out := &syncBuffer{}
	l := New(Config{Output: out})

	l.Info("node", "service registered", map[string]interface{}{"service": "clock"})
	l.Close()

	got := out.String()
	assert.Contains(t, got, "[INFO]")
	assert.Contains(t, got, "node: service registered")
	assert.Contains(t, got, "service=clock")
}

func TestLogger_JSONFormat(t *testing.T) {
	out := &syncBuffer{}
	l := New(Config{Output: out, Format: JSONFormat})

	l.Warn("transport", "write failed", nil)
	l.Close()

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "transport", entry.Category)
	assert.Equal(t, "write failed", entry.Message)
	assert.Equal(t, l.SessionID(), entry.SessionID)
}

func TestLogger_MinLevelFilters(t *testing.T) {
	out := &syncBuffer{}
	l := New(Config{Output: out, MinLevel: WARN})

	l.Debug("x", "dropped", nil)
	l.Info("x", "dropped too", nil)
	l.Error("x", "kept", nil)
	l.Close()

	got := out.String()
	assert.NotContains(t, got, "dropped")
	assert.Contains(t, got, "kept")
}

func TestLogger_CloseIsIdempotentAndSafe(t *testing.T) {
	out := &syncBuffer{}
	l := New(Config{Output: out})
	l.Close()
	l.Close()
	// Logging after close must not panic.
	l.Info("x", "ignored", nil)
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
