package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/flashread/internal/domain/words"
)

func TestManager_Document(t *testing.T) {
	m := New("session-1")

	assert.Equal(t, "session-1", m.GetSessionID())
	assert.Equal(t, PhaseEmpty, m.GetPhase())
	_, ok := m.GetDocument()
	assert.False(t, ok)

	m.SetDocument(words.Document{Name: "a.txt", Words: words.Tokenize("x y")})

	assert.Equal(t, PhaseLoaded, m.GetPhase())
	doc, ok := m.GetDocument()
	require.True(t, ok)
	assert.Equal(t, "a.txt", doc.Name)
	assert.Equal(t, 2, doc.WordCount())
}

func TestManager_Stats(t *testing.T) {
	m := New("session-1")
	m.SetDocument(words.Document{Name: "a.txt"})

	m.RecordStart()
	m.RecordStart()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.RecordCompletion(at)

	stats := m.GetStats()
	assert.Equal(t, 2, stats.Started)
	assert.Equal(t, 1, stats.Completed)
	require.NotNil(t, stats.LastCompletedAt)
	assert.Equal(t, at, *stats.LastCompletedAt)

	// A new document starts over
	m.SetDocument(words.Document{Name: "b.txt"})
	assert.Equal(t, RunStats{}, m.GetStats())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "empty", PhaseEmpty.String())
	assert.Equal(t, "loaded", PhaseLoaded.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
