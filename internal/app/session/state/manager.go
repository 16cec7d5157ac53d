package state

import (
	"sync"
	"time"

	"github.com/osa030/flashread/internal/domain/words"
)

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string

	// Loaded document
	phase    Phase
	document *words.Document

	// Runs of the current document
	stats RunStats
}

// New creates a new state manager.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID: sessionID,
		phase:     PhaseEmpty,
	}
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// GetPhase returns the current phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetDocument records a newly loaded document and resets the run statistics.
func (m *Manager) SetDocument(doc words.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.document = &doc
	m.phase = PhaseLoaded
	m.stats = RunStats{}
}

// GetDocument returns the loaded document.
func (m *Manager) GetDocument() (words.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.document == nil {
		return words.Document{}, false
	}
	return *m.document, true
}

// RecordStart counts a started run.
func (m *Manager) RecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Started++
}

// RecordCompletion counts a run that reached the last word.
func (m *Manager) RecordCompletion(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Completed++
	m.stats.LastCompletedAt = &at
}

// GetStats returns the run statistics.
func (m *Manager) GetStats() RunStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
