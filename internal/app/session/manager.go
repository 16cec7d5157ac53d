// Package session provides the reading session manager.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flashread/internal/app/document"
	"github.com/osa030/flashread/internal/app/filter"
	"github.com/osa030/flashread/internal/app/notification"
	"github.com/osa030/flashread/internal/app/playback"
	"github.com/osa030/flashread/internal/app/rate"
	"github.com/osa030/flashread/internal/app/session/state"
	"github.com/osa030/flashread/internal/infra/config"
)

// Result codes
const (
	CodeSuccess           = "success"
	CodeInvalidRate       = "invalid_rate"
	CodeNoDocument        = "no_document"
	CodeReadingInProgress = "reading_in_progress"
	CodeAlreadyStarted    = "already_started"
	CodeNotReading        = "not_reading"
	CodeNotPaused         = "not_paused"
	CodeAlreadyStopped    = "already_stopped"
)

// ErrSessionClosed is returned for operations on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// Result is the outcome of a control operation.
type Result struct {
	Success bool
	Code    string
	Message string
}

// Status is a snapshot of the session.
type Status struct {
	SessionID       string
	Phase           state.Phase
	State           playback.State
	Cursor          int
	Total           int
	WPM             int
	Delay           time.Duration
	CurrentWord     string
	Remaining       time.Duration // Time left to reveal the remaining words
	DocumentName    string
	MIMEType        string
	LoadedAt        time.Time
	RunsStarted     int
	RunsCompleted   int
	LastCompletedAt *time.Time
	SubscriberCount int
}

// Manager manages the reading session.
type Manager struct {
	mu sync.Mutex

	// Configuration
	config *config.Config

	// Components
	stateMgr     *state.Manager
	playback     *playback.Controller
	filterChain  *filter.Chain
	sizeLimit    *filter.SizeLimitFilter // nil when disabled
	notification *notification.Manager

	closed bool
	done   chan struct{}
}

// NewManager creates a new session manager.
// A nil scheduler uses real timers.
func NewManager(cfg *config.Config, scheduler playback.Scheduler) *Manager {
	m := &Manager{
		config:       cfg,
		stateMgr:     state.New(uuid.New().String()),
		filterChain:  filter.NewChain(),
		notification: notification.NewManager(time.Duration(cfg.Notifications.SendTimeoutMs) * time.Millisecond),
		done:         make(chan struct{}),
	}

	m.playback = playback.NewController(playback.Config{
		Scheduler: scheduler,
		Callbacks: playback.Callbacks{
			OnWordShown:       m.onWordShown,
			OnStateChanged:    m.onStateChanged,
			OnCompleted:       m.onCompleted,
			OnCleared:         m.onCleared,
			OnValidationError: m.onValidationError,
		},
	})

	m.setupFilters()

	return m
}

// setupFilters initializes the filter chain.
func (m *Manager) setupFilters() {
	// TextOnlyFilter is always on
	m.filterChain.Add(&filter.TextOnlyFilter{})

	if m.config.IsFilterEnabled("size_limit_filter") {
		f := filter.NewSizeLimitFilter()
		if err := f.ValidateConfig(m.config.GetFilterSettings("size_limit_filter")); err != nil {
			zlog.Error().Msgf("failed to validate size limit filter config: %v", err)
		} else {
			m.filterChain.Add(f)
			m.sizeLimit = f
		}
	}

	if m.config.IsFilterEnabled("word_limit_filter") {
		f := filter.NewWordLimitFilter()
		if err := f.ValidateConfig(m.config.GetFilterSettings("word_limit_filter")); err != nil {
			zlog.Error().Msgf("failed to validate word limit filter config: %v", err)
		} else {
			m.filterChain.Add(f)
		}
	}
}

// MaxDocumentBytes returns the largest accepted upload, or 0 when unlimited.
func (m *Manager) MaxDocumentBytes() int {
	if m.sizeLimit == nil {
		return 0
	}
	return m.sizeLimit.MaxBytes()
}

// LoadDocument loads a document for reading. Loading is only accepted while stopped.
func (m *Manager) LoadDocument(ctx context.Context, name string, data []byte) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Result{}, ErrSessionClosed
	}

	// Oversized uploads are rejected before tokenizing
	if limit := m.MaxDocumentBytes(); limit > 0 && len(data) > limit {
		zlog.Info().Msgf("document rejected: name=%s size=%d code=document_too_large", name, len(data))
		return m.reject("document_too_large"), nil
	}

	doc, err := document.Load(name, data)
	if err != nil {
		if errors.Is(err, document.ErrNoDocument) {
			return m.reject(CodeNoDocument), nil
		}
		return Result{}, errors.Wrap(err, "failed to load document")
	}

	if result := m.filterChain.Execute(ctx, &doc); !result.Accepted {
		zlog.Info().Msgf("document rejected: name=%s mime=%s size=%d code=%s", doc.Name, doc.MIMEType, doc.Size, result.Code)
		return m.reject(result.Code), nil
	}

	if err := m.playback.Load(doc.Words); err != nil {
		if errors.Is(err, playback.ErrNotStopped) {
			return m.reject(CodeReadingInProgress), nil
		}
		return Result{}, errors.Wrap(err, "failed to load words")
	}

	m.stateMgr.SetDocument(doc)
	zlog.Info().Msgf("document loaded: name=%s mime=%s size=%d words=%d", doc.Name, doc.MIMEType, doc.Size, doc.WordCount())

	message := fmt.Sprintf("Loaded %s (%d words)", doc.Name, doc.WordCount())
	m.notification.Broadcast(notification.Notification{
		Type:    notification.TypeDocumentLoaded,
		Total:   doc.WordCount(),
		State:   playback.StateStopped.String(),
		Message: message,
	})

	return Result{Success: true, Code: CodeSuccess, Message: message}, nil
}

// Start starts reading from the first word.
// An empty rate uses the configured default.
func (m *Manager) Start(rawWPM string) (Result, error) {
	if m.isClosed() {
		return Result{}, ErrSessionClosed
	}

	if rawWPM == "" {
		rawWPM = strconv.Itoa(m.config.Reading.DefaultWPM)
	}

	if err := m.playback.Start(rawWPM); err != nil {
		switch {
		case errors.Is(err, playback.ErrNotStopped):
			return m.reject(CodeAlreadyStarted), nil
		case errors.Is(err, rate.ErrInvalidRateInput) || errors.Is(err, rate.ErrInvalidRateValue):
			return m.reject(CodeInvalidRate), nil
		case errors.Is(err, playback.ErrClosed):
			return Result{}, ErrSessionClosed
		}
		return Result{}, err
	}

	m.stateMgr.RecordStart()
	return m.accept(), nil
}

// Pause pauses reading.
func (m *Manager) Pause() Result {
	if !m.playback.Pause() {
		return m.reject(CodeNotReading)
	}
	return m.accept()
}

// Resume resumes paused reading.
func (m *Manager) Resume() Result {
	if !m.playback.Resume() {
		return m.reject(CodeNotPaused)
	}
	return m.accept()
}

// Stop stops reading and rewinds to the first word.
func (m *Manager) Stop() Result {
	if !m.playback.Stop() {
		return m.reject(CodeAlreadyStopped)
	}
	return m.accept()
}

// SetRate changes the reading rate.
func (m *Manager) SetRate(rawWPM string) (Result, error) {
	if err := m.playback.SetRate(rawWPM); err != nil {
		if errors.Is(err, playback.ErrClosed) {
			return Result{}, ErrSessionClosed
		}
		return m.reject(CodeInvalidRate), nil
	}
	return m.accept(), nil
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	status := m.readingStatus()
	status.SubscriberCount = m.notification.SubscriberCount()
	return status
}

// readingStatus builds the status without touching the notification manager.
func (m *Manager) readingStatus() Status {
	snap := m.playback.Snapshot()
	stats := m.stateMgr.GetStats()

	status := Status{
		SessionID:       m.stateMgr.GetSessionID(),
		Phase:           m.stateMgr.GetPhase(),
		State:           snap.State,
		Cursor:          snap.Cursor,
		Total:           snap.Total,
		WPM:             snap.WPM,
		Delay:           snap.Delay,
		CurrentWord:     snap.CurrentWord,
		RunsStarted:     stats.Started,
		RunsCompleted:   stats.Completed,
		LastCompletedAt: stats.LastCompletedAt,
	}
	if snap.State != playback.StateStopped {
		status.Remaining = time.Duration(snap.Total-snap.Cursor) * snap.Delay
	}

	if doc, ok := m.stateMgr.GetDocument(); ok {
		status.DocumentName = doc.Name
		status.MIMEType = doc.MIMEType
		status.LoadedAt = doc.LoadedAt
		if snap.State == playback.StateStopped {
			status.Remaining = doc.ReadingTime(snap.Delay)
		}
	}

	return status
}

// Subscribe registers a stream for notifications.
// The stream first receives the current status.
func (m *Manager) Subscribe(stream notification.Stream) (string, error) {
	if m.isClosed() {
		return "", ErrSessionClosed
	}

	id := m.notification.SubscribeWithInitial(stream, func() notification.Notification {
		status := m.readingStatus()
		return notification.Notification{
			Type:  notification.TypeStatus,
			Word:  status.CurrentWord,
			Index: status.Cursor,
			Total: status.Total,
			State: status.State.String(),
		}
	})
	return id, nil
}

// Unsubscribe removes a notification subscription.
func (m *Manager) Unsubscribe(id string) {
	m.notification.Unsubscribe(id)
}

// SubscriptionDone returns a channel closed when the subscription ends,
// including when a stuck or failing subscriber is evicted.
func (m *Manager) SubscriptionDone(id string) <-chan struct{} {
	return m.notification.Done(id)
}

// GetMessage returns the configured message for a result code.
func (m *Manager) GetMessage(code string) string {
	return m.config.GetMessage(code)
}

// Done returns a channel closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops reading and drops all subscribers.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.playback.Close()
	m.notification.Close()
	close(m.done)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) accept() Result {
	return Result{Success: true, Code: CodeSuccess, Message: m.config.GetMessage(CodeSuccess)}
}

func (m *Manager) reject(code string) Result {
	return Result{Success: false, Code: code, Message: m.config.GetMessage(code)}
}

// Playback callbacks. They run outside the controller lock.

func (m *Manager) onWordShown(word string, index int) {
	m.notification.Broadcast(notification.Notification{
		Type:  notification.TypeWordShown,
		Word:  word,
		Index: index,
		Total: m.playback.Len(),
		State: playback.StateReading.String(),
	})
}

func (m *Manager) onStateChanged(s playback.State) {
	zlog.Info().Msgf("reading state changed: state=%s", s)
	m.notification.Broadcast(notification.Notification{
		Type:  notification.TypeStateChanged,
		Total: m.playback.Len(),
		State: s.String(),
	})
}

func (m *Manager) onCompleted() {
	m.stateMgr.RecordCompletion(time.Now())
	zlog.Info().Msgf("reading completed: words=%d", m.playback.Len())
	m.notification.Broadcast(notification.Notification{
		Type:  notification.TypeCompleted,
		Total: m.playback.Len(),
		State: playback.StateStopped.String(),
	})
}

func (m *Manager) onCleared() {
	m.notification.Broadcast(notification.Notification{
		Type:  notification.TypeCleared,
		Total: m.playback.Len(),
		State: playback.StateStopped.String(),
	})
}

func (m *Manager) onValidationError(message string) {
	zlog.Warn().Msgf("rate rejected: %s", message)
	m.notification.Broadcast(notification.Notification{
		Type:    notification.TypeValidationError,
		State:   m.playback.State().String(),
		Message: m.config.GetMessage(CodeInvalidRate),
	})
}
