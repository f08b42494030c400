// Package session ties one feed loader and one grid state to a screen session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/photogrid/internal/domain"
	"github.com/timmy/photogrid/internal/feed"
	"github.com/timmy/photogrid/internal/grid"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/source"
)

const recordTimeout = 5 * time.Second

var (
	// ErrNotFound is returned for unknown or closed session ids.
	ErrNotFound = errors.New("session: not found")
	// ErrManagerClosed is returned by Open after CloseAll.
	ErrManagerClosed = errors.New("session: manager closed")
)

// AttemptRecorder journals settled fetches.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt *domain.FetchAttempt) error
}

// Options configures every session a Manager opens.
type Options struct {
	EmptyPagePolicy feed.EmptyPagePolicy
	Dedupe          bool
	// Recorder is optional; nil disables the journal.
	Recorder AttemptRecorder
}

// Session is one screen session: a feed and the grid it fills.
type Session struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Grid      *grid.State  `json:"-"`
	Loader    *feed.Loader `json:"-"`
}

// View is the combined grid and loader state of a session.
type View struct {
	ID       string        `json:"id"`
	Snapshot grid.Snapshot `json:"snapshot"`
	Status   feed.Status   `json:"status"`
}

// View returns the current snapshot and loader status.
func (s *Session) View() View {
	return View{ID: s.ID, Snapshot: s.Grid.Snapshot(), Status: s.Loader.Status()}
}

func (s *Session) close() {
	s.Loader.Close()
	s.Grid.Dispose()
}

// Manager owns the live sessions.
type Manager struct {
	fetcher source.PageFetcher
	opts    Options

	// base outlives requests; session loaders derive from it.
	base context.Context

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a session manager.
// Parameters:
//   - base: context whose cancellation ends every session's fetches.
//   - fetcher: page source shared by all sessions.
//   - opts: per-session options; nil uses defaults.
//
// Returns:
//   - *Manager: manager with no sessions.
func NewManager(base context.Context, fetcher source.PageFetcher, opts *Options) *Manager {
	if opts == nil {
		opts = &Options{}
	}
	return &Manager{
		fetcher:  fetcher,
		opts:     *opts,
		base:     base,
		sessions: make(map[string]*Session),
	}
}

// JournalEnabled reports whether settled fetches are recorded.
func (m *Manager) JournalEnabled() bool {
	return m.opts.Recorder != nil
}

// Open creates a session and starts its feed.
// ctx only scopes logging; the session lives until Close.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	id := uuid.New().String()
	state := grid.New(grid.WithDedupe(m.opts.Dedupe))
	sess := &Session{ID: id, CreatedAt: time.Now(), Grid: state}

	loaderCtx := logger.SetSessionID(m.base, id)
	sess.Loader = feed.NewLoader(loaderCtx, m.fetcher, state, &feed.Options{
		EmptyPagePolicy: m.opts.EmptyPagePolicy,
		OnUpdate:        m.journal(loaderCtx, id),
	})
	m.sessions[id] = sess
	m.mu.Unlock()

	sess.Loader.Start()
	logger.CtxInfo(logger.SetSessionID(ctx, id), "Session opened: source=%s", m.fetcher.GetSourceID())
	return sess, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears a session down: its loader is closed and its grid disposed.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	sess.close()
	logger.GetDefault().WithField(logger.FieldSessionID, id).Info("Session closed")
	return nil
}

// CloseAll tears down every session and rejects further Opens.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.close()
		}(sess)
	}
	wg.Wait()
	if len(sessions) > 0 {
		logger.Info("Closed %d sessions", len(sessions))
	}
}

// journal returns the update hook that records each settled fetch.
func (m *Manager) journal(ctx context.Context, sessionID string) func(feed.Update) {
	recorder := m.opts.Recorder
	if recorder == nil {
		return nil
	}
	return func(u feed.Update) {
		attempt := &domain.FetchAttempt{
			SessionID:   sessionID,
			PageNumber:  u.PageNumber,
			Outcome:     Outcome(u),
			RecordCount: u.Added,
			DurationMs:  u.Duration.Milliseconds(),
		}
		if u.Err != nil {
			attempt.Error = u.Err.Error()
		}

		// The loader context may already be winding down; the write gets its own deadline.
		recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := recorder.Record(recordCtx, attempt); err != nil {
			logger.CtxWarn(ctx, "Failed to record fetch attempt for page %d: %v", u.PageNumber, err)
		}
	}
}

// Outcome classifies a settled update for the journal.
func Outcome(u feed.Update) domain.AttemptOutcome {
	switch {
	case u.Err == nil && u.Added == 0:
		return domain.AttemptOutcomeEmpty
	case u.Err == nil:
		return domain.AttemptOutcomeOK
	case source.IsPermanent(u.Err):
		return domain.AttemptOutcomePermanent
	default:
		return domain.AttemptOutcomeTransient
	}
}
