// Package grid holds the photo grid state a screen renders from.
package grid

import (
	"sync"

	"github.com/timmy/photogrid/internal/domain"
)

// Option configures a State.
type Option func(*State)

// WithDedupe drops records whose id is already present in the grid.
// Off by default: overlapping pages pass through unchanged.
func WithDedupe(enabled bool) Option {
	return func(s *State) {
		s.dedupe = enabled
	}
}

// State is the single source of truth for what a grid renders.
// Mutations come from one logical owner; readers use Snapshot or Subscribe.
type State struct {
	mu         sync.RWMutex
	items      []domain.PhotoRecord
	seen       map[string]struct{}
	selectedID string
	version    uint64
	dedupe     bool
	disposed   bool
	subs       map[int]chan Snapshot
	nextSubID  int
}

// New creates an empty grid state.
func New(opts ...Option) *State {
	s := &State{
		seen: make(map[string]struct{}),
		subs: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyPage appends the page's records in order.
// Parameters:
//   - page: fetched page; nil or empty pages still publish a snapshot.
//
// Returns: none.
func (s *State) ApplyPage(page *domain.Page) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if page != nil {
		for _, rec := range page.Records {
			if s.dedupe {
				if _, ok := s.seen[rec.ID]; ok {
					continue
				}
			}
			s.seen[rec.ID] = struct{}{}
			s.items = append(s.items, rec)
		}
	}
	s.publishLocked()
	s.mu.Unlock()
}

// Select sets the focused photo id. An empty id clears the selection.
// The id is not checked against the loaded items.
func (s *State) Select(id string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.selectedID = id
	s.publishLocked()
	s.mu.Unlock()
}

// Reset clears items and selection.
func (s *State) Reset() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.items = nil
	s.seen = make(map[string]struct{})
	s.selectedID = ""
	s.publishLocked()
	s.mu.Unlock()
}

// Snapshot returns an immutable view of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of items currently held.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers a snapshot observer.
// The channel holds only the latest snapshot; a slow reader skips
// intermediate versions. The current snapshot is delivered immediately.
// Returns:
//   - <-chan Snapshot: delivery channel, closed on cancel or Dispose.
//   - func(): cancel function; safe to call more than once.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.disposed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Dispose ends the state's lifecycle. Later mutations are ignored and
// all subscriber channels are closed.
func (s *State) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Disposed reports whether Dispose has been called.
func (s *State) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *State) snapshotLocked() Snapshot {
	items := make([]domain.PhotoRecord, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Version:    s.version,
		Items:      items,
		SelectedID: s.selectedID,
	}
}

// publishLocked bumps the version and hands the new snapshot to every
// subscriber, replacing any snapshot it has not read yet.
func (s *State) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
