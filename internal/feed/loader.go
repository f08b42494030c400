// Package feed drives a PageFetcher into one growing, ordered photo sequence.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/timmy/photogrid/internal/domain"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/source"
)

var (
	// ErrBusy is returned when a fetch for the current page is already in flight.
	ErrBusy = errors.New("feed: fetch already in flight")
	// ErrExhausted is returned when the feed ended under EmptyPageEnd.
	ErrExhausted = errors.New("feed: exhausted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("feed: closed")
	// ErrDiscarded is returned by LoadNextWait when a restart or Close
	// superseded the fetch it was waiting on.
	ErrDiscarded = errors.New("feed: fetch result discarded")
)

// EmptyPagePolicy decides what an empty page means.
type EmptyPagePolicy string

const (
	// EmptyPageContinue treats an empty page as "no more data for now":
	// the cursor moves on and a later LoadNext fetches the next page.
	EmptyPageContinue EmptyPagePolicy = "continue"
	// EmptyPageEnd treats an empty page as the end of the feed until Start.
	EmptyPageEnd EmptyPagePolicy = "end"
)

// ParseEmptyPagePolicy parses a policy name; empty means EmptyPageContinue.
func ParseEmptyPagePolicy(s string) (EmptyPagePolicy, error) {
	switch EmptyPagePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmptyPageContinue:
		return EmptyPageContinue, nil
	case EmptyPageEnd:
		return EmptyPageEnd, nil
	default:
		return "", fmt.Errorf("unknown empty page policy %q", s)
	}
}

// Sink receives accumulated pages. grid.State implements it.
type Sink interface {
	ApplyPage(page *domain.Page)
	Reset()
}

// Update describes one settled fetch.
type Update struct {
	PageNumber int           `json:"page_number"`
	Added      int           `json:"added"`
	Total      int           `json:"total"`
	Exhausted  bool          `json:"exhausted"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Failed reports whether the fetch failed.
func (u Update) Failed() bool {
	return u.Err != nil
}

// Status is a point-in-time view of the loader.
type Status struct {
	NextPage  int   `json:"next_page"`
	InFlight  bool  `json:"in_flight"`
	Exhausted bool  `json:"exhausted"`
	Loaded    int   `json:"loaded"`
	Closed    bool  `json:"closed"`
	LastErr   error `json:"-"`
}

// Options configures a Loader.
type Options struct {
	EmptyPagePolicy EmptyPagePolicy
	// OnUpdate is called on the fetch goroutine after every settled fetch
	// that was not discarded. It must not call Close.
	OnUpdate func(Update)
}

// cursor is the page pointer plus the in-flight flag.
type cursor struct {
	nextPage int
	inFlight bool
}

// Loader sequences page requests for one feed.
type Loader struct {
	fetcher source.PageFetcher
	sink    Sink
	policy  EmptyPagePolicy
	notify  func(Update)

	// lifetime is cancelled by Close; every fetch derives from it.
	lifetime context.Context
	stop     context.CancelFunc

	mu          sync.Mutex
	cur         cursor
	records     []domain.PhotoRecord
	exhausted   bool
	closed      bool
	lastErr     error
	generation  uint64
	cancelFetch context.CancelFunc
	wg          sync.WaitGroup
}

// NewLoader creates a loader bound to parent's lifetime.
// Parameters:
//   - parent: context whose cancellation tears the loader down.
//   - fetcher: page source.
//   - sink: receiver of appended pages; may be nil.
//   - opts: policy and update hook; nil uses defaults.
//
// Returns:
//   - *Loader: loader positioned at page 1, not yet started.
func NewLoader(parent context.Context, fetcher source.PageFetcher, sink Sink, opts *Options) *Loader {
	if opts == nil {
		opts = &Options{}
	}
	policy := opts.EmptyPagePolicy
	if policy == "" {
		policy = EmptyPageContinue
	}
	lifetime, stop := context.WithCancel(parent)
	return &Loader{
		fetcher:  fetcher,
		sink:     sink,
		policy:   policy,
		notify:   opts.OnUpdate,
		lifetime: lifetime,
		stop:     stop,
		cur:      cursor{nextPage: 1},
	}
}

// Start resets the feed to page 1 and requests the first page.
// An in-flight fetch from before the reset is cancelled and its result dropped.
func (l *Loader) Start() bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.generation++
	if l.cancelFetch != nil {
		l.cancelFetch()
		l.cancelFetch = nil
	}
	l.cur = cursor{nextPage: 1}
	l.records = nil
	l.exhausted = false
	l.lastErr = nil
	if l.sink != nil {
		l.sink.Reset()
	}
	l.mu.Unlock()

	return l.LoadNext()
}

// LoadNext requests the page under the cursor.
// Returns false without fetching when a fetch is in flight, the feed is
// exhausted, or the loader is closed.
func (l *Loader) LoadNext() bool {
	_, err := l.launch()
	return err == nil
}

// LoadNextWait requests the page under the cursor and waits for it to settle.
// Parameters:
//   - ctx: bounds only the wait; the fetch belongs to the loader.
//
// Returns:
//   - Update: result of the fetch.
//   - error: ErrBusy, ErrExhausted, ErrClosed, ErrDiscarded, or ctx.Err()
//     when the wait is abandoned; fetch failures are reported in Update.Err.
func (l *Loader) LoadNextWait(ctx context.Context) (Update, error) {
	done, err := l.launch()
	if err != nil {
		return Update{}, err
	}
	select {
	case u, ok := <-done:
		if !ok {
			return Update{}, ErrDiscarded
		}
		return u, nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

// Records returns a copy of the accumulated sequence.
func (l *Loader) Records() []domain.PhotoRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.PhotoRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Status returns the current cursor and outcome flags.
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		NextPage:  l.cur.nextPage,
		InFlight:  l.cur.inFlight,
		Exhausted: l.exhausted,
		Loaded:    len(l.records),
		Closed:    l.closed,
		LastErr:   l.lastErr,
	}
}

// Close cancels any in-flight fetch and waits for it to return.
// Results arriving after Close are discarded.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.generation++
	l.mu.Unlock()

	l.stop()
	l.wg.Wait()
}

// launch marks the cursor in flight and starts the fetch goroutine.
// The returned channel receives the update, or is closed if the result is discarded.
func (l *Loader) launch() (<-chan Update, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return nil, ErrClosed
	case l.cur.inFlight:
		return nil, ErrBusy
	case l.exhausted:
		return nil, ErrExhausted
	}

	l.cur.inFlight = true
	pageNumber := l.cur.nextPage
	gen := l.generation
	ctx, cancel := context.WithCancel(l.lifetime)
	l.cancelFetch = cancel
	done := make(chan Update, 1)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		l.run(ctx, gen, pageNumber, done)
	}()
	return done, nil
}

func (l *Loader) run(ctx context.Context, gen uint64, pageNumber int, done chan<- Update) {
	ctx = logger.SetComponent(ctx, "feed")
	ctx = logger.WithField(ctx, logger.FieldPage, pageNumber)

	start := time.Now()
	page, err := l.fetcher.Fetch(ctx, pageNumber)
	elapsed := time.Since(start)

	u, ok := l.settle(gen, pageNumber, page, err, elapsed)
	if !ok {
		logger.CtxDebug(ctx, "Discarded result of abandoned fetch")
		close(done)
		return
	}

	if u.Err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: elapsed.Milliseconds(),
			logger.FieldStatus:     string(source.KindOf(u.Err)),
		}).Warn(ctx, "Page fetch failed: %v", u.Err)
	} else {
		logger.With(logger.Fields{
			logger.FieldDurationMs: elapsed.Milliseconds(),
			logger.FieldCount:      u.Added,
		}).Debug(ctx, "Page fetched")
	}

	if l.notify != nil {
		l.notify(u)
	}
	done <- u
}

// settle applies a fetch result if it still belongs to the live feed.
// The in-flight flag is cleared on success and on failure alike.
func (l *Loader) settle(gen uint64, pageNumber int, page *domain.Page, err error, elapsed time.Duration) (Update, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation || l.closed {
		return Update{}, false
	}
	l.cur.inFlight = false
	l.cancelFetch = nil

	if err == nil && page == nil {
		err = source.Permanent(pageNumber, 0, errors.New("fetcher returned no page"))
	}
	if source.IsCancelled(err) {
		return Update{}, false
	}

	u := Update{PageNumber: pageNumber, Duration: elapsed}
	if err != nil {
		l.lastErr = err
		u.Err = err
		u.Total = len(l.records)
		return u, true
	}

	l.lastErr = nil
	// The cursor moves one page per completed fetch whatever token the page carries.
	l.cur.nextPage = pageNumber + 1
	l.records = append(l.records, page.Records...)
	if page.Empty() && l.policy == EmptyPageEnd {
		l.exhausted = true
	}
	if l.sink != nil {
		l.sink.ApplyPage(page)
	}
	u.Added = len(page.Records)
	u.Total = len(l.records)
	u.Exhausted = l.exhausted
	return u, true
}
