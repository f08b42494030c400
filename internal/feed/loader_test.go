package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timmy/photogrid/internal/domain"
	"github.com/timmy/photogrid/internal/grid"
	"github.com/timmy/photogrid/internal/source"
)

// scriptedFetcher answers each page from a script and records every call.
type scriptedFetcher struct {
	mu      sync.Mutex
	calls   []int
	pages   map[int][][]string // page -> successive answers
	errs    map[int][]error
	release chan struct{} // when non-nil, Fetch blocks until a value arrives
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		pages: make(map[int][][]string),
		errs:  make(map[int][]error),
	}
}

func (f *scriptedFetcher) answer(page int, ids ...string) *scriptedFetcher {
	f.pages[page] = append(f.pages[page], ids)
	f.errs[page] = append(f.errs[page], nil)
	return f
}

func (f *scriptedFetcher) fail(page int, err error) *scriptedFetcher {
	f.pages[page] = append(f.pages[page], nil)
	f.errs[page] = append(f.errs[page], err)
	return f
}

func (f *scriptedFetcher) GetSourceID() string { return "scripted" }

func (f *scriptedFetcher) Fetch(ctx context.Context, pageNumber int) (*domain.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageNumber)
	var ids []string
	var err error
	if answers := f.pages[pageNumber]; len(answers) > 0 {
		ids, err = answers[0], f.errs[pageNumber][0]
		f.pages[pageNumber] = answers[1:]
		f.errs[pageNumber] = f.errs[pageNumber][1:]
	}
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, source.Cancelled(pageNumber, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}

	records := make([]domain.PhotoRecord, 0, len(ids))
	for _, id := range ids {
		rec, recErr := domain.NewPhotoRecord(id, "t", "s", 4, 3, "u", "")
		if recErr != nil {
			return nil, source.Permanent(pageNumber, 0, recErr)
		}
		records = append(records, rec)
	}
	return domain.NewPage(pageNumber, records), nil
}

func (f *scriptedFetcher) callLog() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.calls))
	copy(out, f.calls)
	return out
}

func recordIDs(items []domain.PhotoRecord) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustLoad(t *testing.T, l *Loader) Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, err := l.LoadNextWait(ctx)
	if err != nil {
		t.Fatalf("LoadNextWait failed: %v", err)
	}
	return u
}

func TestLoader_AccumulatesPagesInOrder(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A", "B", "C").answer(2, "D", "E")
	g := grid.New()
	l := NewLoader(context.Background(), f, g, nil)
	defer l.Close()

	u1 := mustLoad(t, l)
	u2 := mustLoad(t, l)

	if u1.Added != 3 || u2.Added != 2 || u2.Total != 5 {
		t.Errorf("unexpected updates: %+v %+v", u1, u2)
	}

	want := []string{"A", "B", "C", "D", "E"}
	if got := recordIDs(l.Records()); !equalStrings(got, want) {
		t.Errorf("loader records: expected %v, got %v", want, got)
	}
	if got := recordIDs(g.Snapshot().Items); !equalStrings(got, want) {
		t.Errorf("grid items: expected %v, got %v", want, got)
	}
	if l.Status().NextPage != 3 {
		t.Errorf("expected next page 3, got %d", l.Status().NextPage)
	}
}

func TestLoader_SingleFlight(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A")
	f.release = make(chan struct{})
	l := NewLoader(context.Background(), f, nil, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		u   Update
		err error
	}
	first := make(chan result, 1)
	go func() {
		u, err := l.LoadNextWait(ctx)
		first <- result{u, err}
	}()

	// Wait until the first fetch is in flight.
	deadline := time.Now().Add(5 * time.Second)
	for !l.Status().InFlight {
		if time.Now().After(deadline) {
			t.Fatal("fetch never went in flight")
		}
		time.Sleep(time.Millisecond)
	}

	if l.LoadNext() {
		t.Error("expected second LoadNext to be a no-op while in flight")
	}
	if _, err := l.LoadNextWait(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(f.release)
	r := <-first
	if r.err != nil || r.u.Added != 1 {
		t.Fatalf("unexpected first result: %+v %v", r.u, r.err)
	}
	if calls := f.callLog(); !equalInts(calls, []int{1}) {
		t.Errorf("expected exactly one fetch of page 1, got %v", calls)
	}
	if l.Status().InFlight {
		t.Error("expected in-flight flag to be cleared")
	}
}

func TestLoader_FailedPageIsRetried(t *testing.T) {
	f := newScriptedFetcher().
		answer(1, "A").
		fail(2, source.Transient(2, 503, errors.New("unavailable"))).
		answer(2, "B")
	g := grid.New()
	l := NewLoader(context.Background(), f, g, nil)
	defer l.Close()

	mustLoad(t, l)
	failed := mustLoad(t, l)
	if !failed.Failed() || !source.IsTransient(failed.Err) {
		t.Fatalf("expected transient failure, got %+v", failed)
	}
	st := l.Status()
	if st.NextPage != 2 || st.InFlight || st.LastErr == nil {
		t.Errorf("expected cursor to stay at 2 with error recorded, got %+v", st)
	}
	if g.Len() != 1 {
		t.Errorf("expected failure to leave grid untouched, got %d items", g.Len())
	}

	mustLoad(t, l)
	if calls := f.callLog(); !equalInts(calls, []int{1, 2, 2}) {
		t.Errorf("expected page 2 to be fetched again, got %v", calls)
	}
	if got := recordIDs(l.Records()); !equalStrings(got, []string{"A", "B"}) {
		t.Errorf("unexpected records after retry: %v", got)
	}
	if l.Status().LastErr != nil {
		t.Error("expected last error to be cleared after success")
	}
}

func TestLoader_PermanentFailureStaysRetryable(t *testing.T) {
	f := newScriptedFetcher().
		fail(1, source.Permanent(1, 401, errors.New("unauthorized"))).
		fail(1, source.Permanent(1, 401, errors.New("unauthorized")))
	l := NewLoader(context.Background(), f, nil, nil)
	defer l.Close()

	for i := 0; i < 2; i++ {
		u := mustLoad(t, l)
		if !source.IsPermanent(u.Err) {
			t.Fatalf("attempt %d: expected permanent error, got %v", i, u.Err)
		}
	}
	if calls := f.callLog(); !equalInts(calls, []int{1, 1}) {
		t.Errorf("expected page 1 twice, got %v", calls)
	}
}

func TestLoader_EmptyPageContinues(t *testing.T) {
	f := newScriptedFetcher().answer(1).answer(2, "A")
	g := grid.New()
	l := NewLoader(context.Background(), f, g, nil)
	defer l.Close()

	u := mustLoad(t, l)
	if u.Added != 0 || u.Failed() || u.Exhausted {
		t.Errorf("unexpected empty-page update: %+v", u)
	}
	if calls := f.callLog(); !equalInts(calls, []int{1}) {
		t.Errorf("empty page must not trigger further loads, got %v", calls)
	}

	mustLoad(t, l)
	if calls := f.callLog(); !equalInts(calls, []int{1, 2}) {
		t.Errorf("expected page 2 after empty page 1, got %v", calls)
	}
}

func TestLoader_EmptyPageEndPolicy(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A").answer(2).answer(1, "A")
	l := NewLoader(context.Background(), f, nil, &Options{EmptyPagePolicy: EmptyPageEnd})
	defer l.Close()

	mustLoad(t, l)
	u := mustLoad(t, l)
	if !u.Exhausted {
		t.Fatalf("expected feed to be exhausted, got %+v", u)
	}

	if l.LoadNext() {
		t.Error("expected LoadNext to be a no-op on an exhausted feed")
	}
	if _, err := l.LoadNextWait(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	// Start clears the exhausted flag and begins at page 1 again.
	if !l.Start() {
		t.Fatal("expected Start to launch a fetch")
	}
	deadline := time.Now().Add(5 * time.Second)
	for l.Status().InFlight || l.Status().Loaded == 0 {
		if time.Now().After(deadline) {
			t.Fatal("restart never settled")
		}
		time.Sleep(time.Millisecond)
	}
	if calls := f.callLog(); !equalInts(calls, []int{1, 2, 1}) {
		t.Errorf("expected restart from page 1, got %v", calls)
	}
}

func TestLoader_StartResetsSinkAndDiscardsInFlight(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A").answer(2, "stale").answer(1, "fresh")
	g := grid.New()
	l := NewLoader(context.Background(), f, g, nil)
	defer l.Close()

	mustLoad(t, l)
	g.Select("A")

	f.mu.Lock()
	f.release = make(chan struct{})
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stale := make(chan error, 1)
	go func() {
		_, err := l.LoadNextWait(ctx)
		stale <- err
	}()
	for !l.Status().InFlight {
		time.Sleep(time.Millisecond)
	}

	f.mu.Lock()
	f.release = nil
	f.mu.Unlock()

	// Start cancels page 2; page 1 is fetched again without blocking.
	l.Start()
	if err := <-stale; !errors.Is(err, ErrDiscarded) {
		t.Errorf("expected stale wait to report ErrDiscarded, got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for l.Status().InFlight || l.Status().Loaded == 0 {
		if time.Now().After(deadline) {
			t.Fatal("restart never settled")
		}
		time.Sleep(time.Millisecond)
	}

	snap := g.Snapshot()
	if got := recordIDs(snap.Items); !equalStrings(got, []string{"fresh"}) {
		t.Errorf("expected only the restarted page, got %v", got)
	}
	if snap.HasSelection() {
		t.Error("expected restart to clear the selection")
	}
}

func TestLoader_CloseDiscardsInFlightResult(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A")
	f.release = make(chan struct{})
	g := grid.New()

	var notified int
	l := NewLoader(context.Background(), f, g, &Options{OnUpdate: func(Update) { notified++ }})
	if !l.LoadNext() {
		t.Fatal("expected LoadNext to start a fetch")
	}
	for !l.Status().InFlight {
		time.Sleep(time.Millisecond)
	}

	l.Close()
	if g.Len() != 0 {
		t.Errorf("expected no records applied after Close, got %d", g.Len())
	}
	if notified != 0 {
		t.Errorf("expected no update notifications after Close, got %d", notified)
	}
	if l.LoadNext() {
		t.Error("expected LoadNext after Close to be a no-op")
	}
	if l.Start() {
		t.Error("expected Start after Close to be a no-op")
	}
}

func TestLoader_OnUpdateReceivesEverySettledFetch(t *testing.T) {
	f := newScriptedFetcher().answer(1, "A").fail(2, source.Transient(2, 0, errors.New("timeout")))
	var mu sync.Mutex
	var updates []Update
	l := NewLoader(context.Background(), f, nil, &Options{OnUpdate: func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}})
	defer l.Close()

	mustLoad(t, l)
	mustLoad(t, l)

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].PageNumber != 1 || updates[1].PageNumber != 2 || !updates[1].Failed() {
		t.Errorf("unexpected updates: %+v", updates)
	}
}

func TestLoader_CursorIgnoresPageToken(t *testing.T) {
	var mu sync.Mutex
	var calls []int
	f := source.PageFetcherFunc(func(ctx context.Context, pageNumber int) (*domain.Page, error) {
		mu.Lock()
		calls = append(calls, pageNumber)
		mu.Unlock()
		rec, err := domain.NewPhotoRecord(fmt.Sprintf("p%d", pageNumber), "t", "f", 4, 3, "", "")
		if err != nil {
			return nil, err
		}
		// Built without NewPage, so Next is zero.
		return &domain.Page{Number: pageNumber, Records: []domain.PhotoRecord{rec}}, nil
	})
	l := NewLoader(context.Background(), f, nil, nil)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if u := mustLoad(t, l); u.Failed() {
			t.Fatalf("load %d failed: %v", i, u.Err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("expected calls %v, got %v", want, calls)
			break
		}
	}
	if next := l.Status().NextPage; next != 4 {
		t.Errorf("expected next page 4, got %d", next)
	}
}

func TestLoader_StatusReportsClosed(t *testing.T) {
	l := NewLoader(context.Background(), newScriptedFetcher(), nil, nil)
	if l.Status().Closed {
		t.Fatal("expected fresh loader to be open")
	}
	l.Close()
	if !l.Status().Closed {
		t.Error("expected Status to report Closed after Close")
	}
}

func TestParseEmptyPagePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EmptyPagePolicy
		wantErr bool
	}{
		{in: "", want: EmptyPageContinue},
		{in: "continue", want: EmptyPageContinue},
		{in: " END ", want: EmptyPageEnd},
		{in: "stop", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseEmptyPagePolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseEmptyPagePolicy(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseEmptyPagePolicy(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
