package unsplash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/timmy/photogrid/internal/source"
)

const photosJSON = `[
  {
    "id": "1",
    "created_at": "2016-05-03T11:00:28-04:00",
    "updated_at": "2023-07-10T11:00:01-05:00",
    "width": 5245,
    "height": 3497,
    "color": "#60544D",
    "blur_hash": "LoC%a7IoIVxZ_NM|M{s:%hRjWAo0",
    "likes": 125,
    "liked_by_user": false,
    "description": "A detailed description of the photo.",
    "user": {"id": "user123", "username": "john_doe", "name": "John Doe", "total_likes": 3,
             "profile_image": {"small": "", "medium": "", "large": ""},
             "links": {"self": "", "html": "", "photos": "", "likes": "", "portfolio": ""}},
    "current_user_collections": [],
    "urls": {"raw": "raw", "full": "full", "regular": "regular", "small": "small", "thumb": "thumb"},
    "links": {"self": "", "html": "", "download": "", "download_location": ""}
  },
  {
    "id": "2",
    "width": 4000,
    "height": 3000,
    "description": null,
    "user": {"name": "Jane"},
    "urls": {"small": "small-2", "thumb": "thumb-2"}
  }
]`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(&Config{BaseURL: srv.URL, AccessKey: "test-key", PerPage: 10})
}

func TestAdapter_FetchDecodesPage(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "10" {
			t.Errorf("expected per_page=10, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Client-ID test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("Accept-Version"); got != "v1" {
			t.Errorf("unexpected Accept-Version header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(photosJSON))
	})

	page, err := adapter.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Number != 2 || page.Next != 3 {
		t.Errorf("unexpected page tags: number=%d next=%d", page.Number, page.Next)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}

	first := page.Records[0]
	if first.ID != "1" || first.ThumbnailRef != "thumb" || first.FullImageRef != "small" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Label != "John Doe" || first.Description != "A detailed description of the photo." {
		t.Errorf("unexpected first record text: %+v", first)
	}
	if page.Records[1].Description != "" {
		t.Errorf("expected null description to map to empty, got %q", page.Records[1].Description)
	}
}

func TestAdapter_FetchEmptyPage(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	page, err := adapter.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Empty() {
		t.Errorf("expected empty page, got %d records", len(page.Records))
	}
	if page.Next != 2 {
		t.Errorf("expected next token 2, got %d", page.Next)
	}
}

func TestAdapter_FetchClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   source.ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"errors":["OAuth error: The access token is invalid"]}`, want: source.KindPermanent},
		{name: "forbidden", status: http.StatusForbidden, body: `Rate Limit Exceeded`, want: source.KindPermanent},
		{name: "not found", status: http.StatusNotFound, body: `{}`, want: source.KindPermanent},
		{name: "too many requests", status: http.StatusTooManyRequests, body: ``, want: source.KindTransient},
		{name: "service unavailable", status: http.StatusServiceUnavailable, body: ``, want: source.KindTransient},
		{name: "malformed json", status: http.StatusOK, body: `{"not":"a list"`, want: source.KindPermanent},
		{name: "object instead of list", status: http.StatusOK, body: `{"id":"1"}`, want: source.KindPermanent},
		{name: "missing thumb", status: http.StatusOK, body: `[{"id":"1","width":1,"height":1,"user":{"name":"a"},"urls":{"small":"s"}}]`, want: source.KindPermanent},
		{name: "missing user", status: http.StatusOK, body: `[{"id":"1","width":1,"height":1,"urls":{"small":"s","thumb":"t"}}]`, want: source.KindPermanent},
		{name: "zero height", status: http.StatusOK, body: `[{"id":"1","width":1,"height":0,"user":{"name":"a"},"urls":{"small":"s","thumb":"t"}}]`, want: source.KindPermanent},
		{name: "missing id", status: http.StatusOK, body: `[{"width":1,"height":1,"user":{"name":"a"},"urls":{"small":"s","thumb":"t"}}]`, want: source.KindPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			page, err := adapter.Fetch(context.Background(), 1)
			if err == nil {
				t.Fatalf("expected error, got page with %d records", len(page.Records))
			}
			if got := source.KindOf(err); got != tc.want {
				t.Errorf("expected kind %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func TestAdapter_FetchNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	adapter := NewAdapter(&Config{BaseURL: baseURL, AccessKey: "k"})
	_, err := adapter.Fetch(context.Background(), 1)
	if !source.IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestAdapter_FetchCancelled(t *testing.T) {
	var calls int32
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Fetch(ctx, 1)
	if !source.IsCancelled(err) {
		t.Errorf("expected cancelled error, got %v", err)
	}
}

func TestAdapter_FetchRejectsInvalidPageNumber(t *testing.T) {
	var calls int32
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := adapter.Fetch(context.Background(), 0)
	if !source.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no outbound request, got %d", calls)
	}
}

func TestNewAdapter_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		perPage int
		want    int
	}{
		{name: "unset", perPage: 0, want: DefaultPerPage},
		{name: "negative", perPage: -5, want: DefaultPerPage},
		{name: "explicit", perPage: 30, want: 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdapter(&Config{PerPage: tc.perPage})
			if got := a.PerPage(); got != tc.want {
				t.Errorf("PerPage() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClassifyStatus_UsesAPIErrors(t *testing.T) {
	err := classifyStatus(3, http.StatusUnauthorized, []byte(`{"errors":["OAuth error: The access token is invalid"]}`))
	if err.Kind != source.KindPermanent || err.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected classification: %+v", err)
	}
	want := "fetch page 3: permanent (HTTP 401): unsplash api error: OAuth error: The access token is invalid"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
