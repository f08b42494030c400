package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/photogrid/internal/domain"
	"github.com/timmy/photogrid/internal/source"
)

const (
	// SourceID identifies this fetcher in logs and health output.
	SourceID = "unsplash"

	// DefaultBaseURL is the public Unsplash API endpoint.
	DefaultBaseURL = "https://api.unsplash.com"
	// DefaultPerPage matches the page size of the mobile client.
	DefaultPerPage = 10

	photosPath = "/photos"
)

// Config holds configuration for the Unsplash adapter.
type Config struct {
	BaseURL   string
	AccessKey string
	PerPage   int
	Timeout   time.Duration
}

// Adapter implements source.PageFetcher against the Unsplash /photos listing.
type Adapter struct {
	client  *resty.Client
	perPage int
}

// NewAdapter creates a new Unsplash adapter.
// Parameters:
//   - cfg: endpoint, credential, page size and transport timeout.
//
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(cfg *Config) *Adapter {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept-Version", "v1")
	client.SetHeader("Authorization", "Client-ID "+cfg.AccessKey)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Adapter{
		client:  client,
		perPage: perPage,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// PerPage returns the page size sent with every request.
func (a *Adapter) PerPage() int {
	return a.perPage
}

// Fetch fetches one page of photos.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pageNumber: 1-based page number.
//
// Returns:
//   - *domain.Page: decoded records in source order.
//   - error: *source.FetchError on any failure.
func (a *Adapter) Fetch(ctx context.Context, pageNumber int) (*domain.Page, error) {
	if pageNumber < 1 {
		return nil, source.Permanent(pageNumber, 0, fmt.Errorf("page number must be >= 1"))
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":     strconv.Itoa(pageNumber),
			"per_page": strconv.Itoa(a.perPage),
		}).
		Get(photosPath)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, source.Cancelled(pageNumber, ctx.Err())
		}
		return nil, source.Transient(pageNumber, 0, fmt.Errorf("failed to call Unsplash API: %w", err))
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, classifyStatus(pageNumber, status, resp.Body())
	}

	records, err := decodePhotos(resp.Body())
	if err != nil {
		return nil, source.Permanent(pageNumber, resp.StatusCode(), err)
	}

	return domain.NewPage(pageNumber, records), nil
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

// classifyStatus maps a non-2xx response to a fetch error.
func classifyStatus(page, status int, body []byte) *source.FetchError {
	msg := http.StatusText(status)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && len(er.Errors) > 0 {
		msg = strings.Join(er.Errors, "; ")
	}
	err := fmt.Errorf("unsplash api error: %s", msg)

	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return source.Transient(page, status, err)
	default:
		return source.Permanent(page, status, err)
	}
}

// decodePhotos decodes a listing and rejects it when any record breaks the schema.
func decodePhotos(body []byte) ([]domain.PhotoRecord, error) {
	var photos []Photo
	if err := json.Unmarshal(body, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}

	records := make([]domain.PhotoRecord, 0, len(photos))
	for i := range photos {
		rec, err := photos[i].ToRecord()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
