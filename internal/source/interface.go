package source

import (
	"context"

	"github.com/timmy/photogrid/internal/domain"
)

// PageFetcher defines the interface for paginated photo sources.
type PageFetcher interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// Fetch issues exactly one request for the given page.
	// Parameters:
	//   - ctx: context for cancellation; a done context yields a Cancelled error.
	//   - pageNumber: 1-based page number.
	// Returns:
	//   - *domain.Page: records of the page (possibly none) and the next token.
	//   - error: a *FetchError classifying the failure; never a panic.
	Fetch(ctx context.Context, pageNumber int) (*domain.Page, error)
}

// PageFetcherFunc adapts a plain function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, pageNumber int) (*domain.Page, error)

// GetSourceID returns "func" for adapted functions.
func (f PageFetcherFunc) GetSourceID() string {
	return "func"
}

// Fetch calls f.
func (f PageFetcherFunc) Fetch(ctx context.Context, pageNumber int) (*domain.Page, error) {
	return f(ctx, pageNumber)
}
