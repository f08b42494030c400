package source

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	// KindTransient covers network errors and timeouts; safe to retry.
	KindTransient ErrorKind = "transient"
	// KindPermanent covers malformed payloads and auth rejections; not retried automatically.
	KindPermanent ErrorKind = "permanent"
	// KindCancelled means the caller abandoned the request; the result is discarded.
	KindCancelled ErrorKind = "cancelled"
)

// FetchError is the typed failure returned by every PageFetcher.
type FetchError struct {
	Kind       ErrorKind
	Page       int
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d: %s (HTTP %d): %v", e.Page, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch page %d: %s: %v", e.Page, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient builds a KindTransient error.
func Transient(page, status int, err error) *FetchError {
	return &FetchError{Kind: KindTransient, Page: page, StatusCode: status, Err: err}
}

// Permanent builds a KindPermanent error.
func Permanent(page, status int, err error) *FetchError {
	return &FetchError{Kind: KindPermanent, Page: page, StatusCode: status, Err: err}
}

// Cancelled builds a KindCancelled error.
func Cancelled(page int, err error) *FetchError {
	return &FetchError{Kind: KindCancelled, Page: page, Err: err}
}

// KindOf returns the kind of err. Context errors count as cancelled and
// any other untyped error is treated as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransient
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsPermanent reports whether err should not be retried automatically.
func IsPermanent(err error) bool {
	return KindOf(err) == KindPermanent
}

// IsCancelled reports whether err comes from an abandoned request.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
