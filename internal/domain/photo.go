package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidPhoto is returned when a photo record fails construction checks.
var ErrInvalidPhoto = errors.New("invalid photo record")

// PhotoRecord is one fetched photo in the shape the grid renders.
// Records are values; once built they are never mutated.
type PhotoRecord struct {
	ID           string `json:"id"`
	ThumbnailRef string `json:"thumbnail_ref"`
	FullImageRef string `json:"full_image_ref"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Label        string `json:"label"`
	Description  string `json:"description"`
}

// NewPhotoRecord builds a PhotoRecord and checks its invariants.
// Parameters:
//   - id: identifier unique within a feed; must be non-empty.
//   - thumbnailRef: URI of the thumbnail-sized image.
//   - fullImageRef: URI of the larger image shown in the viewer.
//   - width, height: source dimensions; both must be positive.
//   - label: uploader display name (may be empty).
//   - description: caption (may be empty).
//
// Returns:
//   - PhotoRecord: the constructed record.
//   - error: wraps ErrInvalidPhoto when an invariant is violated.
func NewPhotoRecord(id, thumbnailRef, fullImageRef string, width, height int, label, description string) (PhotoRecord, error) {
	if id == "" {
		return PhotoRecord{}, fmt.Errorf("%w: empty id", ErrInvalidPhoto)
	}
	if width <= 0 || height <= 0 {
		return PhotoRecord{}, fmt.Errorf("%w: %s has non-positive dimensions %dx%d", ErrInvalidPhoto, id, width, height)
	}
	return PhotoRecord{
		ID:           id,
		ThumbnailRef: thumbnailRef,
		FullImageRef: fullImageRef,
		Width:        width,
		Height:       height,
		Label:        label,
		Description:  description,
	}, nil
}

// Page is the ordered result of one fetch call.
type Page struct {
	Number  int           `json:"number"`
	Next    int           `json:"next"`
	Records []PhotoRecord `json:"records"`
}

// NewPage tags records with the page number that produced them.
// The source never reports a final page, so Next is always number+1.
func NewPage(number int, records []PhotoRecord) *Page {
	if records == nil {
		records = []PhotoRecord{}
	}
	return &Page{
		Number:  number,
		Next:    number + 1,
		Records: records,
	}
}

// Empty reports whether the page carried no records.
func (p *Page) Empty() bool {
	return p == nil || len(p.Records) == 0
}
