package grid

import "github.com/timmy/photogrid/internal/domain"

// Snapshot is an immutable view of a State at one version.
type Snapshot struct {
	Version    uint64               `json:"version"`
	Items      []domain.PhotoRecord `json:"items"`
	SelectedID string               `json:"selected_id,omitempty"`
}

// HasSelection reports whether a selection id is set, dangling or not.
func (s Snapshot) HasSelection() bool {
	return s.SelectedID != ""
}

// SelectedIndex returns the position of the selected item, or -1 when
// nothing is selected or the id is not loaded.
func (s Snapshot) SelectedIndex() int {
	if s.SelectedID == "" {
		return -1
	}
	for i := range s.Items {
		if s.Items[i].ID == s.SelectedID {
			return i
		}
	}
	return -1
}

// Selected returns the selected item. A dangling id reports false.
func (s Snapshot) Selected() (domain.PhotoRecord, bool) {
	idx := s.SelectedIndex()
	if idx < 0 {
		return domain.PhotoRecord{}, false
	}
	return s.Items[idx], true
}

// Rows pairs the items into two-up rows.
func (s Snapshot) Rows() []Row {
	return Rows(s.Items)
}
