package domain

import "time"

// AttemptOutcome is the result class of a settled page fetch.
// Values include AttemptOutcomeOK, AttemptOutcomeEmpty, AttemptOutcomeTransient, and AttemptOutcomePermanent.
type AttemptOutcome string

const (
	AttemptOutcomeOK        AttemptOutcome = "ok"
	AttemptOutcomeEmpty     AttemptOutcome = "empty"
	AttemptOutcomeTransient AttemptOutcome = "transient"
	AttemptOutcomePermanent AttemptOutcome = "permanent"
)

// FetchAttempt is a journal entry for one settled page fetch of a session.
// Cancelled fetches are never recorded.
type FetchAttempt struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	SessionID   string         `gorm:"type:text;not null;index:idx_fetch_attempts_session" json:"session_id"`
	PageNumber  int            `gorm:"not null" json:"page_number"`
	Outcome     AttemptOutcome `gorm:"type:text;not null;index:idx_fetch_attempts_outcome" json:"outcome"`
	RecordCount int            `gorm:"default:0" json:"record_count"`
	DurationMs  int64          `gorm:"default:0" json:"duration_ms"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName returns the database table name for FetchAttempt.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (FetchAttempt) TableName() string {
	return "fetch_attempts"
}
