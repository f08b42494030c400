package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/photogrid/internal/domain"
	"gorm.io/gorm"
)

const defaultAttemptLimit = 100

// FetchAttemptRepository persists the per-session fetch journal.
type FetchAttemptRepository struct {
	db *gorm.DB
}

// NewFetchAttemptRepository creates a new FetchAttemptRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *FetchAttemptRepository: repository instance bound to db.
func NewFetchAttemptRepository(db *gorm.DB) *FetchAttemptRepository {
	return &FetchAttemptRepository{db: db}
}

// Record inserts one journal entry, filling ID and CreatedAt when unset.
func (r *FetchAttemptRepository) Record(ctx context.Context, attempt *domain.FetchAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

// ListBySession returns a session's attempts, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sessionID: owning session.
//   - limit: maximum rows; <= 0 uses the default.
//
// Returns:
//   - []domain.FetchAttempt: matching attempts.
//   - error: non-nil if the query fails.
func (r *FetchAttemptRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.FetchAttempt, error) {
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	var attempts []domain.FetchAttempt
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// CountByOutcome returns how many attempts of the session settled with outcome.
func (r *FetchAttemptRepository) CountByOutcome(ctx context.Context, sessionID string, outcome domain.AttemptOutcome) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.FetchAttempt{}).
		Where("session_id = ? AND outcome = ?", sessionID, outcome).
		Count(&count).Error
	return count, err
}
