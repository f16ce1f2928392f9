package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

// AvailabilityRepository persists per-teacher weekly availability. One row
// per teacher, overwritten wholesale on every save.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Get loads a teacher's availability, or nil when none was ever saved.
func (r *AvailabilityRepository) Get(ctx context.Context, teacherID string) (*models.Availability, error) {
	const query = `SELECT teacher_id, week, updated_at FROM availabilities WHERE teacher_id = $1`
	var availability models.Availability
	if err := r.db.GetContext(ctx, &availability, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return &availability, nil
}

// Upsert overwrites the teacher's entire availability record.
func (r *AvailabilityRepository) Upsert(ctx context.Context, availability *models.Availability) error {
	availability.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO availabilities (teacher_id, week, updated_at)
VALUES (:teacher_id, :week, :updated_at)
ON CONFLICT (teacher_id) DO UPDATE SET week = EXCLUDED.week, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, availability); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}
