package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProfileRepository reads platform-owned user preferences. This service
// never writes profiles; the platform does.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetTimezone returns the user's stored timezone preference, or "" when the
// user has none.
func (r *ProfileRepository) GetTimezone(ctx context.Context, userID string) (string, error) {
	const query = `SELECT timezone FROM user_profiles WHERE user_id = $1`
	var tz string
	if err := r.db.GetContext(ctx, &tz, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get timezone for %s: %w", userID, err)
	}
	return tz, nil
}
