package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/db"
)

// ProfileRepository handles database operations for git author profiles.
// The nil application id row is a user's default profile.
type ProfileRepository struct {
	db *db.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *db.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts or replaces a profile
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.GitProfile) error {
	query := `
		INSERT INTO git_profile (user_id, application_id, author_name, author_email, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, application_id) DO UPDATE SET
			author_name = EXCLUDED.author_name,
			author_email = EXCLUDED.author_email,
			updated_at = now()
	`

	_, err := r.db.Exec(ctx, query,
		profile.UserID,
		profile.ApplicationID,
		profile.AuthorName,
		profile.AuthorEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert git profile: %w", err)
	}

	return nil
}

// Get retrieves the profile for (user, application). Returns nil without
// error when no row exists; the caller decides the fallback chain.
func (r *ProfileRepository) Get(ctx context.Context, userID string, applicationID uuid.UUID) (*models.GitProfile, error) {
	query := `
		SELECT user_id, application_id, author_name, author_email, updated_at
		FROM git_profile
		WHERE user_id = $1 AND application_id = $2
	`

	profile := &models.GitProfile{}
	err := r.db.QueryRow(ctx, query, userID, applicationID).Scan(
		&profile.UserID,
		&profile.ApplicationID,
		&profile.AuthorName,
		&profile.AuthorEmail,
		&profile.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get git profile: %w", err)
	}

	return profile, nil
}
