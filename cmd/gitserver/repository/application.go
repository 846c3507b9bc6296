package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/db"
)

// ApplicationRepository handles database operations for applications
type ApplicationRepository struct {
	db *db.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *db.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO application (application_id, workspace_id, name, pages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`

	_, err := r.db.Exec(ctx, query,
		app.ApplicationID,
		app.WorkspaceID,
		app.Name,
		app.Pages,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by its ID
func (r *ApplicationRepository) GetByID(ctx context.Context, applicationID uuid.UUID) (*models.Application, error) {
	query := `
		SELECT application_id, workspace_id, name, pages, created_at, updated_at
		FROM application
		WHERE application_id = $1
	`

	app := &models.Application{}
	err := r.db.QueryRow(ctx, query, applicationID).Scan(
		&app.ApplicationID,
		&app.WorkspaceID,
		&app.Name,
		&app.Pages,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "application %s not found", applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// Update replaces an application's name and page tree
func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE application
		SET name = $2, pages = $3, updated_at = now()
		WHERE application_id = $1
	`

	tag, err := r.db.Exec(ctx, query, app.ApplicationID, app.Name, app.Pages)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindArtifactNotFound, "application %s not found", app.ApplicationID)
	}

	return nil
}

// Delete removes an application and, via cascade, its git records
func (r *ApplicationRepository) Delete(ctx context.Context, applicationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM application WHERE application_id = $1`, applicationID)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindArtifactNotFound, "application %s not found", applicationID)
	}

	return nil
}
