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

// MetadataRepository handles database operations for git metadata and
// per-branch tip hashes
type MetadataRepository struct {
	db *db.DB
}

// NewMetadataRepository creates a new metadata repository
func NewMetadataRepository(db *db.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Upsert inserts or replaces the metadata record for an application
func (r *MetadataRepository) Upsert(ctx context.Context, meta *models.GitMetadata) error {
	query := `
		INSERT INTO git_metadata (application_id, remote_url, default_branch, protected_branches, auto_commit, credential_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (application_id) DO UPDATE SET
			remote_url = EXCLUDED.remote_url,
			default_branch = EXCLUDED.default_branch,
			protected_branches = EXCLUDED.protected_branches,
			auto_commit = EXCLUDED.auto_commit,
			credential_id = EXCLUDED.credential_id,
			updated_at = now()
	`

	_, err := r.db.Exec(ctx, query,
		meta.ApplicationID,
		meta.RemoteURL,
		meta.DefaultBranch,
		meta.ProtectedBranches,
		meta.AutoCommit,
		meta.CredentialID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert git metadata: %w", err)
	}

	return nil
}

// GetByApplicationID retrieves the metadata record for an application
func (r *MetadataRepository) GetByApplicationID(ctx context.Context, applicationID uuid.UUID) (*models.GitMetadata, error) {
	query := `
		SELECT application_id, remote_url, default_branch, protected_branches, auto_commit, credential_id, created_at, updated_at
		FROM git_metadata
		WHERE application_id = $1
	`

	meta := &models.GitMetadata{}
	err := r.db.QueryRow(ctx, query, applicationID).Scan(
		&meta.ApplicationID,
		&meta.RemoteURL,
		&meta.DefaultBranch,
		&meta.ProtectedBranches,
		&meta.AutoCommit,
		&meta.CredentialID,
		&meta.CreatedAt,
		&meta.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get git metadata: %w", err)
	}

	return meta, nil
}

// Delete clears the metadata record (disconnect)
func (r *MetadataRepository) Delete(ctx context.Context, applicationID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM git_metadata WHERE application_id = $1`, applicationID)
	if err != nil {
		return fmt.Errorf("failed to delete git metadata: %w", err)
	}

	return nil
}

// UpdateProtectedBranches replaces the protected set atomically
func (r *MetadataRepository) UpdateProtectedBranches(ctx context.Context, applicationID uuid.UUID, names []string) error {
	query := `
		UPDATE git_metadata
		SET protected_branches = $2, updated_at = now()
		WHERE application_id = $1
	`

	tag, err := r.db.Exec(ctx, query, applicationID, names)
	if err != nil {
		return fmt.Errorf("failed to update protected branches: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", applicationID)
	}

	return nil
}

// ToggleAutoCommit flips the auto-commit flag and returns the new value
func (r *MetadataRepository) ToggleAutoCommit(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	query := `
		UPDATE git_metadata
		SET auto_commit = NOT auto_commit, updated_at = now()
		WHERE application_id = $1
		RETURNING auto_commit
	`

	var enabled bool
	err := r.db.QueryRow(ctx, query, applicationID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", applicationID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle auto-commit: %w", err)
	}

	return enabled, nil
}

// ListAutoCommitEnabled lists metadata records eligible for background runs
func (r *MetadataRepository) ListAutoCommitEnabled(ctx context.Context) ([]*models.GitMetadata, error) {
	query := `
		SELECT application_id, remote_url, default_branch, protected_branches, auto_commit, credential_id, created_at, updated_at
		FROM git_metadata
		WHERE auto_commit = true
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-commit metadata: %w", err)
	}
	defer rows.Close()

	var metas []*models.GitMetadata
	for rows.Next() {
		meta := &models.GitMetadata{}
		err := rows.Scan(
			&meta.ApplicationID,
			&meta.RemoteURL,
			&meta.DefaultBranch,
			&meta.ProtectedBranches,
			&meta.AutoCommit,
			&meta.CredentialID,
			&meta.CreatedAt,
			&meta.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan git metadata: %w", err)
		}
		metas = append(metas, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating git metadata: %w", err)
	}

	return metas, nil
}

// SetBranchTip records the last-synced commit hash for a branch
func (r *MetadataRepository) SetBranchTip(ctx context.Context, applicationID uuid.UUID, branch, hash string) error {
	query := `
		INSERT INTO git_branch_tip (application_id, branch, commit_hash, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (application_id, branch) DO UPDATE SET
			commit_hash = EXCLUDED.commit_hash,
			updated_at = now()
	`

	if _, err := r.db.Exec(ctx, query, applicationID, branch, hash); err != nil {
		return fmt.Errorf("failed to set branch tip: %w", err)
	}

	return nil
}

// GetBranchTip returns the last-synced commit hash for a branch
func (r *MetadataRepository) GetBranchTip(ctx context.Context, applicationID uuid.UUID, branch string) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT commit_hash FROM git_branch_tip WHERE application_id = $1 AND branch = $2`,
		applicationID, branch,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.New(apperrors.KindBranchNotFound, "branch %s has no recorded tip", branch)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get branch tip: %w", err)
	}

	return hash, nil
}

// DeleteBranchTip removes the recorded tip for a deleted branch
func (r *MetadataRepository) DeleteBranchTip(ctx context.Context, applicationID uuid.UUID, branch string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM git_branch_tip WHERE application_id = $1 AND branch = $2`,
		applicationID, branch,
	)
	if err != nil {
		return fmt.Errorf("failed to delete branch tip: %w", err)
	}

	return nil
}
