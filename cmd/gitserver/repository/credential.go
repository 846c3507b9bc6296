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

// CredentialRepository handles database operations for deploy keys
type CredentialRepository struct {
	db *db.DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *db.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new credential
func (r *CredentialRepository) Create(ctx context.Context, cred *models.GitCredential) error {
	query := `
		INSERT INTO git_credential (credential_id, application_id, key_type, public_key, private_key, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`

	_, err := r.db.Exec(ctx, query,
		cred.CredentialID,
		cred.ApplicationID,
		cred.KeyType,
		cred.PublicKey,
		cred.PrivateKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetByID retrieves a credential by its ID
func (r *CredentialRepository) GetByID(ctx context.Context, credentialID uuid.UUID) (*models.GitCredential, error) {
	query := `
		SELECT credential_id, application_id, key_type, public_key, private_key, created_at
		FROM git_credential
		WHERE credential_id = $1
	`

	cred := &models.GitCredential{}
	err := r.db.QueryRow(ctx, query, credentialID).Scan(
		&cred.CredentialID,
		&cred.ApplicationID,
		&cred.KeyType,
		&cred.PublicKey,
		&cred.PrivateKey,
		&cred.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindAuthFailed, "credential %s not found", credentialID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// BindToApplication assigns ownership of a credential to one application
func (r *CredentialRepository) BindToApplication(ctx context.Context, credentialID, applicationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE git_credential SET application_id = $2 WHERE credential_id = $1`,
		credentialID, applicationID,
	)
	if err != nil {
		return fmt.Errorf("failed to bind credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindAuthFailed, "credential %s not found", credentialID)
	}

	return nil
}

// DeleteByApplicationID removes an application's credentials (disconnect)
func (r *CredentialRepository) DeleteByApplicationID(ctx context.Context, applicationID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM git_credential WHERE application_id = $1`,
		applicationID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	return nil
}
