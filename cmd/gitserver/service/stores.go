package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
)

// The engine consumes its collaborators through these interfaces; the
// repository package provides the Postgres implementations and tests
// substitute in-memory fakes.

// ApplicationStore reads and writes the full artifact graph
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, applicationID uuid.UUID) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
}

// MetadataStore owns the durable git metadata and per-branch tip hashes
type MetadataStore interface {
	Upsert(ctx context.Context, meta *models.GitMetadata) error
	GetByApplicationID(ctx context.Context, applicationID uuid.UUID) (*models.GitMetadata, error)
	Delete(ctx context.Context, applicationID uuid.UUID) error
	UpdateProtectedBranches(ctx context.Context, applicationID uuid.UUID, names []string) error
	ToggleAutoCommit(ctx context.Context, applicationID uuid.UUID) (bool, error)
	ListAutoCommitEnabled(ctx context.Context) ([]*models.GitMetadata, error)
	SetBranchTip(ctx context.Context, applicationID uuid.UUID, branch, hash string) error
	GetBranchTip(ctx context.Context, applicationID uuid.UUID, branch string) (string, error)
	DeleteBranchTip(ctx context.Context, applicationID uuid.UUID, branch string) error
}

// CredentialStore persists deploy keys
type CredentialStore interface {
	Create(ctx context.Context, cred *models.GitCredential) error
	GetByID(ctx context.Context, credentialID uuid.UUID) (*models.GitCredential, error)
	BindToApplication(ctx context.Context, credentialID, applicationID uuid.UUID) error
	DeleteByApplicationID(ctx context.Context, applicationID uuid.UUID) error
}

// ProfileStore gives the caller's configured git identity
type ProfileStore interface {
	Upsert(ctx context.Context, profile *models.GitProfile) error
	Get(ctx context.Context, userID string, applicationID uuid.UUID) (*models.GitProfile, error)
}
