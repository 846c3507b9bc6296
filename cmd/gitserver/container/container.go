package container

import (
	"fmt"

	"github.com/theAravinthM/appsmith/cmd/gitserver/repository"
	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/bootstrap"
	"github.com/theAravinthM/appsmith/common/ratelimit"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	ApplicationRepo *repository.ApplicationRepository
	MetadataRepo    *repository.MetadataRepository
	CredentialRepo  *repository.CredentialRepository
	ProfileRepo     *repository.ProfileRepository

	// Services
	GitService    *service.GitService
	ProgressStore *service.ProgressStore
	AutoCommit    *service.AutoCommitScheduler
	RateLimiter   *ratelimit.RateLimiter
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	// Initialize repositories
	applicationRepo := repository.NewApplicationRepository(components.DB)
	metadataRepo := repository.NewMetadataRepository(components.DB)
	credentialRepo := repository.NewCredentialRepository(components.DB)
	profileRepo := repository.NewProfileRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	guard, err := service.NewBranchProtectionGuard(components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize protection guard: %w", err)
	}

	repoManager := service.NewRepoManager(components.Config.Git, components.Logger)
	locks := service.NewBranchLockManager()
	vault := service.NewCredentialVault(credentialRepo, components.Logger)

	gitService := service.NewGitService(
		components.Config.Git,
		applicationRepo,
		metadataRepo,
		credentialRepo,
		profileRepo,
		repoManager,
		locks,
		guard,
		vault,
		components.Logger,
	)

	rateLimiter := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)

	progressStore := service.NewProgressStore(components.Redis)
	autoCommit := service.NewAutoCommitScheduler(
		components.Config.Git,
		gitService,
		metadataRepo,
		progressStore,
		components.Logger,
	)

	return &Container{
		Components:      components,
		ApplicationRepo: applicationRepo,
		MetadataRepo:    metadataRepo,
		CredentialRepo:  credentialRepo,
		ProfileRepo:     profileRepo,
		GitService:      gitService,
		ProgressStore:   progressStore,
		AutoCommit:      autoCommit,
		RateLimiter:     rateLimiter,
	}, nil
}
