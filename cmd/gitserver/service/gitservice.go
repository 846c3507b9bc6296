package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/config"
	"github.com/theAravinthM/appsmith/common/logger"
)

const fallbackDefaultBranch = "master"

// GitService is the orchestrator: every verb validates against the
// protection guard, acquires the branch lock, serializes between the
// database and the working copy, runs the git operation and records the
// resulting tip. The database stays the source of truth throughout.
type GitService struct {
	apps     ApplicationStore
	meta     MetadataStore
	creds    CredentialStore
	profiles ProfileStore

	repos      *RepoManager
	locks      *BranchLockManager
	guard      *BranchProtectionGuard
	vault      *CredentialVault
	serializer ArtifactSerializer

	// statusCache holds remote-compare status results per (artifact, branch);
	// any mutation on the pair invalidates its entry
	statusCache *gocache.Cache

	defaultAuthor Author
	log           *logger.Logger
}

func NewGitService(
	cfg config.GitConfig,
	apps ApplicationStore,
	meta MetadataStore,
	creds CredentialStore,
	profiles ProfileStore,
	repos *RepoManager,
	locks *BranchLockManager,
	guard *BranchProtectionGuard,
	vault *CredentialVault,
	log *logger.Logger,
) *GitService {
	return &GitService{
		apps:        apps,
		meta:        meta,
		creds:       creds,
		profiles:    profiles,
		repos:       repos,
		locks:       locks,
		guard:       guard,
		vault:       vault,
		serializer:  NewApplicationSerializer(),
		statusCache: gocache.New(cfg.StatusCacheTTL, 2*cfg.StatusCacheTTL),
		defaultAuthor: Author{
			Name:  cfg.DefaultAuthorName,
			Email: cfg.DefaultAuthorEmail,
		},
		log: log,
	}
}

func statusCacheKey(applicationID uuid.UUID, branch string) string {
	return applicationID.String() + "/" + branch
}

func (s *GitService) invalidateStatus(applicationID uuid.UUID, branch string) {
	s.statusCache.Delete(statusCacheKey(applicationID, branch))
}

// loadConnected returns the metadata and credential of a git-connected
// application
func (s *GitService) loadConnected(ctx context.Context, applicationID uuid.UUID) (*models.GitMetadata, *models.GitCredential, error) {
	meta, err := s.meta.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}

	var cred *models.GitCredential
	if meta.CredentialID != nil {
		cred, err = s.creds.GetByID(ctx, *meta.CredentialID)
		if err != nil {
			return nil, nil, err
		}
	}
	return meta, cred, nil
}

// authorFor resolves the commit identity: application-specific profile,
// then the user's default profile, then the configured fallback
func (s *GitService) authorFor(ctx context.Context, userID string, applicationID uuid.UUID) Author {
	if userID != "" {
		if profile, err := s.profiles.Get(ctx, userID, applicationID); err == nil && profile != nil {
			return Author{Name: profile.AuthorName, Email: profile.AuthorEmail}
		}
		if profile, err := s.profiles.Get(ctx, userID, uuid.Nil); err == nil && profile != nil {
			return Author{Name: profile.AuthorName, Email: profile.AuthorEmail}
		}
	}
	return s.defaultAuthor
}

// syncToWorktree serializes the database state of the application into the
// branch's working copy
func (s *GitService) syncToWorktree(ctx context.Context, h *RepoHandle) error {
	app, err := s.apps.GetByID(ctx, h.ApplicationID)
	if err != nil {
		return err
	}
	tree, err := s.serializer.ToFiles(app)
	if err != nil {
		return err
	}
	return s.repos.WriteTree(h, tree)
}

// syncToDatabase deserializes the working copy back into the database and
// returns the reconciled application
func (s *GitService) syncToDatabase(ctx context.Context, h *RepoHandle) (*models.Application, error) {
	tree, err := s.repos.ReadTree(h)
	if err != nil {
		return nil, err
	}
	app, err := s.serializer.FromFiles(tree)
	if err != nil {
		return nil, err
	}
	if app.ApplicationID != h.ApplicationID {
		return nil, apperrors.New(apperrors.KindDataCorruption,
			"working copy identifies application %s, expected %s", app.ApplicationID, h.ApplicationID)
	}
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// recordTip persists the branch's commit hash so the database and the
// repository can be compared for drift
func (s *GitService) recordTip(ctx context.Context, h *RepoHandle) error {
	tip, err := s.repos.Tip(h)
	if err != nil {
		return err
	}
	return s.meta.SetBranchTip(ctx, h.ApplicationID, h.Branch, tip)
}

// Connect attaches an application to a remote repository. Connecting twice
// with the same remote is a no-op; a different remote is rejected. An empty
// remote receives an initial commit of the current application state; a
// populated remote is cloned and its content loaded into the database.
func (s *GitService) Connect(ctx context.Context, applicationID uuid.UUID, userID string, req *models.ConnectRequest) (*models.GitMetadata, error) {
	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		return nil, err
	}

	existing, err := s.meta.GetByApplicationID(ctx, applicationID)
	if err == nil {
		if existing.RemoteURL == req.RemoteURL {
			return existing, nil
		}
		return nil, apperrors.New(apperrors.KindAlreadyExists,
			"application %s is already connected to %s", applicationID, existing.RemoteURL)
	}
	if !apperrors.IsKind(err, apperrors.KindArtifactNotFound) {
		return nil, err
	}

	cred, err := s.creds.GetByID(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.TryLockArtifact(applicationID)
	if err != nil {
		return nil, err
	}
	defer release()

	defaultBranch, err := s.repos.RemoteDefaultBranch(ctx, req.RemoteURL, cred, fallbackDefaultBranch)
	if err != nil {
		return nil, err
	}

	h, empty, err := s.repos.InitOrClone(ctx, applicationID, defaultBranch, req.RemoteURL, cred)
	if err != nil {
		return nil, err
	}

	if empty {
		if err := s.syncToWorktree(ctx, h); err != nil {
			s.repos.DeleteArtifact(applicationID)
			return nil, err
		}

		author := s.authorFor(ctx, userID, applicationID)
		_, err = s.repos.Commit(h, "System generated commit: connected application to git", author, false)
		if err != nil && !errors.Is(err, ErrNoChanges) {
			s.repos.DeleteArtifact(applicationID)
			return nil, err
		}

		if err := s.repos.Push(ctx, h, cred, req.RemoteURL); err != nil {
			s.repos.DeleteArtifact(applicationID)
			return nil, err
		}
	} else {
		// The remote already has history: adopt its content rather than
		// overwrite it with the database state
		if _, err := s.syncToDatabase(ctx, h); err != nil {
			s.repos.DeleteArtifact(applicationID)
			return nil, err
		}
	}

	meta := &models.GitMetadata{
		ApplicationID: applicationID,
		RemoteURL:     req.RemoteURL,
		DefaultBranch: defaultBranch,
		CredentialID:  &req.CredentialID,
	}
	if err := s.meta.Upsert(ctx, meta); err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}
	if err := s.creds.BindToApplication(ctx, req.CredentialID, applicationID); err != nil {
		return nil, err
	}
	if err := s.recordTip(ctx, h); err != nil {
		return nil, err
	}

	s.log.Info("application connected to git",
		"artifact_id", applicationID,
		"remote", req.RemoteURL,
		"default_branch", defaultBranch,
		"empty_remote", empty,
	)
	return meta, nil
}

// Commit serializes the database state into the working copy and commits it.
// ErrNoChanges surfaces unchanged state as a reported no-op.
func (s *GitService) Commit(ctx context.Context, applicationID uuid.UUID, branch, userID string, req *models.CommitRequest) (string, error) {
	meta, _, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return "", err
	}
	if err := s.guard.CheckMutable(meta, branch, "commit"); err != nil {
		return "", err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return "", err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return "", err
	}

	if err := s.syncToWorktree(ctx, h); err != nil {
		return "", err
	}

	author := s.authorFor(ctx, userID, applicationID)
	hash, err := s.repos.Commit(h, req.Message, author, req.DoAmend)
	if err != nil {
		return "", err
	}

	if err := s.recordTip(ctx, h); err != nil {
		return "", err
	}
	s.invalidateStatus(applicationID, branch)

	s.log.Info("committed application state",
		"artifact_id", applicationID,
		"branch", branch,
		"hash", hash,
		"amend", req.DoAmend,
	)
	return hash, nil
}

// Push publishes the branch to the remote
func (s *GitService) Push(ctx context.Context, applicationID uuid.UUID, branch string) error {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.guard.CheckMutable(meta, branch, "push"); err != nil {
		return err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return err
	}

	if err := s.repos.Push(ctx, h, cred, meta.RemoteURL); err != nil {
		return err
	}
	s.invalidateStatus(applicationID, branch)

	s.log.Info("pushed branch", "artifact_id", applicationID, "branch", branch)
	return nil
}

// Pull fast-forwards the branch from the remote and reconciles the result
// into the database. A pull that cannot fast-forward fails with
// MergeConflict and changes nothing.
func (s *GitService) Pull(ctx context.Context, applicationID uuid.UUID, branch string) (*models.Application, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return nil, err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return nil, err
	}

	tip, err := s.repos.Pull(ctx, h, cred, meta.RemoteURL)
	if err != nil {
		return nil, err
	}

	app, err := s.syncToDatabase(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := s.meta.SetBranchTip(ctx, applicationID, branch, tip); err != nil {
		return nil, err
	}
	s.invalidateStatus(applicationID, branch)

	s.log.Info("pulled branch", "artifact_id", applicationID, "branch", branch, "tip", tip)
	return app, nil
}

// CreateBranch branches off an existing working copy. The new branch starts
// from the source's committed state; uncommitted database changes carry over
// through the next commit, not through branching.
func (s *GitService) CreateBranch(ctx context.Context, applicationID uuid.UUID, srcBranch, newBranch string) (*models.Branch, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.TryLock(applicationID, srcBranch)
	if err != nil {
		return nil, err
	}
	defer release()

	src, err := s.repos.Handle(applicationID, srcBranch)
	if err != nil {
		return nil, err
	}

	h, err := s.repos.CreateBranchFrom(src, newBranch, meta.RemoteURL)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Push(ctx, h, cred, meta.RemoteURL); err != nil {
		s.repos.DeleteWorkingCopy(applicationID, newBranch)
		return nil, err
	}
	if err := s.recordTip(ctx, h); err != nil {
		return nil, err
	}

	tip, err := s.repos.Tip(h)
	if err != nil {
		return nil, err
	}

	s.log.Info("created branch",
		"artifact_id", applicationID,
		"source", srcBranch,
		"branch", newBranch,
	)
	return &models.Branch{
		Name:        newBranch,
		IsDefault:   newBranch == meta.DefaultBranch,
		IsProtected: s.guard.IsProtected(meta, newBranch),
		CommitHash:  tip,
	}, nil
}

// CheckoutBranch loads a branch's committed state into the database. A
// branch with no local working copy is cloned from the remote first; a
// branch unknown to both sides is created off the default branch.
func (s *GitService) CheckoutBranch(ctx context.Context, applicationID uuid.UUID, branch string) (*models.Application, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return nil, err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if apperrors.IsKind(err, apperrors.KindBranchNotFound) {
		h, err = s.repos.CloneBranch(ctx, applicationID, branch, meta.RemoteURL, cred)
		if apperrors.IsKind(err, apperrors.KindBranchNotFound) {
			var anchor *RepoHandle
			anchor, err = s.repos.Handle(applicationID, meta.DefaultBranch)
			if err == nil {
				h, err = s.repos.CreateBranchFrom(anchor, branch, meta.RemoteURL)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	app, err := s.syncToDatabase(ctx, h)
	if err != nil {
		return nil, err
	}
	if err := s.recordTip(ctx, h); err != nil {
		return nil, err
	}

	s.log.Info("checked out branch", "artifact_id", applicationID, "branch", branch)
	return app, nil
}

// DeleteBranch removes a branch locally and on the remote. The default
// branch and protected branches are never deletable.
func (s *GitService) DeleteBranch(ctx context.Context, applicationID uuid.UUID, branch string) error {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.guard.CheckDeletable(meta, branch); err != nil {
		return err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return err
	}
	defer release()

	// Deleting on the remote needs an open working copy of some branch;
	// the default branch always has one
	anchor, err := s.repos.Handle(applicationID, meta.DefaultBranch)
	if err != nil {
		return err
	}
	if err := s.repos.DeleteRemoteBranch(ctx, anchor, cred, branch); err != nil {
		return err
	}

	if err := s.repos.DeleteWorkingCopy(applicationID, branch); err != nil {
		return err
	}
	if err := s.meta.DeleteBranchTip(ctx, applicationID, branch); err != nil {
		return err
	}
	s.invalidateStatus(applicationID, branch)

	s.log.Info("deleted branch", "artifact_id", applicationID, "branch", branch)
	return nil
}

// DiscardChanges throws away uncommitted database changes by restoring the
// branch's last committed state into the database
func (s *GitService) DiscardChanges(ctx context.Context, applicationID uuid.UUID, branch string) (*models.Application, error) {
	meta, _, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckMutable(meta, branch, "discard"); err != nil {
		return nil, err
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return nil, err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return nil, err
	}

	if err := s.repos.ResetHard(h); err != nil {
		return nil, err
	}

	app, err := s.syncToDatabase(ctx, h)
	if err != nil {
		return nil, err
	}
	s.invalidateStatus(applicationID, branch)

	s.log.Info("discarded changes", "artifact_id", applicationID, "branch", branch)
	return app, nil
}

// ListBranches reports every known branch, local and remote. prune drops
// remote tracking refs deleted upstream before listing.
func (s *GitService) ListBranches(ctx context.Context, applicationID uuid.UUID, prune bool) ([]models.Branch, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	anchor, err := s.repos.Handle(applicationID, meta.DefaultBranch)
	if err != nil {
		return nil, err
	}

	if prune {
		if err := s.repos.Fetch(ctx, anchor, cred, meta.RemoteURL, true); err != nil {
			return nil, err
		}
	}

	local, err := s.repos.LocalBranches(applicationID)
	if err != nil {
		return nil, err
	}

	remote, err := s.repos.RemoteBranches(anchor)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var branches []models.Branch

	for _, name := range local {
		seen[name] = true
		b := models.Branch{
			Name:        name,
			IsDefault:   name == meta.DefaultBranch,
			IsProtected: s.guard.IsProtected(meta, name),
		}
		if h, err := s.repos.Handle(applicationID, name); err == nil {
			if tip, err := s.repos.Tip(h); err == nil {
				b.CommitHash = tip
			}
			if st, err := s.repos.Status(h); err == nil {
				b.Ahead, b.Behind = st.Ahead, st.Behind
			}
		}
		branches = append(branches, b)
	}

	for name, hash := range remote {
		if seen[name] {
			continue
		}
		branches = append(branches, models.Branch{
			Name:        name,
			IsDefault:   name == meta.DefaultBranch,
			IsProtected: s.guard.IsProtected(meta, name),
			CommitHash:  hash,
		})
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// GetStatus reports uncommitted changes of the branch, serializing current
// database state into the worktree first so database edits count as
// modifications. compareRemote additionally fetches and reports
// ahead/behind; that result is cached briefly.
func (s *GitService) GetStatus(ctx context.Context, applicationID uuid.UUID, branch string, compareRemote bool) (*models.GitStatus, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if compareRemote {
		if cached, ok := s.statusCache.Get(statusCacheKey(applicationID, branch)); ok {
			return cached.(*models.GitStatus), nil
		}
	}

	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return nil, err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return nil, err
	}

	if err := s.syncToWorktree(ctx, h); err != nil {
		return nil, err
	}

	if compareRemote {
		if err := s.repos.Fetch(ctx, h, cred, meta.RemoteURL, false); err != nil {
			return nil, err
		}
	}

	status, err := s.repos.Status(h)
	if err != nil {
		return nil, err
	}

	if compareRemote {
		s.statusCache.Set(statusCacheKey(applicationID, branch), status, gocache.DefaultExpiration)
	}
	return status, nil
}

// FetchRemoteChanges updates the remote tracking refs and reports the
// branch's position against them
func (s *GitService) FetchRemoteChanges(ctx context.Context, applicationID uuid.UUID, branch string) (*models.GitStatus, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	// Fetch rewrites the tracking refs, so it contends with mutating verbs
	// like any other write
	release, err := s.locks.TryLock(applicationID, branch)
	if err != nil {
		return nil, err
	}
	defer release()

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Fetch(ctx, h, cred, meta.RemoteURL, false); err != nil {
		return nil, err
	}
	s.invalidateStatus(applicationID, branch)

	return s.repos.Status(h)
}

// lockPair acquires both branch locks in name order so concurrent merges in
// opposite directions cannot deadlock
func (s *GitService) lockPair(applicationID uuid.UUID, a, b string) (release func(), err error) {
	if a == b {
		return nil, apperrors.New(apperrors.KindInvalidRequest,
			"source and destination are both %q", a)
	}

	first, second := a, b
	if second < first {
		first, second = second, first
	}

	rel1, err := s.locks.TryLock(applicationID, first)
	if err != nil {
		return nil, err
	}
	rel2, err := s.locks.TryLock(applicationID, second)
	if err != nil {
		rel1()
		return nil, err
	}
	return func() { rel2(); rel1() }, nil
}

// IsBranchMergeable computes mergeability of source into destination
// without writing anything
func (s *GitService) IsBranchMergeable(ctx context.Context, applicationID uuid.UUID, srcBranch, dstBranch string) (*models.MergeStatus, error) {
	if _, _, err := s.loadConnected(ctx, applicationID); err != nil {
		return nil, err
	}

	release, err := s.lockPair(applicationID, srcBranch, dstBranch)
	if err != nil {
		return nil, err
	}
	defer release()

	src, err := s.repos.Handle(applicationID, srcBranch)
	if err != nil {
		return nil, err
	}
	dst, err := s.repos.Handle(applicationID, dstBranch)
	if err != nil {
		return nil, err
	}

	return s.repos.MergeDryRun(src, dst)
}

// MergeBranch merges source into destination, pushes the result and
// reconciles the destination into the database. Conflicts abort with the
// destination untouched.
func (s *GitService) MergeBranch(ctx context.Context, applicationID uuid.UUID, srcBranch, dstBranch, userID string) (string, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return "", err
	}
	if err := s.guard.CheckMutable(meta, dstBranch, "merge into"); err != nil {
		return "", err
	}

	release, err := s.lockPair(applicationID, srcBranch, dstBranch)
	if err != nil {
		return "", err
	}
	defer release()

	src, err := s.repos.Handle(applicationID, srcBranch)
	if err != nil {
		return "", err
	}
	dst, err := s.repos.Handle(applicationID, dstBranch)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("Merge branch %s into %s", srcBranch, dstBranch)
	author := s.authorFor(ctx, userID, applicationID)

	hash, err := s.repos.Merge(src, dst, message, author)
	if err != nil {
		return "", err
	}

	if err := s.repos.Push(ctx, dst, cred, meta.RemoteURL); err != nil {
		return "", err
	}
	if _, err := s.syncToDatabase(ctx, dst); err != nil {
		return "", err
	}
	if err := s.meta.SetBranchTip(ctx, applicationID, dstBranch, hash); err != nil {
		return "", err
	}
	s.invalidateStatus(applicationID, dstBranch)

	s.log.Info("merged branch",
		"artifact_id", applicationID,
		"source", srcBranch,
		"destination", dstBranch,
		"hash", hash,
	)
	return hash, nil
}

// CreateConflictedBranch snapshots an unresolved merge into a new branch so
// the conflict can be resolved with external tools. The destination branch
// stays untouched.
func (s *GitService) CreateConflictedBranch(ctx context.Context, applicationID uuid.UUID, srcBranch, dstBranch string) (string, error) {
	meta, cred, err := s.loadConnected(ctx, applicationID)
	if err != nil {
		return "", err
	}

	release, err := s.lockPair(applicationID, srcBranch, dstBranch)
	if err != nil {
		return "", err
	}
	defer release()

	src, err := s.repos.Handle(applicationID, srcBranch)
	if err != nil {
		return "", err
	}
	dst, err := s.repos.Handle(applicationID, dstBranch)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_conflicted_%d", srcBranch, time.Now().Unix())

	h, _, err := s.repos.MaterializeConflictedBranch(src, dst, name, meta.RemoteURL, s.defaultAuthor)
	if err != nil {
		return "", err
	}

	if err := s.repos.Push(ctx, h, cred, meta.RemoteURL); err != nil {
		s.repos.DeleteWorkingCopy(applicationID, name)
		return "", err
	}
	if err := s.recordTip(ctx, h); err != nil {
		return "", err
	}

	s.log.Info("created conflicted branch",
		"artifact_id", applicationID,
		"source", srcBranch,
		"destination", dstBranch,
		"branch", name,
	)
	return name, nil
}

// GetCommitHistory returns the branch's commit log, newest first
func (s *GitService) GetCommitHistory(ctx context.Context, applicationID uuid.UUID, branch string, limit int) ([]models.CommitRecord, error) {
	if _, _, err := s.loadConnected(ctx, applicationID); err != nil {
		return nil, err
	}

	h, err := s.repos.Handle(applicationID, branch)
	if err != nil {
		return nil, err
	}
	return s.repos.Log(h, limit)
}

// Disconnect detaches the application from git: metadata, credentials and
// every working copy are removed. The application itself is untouched.
func (s *GitService) Disconnect(ctx context.Context, applicationID uuid.UUID) error {
	if _, _, err := s.loadConnected(ctx, applicationID); err != nil {
		return err
	}

	release, err := s.locks.TryLockArtifact(applicationID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.meta.Delete(ctx, applicationID); err != nil {
		return err
	}
	if err := s.creds.DeleteByApplicationID(ctx, applicationID); err != nil {
		return err
	}
	if err := s.repos.DeleteArtifact(applicationID); err != nil {
		return err
	}

	s.log.Info("application disconnected from git", "artifact_id", applicationID)
	return nil
}

// ImportFromRemote clones a repository produced by this engine and creates
// a brand-new application from its default branch
func (s *GitService) ImportFromRemote(ctx context.Context, workspaceID uuid.UUID, req *models.ConnectRequest) (*models.Application, error) {
	cred, err := s.creds.GetByID(ctx, req.CredentialID)
	if err != nil {
		return nil, err
	}

	defaultBranch, err := s.repos.RemoteDefaultBranch(ctx, req.RemoteURL, cred, fallbackDefaultBranch)
	if err != nil {
		return nil, err
	}

	applicationID := uuid.New()

	h, err := s.repos.CloneBranch(ctx, applicationID, defaultBranch, req.RemoteURL, cred)
	if err != nil {
		return nil, err
	}

	tree, err := s.repos.ReadTree(h)
	if err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}
	app, err := s.serializer.FromFiles(tree)
	if err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}

	// The clone carries the exporting installation's identity; the import
	// gets a fresh one. The working copy directory is keyed by the new id,
	// so rewrite the manifest and commit the rename.
	app.ApplicationID = applicationID
	app.WorkspaceID = workspaceID

	newTree, err := s.serializer.ToFiles(app)
	if err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}
	if err := s.repos.WriteTree(h, newTree); err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}
	_, err = s.repos.Commit(h, "System generated commit: imported application", s.defaultAuthor, false)
	if err != nil && !errors.Is(err, ErrNoChanges) {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}

	if err := s.apps.Create(ctx, app); err != nil {
		s.repos.DeleteArtifact(applicationID)
		return nil, err
	}

	meta := &models.GitMetadata{
		ApplicationID: applicationID,
		RemoteURL:     req.RemoteURL,
		DefaultBranch: defaultBranch,
		CredentialID:  &req.CredentialID,
	}
	if err := s.meta.Upsert(ctx, meta); err != nil {
		return nil, err
	}
	if err := s.creds.BindToApplication(ctx, req.CredentialID, applicationID); err != nil {
		return nil, err
	}
	if err := s.recordTip(ctx, h); err != nil {
		return nil, err
	}

	s.log.Info("imported application from remote",
		"artifact_id", applicationID,
		"workspace_id", workspaceID,
		"remote", req.RemoteURL,
	)
	return app, nil
}

// TestConnection probes whether a remote is reachable with the given
// credential. Expected failures report false rather than erroring.
func (s *GitService) TestConnection(ctx context.Context, remoteURL string, credentialID uuid.UUID) (bool, error) {
	cred, err := s.creds.GetByID(ctx, credentialID)
	if err != nil {
		return false, err
	}
	return s.repos.TestConnection(ctx, remoteURL, cred)
}

// GenerateDeployKey creates and stores a new deploy keypair
func (s *GitService) GenerateDeployKey(ctx context.Context, keyType string) (*models.GitCredential, error) {
	return s.vault.GenerateDeployKey(ctx, keyType)
}

// SupportedKeyTypes lists the deploy key algorithms the engine can generate
func (s *GitService) SupportedKeyTypes() []DeployKeyType {
	return s.vault.SupportedKeyTypes()
}

// GetMetadata returns the application's git metadata
func (s *GitService) GetMetadata(ctx context.Context, applicationID uuid.UUID) (*models.GitMetadata, error) {
	return s.meta.GetByApplicationID(ctx, applicationID)
}

// GetProtectedBranches returns the raw protection entries
func (s *GitService) GetProtectedBranches(ctx context.Context, applicationID uuid.UUID) ([]string, error) {
	meta, err := s.meta.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return meta.ProtectedBranches, nil
}

// UpdateProtectedBranches replaces the protection entries after validating
// every pattern compiles
func (s *GitService) UpdateProtectedBranches(ctx context.Context, applicationID uuid.UUID, entries []string) error {
	if _, err := s.meta.GetByApplicationID(ctx, applicationID); err != nil {
		return err
	}
	if err := s.guard.ValidateEntries(entries); err != nil {
		return err
	}

	release, err := s.locks.TryLockArtifact(applicationID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.meta.UpdateProtectedBranches(ctx, applicationID, entries); err != nil {
		return err
	}

	s.log.Info("updated protected branches",
		"artifact_id", applicationID,
		"entries", len(entries),
	)
	return nil
}

// SaveProfile stores a commit author identity. A nil application id sets
// the user's default profile.
func (s *GitService) SaveProfile(ctx context.Context, profile *models.GitProfile) error {
	if profile.AuthorName == "" || profile.AuthorEmail == "" {
		return apperrors.New(apperrors.KindInternal, "author name and email are required")
	}
	return s.profiles.Upsert(ctx, profile)
}

// GetProfile resolves the effective profile for a user and application,
// falling back to the user's default
func (s *GitService) GetProfile(ctx context.Context, userID string, applicationID uuid.UUID) (*models.GitProfile, error) {
	if applicationID != uuid.Nil {
		profile, err := s.profiles.Get(ctx, userID, applicationID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return profile, nil
		}
	}
	profile, err := s.profiles.Get(ctx, userID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "no git profile for user %s", userID)
	}
	return profile, nil
}
