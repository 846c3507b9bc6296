package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/uuid"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/config"
	"github.com/theAravinthM/appsmith/common/logger"
)

// ErrNoChanges reports a commit attempt with a clean working tree. It is a
// reported no-op, not a failure.
var ErrNoChanges = errors.New("no changes to commit")

// localRemoteName is the throwaway remote used to exchange objects between
// two working copies of the same artifact
const localRemoteName = "local"

// Author identifies the committer of one commit
type Author struct {
	Name  string
	Email string
}

// RepoHandle is one on-disk working copy for an (artifact, branch) pair.
// All mutation goes through the lock manager; the handle itself carries no
// synchronization.
type RepoHandle struct {
	ApplicationID uuid.UUID
	Branch        string
	Path          string

	repo *git.Repository
}

// RepoManager owns exactly one working copy per (artifact, branch) pair,
// laid out under root/<artifact-id>/<branch>. It wraps go-git plumbing and
// translates its failures into the engine's error taxonomy.
type RepoManager struct {
	root           string
	networkTimeout time.Duration
	retryCount     int
	retryBackoff   time.Duration
	log            *logger.Logger

	mu      sync.Mutex
	handles map[string]*RepoHandle
}

// NewRepoManager creates a new repository manager
func NewRepoManager(cfg config.GitConfig, log *logger.Logger) *RepoManager {
	return &RepoManager{
		root:           cfg.RepoRoot,
		networkTimeout: cfg.NetworkTimeout,
		retryCount:     cfg.RetryCount,
		retryBackoff:   cfg.RetryBackoff,
		log:            log,
		handles:        make(map[string]*RepoHandle),
	}
}

func branchSlug(branch string) string {
	return strings.ReplaceAll(branch, "/", "__")
}

func (m *RepoManager) workPath(applicationID uuid.UUID, branch string) string {
	return filepath.Join(m.root, applicationID.String(), branchSlug(branch))
}

// Handle returns the working copy for (artifact, branch), opening it from
// disk if needed. BranchNotFound when no working copy exists.
func (m *RepoManager) Handle(applicationID uuid.UUID, branch string) (*RepoHandle, error) {
	key := applicationID.String() + "/" + branch

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[key]; ok {
		return h, nil
	}

	path := m.workPath(applicationID, branch)
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, apperrors.New(apperrors.KindBranchNotFound, "no working copy for branch %s", branch)
		}
		return nil, fmt.Errorf("open working copy %s: %w", path, err)
	}

	h := &RepoHandle{ApplicationID: applicationID, Branch: branch, Path: path, repo: repo}
	m.handles[key] = h
	return h, nil
}

// HasWorkingCopy reports whether a working copy exists for the pair
func (m *RepoManager) HasWorkingCopy(applicationID uuid.UUID, branch string) bool {
	_, err := m.Handle(applicationID, branch)
	return err == nil
}

func (m *RepoManager) register(h *RepoHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[h.ApplicationID.String()+"/"+h.Branch] = h
}

// InitOrClone creates the working copy for (artifact, branch) from the
// remote. An empty remote yields a fresh repository with HEAD pointed at the
// branch; the bool result reports that case so the caller can seed an
// initial commit.
func (m *RepoManager) InitOrClone(ctx context.Context, applicationID uuid.UUID, branch, remoteURL string, cred *models.GitCredential) (*RepoHandle, bool, error) {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return nil, false, err
	}

	path := m.workPath(applicationID, branch)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create working copy parent: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           remoteURL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  false,
	})

	empty := false
	switch {
	case err == nil:
		// cloned

	case errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, git.NoMatchingRefSpecError{}):
		// Fresh or refless remote: init locally and point HEAD at the branch
		os.RemoveAll(path)
		repo, err = git.PlainInit(path, false)
		if err != nil {
			return nil, false, fmt.Errorf("init working copy: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))); err != nil {
			return nil, false, fmt.Errorf("point HEAD at %s: %w", branch, err)
		}
		if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{
			Name: git.DefaultRemoteName,
			URLs: []string{remoteURL},
		}); err != nil {
			return nil, false, fmt.Errorf("configure remote: %w", err)
		}
		empty = true

	default:
		os.RemoveAll(path)
		if classified := classifyGitError(err, "clone"); classified != err {
			return nil, false, classified
		}
		return nil, false, fmt.Errorf("clone %s: %w", remoteURL, err)
	}

	h := &RepoHandle{ApplicationID: applicationID, Branch: branch, Path: path, repo: repo}
	m.register(h)

	m.log.Info("working copy ready",
		"artifact_id", applicationID,
		"branch", branch,
		"empty_remote", empty,
	)
	return h, empty, nil
}

// CreateBranchFrom materializes a new branch's working copy from an existing
// one, without touching the network. Fails with AlreadyExists when the
// target working copy is already present.
func (m *RepoManager) CreateBranchFrom(src *RepoHandle, newBranch, remoteURL string) (*RepoHandle, error) {
	path := m.workPath(src.ApplicationID, newBranch)
	if _, err := os.Stat(path); err == nil {
		return nil, apperrors.New(apperrors.KindAlreadyExists, "branch %s already exists", newBranch)
	}

	repo, err := git.PlainClone(path, false, &git.CloneOptions{
		URL:           src.Path,
		ReferenceName: plumbing.NewBranchReferenceName(src.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("branch from %s: %w", src.Branch, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	if err := w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(newBranch),
		Create: true,
	}); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("checkout new branch %s: %w", newBranch, err)
	}

	// The local clone is origin'd at the source path; rewire to the real remote
	if err := repo.DeleteRemote(git.DefaultRemoteName); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("rewire remote: %w", err)
	}
	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{remoteURL},
	}); err != nil {
		os.RemoveAll(path)
		return nil, fmt.Errorf("configure remote: %w", err)
	}

	h := &RepoHandle{ApplicationID: src.ApplicationID, Branch: newBranch, Path: path, repo: repo}
	m.register(h)
	return h, nil
}

// CloneBranch materializes a working copy for a branch that exists on the
// remote but not locally
func (m *RepoManager) CloneBranch(ctx context.Context, applicationID uuid.UUID, branch, remoteURL string, cred *models.GitCredential) (*RepoHandle, error) {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return nil, err
	}

	path := m.workPath(applicationID, branch)

	ctx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           remoteURL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		os.RemoveAll(path)
		if errors.Is(err, git.NoMatchingRefSpecError{}) || errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, apperrors.New(apperrors.KindBranchNotFound, "branch %s does not exist on the remote", branch)
		}
		if classified := classifyGitError(err, "clone"); classified != err {
			return nil, classified
		}
		return nil, fmt.Errorf("clone branch %s: %w", branch, err)
	}

	h := &RepoHandle{ApplicationID: applicationID, Branch: branch, Path: path, repo: repo}
	m.register(h)
	return h, nil
}

// DeleteRemoteBranch removes a branch on the remote by pushing an empty
// refspec. The handle only provides remote configuration; its own branch is
// unaffected.
func (m *RepoManager) DeleteRemoteBranch(ctx context.Context, h *RepoHandle, cred *models.GitCredential, branch string) error {
	remote, err := h.repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return fmt.Errorf("resolve remote: %w", err)
	}
	auth, err := authFor(remote.Config().URLs[0], cred)
	if err != nil {
		return err
	}

	refSpec := gitcfg.RefSpec(fmt.Sprintf(":refs/heads/%s", branch))

	return m.withRetry(ctx, "delete remote branch", func(opCtx context.Context) error {
		err := h.repo.PushContext(opCtx, &git.PushOptions{
			RemoteName: git.DefaultRemoteName,
			RefSpecs:   []gitcfg.RefSpec{refSpec},
			Auth:       auth,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return err
	})
}

// RemoteBranches maps branch names to commit hashes from the handle's
// remote tracking refs. Callers fetch first when freshness matters.
func (m *RepoManager) RemoteBranches(h *RepoHandle) (map[string]string, error) {
	refs, err := h.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer refs.Close()

	prefix := "refs/remotes/" + git.DefaultRemoteName + "/"
	branches := make(map[string]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		short := strings.TrimPrefix(name, prefix)
		if short == "HEAD" {
			return nil
		}
		branches[short] = ref.Hash().String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk references: %w", err)
	}
	return branches, nil
}

// DeleteWorkingCopy removes the on-disk working copy and forgets the handle
func (m *RepoManager) DeleteWorkingCopy(applicationID uuid.UUID, branch string) error {
	m.mu.Lock()
	delete(m.handles, applicationID.String()+"/"+branch)
	m.mu.Unlock()

	if err := os.RemoveAll(m.workPath(applicationID, branch)); err != nil {
		return fmt.Errorf("remove working copy: %w", err)
	}
	return nil
}

// DeleteArtifact removes every working copy of an artifact (disconnect)
func (m *RepoManager) DeleteArtifact(applicationID uuid.UUID) error {
	m.mu.Lock()
	prefix := applicationID.String() + "/"
	for key := range m.handles {
		if strings.HasPrefix(key, prefix) {
			delete(m.handles, key)
		}
	}
	m.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(m.root, applicationID.String())); err != nil {
		return fmt.Errorf("remove artifact working copies: %w", err)
	}
	return nil
}

// LocalBranches lists branches that have a working copy on disk, by reading
// each working copy's HEAD (directory names are slugs, not authoritative)
func (m *RepoManager) LocalBranches(applicationID uuid.UUID) ([]string, error) {
	dir := filepath.Join(m.root, applicationID.String())
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list working copies: %w", err)
	}

	var branches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		repo, err := git.PlainOpen(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		head, err := repo.Reference(plumbing.HEAD, false)
		if err != nil || head.Type() != plumbing.SymbolicReference {
			continue
		}
		branches = append(branches, head.Target().Short())
	}
	sort.Strings(branches)
	return branches, nil
}

// WriteTree replaces the tracked content of the working copy with the file
// tree. Files under .git are never touched.
func (m *RepoManager) WriteTree(h *RepoHandle, tree *FileTree) error {
	entries, err := os.ReadDir(h.Path)
	if err != nil {
		return fmt.Errorf("read working copy: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == git.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(h.Path, entry.Name())); err != nil {
			return fmt.Errorf("clear working copy: %w", err)
		}
	}

	for _, p := range tree.Paths() {
		full := filepath.Join(h.Path, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
		if err := os.WriteFile(full, tree.Files[p], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}

// ReadTree reads the working copy's tracked content back into a file tree
func (m *RepoManager) ReadTree(h *RepoHandle) (*FileTree, error) {
	tree := NewFileTree()

	err := filepath.WalkDir(h.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(h.Path, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree.Files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read working copy: %w", err)
	}
	return tree, nil
}

// Tip returns the working copy's current HEAD commit hash, empty when the
// branch has no commits yet
func (m *RepoManager) Tip(h *RepoHandle) (string, error) {
	head, err := h.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Commit stages all changes and creates a commit. ErrNoChanges when the
// working tree is clean and amend was not requested.
func (m *RepoManager) Commit(h *RepoHandle, message string, author Author, amend bool) (string, error) {
	w, err := h.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage changes: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("compute status: %w", err)
	}
	if status.IsClean() && !amend {
		return "", ErrNoChanges
	}

	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
		Amend: amend,
	})
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	return hash.String(), nil
}

// Push publishes the branch to its remote, retrying transient network
// failures a bounded number of times
func (m *RepoManager) Push(ctx context.Context, h *RepoHandle, cred *models.GitCredential, remoteURL string) error {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return err
	}

	refSpec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", h.Branch, h.Branch))

	return m.withRetry(ctx, "push", func(opCtx context.Context) error {
		err := h.repo.PushContext(opCtx, &git.PushOptions{
			RemoteName: git.DefaultRemoteName,
			RefSpecs:   []gitcfg.RefSpec{refSpec},
			Auth:       auth,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return err
	})
}

// Fetch updates the remote tracking refs without touching the worktree.
// prune drops tracking refs deleted on the remote.
func (m *RepoManager) Fetch(ctx context.Context, h *RepoHandle, cred *models.GitCredential, remoteURL string, prune bool) error {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return err
	}

	return m.withRetry(ctx, "fetch", func(opCtx context.Context) error {
		err := h.repo.FetchContext(opCtx, &git.FetchOptions{
			RemoteName: git.DefaultRemoteName,
			RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
			Auth:       auth,
			Force:      true,
			Prune:      prune,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return err
	})
}

// Pull fetches and fast-forwards the branch. A pull that cannot fast-forward
// fails with MergeConflict and leaves the working copy exactly as it was.
func (m *RepoManager) Pull(ctx context.Context, h *RepoHandle, cred *models.GitCredential, remoteURL string) (string, error) {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return "", err
	}

	preTip, err := m.Tip(h)
	if err != nil {
		return "", err
	}

	w, err := h.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	err = w.PullContext(opCtx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(h.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return preTip, nil
	}
	if err != nil {
		// Restore the pre-pull state before surfacing the failure
		if preTip != "" {
			if resetErr := m.resetTo(h, preTip); resetErr != nil {
				m.log.Error("failed to restore working copy after pull", "error", resetErr)
			}
		}
		if classified := classifyGitError(err, "pull"); classified != err {
			return "", classified
		}
		return "", fmt.Errorf("pull %s: %w", h.Branch, err)
	}

	return m.Tip(h)
}

// ResetHard discards all uncommitted changes, restoring the last commit
func (m *RepoManager) ResetHard(h *RepoHandle) error {
	w, err := h.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := w.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("hard reset: %w", err)
	}
	// Reset does not remove untracked files; clean them so the working copy
	// matches the commit exactly
	if err := w.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("clean untracked files: %w", err)
	}
	return nil
}

func (m *RepoManager) resetTo(h *RepoHandle, hash string) error {
	w, err := h.repo.Worktree()
	if err != nil {
		return err
	}
	if err := w.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: plumbing.NewHash(hash),
	}); err != nil {
		return err
	}
	return w.Clean(&git.CleanOptions{Dir: true})
}

// Status reports modified files plus ahead/behind counts against the remote
// tracking ref. It never mutates the working copy.
func (m *RepoManager) Status(h *RepoHandle) (*models.GitStatus, error) {
	w, err := h.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return nil, fmt.Errorf("compute status: %w", err)
	}

	result := &models.GitStatus{Clean: status.IsClean()}
	for path, fs := range status {
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			result.ModifiedFiles = append(result.ModifiedFiles, path)
		}
	}
	sort.Strings(result.ModifiedFiles)

	localRef, err := h.repo.Reference(plumbing.NewBranchReferenceName(h.Branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve local ref: %w", err)
	}

	remoteRef, err := h.repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, h.Branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Branch never pushed: everything local is "ahead"
		ahead, countErr := m.countCommits(h, localRef.Hash(), plumbing.ZeroHash)
		if countErr != nil {
			return nil, countErr
		}
		result.Ahead = ahead
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve remote ref: %w", err)
	}

	result.Ahead, result.Behind, err = m.aheadBehind(h, localRef.Hash(), remoteRef.Hash())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Log returns the branch's commit history, newest first
func (m *RepoManager) Log(h *RepoHandle, limit int) ([]models.CommitRecord, error) {
	head, err := h.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := h.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var records []models.CommitRecord
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(records) >= limit {
			return io.EOF
		}
		record := models.CommitRecord{
			Hash:        c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Message:     strings.TrimSpace(c.Message),
			Timestamp:   c.Author.When,
		}
		for _, p := range c.ParentHashes {
			record.Parents = append(record.Parents, p.String())
		}
		records = append(records, record)
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return records, nil
}

// TestConnection probes the remote's ref advertisement without mutating any
// state. Expected failures (auth, unreachable) report false.
func (m *RepoManager) TestConnection(ctx context.Context, remoteURL string, cred *models.GitCredential) (bool, error) {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return false, nil
	}

	remote := git.NewRemote(memory.NewStorage(), &gitcfg.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{remoteURL},
	})

	opCtx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	_, err = remote.ListContext(opCtx, &git.ListOptions{Auth: auth})
	if err == nil || errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return true, nil
	}

	classified := classifyGitError(err, "probe")
	switch apperrors.KindOf(classified) {
	case apperrors.KindAuthFailed, apperrors.KindRemoteUnreachable, apperrors.KindTimeout:
		m.log.Info("connection probe failed", "remote", remoteURL, "error", err)
		return false, nil
	}
	return false, fmt.Errorf("probe remote: %w", err)
}

// RemoteDefaultBranch resolves the branch the remote's HEAD points at. An
// empty or refless remote yields the provided fallback.
func (m *RepoManager) RemoteDefaultBranch(ctx context.Context, remoteURL string, cred *models.GitCredential, fallback string) (string, error) {
	auth, err := authFor(remoteURL, cred)
	if err != nil {
		return "", err
	}

	remote := git.NewRemote(memory.NewStorage(), &gitcfg.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{remoteURL},
	})

	opCtx, cancel := context.WithTimeout(ctx, m.networkTimeout)
	defer cancel()

	refs, err := remote.ListContext(opCtx, &git.ListOptions{Auth: auth})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return fallback, nil
	}
	if err != nil {
		if classified := classifyGitError(err, "list"); classified != err {
			return "", classified
		}
		return "", fmt.Errorf("list remote refs: %w", err)
	}

	var headHash plumbing.Hash
	for _, ref := range refs {
		if ref.Name() != plumbing.HEAD {
			continue
		}
		if ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
		headHash = ref.Hash()
	}

	// Some transports advertise HEAD as a plain hash; pick a branch that
	// points at it, preferring the fallback name when it matches
	var candidates []string
	for _, ref := range refs {
		if ref.Name().IsBranch() && ref.Hash() == headHash {
			if ref.Name().Short() == fallback {
				return fallback, nil
			}
			candidates = append(candidates, ref.Name().Short())
		}
	}
	if len(candidates) > 0 {
		sort.Strings(candidates)
		return candidates[0], nil
	}
	return fallback, nil
}

// withRetry runs a network operation with the configured timeout, retrying
// transient failures with linear backoff
func (m *RepoManager) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= m.retryCount; attempt++ {
		if attempt > 0 {
			m.log.Warn("retrying git operation",
				"operation", operation,
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(time.Duration(attempt) * m.retryBackoff):
			case <-ctx.Done():
				return apperrors.Wrap(apperrors.KindTimeout, ctx.Err(), "%s canceled", operation)
			}
		}

		opCtx, cancel := context.WithTimeout(ctx, m.networkTimeout)
		err := fn(opCtx)
		cancel()

		if err == nil {
			return nil
		}

		classified := classifyGitError(err, operation)
		if classified == err {
			classified = fmt.Errorf("%s: %w", operation, err)
		}
		if !retryable(classified) {
			return classified
		}
		lastErr = classified
	}
	return lastErr
}
