package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

// Merging is file-granular three-way: a file changed to different contents
// on both sides relative to the merge base is a conflict. MergeDryRun and
// Merge share this computation; only the side effects differ.

// mergeComputation is the shared result of the three-way analysis
type mergeComputation struct {
	srcTip, dstTip *object.Commit
	base           *object.Commit
	srcChanges     map[string]plumbing.Hash
	dstChanges     map[string]plumbing.Hash
	conflicts      []string
}

// fetchLocal pulls the source branch's objects into the destination
// repository through a throwaway file remote, so both tips live in one
// object store for ancestry computations
func (m *RepoManager) fetchLocal(dst, src *RepoHandle) (*object.Commit, error) {
	localRef := plumbing.ReferenceName("refs/local/" + src.Branch)

	// Recreate the throwaway remote each time; the source path is stable
	// but the remote may be left over from an earlier computation
	_ = dst.repo.DeleteRemote(localRemoteName)
	if _, err := dst.repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: localRemoteName,
		URLs: []string{src.Path},
	}); err != nil {
		return nil, fmt.Errorf("create local remote: %w", err)
	}

	err := dst.repo.Fetch(&git.FetchOptions{
		RemoteName: localRemoteName,
		RefSpecs: []gitcfg.RefSpec{
			gitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:%s", src.Branch, localRef)),
		},
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("fetch source branch %s: %w", src.Branch, err)
	}

	ref, err := dst.repo.Reference(localRef, true)
	if err != nil {
		return nil, fmt.Errorf("resolve fetched source tip: %w", err)
	}
	return dst.repo.CommitObject(ref.Hash())
}

func (m *RepoManager) computeMerge(dst, src *RepoHandle) (*mergeComputation, error) {
	srcTip, err := m.fetchLocal(dst, src)
	if err != nil {
		return nil, err
	}

	head, err := dst.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve destination HEAD: %w", err)
	}
	dstTip, err := dst.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("load destination tip: %w", err)
	}

	comp := &mergeComputation{srcTip: srcTip, dstTip: dstTip}

	bases, err := srcTip.MergeBase(dstTip)
	if err != nil {
		return nil, fmt.Errorf("compute merge base: %w", err)
	}
	if len(bases) > 0 {
		comp.base = bases[0]
	}

	comp.srcChanges, err = changesSince(comp.base, srcTip)
	if err != nil {
		return nil, err
	}
	comp.dstChanges, err = changesSince(comp.base, dstTip)
	if err != nil {
		return nil, err
	}

	for path, srcHash := range comp.srcChanges {
		dstHash, both := comp.dstChanges[path]
		if both && srcHash != dstHash {
			comp.conflicts = append(comp.conflicts, path)
		}
	}
	sort.Strings(comp.conflicts)

	return comp, nil
}

// changesSince maps changed paths to their final blob hash (zero hash for
// deletions). A nil base means every file in the tip tree is a change.
func changesSince(base, tip *object.Commit) (map[string]plumbing.Hash, error) {
	tipTree, err := tip.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tip tree: %w", err)
	}

	changes := make(map[string]plumbing.Hash)

	if base == nil {
		err := tipTree.Files().ForEach(func(f *object.File) error {
			changes[f.Name] = f.Hash
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk tip tree: %w", err)
		}
		return changes, nil
	}

	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("load base tree: %w", err)
	}

	diff, err := object.DiffTree(baseTree, tipTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	for _, change := range diff {
		name := change.To.Name
		hash := change.To.TreeEntry.Hash
		if name == "" {
			// deletion
			name = change.From.Name
			hash = plumbing.ZeroHash
		}
		changes[name] = hash
	}
	return changes, nil
}

// MergeDryRun computes mergeability without writing anything: conflict file
// list plus the source's ahead/behind counts against the destination
func (m *RepoManager) MergeDryRun(src, dst *RepoHandle) (*models.MergeStatus, error) {
	comp, err := m.computeMerge(dst, src)
	if err != nil {
		return nil, err
	}

	ahead, behind, err := m.aheadBehindCommits(comp.srcTip, comp.dstTip)
	if err != nil {
		return nil, err
	}

	return &models.MergeStatus{
		Mergeable:        len(comp.conflicts) == 0,
		ConflictingFiles: comp.conflicts,
		Ahead:            ahead,
		Behind:           behind,
	}, nil
}

// Merge performs the real merge into the destination working copy. On
// conflict it returns MergeConflict without mutating the destination; the
// orchestrator then materializes a conflicted branch instead.
func (m *RepoManager) Merge(src, dst *RepoHandle, message string, author Author) (string, error) {
	comp, err := m.computeMerge(dst, src)
	if err != nil {
		return "", err
	}

	if len(comp.conflicts) > 0 {
		return "", apperrors.New(apperrors.KindMergeConflict,
			"merge of %s into %s conflicts in %d file(s)", src.Branch, dst.Branch, len(comp.conflicts))
	}

	// Source fully contained in destination: nothing to do
	if comp.base != nil && comp.base.Hash == comp.srcTip.Hash {
		return comp.dstTip.Hash.String(), nil
	}

	// Destination is an ancestor of source: fast-forward
	if comp.base != nil && comp.base.Hash == comp.dstTip.Hash {
		branchRef := plumbing.NewBranchReferenceName(dst.Branch)
		if err := dst.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, comp.srcTip.Hash)); err != nil {
			return "", fmt.Errorf("advance branch ref: %w", err)
		}
		if err := m.resetTo(dst, comp.srcTip.Hash.String()); err != nil {
			return "", fmt.Errorf("sync worktree to fast-forward: %w", err)
		}
		return comp.srcTip.Hash.String(), nil
	}

	// True merge: apply the source side's changes and commit with both parents
	if err := m.applyChanges(dst, comp.srcChanges); err != nil {
		return "", err
	}

	w, err := dst.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage merge result: %w", err)
	}

	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
		Parents:           []plumbing.Hash{comp.dstTip.Hash, comp.srcTip.Hash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("create merge commit: %w", err)
	}
	return hash.String(), nil
}

// MaterializeConflictedBranch snapshots an unresolved merge into a fresh
// branch: non-conflicting source changes are applied cleanly, conflicting
// files carry standard conflict markers. The destination branch is never
// touched.
func (m *RepoManager) MaterializeConflictedBranch(src, dst *RepoHandle, newBranch, remoteURL string, author Author) (*RepoHandle, string, error) {
	comp, err := m.computeMerge(dst, src)
	if err != nil {
		return nil, "", err
	}

	nh, err := m.CreateBranchFrom(dst, newBranch, remoteURL)
	if err != nil {
		return nil, "", err
	}

	conflictSet := make(map[string]bool, len(comp.conflicts))
	for _, p := range comp.conflicts {
		conflictSet[p] = true
	}

	for path, srcHash := range comp.srcChanges {
		full := filepath.Join(nh.Path, filepath.FromSlash(path))

		if !conflictSet[path] {
			if err := writeChange(dst, full, srcHash); err != nil {
				m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
				return nil, "", err
			}
			continue
		}

		dstContent, err := os.ReadFile(full)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
			return nil, "", fmt.Errorf("read conflicting file %s: %w", path, err)
		}
		srcContent, err := blobContent(dst.repo, srcHash)
		if err != nil {
			m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
			return nil, "", err
		}

		marked := conflictMarkers(dstContent, srcContent, dst.Branch, src.Branch)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
			return nil, "", fmt.Errorf("create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(full, marked, 0o644); err != nil {
			m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
			return nil, "", fmt.Errorf("write conflicting file %s: %w", path, err)
		}
	}

	message := fmt.Sprintf("Unresolved merge of %s into %s", src.Branch, dst.Branch)
	hash, err := m.Commit(nh, message, author, false)
	if err != nil && !errors.Is(err, ErrNoChanges) {
		m.DeleteWorkingCopy(nh.ApplicationID, nh.Branch)
		return nil, "", err
	}
	if errors.Is(err, ErrNoChanges) {
		hash, err = m.Tip(nh)
		if err != nil {
			return nil, "", err
		}
	}

	return nh, hash, nil
}

// applyChanges writes one side's changes into the destination worktree
func (m *RepoManager) applyChanges(dst *RepoHandle, changes map[string]plumbing.Hash) error {
	for path, hash := range changes {
		full := filepath.Join(dst.Path, filepath.FromSlash(path))
		if err := writeChange(dst, full, hash); err != nil {
			return err
		}
	}
	return nil
}

func writeChange(h *RepoHandle, full string, hash plumbing.Hash) error {
	if hash == plumbing.ZeroHash {
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", full, err)
		}
		return nil
	}

	content, err := blobContent(h.repo, hash)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", full, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", full, err)
	}
	return nil
}

func blobContent(repo *git.Repository, hash plumbing.Hash) ([]byte, error) {
	blob, err := repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", hash, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", hash, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func conflictMarkers(ours, theirs []byte, oursLabel, theirsLabel string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<<<<<< %s\n", oursLabel)
	buf.Write(ensureTrailingNewline(ours))
	buf.WriteString("=======\n")
	buf.Write(ensureTrailingNewline(theirs))
	fmt.Fprintf(&buf, ">>>>>>> %s\n", theirsLabel)
	return buf.Bytes()
}

func ensureTrailingNewline(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	return append(b, '\n')
}

// aheadBehind counts commits reachable from one tip but not the other,
// resolving both hashes in the handle's object store
func (m *RepoManager) aheadBehind(h *RepoHandle, local, remote plumbing.Hash) (ahead, behind int, err error) {
	localCommit, err := h.repo.CommitObject(local)
	if err != nil {
		return 0, 0, fmt.Errorf("load local tip: %w", err)
	}
	remoteCommit, err := h.repo.CommitObject(remote)
	if err != nil {
		return 0, 0, fmt.Errorf("load remote tip: %w", err)
	}
	return m.aheadBehindCommits(localCommit, remoteCommit)
}

func (m *RepoManager) aheadBehindCommits(a, b *object.Commit) (ahead, behind int, err error) {
	setA, err := ancestorSet(a)
	if err != nil {
		return 0, 0, err
	}
	setB, err := ancestorSet(b)
	if err != nil {
		return 0, 0, err
	}

	for hash := range setA {
		if !setB[hash] {
			ahead++
		}
	}
	for hash := range setB {
		if !setA[hash] {
			behind++
		}
	}
	return ahead, behind, nil
}

// countCommits counts ancestors of from; a zero until hash counts the whole
// history
func (m *RepoManager) countCommits(h *RepoHandle, from, until plumbing.Hash) (int, error) {
	commit, err := h.repo.CommitObject(from)
	if err != nil {
		return 0, fmt.Errorf("load commit: %w", err)
	}
	set, err := ancestorSet(commit)
	if err != nil {
		return 0, err
	}
	if until != plumbing.ZeroHash {
		delete(set, until)
	}
	return len(set), nil
}

func ancestorSet(c *object.Commit) (map[plumbing.Hash]bool, error) {
	set := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(c, nil, nil)
	err := iter.ForEach(func(commit *object.Commit) error {
		set[commit.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk ancestors: %w", err)
	}
	return set, nil
}
