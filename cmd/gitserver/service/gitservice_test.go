package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/config"
	"github.com/theAravinthM/appsmith/common/logger"
)

type harness struct {
	svc      *GitService
	apps     *fakeApplicationStore
	meta     *fakeMetadataStore
	creds    *fakeCredentialStore
	profiles *fakeProfileStore
	repos    *RepoManager

	remote string
	appID  uuid.UUID
	credID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.GitConfig{
		RepoRoot:           t.TempDir(),
		NetworkTimeout:     30 * time.Second,
		RetryCount:         1,
		RetryBackoff:       10 * time.Millisecond,
		StatusCacheTTL:     time.Minute,
		AutoCommitInterval: time.Hour,
		DefaultAuthorName:  "Appsmith",
		DefaultAuthorEmail: "appsmithbot@appsmith.com",
	}
	log := logger.New("error", "text")

	guard, err := NewBranchProtectionGuard(log)
	require.NoError(t, err)

	h := &harness{
		apps:     newFakeApplicationStore(),
		meta:     newFakeMetadataStore(),
		creds:    newFakeCredentialStore(),
		profiles: newFakeProfileStore(),
		repos:    NewRepoManager(cfg, log),
		remote:   newBareRemote(t),
	}
	h.svc = NewGitService(
		cfg,
		h.apps, h.meta, h.creds, h.profiles,
		h.repos,
		NewBranchLockManager(),
		guard,
		NewCredentialVault(h.creds, log),
		log,
	)

	app := sampleApplication()
	h.appID = app.ApplicationID
	require.NoError(t, h.apps.Create(context.Background(), app))

	cred := &models.GitCredential{CredentialID: uuid.New(), KeyType: KeyTypeECDSA}
	h.credID = cred.CredentialID
	require.NoError(t, h.creds.Create(context.Background(), cred))

	return h
}

func (h *harness) connect(t *testing.T) *models.GitMetadata {
	t.Helper()
	meta, err := h.svc.Connect(context.Background(), h.appID, "", &models.ConnectRequest{
		RemoteURL:    h.remote,
		CredentialID: h.credID,
	})
	require.NoError(t, err)
	return meta
}

// mutate changes the application in the database without touching git
func (h *harness) mutate(t *testing.T, name string) {
	t.Helper()
	app, err := h.apps.GetByID(context.Background(), h.appID)
	require.NoError(t, err)
	app.Name = name
	require.NoError(t, h.apps.Update(context.Background(), app))
}

func TestGitService_Connect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	meta := h.connect(t)
	assert.Equal(t, h.remote, meta.RemoteURL)
	assert.Equal(t, "master", meta.DefaultBranch)

	// the initial state was committed and the tip recorded
	tip, err := h.meta.GetBranchTip(ctx, h.appID, "master")
	require.NoError(t, err)
	assert.NotEmpty(t, tip)

	records, err := h.svc.GetCommitHistory(ctx, h.appID, "master", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, "System generated commit")
}

func TestGitService_Connect_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.connect(t)
	again, err := h.svc.Connect(ctx, h.appID, "", &models.ConnectRequest{
		RemoteURL:    h.remote,
		CredentialID: h.credID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.RemoteURL, again.RemoteURL)

	// a different remote is rejected
	_, err = h.svc.Connect(ctx, h.appID, "", &models.ConnectRequest{
		RemoteURL:    newBareRemote(t),
		CredentialID: h.credID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyExists))
}

func TestGitService_Connect_PopulatedRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	tipBefore, err := h.meta.GetBranchTip(ctx, h.appID, "master")
	require.NoError(t, err)

	// drop the local side, keep the remote content, drift the database
	require.NoError(t, h.svc.Disconnect(ctx, h.appID))
	h.mutate(t, "local-drift")

	cred := &models.GitCredential{CredentialID: uuid.New(), KeyType: KeyTypeECDSA}
	require.NoError(t, h.creds.Create(ctx, cred))

	// reconnecting adopts the remote state instead of publishing the drift
	_, err = h.svc.Connect(ctx, h.appID, "", &models.ConnectRequest{
		RemoteURL:    h.remote,
		CredentialID: cred.CredentialID,
	})
	require.NoError(t, err)

	stored, err := h.apps.GetByID(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, "crm-dashboard", stored.Name)

	records, err := h.svc.GetCommitHistory(ctx, h.appID, "master", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	tipAfter, err := h.meta.GetBranchTip(ctx, h.appID, "master")
	require.NoError(t, err)
	assert.Equal(t, tipBefore, tipAfter)
}

func TestGitService_CommitAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	// nothing changed since connect
	_, err := h.svc.Commit(ctx, h.appID, "master", "", &models.CommitRequest{Message: "noop"})
	assert.ErrorIs(t, err, ErrNoChanges)

	h.mutate(t, "renamed-app")

	status, err := h.svc.GetStatus(ctx, h.appID, "master", false)
	require.NoError(t, err)
	assert.False(t, status.Clean)
	assert.Contains(t, status.ModifiedFiles, "manifest.json")

	hash, err := h.svc.Commit(ctx, h.appID, "master", "", &models.CommitRequest{Message: "rename"})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	status, err = h.svc.GetStatus(ctx, h.appID, "master", false)
	require.NoError(t, err)
	assert.True(t, status.Clean)

	tip, err := h.meta.GetBranchTip(ctx, h.appID, "master")
	require.NoError(t, err)
	assert.Equal(t, hash, tip)
}

func TestGitService_Commit_UsesProfileAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	require.NoError(t, h.svc.SaveProfile(ctx, &models.GitProfile{
		UserID:      "user-1",
		AuthorName:  "Jo Dev",
		AuthorEmail: "jo@example.com",
	}))

	h.mutate(t, "authored")
	_, err := h.svc.Commit(ctx, h.appID, "master", "user-1", &models.CommitRequest{Message: "by jo"})
	require.NoError(t, err)

	records, err := h.svc.GetCommitHistory(ctx, h.appID, "master", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Jo Dev", records[0].AuthorName)
	assert.Equal(t, "jo@example.com", records[0].AuthorEmail)
}

func TestGitService_Commit_ProtectedBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	require.NoError(t, h.svc.UpdateProtectedBranches(ctx, h.appID, []string{"master"}))

	h.mutate(t, "blocked")
	_, err := h.svc.Commit(ctx, h.appID, "master", "", &models.CommitRequest{Message: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBranchProtected))
}

func TestGitService_Push_ProtectedBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	require.NoError(t, h.svc.UpdateProtectedBranches(ctx, h.appID, []string{"master"}))

	err := h.svc.Push(ctx, h.appID, "master")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBranchProtected))
}

func TestGitService_Discard_ProtectedBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	require.NoError(t, h.svc.UpdateProtectedBranches(ctx, h.appID, []string{"master"}))

	h.mutate(t, "survives-discard")
	_, err := h.svc.DiscardChanges(ctx, h.appID, "master")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBranchProtected))

	// the uncommitted database edit is untouched
	stored, err := h.apps.GetByID(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, "survives-discard", stored.Name)
}

func TestGitService_CreateCheckoutBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	branch, err := h.svc.CreateBranch(ctx, h.appID, "master", "feature")
	require.NoError(t, err)
	assert.Equal(t, "feature", branch.Name)
	assert.False(t, branch.IsDefault)

	// commit a rename on feature, then check master back out
	h.mutate(t, "feature-name")
	_, err = h.svc.Commit(ctx, h.appID, "feature", "", &models.CommitRequest{Message: "feature rename"})
	require.NoError(t, err)

	app, err := h.svc.CheckoutBranch(ctx, h.appID, "master")
	require.NoError(t, err)
	assert.Equal(t, "crm-dashboard", app.Name)

	app, err = h.svc.CheckoutBranch(ctx, h.appID, "feature")
	require.NoError(t, err)
	assert.Equal(t, "feature-name", app.Name)
}

func TestGitService_CheckoutBranch_CreatesMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	// the branch exists neither locally nor on the remote
	app, err := h.svc.CheckoutBranch(ctx, h.appID, "brand-new")
	require.NoError(t, err)
	assert.Equal(t, "crm-dashboard", app.Name)
	assert.True(t, h.repos.HasWorkingCopy(h.appID, "brand-new"))

	branches, err := h.svc.ListBranches(ctx, h.appID, false)
	require.NoError(t, err)
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, "brand-new")
}

func TestGitService_ListBranches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	_, err := h.svc.CreateBranch(ctx, h.appID, "master", "feature")
	require.NoError(t, err)

	branches, err := h.svc.ListBranches(ctx, h.appID, false)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "feature", branches[0].Name)
	assert.Equal(t, "master", branches[1].Name)
	assert.True(t, branches[1].IsDefault)
}

func TestGitService_DeleteBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	_, err := h.svc.CreateBranch(ctx, h.appID, "master", "feature")
	require.NoError(t, err)

	// default branch is never deletable
	err = h.svc.DeleteBranch(ctx, h.appID, "master")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBranchProtected))

	require.NoError(t, h.svc.DeleteBranch(ctx, h.appID, "feature"))

	branches, err := h.svc.ListBranches(ctx, h.appID, true)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "master", branches[0].Name)
}

func TestGitService_DiscardChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	h.mutate(t, "about-to-be-discarded")

	app, err := h.svc.DiscardChanges(ctx, h.appID, "master")
	require.NoError(t, err)
	assert.Equal(t, "crm-dashboard", app.Name)

	stored, err := h.apps.GetByID(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, "crm-dashboard", stored.Name)
}

func TestGitService_MergeBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	_, err := h.svc.CreateBranch(ctx, h.appID, "master", "feature")
	require.NoError(t, err)

	h.mutate(t, "merged-name")
	_, err = h.svc.Commit(ctx, h.appID, "feature", "", &models.CommitRequest{Message: "feature rename"})
	require.NoError(t, err)

	status, err := h.svc.IsBranchMergeable(ctx, h.appID, "feature", "master")
	require.NoError(t, err)
	assert.True(t, status.Mergeable)

	hash, err := h.svc.MergeBranch(ctx, h.appID, "feature", "master", "")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// the destination branch's state landed in the database
	app, err := h.apps.GetByID(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, "merged-name", app.Name)
}

func TestGitService_Merge_SameBranchRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	_, err := h.svc.MergeBranch(ctx, h.appID, "master", "master", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))

	_, err = h.svc.IsBranchMergeable(ctx, h.appID, "master", "master")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
}

func TestGitService_FetchRemote_HoldsBranchLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	release, err := h.svc.locks.TryLock(h.appID, "master")
	require.NoError(t, err)
	defer release()

	_, err = h.svc.FetchRemoteChanges(ctx, h.appID, "master")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindLockContention))
}

func TestGitService_CreateConflictedBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	_, err := h.svc.CreateBranch(ctx, h.appID, "master", "feature")
	require.NoError(t, err)

	// conflicting renames on both branches
	h.mutate(t, "feature-side")
	_, err = h.svc.Commit(ctx, h.appID, "feature", "", &models.CommitRequest{Message: "feature rename"})
	require.NoError(t, err)

	h.mutate(t, "master-side")
	_, err = h.svc.Commit(ctx, h.appID, "master", "", &models.CommitRequest{Message: "master rename"})
	require.NoError(t, err)

	status, err := h.svc.IsBranchMergeable(ctx, h.appID, "feature", "master")
	require.NoError(t, err)
	assert.False(t, status.Mergeable)

	_, err = h.svc.MergeBranch(ctx, h.appID, "feature", "master", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMergeConflict))

	name, err := h.svc.CreateConflictedBranch(ctx, h.appID, "feature", "master")
	require.NoError(t, err)
	assert.Contains(t, name, "feature_conflicted_")

	branches, err := h.svc.ListBranches(ctx, h.appID, false)
	require.NoError(t, err)
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, name)
}

func TestGitService_Disconnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	require.NoError(t, h.svc.Disconnect(ctx, h.appID))

	_, err := h.svc.GetMetadata(ctx, h.appID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindArtifactNotFound))

	assert.False(t, h.repos.HasWorkingCopy(h.appID, "master"))

	// the application itself survives
	_, err = h.apps.GetByID(ctx, h.appID)
	assert.NoError(t, err)
}

func TestGitService_ImportFromRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	workspaceID := uuid.New()
	imported, err := h.svc.ImportFromRemote(ctx, workspaceID, &models.ConnectRequest{
		RemoteURL:    h.remote,
		CredentialID: h.credID,
	})
	require.NoError(t, err)

	assert.NotEqual(t, h.appID, imported.ApplicationID)
	assert.Equal(t, workspaceID, imported.WorkspaceID)
	assert.Equal(t, "crm-dashboard", imported.Name)
	require.Len(t, imported.Pages, 2)

	meta, err := h.svc.GetMetadata(ctx, imported.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, h.remote, meta.RemoteURL)
}

func TestGitService_ProtectedBranchesRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.connect(t)

	entries := []string{"master", `cel:branch.startsWith("release/")`}
	require.NoError(t, h.svc.UpdateProtectedBranches(ctx, h.appID, entries))

	got, err := h.svc.GetProtectedBranches(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	// invalid patterns never persist
	err = h.svc.UpdateProtectedBranches(ctx, h.appID, []string{"cel:((("})
	require.Error(t, err)
	got, err = h.svc.GetProtectedBranches(ctx, h.appID)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestGitService_TestConnection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ok, err := h.svc.TestConnection(ctx, h.remote, h.credID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGitService_ApplyLayoutPatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.apps.GetByID(ctx, h.appID)
	require.NoError(t, err)
	pageID := app.Pages[0].ID

	patch := json.RawMessage(`[{"op":"add","path":"/theme","value":"dark"}]`)
	patched, err := h.svc.ApplyLayoutPatch(ctx, h.appID, pageID, patch)
	require.NoError(t, err)
	assert.Equal(t, "dark", patched.Pages[0].Layout["theme"])

	// malformed patches are corruption errors
	_, err = h.svc.ApplyLayoutPatch(ctx, h.appID, pageID, json.RawMessage(`{"not":"a patch"}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestGitService_GetProfileFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.SaveProfile(ctx, &models.GitProfile{
		UserID:      "user-1",
		AuthorName:  "Default Name",
		AuthorEmail: "default@example.com",
	}))

	// no app-specific profile: falls back to the default
	profile, err := h.svc.GetProfile(ctx, "user-1", h.appID)
	require.NoError(t, err)
	assert.Equal(t, "Default Name", profile.AuthorName)

	require.NoError(t, h.svc.SaveProfile(ctx, &models.GitProfile{
		UserID:        "user-1",
		ApplicationID: h.appID,
		AuthorName:    "App Specific",
		AuthorEmail:   "app@example.com",
	}))

	profile, err = h.svc.GetProfile(ctx, "user-1", h.appID)
	require.NoError(t, err)
	assert.Equal(t, "App Specific", profile.AuthorName)

	_, err = h.svc.GetProfile(ctx, "nobody", uuid.Nil)
	require.Error(t, err)
}
