package service

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theAravinthM/appsmith/common/apperrors"
)

// mergeFixture seeds master and branches feature off it
func mergeFixture(t *testing.T) (m *RepoManager, src, dst *RepoHandle, remote string) {
	t.Helper()
	remote = newBareRemote(t)
	m = newTestManager(t)
	appID := uuid.New()

	dst = seedRepo(t, m, appID, "master", remote, map[string]string{
		"a.txt": "base\n",
		"b.txt": "base\n",
	})

	var err error
	src, err = m.CreateBranchFrom(dst, "feature", remote)
	require.NoError(t, err)
	return m, src, dst, remote
}

func commitFiles(t *testing.T, m *RepoManager, h *RepoHandle, message string, files map[string]string) string {
	t.Helper()
	require.NoError(t, m.WriteTree(h, treeOf(files)))
	hash, err := m.Commit(h, message, testAuthor, false)
	require.NoError(t, err)
	return hash
}

func TestMergeDryRun_Mergeable(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	commitFiles(t, m, src, "feature work", map[string]string{
		"a.txt": "base\n",
		"b.txt": "base\n",
		"c.txt": "feature\n",
	})
	commitFiles(t, m, dst, "master work", map[string]string{
		"a.txt": "master edit\n",
		"b.txt": "base\n",
	})

	status, err := m.MergeDryRun(src, dst)
	require.NoError(t, err)
	assert.True(t, status.Mergeable)
	assert.Empty(t, status.ConflictingFiles)
	assert.Equal(t, 1, status.Ahead)
	assert.Equal(t, 1, status.Behind)
}

func TestMergeDryRun_Conflict(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	commitFiles(t, m, src, "feature edit", map[string]string{
		"a.txt": "feature version\n",
		"b.txt": "base\n",
	})
	commitFiles(t, m, dst, "master edit", map[string]string{
		"a.txt": "master version\n",
		"b.txt": "base\n",
	})

	status, err := m.MergeDryRun(src, dst)
	require.NoError(t, err)
	assert.False(t, status.Mergeable)
	assert.Equal(t, []string{"a.txt"}, status.ConflictingFiles)
}

func TestMergeDryRun_SameChangeBothSides(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	// identical edits converge, no conflict
	edit := map[string]string{"a.txt": "same on both\n", "b.txt": "base\n"}
	commitFiles(t, m, src, "feature edit", edit)
	commitFiles(t, m, dst, "master edit", edit)

	status, err := m.MergeDryRun(src, dst)
	require.NoError(t, err)
	assert.True(t, status.Mergeable)
}

func TestMerge_FastForward(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	featureTip := commitFiles(t, m, src, "feature work", map[string]string{
		"a.txt": "base\n",
		"b.txt": "base\n",
		"c.txt": "feature\n",
	})

	hash, err := m.Merge(src, dst, "merge feature", testAuthor)
	require.NoError(t, err)
	assert.Equal(t, featureTip, hash)

	tree, err := m.ReadTree(dst)
	require.NoError(t, err)
	assert.Equal(t, "feature\n", string(tree.Files["c.txt"]))

	tip, err := m.Tip(dst)
	require.NoError(t, err)
	assert.Equal(t, featureTip, tip)
}

func TestMerge_TrueMergeCommit(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	commitFiles(t, m, src, "feature work", map[string]string{
		"a.txt": "base\n",
		"b.txt": "base\n",
		"c.txt": "feature\n",
	})
	commitFiles(t, m, dst, "master work", map[string]string{
		"a.txt": "master edit\n",
		"b.txt": "base\n",
	})

	hash, err := m.Merge(src, dst, "merge feature into master", testAuthor)
	require.NoError(t, err)

	// both sides' changes are present
	tree, err := m.ReadTree(dst)
	require.NoError(t, err)
	assert.Equal(t, "master edit\n", string(tree.Files["a.txt"]))
	assert.Equal(t, "feature\n", string(tree.Files["c.txt"]))

	// the merge commit has two parents
	records, err := m.Log(dst, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, hash, records[0].Hash)
	assert.Len(t, records[0].Parents, 2)
}

func TestMerge_DeletionFromSource(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	commitFiles(t, m, src, "drop b", map[string]string{"a.txt": "base\n"})
	commitFiles(t, m, dst, "master work", map[string]string{
		"a.txt": "master edit\n",
		"b.txt": "base\n",
	})

	_, err := m.Merge(src, dst, "merge", testAuthor)
	require.NoError(t, err)

	tree, err := m.ReadTree(dst)
	require.NoError(t, err)
	_, exists := tree.Files["b.txt"]
	assert.False(t, exists)
}

func TestMerge_ConflictLeavesDestinationUntouched(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	commitFiles(t, m, src, "feature edit", map[string]string{
		"a.txt": "feature version\n",
		"b.txt": "base\n",
	})
	dstTip := commitFiles(t, m, dst, "master edit", map[string]string{
		"a.txt": "master version\n",
		"b.txt": "base\n",
	})

	_, err := m.Merge(src, dst, "merge", testAuthor)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMergeConflict))

	tip, err := m.Tip(dst)
	require.NoError(t, err)
	assert.Equal(t, dstTip, tip)
	tree, err := m.ReadTree(dst)
	require.NoError(t, err)
	assert.Equal(t, "master version\n", string(tree.Files["a.txt"]))
}

func TestMerge_AlreadyMerged(t *testing.T) {
	m, src, dst, _ := mergeFixture(t)

	// destination advanced, source has nothing new
	dstTip := commitFiles(t, m, dst, "master work", map[string]string{
		"a.txt": "master edit\n",
		"b.txt": "base\n",
	})

	hash, err := m.Merge(src, dst, "merge", testAuthor)
	require.NoError(t, err)
	assert.Equal(t, dstTip, hash)
}

func TestMaterializeConflictedBranch(t *testing.T) {
	m, src, dst, remote := mergeFixture(t)

	commitFiles(t, m, src, "feature edit", map[string]string{
		"a.txt": "feature version\n",
		"b.txt": "base\n",
		"c.txt": "feature only\n",
	})
	dstTip := commitFiles(t, m, dst, "master edit", map[string]string{
		"a.txt": "master version\n",
		"b.txt": "base\n",
	})

	nh, hash, err := m.MaterializeConflictedBranch(src, dst, "feature_conflicted_1", remote, testAuthor)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, "feature_conflicted_1", nh.Branch)

	tree, err := m.ReadTree(nh)
	require.NoError(t, err)

	// conflicting file carries markers with both sides
	content := string(tree.Files["a.txt"])
	assert.True(t, strings.Contains(content, "<<<<<<< master"))
	assert.True(t, strings.Contains(content, "master version"))
	assert.True(t, strings.Contains(content, "======="))
	assert.True(t, strings.Contains(content, "feature version"))
	assert.True(t, strings.Contains(content, ">>>>>>> feature"))

	// non-conflicting source change applied cleanly
	assert.Equal(t, "feature only\n", string(tree.Files["c.txt"]))

	// destination branch untouched
	tip, err := m.Tip(dst)
	require.NoError(t, err)
	assert.Equal(t, dstTip, tip)
}
