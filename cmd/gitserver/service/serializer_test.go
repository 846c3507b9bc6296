package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

func sampleApplication() *models.Application {
	pageID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	page2ID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	return &models.Application{
		ApplicationID: uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"),
		WorkspaceID:   uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"),
		Name:          "crm-dashboard",
		Pages: []models.Page{
			{
				ID:   pageID,
				Name: "Home",
				Layout: map[string]interface{}{
					"widgets": []interface{}{
						map[string]interface{}{"type": "table", "name": "customers"},
					},
				},
				Actions: []models.Action{
					{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Name: "fetchCustomers", PluginType: "postgres", Config: map[string]interface{}{"query": "select * from customers"}},
					{ID: uuid.MustParse("44444444-4444-4444-4444-444444444444"), Name: "deleteCustomer", PluginType: "postgres", Config: map[string]interface{}{"query": "delete from customers where id = $1"}},
				},
			},
			{
				ID:     page2ID,
				Name:   "Settings",
				Layout: map[string]interface{}{"widgets": []interface{}{}},
			},
		},
	}
}

func TestApplicationSerializer_RoundTrip(t *testing.T) {
	s := NewApplicationSerializer()
	app := sampleApplication()

	tree, err := s.ToFiles(app)
	require.NoError(t, err)

	restored, err := s.FromFiles(tree)
	require.NoError(t, err)

	assert.Equal(t, app.ApplicationID, restored.ApplicationID)
	assert.Equal(t, app.WorkspaceID, restored.WorkspaceID)
	assert.Equal(t, app.Name, restored.Name)
	require.Len(t, restored.Pages, 2)
	assert.Equal(t, "Home", restored.Pages[0].Name)
	assert.Equal(t, "Settings", restored.Pages[1].Name)

	// actions come back sorted by name
	require.Len(t, restored.Pages[0].Actions, 2)
	assert.Equal(t, "deleteCustomer", restored.Pages[0].Actions[0].Name)
	assert.Equal(t, "fetchCustomers", restored.Pages[0].Actions[1].Name)
}

func TestApplicationSerializer_Deterministic(t *testing.T) {
	s := NewApplicationSerializer()
	app := sampleApplication()

	first, err := s.ToFiles(app)
	require.NoError(t, err)

	// Serialize the deserialized form again; an unchanged artifact must
	// produce byte-identical files so git sees no diff
	restored, err := s.FromFiles(first)
	require.NoError(t, err)
	second, err := s.ToFiles(restored)
	require.NoError(t, err)

	require.Equal(t, first.Paths(), second.Paths())
	for _, p := range first.Paths() {
		assert.Equal(t, string(first.Files[p]), string(second.Files[p]), "file %s changed across round-trip", p)
	}
}

func TestApplicationSerializer_FileLayout(t *testing.T) {
	s := NewApplicationSerializer()
	tree, err := s.ToFiles(sampleApplication())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"manifest.json",
		"pages/Home/actions/deleteCustomer.json",
		"pages/Home/actions/fetchCustomers.json",
		"pages/Home/layout.json",
		"pages/Home/page.json",
		"pages/Settings/layout.json",
		"pages/Settings/page.json",
	}, tree.Paths())
}

func TestApplicationSerializer_MissingManifest(t *testing.T) {
	s := NewApplicationSerializer()

	_, err := s.FromFiles(NewFileTree())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestApplicationSerializer_MalformedManifest(t *testing.T) {
	s := NewApplicationSerializer()

	tree := NewFileTree()
	tree.Files["manifest.json"] = []byte("{not json")

	_, err := s.FromFiles(tree)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestApplicationSerializer_PageIDMismatch(t *testing.T) {
	s := NewApplicationSerializer()
	tree, err := s.ToFiles(sampleApplication())
	require.NoError(t, err)

	// Corrupt the page file so it disagrees with the manifest
	tree.Files["pages/Home/page.json"] = []byte(`{"id":"99999999-9999-9999-9999-999999999999","name":"Home"}` + "\n")

	_, err = s.FromFiles(tree)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
	assert.Contains(t, err.Error(), "id mismatch")
}

func TestApplicationSerializer_MissingPageFile(t *testing.T) {
	s := NewApplicationSerializer()
	tree, err := s.ToFiles(sampleApplication())
	require.NoError(t, err)

	delete(tree.Files, "pages/Settings/page.json")

	_, err = s.FromFiles(tree)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestApplicationSerializer_WrongArtifactType(t *testing.T) {
	s := NewApplicationSerializer()

	tree := NewFileTree()
	tree.Files["manifest.json"] = []byte(`{"artifact_type":"package","application_id":"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"}`)

	_, err := s.FromFiles(tree)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestApplicationSerializer_RejectsUnsafeNames(t *testing.T) {
	s := NewApplicationSerializer()

	app := sampleApplication()
	app.Pages[0].Name = "../escape"
	_, err := s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))

	app = sampleApplication()
	app.Pages[0].Name = "a/b"
	_, err = s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))

	app = sampleApplication()
	app.Pages[0].Actions[0].Name = "fetch/customers"
	_, err = s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))

	app = sampleApplication()
	app.Pages[0].Name = ""
	_, err = s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}

func TestApplicationSerializer_RejectsDuplicateNames(t *testing.T) {
	s := NewApplicationSerializer()

	// two pages with the same name would write the same files
	app := sampleApplication()
	app.Pages[1].Name = app.Pages[0].Name
	_, err := s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))

	app = sampleApplication()
	app.Pages[0].Actions[1].Name = app.Pages[0].Actions[0].Name
	_, err = s.ToFiles(app)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDataCorruption))
}
