package service

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

// FileTree is the canonical on-disk form of an artifact: one file per
// addressable sub-unit, keyed by slash-separated relative path.
type FileTree struct {
	Files map[string][]byte
}

// NewFileTree creates an empty file tree
func NewFileTree() *FileTree {
	return &FileTree{Files: make(map[string][]byte)}
}

// Paths returns the file paths in sorted order
func (t *FileTree) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ArtifactSerializer converts one artifact kind to and from its file tree.
// The orchestrator is generic over this interface; applications are the one
// kind implemented today.
type ArtifactSerializer interface {
	// ArtifactType tags the serialized layout
	ArtifactType() string
	// ToFiles serializes the artifact. Re-serializing an unchanged artifact
	// must produce byte-identical files.
	ToFiles(app *models.Application) (*FileTree, error)
	// FromFiles deserializes a file tree produced by ToFiles. Malformed
	// content is a DataCorruption error, never silently repaired.
	FromFiles(tree *FileTree) (*models.Application, error)
	// IDPath is the tree path of the file carrying the artifact identity
	IDPath() string
}

const manifestPath = "manifest.json"

// manifest records artifact identity, page ordering and cross-references so
// page files themselves stay free of ordering noise
type manifest struct {
	ArtifactType  string         `json:"artifact_type"`
	ApplicationID uuid.UUID      `json:"application_id"`
	WorkspaceID   uuid.UUID      `json:"workspace_id"`
	Name          string         `json:"name"`
	Pages         []manifestPage `json:"pages"`
}

type manifestPage struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type pageFile struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ApplicationSerializer maps Application graphs to file trees:
//
//	manifest.json
//	pages/<page>/page.json
//	pages/<page>/layout.json
//	pages/<page>/actions/<action>.json
//
// One file per sub-unit so concurrent edits to unrelated pages or actions do
// not collide at the file-diff level.
type ApplicationSerializer struct{}

// NewApplicationSerializer creates a new application serializer
func NewApplicationSerializer() *ApplicationSerializer {
	return &ApplicationSerializer{}
}

// ArtifactType implements ArtifactSerializer
func (s *ApplicationSerializer) ArtifactType() string {
	return "application"
}

// IDPath implements ArtifactSerializer
func (s *ApplicationSerializer) IDPath() string {
	return manifestPath
}

// ToFiles implements ArtifactSerializer
func (s *ApplicationSerializer) ToFiles(app *models.Application) (*FileTree, error) {
	tree := NewFileTree()

	m := manifest{
		ArtifactType:  s.ArtifactType(),
		ApplicationID: app.ApplicationID,
		WorkspaceID:   app.WorkspaceID,
		Name:          app.Name,
		Pages:         make([]manifestPage, 0, len(app.Pages)),
	}

	seenPages := make(map[string]bool)
	for _, page := range app.Pages {
		if err := checkTreeName("page", page.Name); err != nil {
			return nil, err
		}
		if seenPages[page.Name] {
			return nil, apperrors.New(apperrors.KindDataCorruption, "duplicate page name %q", page.Name)
		}
		seenPages[page.Name] = true

		m.Pages = append(m.Pages, manifestPage{ID: page.ID, Name: page.Name})

		dir := path.Join("pages", page.Name)

		pageData, err := canonicalJSON(pageFile{ID: page.ID, Name: page.Name})
		if err != nil {
			return nil, fmt.Errorf("serialize page %s: %w", page.Name, err)
		}
		tree.Files[path.Join(dir, "page.json")] = pageData

		layoutData, err := canonicalJSON(page.Layout)
		if err != nil {
			return nil, fmt.Errorf("serialize layout of page %s: %w", page.Name, err)
		}
		tree.Files[path.Join(dir, "layout.json")] = layoutData

		seenActions := make(map[string]bool)
		for _, action := range page.Actions {
			if err := checkTreeName("action", action.Name); err != nil {
				return nil, err
			}
			if seenActions[action.Name] {
				return nil, apperrors.New(apperrors.KindDataCorruption,
					"duplicate action name %q on page %s", action.Name, page.Name)
			}
			seenActions[action.Name] = true

			actionData, err := canonicalJSON(action)
			if err != nil {
				return nil, fmt.Errorf("serialize action %s: %w", action.Name, err)
			}
			tree.Files[path.Join(dir, "actions", action.Name+".json")] = actionData
		}
	}

	manifestData, err := canonicalJSON(m)
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	tree.Files[manifestPath] = manifestData

	return tree, nil
}

// FromFiles implements ArtifactSerializer
func (s *ApplicationSerializer) FromFiles(tree *FileTree) (*models.Application, error) {
	manifestData, ok := tree.Files[manifestPath]
	if !ok {
		return nil, apperrors.New(apperrors.KindDataCorruption, "missing %s", manifestPath)
	}

	var m manifest
	if err := json.Unmarshal(manifestData, &m); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "malformed %s", manifestPath)
	}
	if m.ArtifactType != s.ArtifactType() {
		return nil, apperrors.New(apperrors.KindDataCorruption, "unexpected artifact type %q", m.ArtifactType)
	}
	if m.ApplicationID == uuid.Nil {
		return nil, apperrors.New(apperrors.KindDataCorruption, "manifest has no application id")
	}

	app := &models.Application{
		ApplicationID: m.ApplicationID,
		WorkspaceID:   m.WorkspaceID,
		Name:          m.Name,
		Pages:         make([]models.Page, 0, len(m.Pages)),
	}

	for _, entry := range m.Pages {
		dir := path.Join("pages", entry.Name)

		pageData, ok := tree.Files[path.Join(dir, "page.json")]
		if !ok {
			return nil, apperrors.New(apperrors.KindDataCorruption, "page %s listed in manifest but missing on disk", entry.Name)
		}
		var pf pageFile
		if err := json.Unmarshal(pageData, &pf); err != nil {
			return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "malformed page file for %s", entry.Name)
		}
		if pf.ID != entry.ID {
			return nil, apperrors.New(apperrors.KindDataCorruption, "page %s id mismatch between manifest and page file", entry.Name)
		}

		page := models.Page{ID: pf.ID, Name: pf.Name}

		if layoutData, ok := tree.Files[path.Join(dir, "layout.json")]; ok {
			if err := json.Unmarshal(layoutData, &page.Layout); err != nil {
				return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "malformed layout for page %s", entry.Name)
			}
		}

		actionsDir := path.Join(dir, "actions") + "/"
		for _, p := range tree.Paths() {
			if len(p) <= len(actionsDir) || p[:len(actionsDir)] != actionsDir {
				continue
			}
			var action models.Action
			if err := json.Unmarshal(tree.Files[p], &action); err != nil {
				return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "malformed action file %s", p)
			}
			page.Actions = append(page.Actions, action)
		}
		// action file names are the sort key, keep the domain order stable by name
		sort.Slice(page.Actions, func(i, j int) bool { return page.Actions[i].Name < page.Actions[j].Name })

		app.Pages = append(app.Pages, page)
	}

	return app, nil
}

// checkTreeName rejects names that cannot serve as a single path segment:
// a separator would nest or escape the working copy directory
func checkTreeName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return apperrors.New(apperrors.KindDataCorruption, "%s name %q is not usable as a file name", kind, name)
	}
	return nil
}

// canonicalJSON marshals with indentation, sorted object keys (encoding/json
// sorts map keys) and a trailing newline, so identical values always produce
// identical bytes and git reports no changes for an unchanged artifact.
func canonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
