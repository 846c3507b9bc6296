package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is the database-resident artifact mirrored into git: a tree of
// pages, each carrying a layout and its actions.
// Maps to: application table (pages stored as JSONB)
type Application struct {
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	WorkspaceID   uuid.UUID `db:"workspace_id" json:"workspace_id"`
	Name          string    `db:"name" json:"name"`
	Pages         []Page    `db:"pages" json:"pages"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Page is one addressable sub-unit of an application
type Page struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// Layout is the page's widget tree. Kept as a generic document; the
	// serializer re-marshals it canonically so unchanged layouts produce
	// byte-identical files.
	Layout map[string]interface{} `json:"layout"`

	Actions []Action `json:"actions"`
}

// Action is a per-page query/API configuration
type Action struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	PluginType string                 `json:"plugin_type"`
	Config     map[string]interface{} `json:"config"`
}

// PageByID returns the page with the given id, or nil
func (a *Application) PageByID(id uuid.UUID) *Page {
	for i := range a.Pages {
		if a.Pages[i].ID == id {
			return &a.Pages[i]
		}
	}
	return nil
}
