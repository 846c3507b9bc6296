package service

import (
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

// ApplyLayoutPatch applies an RFC 6902 patch to one page's layout and
// persists the result. The next commit picks the change up like any other
// database edit.
func (s *GitService) ApplyLayoutPatch(ctx context.Context, applicationID, pageID uuid.UUID, patch json.RawMessage) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	page := app.PageByID(pageID)
	if page == nil {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "page %s not found", pageID)
	}

	decoded, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "malformed layout patch")
	}

	current, err := json.Marshal(page.Layout)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "serialize current layout")
	}

	patched, err := decoded.Apply(current)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "apply layout patch")
	}

	var layout map[string]interface{}
	if err := json.Unmarshal(patched, &layout); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDataCorruption, err, "patched layout is not an object")
	}
	page.Layout = layout

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, err
	}

	s.log.Info("applied layout patch",
		"artifact_id", applicationID,
		"page_id", pageID,
		"operations", len(decoded),
	)
	return app, nil
}
