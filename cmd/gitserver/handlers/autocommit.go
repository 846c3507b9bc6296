package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/bootstrap"
)

// AutoCommitHandler handles auto-commit runs, toggling and progress queries
type AutoCommitHandler struct {
	components *bootstrap.Components
	git        *service.GitService
	progress   *service.ProgressStore
	scheduler  *service.AutoCommitScheduler
}

// NewAutoCommitHandler creates a new auto-commit handler
func NewAutoCommitHandler(components *bootstrap.Components, git *service.GitService, progress *service.ProgressStore, scheduler *service.AutoCommitScheduler) *AutoCommitHandler {
	return &AutoCommitHandler{
		components: components,
		git:        git,
		progress:   progress,
		scheduler:  scheduler,
	}
}

// Trigger starts an auto-commit run for the application's default branch and
// returns its progress; an in-flight run is reported, not duplicated
// POST /api/v1/git/auto-commit/app/:applicationId
func (h *AutoCommitHandler) Trigger(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	progress, err := h.scheduler.Trigger(c.Request().Context(), appID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

// Toggle flips the application's auto-commit flag
// PATCH /api/v1/git/auto-commit/toggle/app/:applicationId
func (h *AutoCommitHandler) Toggle(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	enabled, err := h.git.ToggleAutoCommit(c.Request().Context(), appID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"enabled": enabled})
}

// Progress reads the last auto-commit run's progress
// GET /api/v1/git/auto-commit/progress/app/:applicationId?branchName=
func (h *AutoCommitHandler) Progress(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	progress, err := h.git.GetAutoCommitProgress(c.Request().Context(), h.progress, appID, branchName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}

// LayoutHandler handles page layout patch requests
type LayoutHandler struct {
	components *bootstrap.Components
	git        *service.GitService
}

// NewLayoutHandler creates a new layout handler
func NewLayoutHandler(components *bootstrap.Components, git *service.GitService) *LayoutHandler {
	return &LayoutHandler{
		components: components,
		git:        git,
	}
}

// Patch applies an RFC 6902 patch to one page's layout
// PATCH /api/v1/git/layout/app/:applicationId/page/:pageId
func (h *LayoutHandler) Patch(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	pageID, err := uuid.Parse(c.Param("pageId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid page id"})
	}

	var patch json.RawMessage
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid patch body"})
	}

	app, err := h.git.ApplyLayoutPatch(c.Request().Context(), appID, pageID, patch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, app)
}
