package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/bootstrap"
)

// GitHandler handles repository-level git requests
type GitHandler struct {
	components *bootstrap.Components
	git        *service.GitService
}

// NewGitHandler creates a new git handler
func NewGitHandler(components *bootstrap.Components, git *service.GitService) *GitHandler {
	return &GitHandler{
		components: components,
		git:        git,
	}
}

// errorResponse translates the error taxonomy into an HTTP response
func errorResponse(c echo.Context, err error) error {
	return c.JSON(apperrors.HTTPStatus(err), map[string]interface{}{
		"error": err.Error(),
		"kind":  string(apperrors.KindOf(err)),
	})
}

func applicationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("applicationId"))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.KindArtifactNotFound, "invalid application id")
	}
	return id, nil
}

func branchName(c echo.Context) string {
	return c.QueryParam("branchName")
}

func userID(c echo.Context) string {
	return c.Request().Header.Get("X-User-Id")
}

// Connect attaches an application to a remote repository
// POST /api/v1/git/connect/app/:applicationId
func (h *GitHandler) Connect(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req models.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	meta, err := h.git.Connect(c.Request().Context(), appID, userID(c), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, meta)
}

// Commit serializes and commits the application state
// POST /api/v1/git/commit/app/:applicationId?branchName=
func (h *GitHandler) Commit(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req models.CommitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	hash, err := h.git.Commit(c.Request().Context(), appID, branchName(c), userID(c), &req)
	if err == service.ErrNoChanges {
		return c.JSON(http.StatusOK, map[string]string{"message": "nothing to commit"})
	}
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"hash": hash})
}

// Push publishes the branch to the remote
// POST /api/v1/git/push/app/:applicationId?branchName=
func (h *GitHandler) Push(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.git.Push(c.Request().Context(), appID, branchName(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "pushed"})
}

// Pull fast-forwards the branch and reconciles it into the database
// GET /api/v1/git/pull/app/:applicationId?branchName=
func (h *GitHandler) Pull(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	app, err := h.git.Pull(c.Request().Context(), appID, branchName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// Status reports uncommitted changes and remote position
// GET /api/v1/git/status/app/:applicationId?branchName=&compareRemote=
func (h *GitHandler) Status(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	compareRemote, _ := strconv.ParseBool(c.QueryParam("compareRemote"))

	status, err := h.git.GetStatus(c.Request().Context(), appID, branchName(c), compareRemote)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// FetchRemote updates the remote tracking refs
// POST /api/v1/git/fetch/remote/app/:applicationId?branchName=
func (h *GitHandler) FetchRemote(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	status, err := h.git.FetchRemoteChanges(c.Request().Context(), appID, branchName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// Discard throws away uncommitted database changes
// PUT /api/v1/git/discard/app/:applicationId?branchName=
func (h *GitHandler) Discard(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	app, err := h.git.DiscardChanges(c.Request().Context(), appID, branchName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// CommitHistory returns the branch's commit log
// GET /api/v1/git/commit-history/app/:applicationId?branchName=&limit=
func (h *GitHandler) CommitHistory(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	records, err := h.git.GetCommitHistory(c.Request().Context(), appID, branchName(c), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

// Disconnect detaches the application from git
// POST /api/v1/git/disconnect/app/:applicationId
func (h *GitHandler) Disconnect(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.git.Disconnect(c.Request().Context(), appID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "disconnected"})
}

// Metadata returns the application's git metadata
// GET /api/v1/git/metadata/app/:applicationId
func (h *GitHandler) Metadata(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	meta, err := h.git.GetMetadata(c.Request().Context(), appID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, meta)
}

// Import clones a remote repository into a brand-new application
// POST /api/v1/git/import/:workspaceId
func (h *GitHandler) Import(c echo.Context) error {
	workspaceID, err := uuid.Parse(c.Param("workspaceId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workspace id"})
	}

	var req models.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	app, err := h.git.ImportFromRemote(c.Request().Context(), workspaceID, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// TestConnection probes remote reachability with a stored credential
// POST /api/v1/git/test-connection
func (h *GitHandler) TestConnection(c echo.Context) error {
	var req models.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ok, err := h.git.TestConnection(c.Request().Context(), req.RemoteURL, req.CredentialID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"reachable": ok})
}
