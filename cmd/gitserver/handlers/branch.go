package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/bootstrap"
)

// BranchHandler handles branch lifecycle and merge requests
type BranchHandler struct {
	components *bootstrap.Components
	git        *service.GitService
}

// NewBranchHandler creates a new branch handler
func NewBranchHandler(components *bootstrap.Components, git *service.GitService) *BranchHandler {
	return &BranchHandler{
		components: components,
		git:        git,
	}
}

type createBranchRequest struct {
	SourceBranch string `json:"source_branch"`
	NewBranch    string `json:"new_branch"`
}

type mergeRequest struct {
	SourceBranch      string `json:"source_branch"`
	DestinationBranch string `json:"destination_branch"`
}

type protectedBranchesRequest struct {
	BranchNames []string `json:"branch_names"`
}

// Create branches off an existing working copy
// POST /api/v1/git/create-branch/app/:applicationId
func (h *BranchHandler) Create(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req createBranchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	branch, err := h.git.CreateBranch(c.Request().Context(), appID, req.SourceBranch, req.NewBranch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, branch)
}

// Checkout loads a branch's committed state into the database
// POST /api/v1/git/checkout-branch/app/:applicationId?branchName=
func (h *BranchHandler) Checkout(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	app, err := h.git.CheckoutBranch(c.Request().Context(), appID, branchName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// Delete removes a branch locally and on the remote
// DELETE /api/v1/git/branch/app/:applicationId?branchName=
func (h *BranchHandler) Delete(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.git.DeleteBranch(c.Request().Context(), appID, branchName(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "branch deleted"})
}

// List reports every known branch
// GET /api/v1/git/branch/app/:applicationId?pruneBranches=
func (h *BranchHandler) List(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	prune, _ := strconv.ParseBool(c.QueryParam("pruneBranches"))

	branches, err := h.git.ListBranches(c.Request().Context(), appID, prune)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, branches)
}

// Merge merges source into destination and pushes the result
// POST /api/v1/git/merge/app/:applicationId
func (h *BranchHandler) Merge(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	hash, err := h.git.MergeBranch(c.Request().Context(), appID, req.SourceBranch, req.DestinationBranch, userID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"hash": hash})
}

// MergeStatus computes mergeability without writing anything
// POST /api/v1/git/merge/status/app/:applicationId
func (h *BranchHandler) MergeStatus(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	status, err := h.git.IsBranchMergeable(c.Request().Context(), appID, req.SourceBranch, req.DestinationBranch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// CreateConflicted snapshots an unresolved merge into a new branch
// POST /api/v1/git/conflicted-branch/app/:applicationId
func (h *BranchHandler) CreateConflicted(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	name, err := h.git.CreateConflictedBranch(c.Request().Context(), appID, req.SourceBranch, req.DestinationBranch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"branch": name})
}

// GetProtected returns the raw protection entries
// GET /api/v1/git/protected-branches/app/:applicationId
func (h *BranchHandler) GetProtected(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	entries, err := h.git.GetProtectedBranches(c.Request().Context(), appID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"branch_names": entries})
}

// UpdateProtected replaces the protection entries
// POST /api/v1/git/protected-branches/app/:applicationId
func (h *BranchHandler) UpdateProtected(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req protectedBranchesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.git.UpdateProtectedBranches(c.Request().Context(), appID, req.BranchNames); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"branch_names": req.BranchNames})
}
