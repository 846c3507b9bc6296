package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/bootstrap"
)

// ProfileHandler handles git author profile requests
type ProfileHandler struct {
	components *bootstrap.Components
	git        *service.GitService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(components *bootstrap.Components, git *service.GitService) *ProfileHandler {
	return &ProfileHandler{
		components: components,
		git:        git,
	}
}

type profileRequest struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// SaveDefault stores the user's default author identity
// POST /api/v1/git/profile/default
func (h *ProfileHandler) SaveDefault(c echo.Context) error {
	return h.save(c, uuid.Nil)
}

// SaveForApp stores an application-specific author identity
// POST /api/v1/git/profile/app/:applicationId
func (h *ProfileHandler) SaveForApp(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	return h.save(c, appID)
}

func (h *ProfileHandler) save(c echo.Context, appID uuid.UUID) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	profile := &models.GitProfile{
		UserID:        userID(c),
		ApplicationID: appID,
		AuthorName:    req.AuthorName,
		AuthorEmail:   req.AuthorEmail,
	}
	if err := h.git.SaveProfile(c.Request().Context(), profile); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetDefault returns the user's default author identity
// GET /api/v1/git/profile/default
func (h *ProfileHandler) GetDefault(c echo.Context) error {
	profile, err := h.git.GetProfile(c.Request().Context(), userID(c), uuid.Nil)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetForApp returns the effective author identity for an application
// GET /api/v1/git/profile/app/:applicationId
func (h *ProfileHandler) GetForApp(c echo.Context) error {
	appID, err := applicationID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	profile, err := h.git.GetProfile(c.Request().Context(), userID(c), appID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}
