package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/cmd/gitserver/service"
	"github.com/theAravinthM/appsmith/common/bootstrap"
)

// KeyHandler handles deploy key requests
type KeyHandler struct {
	components *bootstrap.Components
	git        *service.GitService
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(components *bootstrap.Components, git *service.GitService) *KeyHandler {
	return &KeyHandler{
		components: components,
		git:        git,
	}
}

type generateKeyRequest struct {
	KeyType string `json:"key_type"`
}

// Generate creates and stores a new deploy keypair. The private key never
// appears in the response.
// POST /api/v1/git/keys
func (h *KeyHandler) Generate(c echo.Context) error {
	var req generateKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	cred, err := h.git.GenerateDeployKey(c.Request().Context(), req.KeyType)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, cred)
}

// KeyTypes lists the supported deploy key algorithms
// GET /api/v1/git/key-types
func (h *KeyHandler) KeyTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.git.SupportedKeyTypes())
}
