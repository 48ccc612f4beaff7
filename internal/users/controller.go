package users

import (
	"errors"
	"net/http"

	"gatherly/internal/domain"
	"gatherly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{
		service: service,
	}
}

// GetUser godoc
// @Summary      Get a user profile
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /users/{id} [get]
// @Security     BearerAuth
func (c *Controller) GetUser(ctx *gin.Context) {
	id, ok := c.authorizeTarget(ctx)
	if !ok {
		return
	}

	profile, err := c.service.GetUser(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to fetch user")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User retrieved successfully", profile, nil)
}

// ExportData godoc
// @Summary      Export all stored data for a user
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /users/{id}/export [get]
// @Security     BearerAuth
func (c *Controller) ExportData(ctx *gin.Context) {
	id, ok := c.authorizeTarget(ctx)
	if !ok {
		return
	}

	bundle, err := c.service.ExportData(ctx.Request.Context(), id)
	if err != nil {
		c.respondError(ctx, err, "Failed to export user data")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User data exported successfully", bundle, nil)
}

// Erase godoc
// @Summary      Anonymize a user and deactivate the account
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /users/{id} [delete]
// @Security     BearerAuth
func (c *Controller) Erase(ctx *gin.Context) {
	id, ok := c.authorizeTarget(ctx)
	if !ok {
		return
	}

	if err := c.service.Erase(ctx.Request.Context(), id); err != nil {
		c.respondError(ctx, err, "Failed to erase user")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User erased successfully", nil, nil)
}

// authorizeTarget parses the path id and enforces the self-or-admin rule
func (c *Controller) authorizeTarget(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid user ID", nil, []string{err.Error()})
		return uuid.Nil, false
	}

	if role, ok := ctx.Get("user_role"); ok {
		if r, isStr := role.(string); isStr && r == string(RoleAdmin) {
			return id, true
		}
	}

	if requester, ok := ctx.Get("user_id"); ok {
		if rid, isStr := requester.(string); isStr && rid == id.String() {
			return id, true
		}
	}

	response.RespondJSON(ctx, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
	return uuid.Nil, false
}

func (c *Controller) respondError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "User not found", nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, fallback, nil, nil)
	}
}
