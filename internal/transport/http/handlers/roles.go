package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/api-starter/internal/transport/http/middleware"
	"github.com/arklim/api-starter/internal/usecase"
)

// RoleHandler exposes role management and grant endpoints.
type RoleHandler struct {
	roles *usecase.RoleService
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// List godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} Response{data=RoleListResponse}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list roles"))
		return
	}

	payloads := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payloads = append(payloads, newRolePayload(role))
	}

	c.JSON(http.StatusOK, NewSuccessResponse(RoleListResponse{Roles: payloads}))
}

// Get godoc
// @Summary Get a role with its grants
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {object} Response{data=RoleDetailResponse}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles/{id} [get]
func (h *RoleHandler) Get(c *gin.Context) {
	detail, err := h.roles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to fetch role")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(RoleDetailResponse{
		Role:        newRolePayload(detail.Role),
		Permissions: newPermissionPayloads(detail.Permissions),
	}))
}

// Create godoc
// @Summary Create a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body RoleCreateRequest true "Role create payload"
// @Success 201 {object} Response{data=RolePayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid role payload", err)
		return
	}

	role, err := h.roles.Create(c.Request.Context(), usecase.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
		}, http.StatusInternalServerError, "failed to create role")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newRolePayload(*role)))
}

// Update godoc
// @Summary Update a role
// @Description Renames a custom role or changes its description. System role names are immutable.
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Param request body RoleUpdateRequest true "Role update payload"
// @Success 200 {object} Response{data=RolePayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid role payload", err)
		return
	}

	role, err := h.roles.Update(c.Request.Context(), c.Param("id"), usecase.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrSystemRole, Status: http.StatusConflict, Message: "system role cannot be renamed"},
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newRolePayload(*role)))
}

// Delete godoc
// @Summary Delete a role
// @Description Removes a custom role no user currently holds. Reassign holders first; deletion never cascades.
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrSystemRole, Status: http.StatusConflict, Message: "system role cannot be deleted"},
			{Err: usecase.ErrRoleInUse, Status: http.StatusConflict, Message: "role is still assigned to users"},
		}, http.StatusInternalServerError, "failed to delete role")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("role deleted"))
}

// Grant godoc
// @Summary Grant a permission to a role
// @Description Links the permission to the role. Granting an existing grant succeeds without duplicating it. Takes effect on the next request of every holder.
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Param request body GrantRequest true "Grant payload"
// @Success 200 {object} Response{data=GrantResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles/{id}/permissions [post]
func (h *RoleHandler) Grant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "permission_id is required", err)
		return
	}

	actorID, _ := middleware.GetAuthenticatedUserID(c)
	roleID := c.Param("id")

	granted, err := h.roles.Grant(c.Request.Context(), actorID, roleID, req.PermissionID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to grant permission")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(GrantResponse{
		RoleID:      roleID,
		Permissions: newPermissionPayloads(granted),
	}))
}

// Revoke godoc
// @Summary Revoke a permission from a role
// @Description Removes the grant. Revoking an absent grant is a no-op. Takes effect on the next request of every holder.
// @Tags Roles
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Role id"
// @Param permissionId path string true "Permission id"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/roles/{id}/permissions/{permissionId} [delete]
func (h *RoleHandler) Revoke(c *gin.Context) {
	actorID, _ := middleware.GetAuthenticatedUserID(c)

	if err := h.roles.Revoke(c.Request.Context(), actorID, c.Param("id"), c.Param("permissionId")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to revoke permission")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("permission revoked"))
}
