package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/api-starter/internal/usecase"
)

// PermissionHandler exposes the permission catalog endpoints.
type PermissionHandler struct {
	permissions *usecase.PermissionService
}

// NewPermissionHandler constructs PermissionHandler.
func NewPermissionHandler(permissions *usecase.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// List godoc
// @Summary List permissions
// @Description Returns the permission catalog, optionally filtered by resource or action.
// @Tags Permissions
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param resource query string false "Filter by resource"
// @Param action query string false "Filter by action"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} Response{data=PermissionListResponse}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	input := usecase.ListPermissionsInput{
		Resource: c.Query("resource"),
		Action:   c.Query("action"),
	}
	input.Limit, input.Offset = pagination(c)

	result, err := h.permissions.List(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list permissions"))
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(PermissionListResponse{
		Permissions: newPermissionPayloads(result.Permissions),
		Total:       result.Total,
		Limit:       result.Limit,
		Offset:      result.Offset,
	}))
}

// Get godoc
// @Summary Get a permission by id
// @Tags Permissions
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Permission id"
// @Success 200 {object} Response{data=PermissionPayload}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	permission, err := h.permissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to fetch permission")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newPermissionPayload(*permission)))
}

// Create godoc
// @Summary Create a permission
// @Description Registers a (resource, action) capability. The canonical name derives from the pair and must stay unique.
// @Tags Permissions
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body PermissionCreateRequest true "Permission create payload"
// @Success 201 {object} Response{data=PermissionPayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	var req PermissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid permission payload", err)
		return
	}

	permission, err := h.permissions.Create(c.Request.Context(), usecase.CreatePermissionInput{
		Resource:    req.Resource,
		Action:      req.Action,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidPermission) {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid permission definition", permissionShapeDetails(err)...))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionExists, Status: http.StatusConflict, Message: "permission already exists"},
		}, http.StatusInternalServerError, "failed to create permission")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newPermissionPayload(*permission)))
}

// Update godoc
// @Summary Update a permission description
// @Description Changes the description only. The resource and action pair is immutable; create a new permission instead of repurposing one.
// @Tags Permissions
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Permission id"
// @Param request body PermissionUpdateRequest true "Permission update payload"
// @Success 200 {object} Response{data=PermissionPayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/permissions/{id} [put]
func (h *PermissionHandler) Update(c *gin.Context) {
	var req PermissionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid permission payload", err)
		return
	}

	permission, err := h.permissions.Update(c.Request.Context(), c.Param("id"), usecase.UpdatePermissionInput{
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to update permission")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newPermissionPayload(*permission)))
}

// Delete godoc
// @Summary Delete a permission
// @Description Removes a permission no role currently holds. Revoke remaining grants first; deletion never cascades.
// @Tags Permissions
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Permission id"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/permissions/{id} [delete]
func (h *PermissionHandler) Delete(c *gin.Context) {
	if err := h.permissions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
			{Err: usecase.ErrPermissionInUse, Status: http.StatusConflict, Message: "permission is still granted to roles"},
		}, http.StatusInternalServerError, "failed to delete permission")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("permission deleted"))
}

// permissionShapeDetails lifts the offending part description out of a
// wrapped validation error for the envelope details array.
func permissionShapeDetails(err error) []string {
	if err == nil {
		return nil
	}

	detail := strings.TrimPrefix(err.Error(), usecase.ErrInvalidPermission.Error())
	detail = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(detail), ":"))
	if detail == "" {
		return nil
	}

	return []string{detail}
}
