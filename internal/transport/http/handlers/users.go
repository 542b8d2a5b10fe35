package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/api-starter/internal/transport/http/middleware"
	"github.com/arklim/api-starter/internal/usecase"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UserHandler exposes the user management endpoints. Every route is
// gated by user:* permissions at the routing layer.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List godoc
// @Summary List users
// @Description Returns users matching the optional search, role, and activity filters with pagination.
// @Tags Users
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param search query string false "Match against email or name"
// @Param role query string false "Filter by role name"
// @Param is_active query boolean false "Filter by activity"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} Response{data=UserListResponse}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/users [get]
func (h *UserHandler) List(c *gin.Context) {
	input := usecase.ListUsersInput{
		Search: c.Query("search"),
		Role:   c.Query("role"),
	}
	input.Limit, input.Offset = pagination(c)

	if raw, ok := c.GetQuery("is_active"); ok {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse("invalid query parameters", "is_active must be a boolean"))
			return
		}
		input.IsActive = &active
	}

	result, err := h.users.List(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to list users")
		return
	}

	payloads := make([]UserPayload, 0, len(result.Users))
	for _, account := range result.Users {
		payloads = append(payloads, newAccountPayload(account))
	}

	c.JSON(http.StatusOK, NewSuccessResponse(UserListResponse{
		Users:  payloads,
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}))
}

// Get godoc
// @Summary Get a user by id
// @Tags Users
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User id"
// @Success 200 {object} Response{data=UserPayload}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	account, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newAccountPayload(*account)))
}

// Create godoc
// @Summary Create a user
// @Description Provisions an account with any existing role. The route gate has already required user:create.
// @Tags Users
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body UserCreateRequest true "User create payload"
// @Success 201 {object} Response{data=UserPayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} Response
// @Router /api/v1/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid user payload", err)
		return
	}

	account, err := h.users.Create(c.Request.Context(), usecase.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Age:      req.Age,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse("password does not meet requirements", passwordPolicyDetails(err)...))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newAccountPayload(*account)))
}

// Update godoc
// @Summary Update a user
// @Description Applies the provided fields; absent fields stay unchanged.
// @Tags Users
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User id"
// @Param request body UserUpdateRequest true "User update payload"
// @Success 200 {object} Response{data=UserPayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid user payload", err)
		return
	}

	account, err := h.users.Update(c.Request.Context(), c.Param("id"), usecase.UpdateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Age:      req.Age,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
		}, http.StatusInternalServerError, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newAccountPayload(*account)))
}

// Delete godoc
// @Summary Deactivate a user
// @Description Soft-deletes the account. Outstanding tokens stay structurally valid until expiry but fail re-resolution on the next authenticated call.
// @Tags Users
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "User id"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actorID, _ := middleware.GetAuthenticatedUserID(c)

	if err := h.users.Deactivate(c.Request.Context(), actorID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("user deactivated"))
}

// pagination reads limit and offset query parameters, clamping them to
// sane bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
