package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/api-starter/internal/transport/http/middleware"
	"github.com/arklim/api-starter/internal/usecase"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account with the default role. Requesting another role requires a bearer token whose subject holds user:create.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} Response{data=UserPayload}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid registration payload", err)
		return
	}

	// An anonymous caller may only take the default role. A bearer token,
	// when present and valid, identifies the actor whose permissions gate
	// elevated role requests.
	actorID := ""
	if token := bearerToken(c); token != "" {
		if identity, err := h.auth.CheckAccessToken(c.Request.Context(), token); err == nil {
			actorID = identity.SubjectID
		}
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Age:      req.Age,
		Password: req.Password,
		Role:     req.Role,
	}, actorID)
	if err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse("password does not meet requirements", passwordPolicyDetails(err)...))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions to assign role"},
			{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newUserPayload(result.User, result.RoleName)))
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Verifies credentials and returns an access/refresh token pair. Unknown email, wrong password, and inactive account answer identically.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} Response{data=LoginResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} Response
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "invalid login payload", err)
		return
	}

	input := usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}
	if ip := strings.TrimSpace(c.ClientIP()); ip != "" {
		input.IP = &ip
	}
	if agent := strings.TrimSpace(c.Request.UserAgent()); agent != "" {
		input.UserAgent = &agent
	}

	result, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(LoginResponse{
		User:         newUserPayload(result.User, result.RoleName),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.Tokens.ExpiresIn,
		SessionID:    result.SessionID,
	}))
}

// Refresh godoc
// @Summary Rotate a refresh token
// @Description Exchanges a valid refresh token for a fresh access/refresh pair. The presented token is invalidated by the rotation.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh payload"
// @Success 200 {object} Response{data=TokenPairPayload}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, "refresh_token is required", err)
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid or expired refresh token"},
		}, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(TokenPairPayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	}))
}

// Logout godoc
// @Summary Logout the current subject
// @Description Discards the stored refresh token and blacklists the presented access token for its remaining lifetime.
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	subjectID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse("authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), subjectID, bearerToken(c)); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to logout"))
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("logged out"))
}

// Me godoc
// @Summary Current subject profile
// @Description Re-resolves the caller from the credential store so role changes and deactivation apply immediately, and lists effective permissions.
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} Response{data=MeResponse}
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/me [post]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse("authentication required"))
		return
	}

	user, permissions, err := h.auth.CurrentSubject(c.Request.Context(), identity.SubjectID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to resolve current user")
		return
	}

	h.auth.TouchSession(c.Request.Context(), identity.SessionID)

	c.JSON(http.StatusOK, NewSuccessResponse(MeResponse{
		User:        newUserPayload(*user, h.auth.SubjectRoleName(c.Request.Context(), user.RoleID)),
		Permissions: permissions,
	}))
}

// Sessions godoc
// @Summary List the caller's sessions
// @Description Returns the caller's cached login sessions, newest first. Session records are advisory metadata, not token validity.
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} Response{data=SessionListResponse}
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	subjectID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse("authentication required"))
		return
	}

	sessions, err := h.auth.Sessions(c.Request.Context(), subjectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list sessions"))
		return
	}

	payloads := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payloads = append(payloads, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, NewSuccessResponse(SessionListResponse{
		Sessions: payloads,
		Total:    len(payloads),
	}))
}

// bearerToken extracts the raw bearer token from the Authorization
// header, or returns an empty string.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// passwordPolicyDetails lifts the violated rule text out of a wrapped
// policy error so the envelope can carry it as a detail line.
func passwordPolicyDetails(err error) []string {
	if err == nil {
		return nil
	}

	detail := strings.TrimPrefix(err.Error(), usecase.ErrPasswordPolicyViolation.Error())
	detail = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(detail), ":"))
	if detail == "" {
		return nil
	}

	return []string{detail}
}
