package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/usecase"
)

// Response is the uniform JSON envelope every endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries the failure message plus optional per-field details.
type ErrorBody struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// NewSuccessResponse wraps payload data in a success envelope.
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewMessageResponse builds a success envelope carrying only a message.
func NewMessageResponse(message string) Response {
	return Response{Success: true, Message: message}
}

// NewErrorResponse builds a failure envelope.
func NewErrorResponse(message string, details ...string) Response {
	body := &ErrorBody{Message: message}
	if len(details) > 0 {
		body.Details = details
	}
	return Response{Success: false, Error: body}
}

// RegisterRequest defines the payload for self-registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Age      *int   `json:"age" binding:"omitempty,gte=0,lte=150"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserPayload is the API view of a user. The password hash never leaves
// the service boundary.
type UserPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       *int      `json:"age,omitempty"`
	Role      string    `json:"role,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenPairPayload carries the tokens issued by login and refresh.
type TokenPairPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResponse describes a successful authentication.
type LoginResponse struct {
	User         UserPayload `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	SessionID    string      `json:"session_id,omitempty"`
}

// MeResponse pairs the current subject with its effective permissions.
type MeResponse struct {
	User        UserPayload `json:"user"`
	Permissions []string    `json:"permissions"`
}

// SessionPayload is the API view of a cached login session.
type SessionPayload struct {
	ID        string    `json:"id"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionListResponse wraps the caller's sessions, newest first.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// UserCreateRequest defines the payload for administrative user creation.
type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Age      *int   `json:"age" binding:"omitempty,gte=0,lte=150"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// UserUpdateRequest defines the payload for partial user updates. Absent
// fields stay unchanged.
type UserUpdateRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Name     *string `json:"name"`
	Age      *int    `json:"age" binding:"omitempty,gte=0,lte=150"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UserListResponse wraps a page of users with pagination metadata.
type UserListResponse struct {
	Users  []UserPayload `json:"users"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// PermissionCreateRequest defines the payload for creating a permission.
type PermissionCreateRequest struct {
	Resource    string  `json:"resource" binding:"required"`
	Action      string  `json:"action" binding:"required"`
	Description *string `json:"description"`
}

// PermissionUpdateRequest defines the mutable permission fields. The
// resource and action pair is fixed at creation.
type PermissionUpdateRequest struct {
	Description *string `json:"description"`
}

// PermissionPayload is the API view of a permission.
type PermissionPayload struct {
	ID          string    `json:"id"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionListResponse wraps a page of permissions.
type PermissionListResponse struct {
	Permissions []PermissionPayload `json:"permissions"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// RoleCreateRequest defines the payload for creating a role.
type RoleCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// RoleUpdateRequest defines the payload for updating a role.
type RoleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// RolePayload summarizes a role entity.
type RolePayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleDetailResponse returns a role together with its granted permissions.
type RoleDetailResponse struct {
	Role        RolePayload         `json:"role"`
	Permissions []PermissionPayload `json:"permissions"`
}

// RoleListResponse wraps all roles.
type RoleListResponse struct {
	Roles []RolePayload `json:"roles"`
}

// GrantRequest names the permission to link to a role.
type GrantRequest struct {
	PermissionID string `json:"permission_id" binding:"required"`
}

// GrantResponse returns the role's grants after a change.
type GrantResponse struct {
	RoleID      string              `json:"role_id"`
	Permissions []PermissionPayload `json:"permissions"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserPayload converts a domain user plus resolved role name to the
// API representation.
func newUserPayload(user domain.User, roleName string) UserPayload {
	payload := UserPayload{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      roleName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	if user.Age != nil {
		age := *user.Age
		payload.Age = &age
	}

	return payload
}

func newAccountPayload(account usecase.UserAccount) UserPayload {
	return newUserPayload(account.User, account.RoleName)
}

func newPermissionPayload(permission domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          permission.ID,
		Resource:    permission.Resource,
		Action:      permission.Action,
		Name:        permission.Name,
		Description: permission.Description,
		CreatedAt:   permission.CreatedAt,
	}
}

func newPermissionPayloads(permissions []domain.Permission) []PermissionPayload {
	payloads := make([]PermissionPayload, 0, len(permissions))
	for _, permission := range permissions {
		payloads = append(payloads, newPermissionPayload(permission))
	}
	return payloads
}

func newRolePayload(role domain.Role) RolePayload {
	return RolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
	}
}

func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		ID:        session.ID,
		IP:        session.IP,
		UserAgent: session.UserAgent,
		CreatedAt: session.CreatedAt,
		LastSeen:  session.LastSeen,
		ExpiresAt: session.ExpiresAt,
	}
}

// bindingErrorDetails flattens validator errors into per-field messages
// for the details array of a 400 envelope.
func bindingErrorDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("%s is required", field))
		case "email":
			details = append(details, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			details = append(details, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "gte":
			details = append(details, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "lte":
			details = append(details, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			details = append(details, fmt.Sprintf("%s is invalid", field))
		}
	}

	return details
}
