package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/repository"
	"github.com/arklim/api-starter/internal/usecase"
)

// IdentityKey is the context key holding the verified token identity.
const IdentityKey = "identity"

// envelope mirrors the handlers.Response structure. The middleware keeps
// its own copy so the packages stay import-cycle free.
type envelope struct {
	Success bool           `json:"success"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, message string, details ...string) {
	c.AbortWithStatusJSON(status, envelope{
		Success: false,
		Error:   &envelopeError{Message: message, Details: details},
	})
}

// RequireAuth extracts the bearer token, rejects revoked or invalid
// tokens, and attaches the verified identity to the request context.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, http.StatusUnauthorized, "invalid authorization format: expected 'Bearer <token>'")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "missing access token")
			return
		}

		identity, err := auth.CheckAccessToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenRevoked):
				abortWithError(c, http.StatusUnauthorized, "token has been revoked")
			case errors.Is(err, usecase.ErrTokenInvalid):
				abortWithError(c, http.StatusUnauthorized, "invalid or expired token")
			default:
				abortWithError(c, http.StatusInternalServerError, "authentication failed")
			}
			return
		}

		c.Set(UserIDKey, identity.SubjectID)
		c.Set(IdentityKey, identity)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = identity.SubjectID
		}

		c.Next()
	}
}

// RequirePermissions gates a route on the subject's effective grants.
// With requireAll every requirement must be held; otherwise one
// suffices. Denials name the unmet permissions so clients can see what
// is missing without leaking anything about other subjects.
func RequirePermissions(access *usecase.AccessService, requireAll bool, requirements ...usecase.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := GetIdentity(c)
		if identity == nil {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}

		if len(requirements) == 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		if requireAll {
			missing, err := access.MissingPermissions(ctx, identity.SubjectID, requirements)
			if err != nil {
				abortAuthorizationError(c, err)
				return
			}
			if len(missing) > 0 {
				abortWithError(c, http.StatusForbidden, "insufficient permissions", missing...)
				return
			}
			c.Next()
			return
		}

		allowed, err := access.HasAnyPermission(ctx, identity.SubjectID, requirements)
		if err != nil {
			abortAuthorizationError(c, err)
			return
		}
		if !allowed {
			abortWithError(c, http.StatusForbidden, "insufficient permissions", usecase.RequirementNames(requirements)...)
			return
		}

		c.Next()
	}
}

func abortAuthorizationError(c *gin.Context, err error) {
	// A subject that no longer resolves is an authentication problem,
	// not a permission one.
	if errors.Is(err, repository.ErrNotFound) {
		abortWithError(c, http.StatusUnauthorized, "account is no longer active")
		return
	}
	abortWithError(c, http.StatusInternalServerError, "authorization check failed")
}

// GetIdentity retrieves the verified token identity set by RequireAuth.
func GetIdentity(c *gin.Context) *domain.TokenIdentity {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*domain.TokenIdentity)
	if !ok {
		return nil
	}
	return identity
}

// GetAuthenticatedUserID retrieves the user ID from context.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
