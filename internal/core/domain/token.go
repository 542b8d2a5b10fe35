package domain

import "time"

// TokenKind discriminates the two JWT families issued by the service.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPayload is the identity snapshot embedded into every issued token.
type TokenPayload struct {
	SubjectID string
	Email     string
	Role      string
	SessionID string
}

// TokenPair bundles the tokens returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenIdentity is the verified view of a parsed token.
type TokenIdentity struct {
	TokenID   string
	SubjectID string
	Email     string
	Role      string
	SessionID string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (t TokenIdentity) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// RemainingLifetime reports how long the token stays valid from the
// supplied moment. Expired tokens yield zero, never a negative duration.
func (t TokenIdentity) RemainingLifetime(at time.Time) time.Duration {
	remaining := t.ExpiresAt.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}
