package port

import (
	"time"

	"github.com/arklim/api-starter/internal/core/domain"
)

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicyValidator enforces password strength requirements.
// userInputs carries identity values (email, name) that must not feed
// into the password.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// TokenCodec mints and verifies the service's JWTs. Verify reports the
// token kind; callers decide which kinds they accept.
type TokenCodec interface {
	Mint(payload domain.TokenPayload, kind domain.TokenKind) (string, error)
	Verify(token string) (*domain.TokenIdentity, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
