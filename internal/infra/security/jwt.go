package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
)

// ErrTokenInvalid indicates the token failed structure, signature, or claim checks.
var ErrTokenInvalid = errors.New("jwt: token invalid")

// ErrTokenExpired indicates the token is structurally valid but past its expiry.
var ErrTokenExpired = errors.New("jwt: token expired")

// Claims augments registered claims with identity and token kind context.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	TokenKind string `json:"kind"`
	jwt.RegisteredClaims
}

// CodecOptions configures a TokenCodec.
type CodecOptions struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// TokenCodec mints and verifies HS256 JWTs for both token kinds. Access
// and refresh tokens share the signing secret and differ only in TTL and
// the embedded kind claim.
type TokenCodec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ port.TokenCodec = (*TokenCodec)(nil)

// NewTokenCodec validates options and constructs a codec.
func NewTokenCodec(opts CodecOptions) (*TokenCodec, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("jwt: token TTLs must be positive")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &TokenCodec{
		secret:     opts.Secret,
		issuer:     issuer,
		audience:   strings.TrimSpace(opts.Audience),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        nowFn,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// Mint issues a signed token of the requested kind for the payload.
func (c *TokenCodec) Mint(payload domain.TokenPayload, kind domain.TokenKind) (string, error) {
	subject := strings.TrimSpace(payload.SubjectID)
	if subject == "" {
		return "", fmt.Errorf("jwt: subject id is required")
	}

	var ttl time.Duration
	switch kind {
	case domain.TokenKindAccess:
		ttl = c.accessTTL
	case domain.TokenKindRefresh:
		ttl = c.refreshTTL
	default:
		return "", fmt.Errorf("jwt: unsupported token kind %q", kind)
	}

	now := c.now().UTC()
	claims := &Claims{
		Email:     payload.Email,
		Role:      payload.Role,
		SessionID: payload.SessionID,
		TokenKind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  c.audienceClaim(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Verify checks signature, expiry, issuer, and audience, and returns the
// verified identity including its kind. Callers enforce which kinds they
// accept.
func (c *TokenCodec) Verify(tokenString string) (*domain.TokenIdentity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenInvalid, t.Header["alg"])
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	kind := domain.TokenKind(claims.TokenKind)
	if kind != domain.TokenKindAccess && kind != domain.TokenKindRefresh {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrTokenInvalid, claims.TokenKind)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	identity := &domain.TokenIdentity{
		TokenID:   claims.ID,
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		Kind:      kind,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	return identity, nil
}

func (c *TokenCodec) audienceClaim() jwt.ClaimStrings {
	if c.audience == "" {
		return nil
	}
	return jwt.ClaimStrings{c.audience}
}
