package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/logger"
	"github.com/arklim/api-starter/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	// Unknown email, wrong password, and inactive account all collapse
	// into this error so login cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail indicates the normalized email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrTokenInvalid indicates a token failed verification or was superseded.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRevoked indicates the access token was blacklisted by a logout.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
)

// RegisterInput captures the payload for creating an account.
type RegisterInput struct {
	Email    string
	Name     string
	Age      *int
	Password string
	Role     string
}

// RegisterResult returns the created account and its resolved role name.
type RegisterResult struct {
	User     domain.User
	RoleName string
}

// LoginInput captures credentials plus client metadata for the session record.
type LoginInput struct {
	Email     string
	Password  string
	IP        *string
	UserAgent *string
}

// LoginResult bundles the authenticated subject with its token pair.
type LoginResult struct {
	User      domain.User
	RoleName  string
	Tokens    domain.TokenPair
	SessionID string
}

// AuthService orchestrates the authentication lifecycle: register, login,
// refresh rotation, logout, and re-resolution of the current subject.
// Cache writes are best-effort; only the credential store is load-bearing.
type AuthService struct {
	users         port.UserRepository
	roles         port.RoleRepository
	refreshTokens port.RefreshTokenStore
	blacklist     port.AccessTokenBlacklist
	sessions      port.SessionStore
	codec         port.TokenCodec
	hasher        port.PasswordHasher
	passwords     port.PasswordPolicyValidator
	access        *AccessService
	events        port.EventPublisher
	policy        domain.DegradationPolicy
	checkTimeout  time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	roles port.RoleRepository,
	refreshTokens port.RefreshTokenStore,
	blacklist port.AccessTokenBlacklist,
	sessions port.SessionStore,
	codec port.TokenCodec,
	hasher port.PasswordHasher,
	passwords port.PasswordPolicyValidator,
	access *AccessService,
	events port.EventPublisher,
	policy domain.DegradationPolicy,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &AuthService{
		users:         users,
		roles:         roles,
		refreshTokens: refreshTokens,
		blacklist:     blacklist,
		sessions:      sessions,
		codec:         codec,
		hasher:        hasher,
		passwords:     passwords,
		access:        access,
		events:        events,
		policy:        policy,
		logger:        log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithRevocationCheckTimeout bounds each blacklist lookup so a stalled
// cache degrades instead of blocking the request.
func (s *AuthService) WithRevocationCheckTimeout(timeout time.Duration) *AuthService {
	if timeout > 0 {
		s.checkTimeout = timeout
	}
	return s
}

// Register creates a new account. The default role is assigned unless the
// input names another role, which requires the actor to hold user:create.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, actorID string) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	password := input.Password
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	name := strings.TrimSpace(input.Name)

	if err := s.passwords.Validate(password, email, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	roleName := strings.TrimSpace(input.Role)
	if roleName == "" {
		roleName = domain.RoleDefault
	}

	if roleName != domain.RoleDefault {
		actorID = strings.TrimSpace(actorID)
		if actorID == "" {
			return nil, ErrPermissionDenied
		}
		allowed, err := s.access.HasPermission(ctx, actorID, domain.ResourceUser, domain.ActionCreate)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrPermissionDenied
			}
			return nil, fmt.Errorf("check actor permission: %w", err)
		}
		if !allowed {
			return nil, ErrPermissionDenied
		}
	}

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role %q: %w", roleName, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Age:          input.Age,
		PasswordHash: hash,
		RoleID:       role.ID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishRegistered(ctx, user, role.Name)

	sanitized := user
	sanitized.PasswordHash = ""

	return &RegisterResult{User: sanitized, RoleName: role.Name}, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// refresh token and session record are stored best-effort; a degraded
// cache downgrades revocation guarantees but never blocks a login.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	roleName := s.roleName(ctx, user.RoleID)
	sessionID := uuid.NewString()

	pair, err := s.mintPair(domain.TokenPayload{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      roleName,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.Store(ctx, user.ID, pair.RefreshToken, s.codec.RefreshTTL()); err != nil {
		s.logger.Warn("refresh token store unavailable, continuing without revocation guarantee",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	s.saveSession(ctx, sessionID, *user, roleName, input.IP, input.UserAgent)
	s.publishLoggedIn(ctx, *user, sessionID, input.IP, input.UserAgent)

	sanitized := *user
	sanitized.PasswordHash = ""

	return &LoginResult{
		User:      sanitized,
		RoleName:  roleName,
		Tokens:    *pair,
		SessionID: sessionID,
	}, nil
}

// Refresh validates a refresh token, rejects superseded tokens when the
// cache can confirm rotation, and rotates the pair. The token's subject
// must still resolve to an active account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrTokenInvalid
	}

	identity, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if identity.Kind != domain.TokenKindRefresh {
		return nil, ErrTokenInvalid
	}

	stored, err := s.refreshTokens.Get(ctx, identity.SubjectID)
	switch {
	case err == nil:
		if stored != refreshToken {
			return nil, ErrTokenInvalid
		}
	case errors.Is(err, repository.ErrNotFound):
		// No contradicting record; signature validity alone carries the
		// refresh.
	default:
		if s.policy.FailsClosed() {
			s.logger.Warn("refresh token store unreachable, rejecting per fail-closed policy",
				zap.String("user_id", identity.SubjectID), zap.Error(err))
			return nil, ErrTokenInvalid
		}
		s.logger.Warn("refresh token store unreachable, proceeding per fail-open policy",
			zap.String("user_id", identity.SubjectID), zap.Error(err))
	}

	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}

	roleName := s.roleName(ctx, user.RoleID)

	pair, err := s.mintPair(domain.TokenPayload{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      roleName,
		SessionID: identity.SessionID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.refreshTokens.Store(ctx, user.ID, pair.RefreshToken, s.codec.RefreshTTL()); err != nil {
		s.logger.Warn("refresh token rotation not recorded, prior token stays canonical",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	s.publishRefreshed(ctx, user.ID, identity.SessionID)

	return pair, nil
}

// Logout removes the stored refresh token and blacklists the presented
// access token for its remaining lifetime. Expired or undecodable tokens
// skip blacklisting; they are already useless.
func (s *AuthService) Logout(ctx context.Context, subjectID, accessToken string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return fmt.Errorf("subject id is required")
	}

	if err := s.refreshTokens.Remove(ctx, subjectID); err != nil {
		s.logger.Warn("refresh token removal failed during logout",
			zap.String("user_id", subjectID), zap.Error(err))
	}

	sessionID := ""
	if identity, err := s.codec.Verify(accessToken); err == nil {
		sessionID = identity.SessionID
		if remaining := identity.RemainingLifetime(s.now()); remaining > 0 {
			if err := s.blacklist.Add(ctx, accessToken, remaining); err != nil {
				s.logger.Warn("access token blacklisting failed during logout",
					zap.String("user_id", subjectID), zap.Error(err))
			}
		}
	}

	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("session removal failed during logout",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	s.publishLoggedOut(ctx, subjectID, sessionID)

	return nil
}

// CurrentSubject re-fetches the subject from the credential store so role
// changes and deactivation apply immediately, and resolves its effective
// permission names through the oracle.
func (s *AuthService) CurrentSubject(ctx context.Context, subjectID string) (*domain.User, []string, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, nil, fmt.Errorf("subject id is required")
	}

	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, ErrUserNotFound
	}

	permissions, err := s.access.PermissionsOf(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("resolve permissions: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""

	return &sanitized, permissions, nil
}

// SubjectRoleName resolves the subject's current role name for responses.
func (s *AuthService) SubjectRoleName(ctx context.Context, roleID string) string {
	return s.roleName(ctx, roleID)
}

// Sessions lists the subject's live session records, newest first.
// Session state is advisory: an empty result never implies the
// subject's tokens are invalid.
func (s *AuthService) Sessions(ctx context.Context, subjectID string) ([]domain.Session, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}

	sessions, err := s.sessions.ListByUser(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// TouchSession refreshes last-seen metadata on the session record.
// Session state is advisory; failures are logged and swallowed.
func (s *AuthService) TouchSession(ctx context.Context, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	if err := s.sessions.Touch(ctx, sessionID, s.now()); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("session touch failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// CheckAccessToken is the authorization gate's token step: blacklist
// lookup first, then pure verification, then the kind gate. Blacklist
// errors defer to the configured degradation policy.
func (s *AuthService) CheckAccessToken(ctx context.Context, token string) (*domain.TokenIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.isBlacklisted(ctx, token)
	if err != nil {
		if s.policy.FailsClosed() {
			s.logger.Warn("blacklist unreachable, rejecting per fail-closed policy", zap.Error(err))
			return nil, ErrTokenRevoked
		}
		s.logger.Warn("blacklist unreachable, admitting per fail-open policy", zap.Error(err))
	} else if revoked {
		return nil, ErrTokenRevoked
	}

	identity, err := s.codec.Verify(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if identity.Kind != domain.TokenKindAccess {
		return nil, ErrTokenInvalid
	}

	return identity, nil
}

func (s *AuthService) isBlacklisted(ctx context.Context, token string) (bool, error) {
	if s.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.checkTimeout)
		defer cancel()
	}
	return s.blacklist.Contains(ctx, token)
}

func (s *AuthService) mintPair(payload domain.TokenPayload) (*domain.TokenPair, error) {
	accessToken, err := s.codec.Mint(payload, domain.TokenKindAccess)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, err := s.codec.Mint(payload, domain.TokenKindRefresh)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthService) roleName(ctx context.Context, roleID string) string {
	if strings.TrimSpace(roleID) == "" {
		return ""
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("role lookup failed", zap.String("role_id", roleID), zap.Error(err))
		}
		return ""
	}
	return role.Name
}

func (s *AuthService) saveSession(ctx context.Context, sessionID string, user domain.User, roleName string, ip, userAgent *string) {
	now := s.now()
	session := domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		Role:      roleName,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(s.codec.RefreshTTL()),
	}
	if err := s.sessions.Save(ctx, session, s.codec.RefreshTTL()); err != nil {
		s.logger.Warn("session record not saved",
			zap.String("user_id", user.ID), zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *AuthService) publishRegistered(ctx context.Context, user domain.User, roleName string) {
	if s.events == nil {
		return
	}
	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		Role:         roleName,
		RegisteredAt: s.now(),
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("user registered event not published",
			zap.String("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
	}
}

func (s *AuthService) publishLoggedIn(ctx context.Context, user domain.User, sessionID string, ip, userAgent *string) {
	if s.events == nil {
		return
	}
	event := domain.UserLoggedInEvent{
		EventID:    uuid.NewString(),
		UserID:     user.ID,
		Email:      user.Email,
		SessionID:  sessionID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		LoggedInAt: s.now(),
	}
	if err := s.events.PublishUserLoggedIn(ctx, event); err != nil {
		s.logger.Warn("user login event not published", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AuthService) publishLoggedOut(ctx context.Context, subjectID, sessionID string) {
	if s.events == nil {
		return
	}
	event := domain.UserLoggedOutEvent{
		EventID:     uuid.NewString(),
		UserID:      subjectID,
		SessionID:   sessionID,
		LoggedOutAt: s.now(),
	}
	if err := s.events.PublishUserLoggedOut(ctx, event); err != nil {
		s.logger.Warn("user logout event not published", zap.String("user_id", subjectID), zap.Error(err))
	}
}

func (s *AuthService) publishRefreshed(ctx context.Context, subjectID, sessionID string) {
	if s.events == nil {
		return
	}
	event := domain.TokenRefreshedEvent{
		EventID:   uuid.NewString(),
		UserID:    subjectID,
		SessionID: sessionID,
		RotatedAt: s.now(),
	}
	if err := s.events.PublishTokenRefreshed(ctx, event); err != nil {
		s.logger.Warn("token refreshed event not published", zap.String("user_id", subjectID), zap.Error(err))
	}
}
