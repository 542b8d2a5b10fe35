package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/security"
	"github.com/arklim/api-starter/internal/repository"
)

type authMocks struct {
	users       *mockUserRepository
	roles       *mockRoleRepository
	permissions *mockPermissionRepository
	refresh     *mockRefreshTokenStore
	blacklist   *mockAccessTokenBlacklist
	sessions    *mockSessionStore
	events      *mockEventPublisher
}

func newAuthMocks() *authMocks {
	return &authMocks{
		users:       &mockUserRepository{},
		roles:       &mockRoleRepository{},
		permissions: &mockPermissionRepository{},
		refresh:     &mockRefreshTokenStore{},
		blacklist:   &mockAccessTokenBlacklist{},
		sessions:    &mockSessionStore{},
		events:      &mockEventPublisher{},
	}
}

func newAuthService(t *testing.T, m *authMocks, codec port.TokenCodec, hasher port.PasswordHasher, mode domain.DegradationMode) *AuthService {
	t.Helper()

	access := NewAccessService(m.users, m.roles, m.permissions)
	return NewAuthService(
		m.users,
		m.roles,
		m.refresh,
		m.blacklist,
		m.sessions,
		codec,
		hasher,
		security.NewPasswordPolicy(),
		access,
		m.events,
		domain.NewDegradationPolicy(mode),
		nil,
	).WithClock(fixedClock)
}

func TestAuthService_RegisterAssignsDefaultRole(t *testing.T) {
	mocks := newAuthMocks()
	mocks.roles.getByNameResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}

	hasher := newTestHasher(t)
	service := newAuthService(t, mocks, newTestCodec(t, nil), hasher, domain.DegradationModeFailOpen)

	result, err := service.Register(context.Background(), RegisterInput{
		Email:    " Dana.Reed@Example.COM ",
		Name:     "Dana Reed",
		Password: strongTestPassword,
	}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if mocks.roles.getByNameLast != domain.RoleDefault {
		t.Fatalf("expected default role lookup, got %q", mocks.roles.getByNameLast)
	}
	if mocks.users.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", mocks.users.createCalls)
	}

	created := mocks.users.createdUser
	if created.Email != "dana.reed@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.RoleID != "role-user" {
		t.Fatalf("expected default role id, got %q", created.RoleID)
	}
	if !created.IsActive {
		t.Fatal("expected new account to be active")
	}
	if !created.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected created_at %v, got %v", fixedNow, created.CreatedAt)
	}

	ok, err := hasher.Verify(strongTestPassword, created.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}

	if result.User.PasswordHash != "" {
		t.Fatal("password hash must not leak from register")
	}
	if result.RoleName != domain.RoleDefault {
		t.Fatalf("expected role name %q, got %q", domain.RoleDefault, result.RoleName)
	}

	if mocks.events.registeredCalls != 1 {
		t.Fatalf("expected one registered event, got %d", mocks.events.registeredCalls)
	}
	if mocks.events.registered.UserID != created.ID {
		t.Fatalf("event user id mismatch: %q != %q", mocks.events.registered.UserID, created.ID)
	}
	if mocks.events.registered.Email != "dana.reed@example.com" {
		t.Fatalf("event email mismatch: %q", mocks.events.registered.Email)
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	mocks := newAuthMocks()
	mocks.roles.getByNameResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}
	mocks.users.createErr = repository.ErrDuplicate

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "dana.reed@example.com",
		Name:     "Dana Reed",
		Password: strongTestPassword,
	}, "")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if mocks.events.registeredCalls != 0 {
		t.Fatalf("expected no registered event, got %d", mocks.events.registeredCalls)
	}
}

func TestAuthService_RegisterRejectsWeakPasswords(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{name: "too short", password: "Ab1!x"},
		{name: "single character class", password: "alllowercaseletters"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mocks := newAuthMocks()
			service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

			_, err := service.Register(context.Background(), RegisterInput{
				Email:    "dana.reed@example.com",
				Name:     "Dana Reed",
				Password: tc.password,
			}, "")
			if !errors.Is(err, ErrPasswordPolicyViolation) {
				t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
			}
			if mocks.users.createCalls != 0 {
				t.Fatalf("expected no create call, got %d", mocks.users.createCalls)
			}
		})
	}
}

func TestAuthService_RegisterElevatedRole(t *testing.T) {
	t.Run("anonymous actor is denied", func(t *testing.T) {
		mocks := newAuthMocks()
		service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

		_, err := service.Register(context.Background(), RegisterInput{
			Email:    "support@example.com",
			Name:     "Support",
			Password: strongTestPassword,
			Role:     "support",
		}, "")
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		if mocks.users.createCalls != 0 {
			t.Fatalf("expected no create call, got %d", mocks.users.createCalls)
		}
	})

	t.Run("actor without user create is denied", func(t *testing.T) {
		mocks := newAuthMocks()
		mocks.users.getByIDResult = &domain.User{ID: "actor-1", RoleID: "role-viewer", IsActive: true}
		mocks.roles.getByIDResult = &domain.Role{ID: "role-viewer", Name: "viewer"}
		mocks.permissions.listByRoleResult = []domain.Permission{{Name: "user:read"}}

		service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

		_, err := service.Register(context.Background(), RegisterInput{
			Email:    "support@example.com",
			Name:     "Support",
			Password: strongTestPassword,
			Role:     "support",
		}, "actor-1")
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("actor holding user create assigns the role", func(t *testing.T) {
		mocks := newAuthMocks()
		mocks.users.getByIDResult = &domain.User{ID: "actor-1", RoleID: "role-admin", IsActive: true}
		mocks.roles.getByIDResult = &domain.Role{ID: "role-admin", Name: "admin"}
		mocks.permissions.listByRoleResult = []domain.Permission{{Name: "user:create"}}
		mocks.roles.getByNameResult = &domain.Role{ID: "role-support", Name: "support"}

		service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

		result, err := service.Register(context.Background(), RegisterInput{
			Email:    "support@example.com",
			Name:     "Support",
			Password: strongTestPassword,
			Role:     "support",
		}, "actor-1")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if mocks.users.createdUser.RoleID != "role-support" {
			t.Fatalf("expected role-support, got %q", mocks.users.createdUser.RoleID)
		}
		if result.RoleName != "support" {
			t.Fatalf("expected role name support, got %q", result.RoleName)
		}
	})

	t.Run("super admin actor bypasses the grant check", func(t *testing.T) {
		mocks := newAuthMocks()
		mocks.users.getByIDResult = &domain.User{ID: "root-1", RoleID: "role-root", IsActive: true}
		mocks.roles.getByIDResult = &domain.Role{ID: "role-root", Name: domain.RoleSuperAdmin}
		mocks.roles.getByNameResult = &domain.Role{ID: "role-support", Name: "support"}

		service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

		if _, err := service.Register(context.Background(), RegisterInput{
			Email:    "support@example.com",
			Name:     "Support",
			Password: strongTestPassword,
			Role:     "support",
		}, "root-1"); err != nil {
			t.Fatalf("register: %v", err)
		}
		if mocks.permissions.listByRoleCalls != 0 {
			t.Fatalf("expected no grant lookup for super admin, got %d", mocks.permissions.listByRoleCalls)
		}
	})
}

func TestAuthService_RegisterEventFailureDoesNotBlock(t *testing.T) {
	mocks := newAuthMocks()
	mocks.roles.getByNameResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}
	mocks.events.err = errors.New("broker unavailable")

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	if _, err := service.Register(context.Background(), RegisterInput{
		Email:    "dana.reed@example.com",
		Name:     "Dana Reed",
		Password: strongTestPassword,
	}, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if mocks.events.registeredCalls != 1 {
		t.Fatalf("expected publish attempt, got %d", mocks.events.registeredCalls)
	}
}

func TestAuthService_LoginIssuesSessionTokens(t *testing.T) {
	mocks := newAuthMocks()
	hasher := newTestHasher(t)

	hash, err := hasher.Hash(strongTestPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{
		ID:           "user-1",
		Email:        "dana.reed@example.com",
		Name:         "Dana Reed",
		PasswordHash: hash,
		RoleID:       "role-user",
		IsActive:     true,
	}
	mocks.users.getByEmailResult = &user
	mocks.roles.getByIDResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}

	codec := newTestCodec(t, nil)
	service := newAuthService(t, mocks, codec, hasher, domain.DegradationModeFailOpen)

	ip := "198.51.100.4"
	agent := "starter-test/1.0"
	result, err := service.Login(context.Background(), LoginInput{
		Email:     "Dana.Reed@Example.com",
		Password:  strongTestPassword,
		IP:        &ip,
		UserAgent: &agent,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if mocks.users.getByEmailLastEmail != "dana.reed@example.com" {
		t.Fatalf("expected normalized lookup, got %q", mocks.users.getByEmailLastEmail)
	}
	if result.User.PasswordHash != "" {
		t.Fatal("password hash must not leak from login")
	}
	if result.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if result.Tokens.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("expected expires_in 900, got %d", result.Tokens.ExpiresIn)
	}

	access, err := codec.Verify(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if access.Kind != domain.TokenKindAccess {
		t.Fatalf("expected access kind, got %q", access.Kind)
	}
	if access.SubjectID != "user-1" || access.Role != domain.RoleDefault {
		t.Fatalf("unexpected access claims: subject=%q role=%q", access.SubjectID, access.Role)
	}
	if access.SessionID != result.SessionID {
		t.Fatalf("access session claim %q != %q", access.SessionID, result.SessionID)
	}

	refresh, err := codec.Verify(result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh token: %v", err)
	}
	if refresh.Kind != domain.TokenKindRefresh {
		t.Fatalf("expected refresh kind, got %q", refresh.Kind)
	}
	if refresh.SessionID != result.SessionID {
		t.Fatalf("refresh session claim %q != %q", refresh.SessionID, result.SessionID)
	}

	if mocks.refresh.storeCalls != 1 {
		t.Fatalf("expected one refresh store call, got %d", mocks.refresh.storeCalls)
	}
	if mocks.refresh.storedSubject != "user-1" || mocks.refresh.storedToken != result.Tokens.RefreshToken {
		t.Fatal("stored refresh token does not match issued token")
	}
	if mocks.refresh.storedTTL != 24*time.Hour {
		t.Fatalf("expected refresh ttl 24h, got %v", mocks.refresh.storedTTL)
	}

	if mocks.sessions.saveCalls != 1 {
		t.Fatalf("expected one session save, got %d", mocks.sessions.saveCalls)
	}
	saved := mocks.sessions.savedSession
	if saved.ID != result.SessionID || saved.UserID != "user-1" {
		t.Fatalf("unexpected session record: id=%q user=%q", saved.ID, saved.UserID)
	}
	if saved.IP == nil || *saved.IP != ip {
		t.Fatal("expected session to capture client ip")
	}
	if !saved.ExpiresAt.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("expected session expiry %v, got %v", fixedNow.Add(24*time.Hour), saved.ExpiresAt)
	}

	if mocks.events.loggedInCalls != 1 {
		t.Fatalf("expected one login event, got %d", mocks.events.loggedInCalls)
	}
	if mocks.events.loggedIn.SessionID != result.SessionID {
		t.Fatalf("event session mismatch: %q", mocks.events.loggedIn.SessionID)
	}
}

func TestAuthService_LoginFailuresAreUniform(t *testing.T) {
	hasher := newTestHasher(t)
	hash, err := hasher.Hash(strongTestPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	cases := []struct {
		name     string
		setup    func(m *authMocks)
		password string
	}{
		{
			name:     "unknown email",
			setup:    func(*authMocks) {},
			password: strongTestPassword,
		},
		{
			name: "wrong password",
			setup: func(m *authMocks) {
				m.users.getByEmailResult = &domain.User{ID: "user-1", Email: "dana.reed@example.com", PasswordHash: hash, RoleID: "role-user", IsActive: true}
			},
			password: "Wr0ng!Password#1234",
		},
		{
			name: "deactivated account",
			setup: func(m *authMocks) {
				m.users.getByEmailResult = &domain.User{ID: "user-1", Email: "dana.reed@example.com", PasswordHash: hash, RoleID: "role-user", IsActive: false}
			},
			password: strongTestPassword,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mocks := newAuthMocks()
			tc.setup(mocks)

			service := newAuthService(t, mocks, newTestCodec(t, nil), hasher, domain.DegradationModeFailOpen)

			_, err := service.Login(context.Background(), LoginInput{Email: "dana.reed@example.com", Password: tc.password})
			// Every failure collapses into the same sentinel so the
			// endpoint cannot be used to probe which emails exist.
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if mocks.refresh.storeCalls != 0 {
				t.Fatalf("expected no tokens issued, got %d store calls", mocks.refresh.storeCalls)
			}
		})
	}
}

func TestAuthService_LoginSurvivesCacheOutage(t *testing.T) {
	mocks := newAuthMocks()
	hasher := newTestHasher(t)

	hash, err := hasher.Hash(strongTestPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	mocks.users.getByEmailResult = &domain.User{ID: "user-1", Email: "dana.reed@example.com", PasswordHash: hash, RoleID: "role-user", IsActive: true}
	mocks.roles.getByIDResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}
	mocks.refresh.storeErr = errors.New("redis: connection refused")
	mocks.sessions.saveErr = errors.New("redis: connection refused")

	service := newAuthService(t, mocks, newTestCodec(t, nil), hasher, domain.DegradationModeFailOpen)

	result, err := service.Login(context.Background(), LoginInput{Email: "dana.reed@example.com", Password: strongTestPassword})
	if err != nil {
		t.Fatalf("login must succeed without the cache: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
}

func TestAuthService_RefreshRotatesTokenPair(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	previous, err := codec.Mint(domain.TokenPayload{
		SubjectID: "user-1",
		Email:     "dana.reed@example.com",
		Role:      domain.RoleDefault,
		SessionID: "sess-9",
	}, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	mocks.users.getByIDResult = &domain.User{ID: "user-1", Email: "dana.reed@example.com", RoleID: "role-user", IsActive: true}
	mocks.roles.getByIDResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}
	mocks.refresh.getResult = previous

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	pair, err := service.Refresh(context.Background(), previous)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken == previous {
		t.Fatal("expected a rotated refresh token")
	}

	rotated, err := codec.Verify(pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify rotated refresh token: %v", err)
	}
	if rotated.SessionID != "sess-9" {
		t.Fatalf("expected session sess-9 to carry over, got %q", rotated.SessionID)
	}

	access, err := codec.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if access.Kind != domain.TokenKindAccess || access.SubjectID != "user-1" {
		t.Fatalf("unexpected access claims: kind=%q subject=%q", access.Kind, access.SubjectID)
	}

	if mocks.refresh.storeCalls != 1 || mocks.refresh.storedToken != pair.RefreshToken {
		t.Fatal("expected rotation to record the new canonical token")
	}
	if mocks.events.refreshedCalls != 1 || mocks.events.refreshed.SessionID != "sess-9" {
		t.Fatalf("expected one refreshed event for sess-9, got %d", mocks.events.refreshedCalls)
	}
}

func TestAuthService_RefreshRejectsSupersededToken(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	payload := domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-9"}
	previous, err := codec.Mint(payload, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}
	canonical, err := codec.Mint(payload, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	// The store holds a newer token; the presented one lost the rotation race.
	mocks.refresh.getResult = canonical

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	_, err = service.Refresh(context.Background(), previous)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if mocks.refresh.storeCalls != 0 {
		t.Fatal("superseded token must not trigger a rotation")
	}
	if mocks.users.getByIDCalls != 0 {
		t.Fatal("superseded token must be rejected before the user lookup")
	}
}

func TestAuthService_RefreshWithoutStoredRecordProceeds(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-9"}, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	mocks.users.getByIDResult = &domain.User{ID: "user-1", RoleID: "role-user", IsActive: true}
	mocks.roles.getByIDResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	// An absent record is not proof of revocation; the signed token
	// carries the refresh on its own.
	pair, err := service.Refresh(context.Background(), token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected a new token pair")
	}
}

func TestAuthService_RefreshStoreOutageHonorsPolicy(t *testing.T) {
	cases := []struct {
		name    string
		mode    domain.DegradationMode
		wantErr bool
	}{
		{name: "fail open proceeds", mode: domain.DegradationModeFailOpen, wantErr: false},
		{name: "fail closed rejects", mode: domain.DegradationModeFailClosed, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mocks := newAuthMocks()
			codec := newTestCodec(t, nil)

			token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-9"}, domain.TokenKindRefresh)
			if err != nil {
				t.Fatalf("mint refresh token: %v", err)
			}

			mocks.refresh.getErr = errors.New("redis: i/o timeout")
			mocks.users.getByIDResult = &domain.User{ID: "user-1", RoleID: "role-user", IsActive: true}
			mocks.roles.getByIDResult = &domain.Role{ID: "role-user", Name: domain.RoleDefault}

			service := newAuthService(t, mocks, codec, newTestHasher(t), tc.mode)

			_, err = service.Refresh(context.Background(), token)
			if tc.wantErr {
				if !errors.Is(err, ErrTokenInvalid) {
					t.Fatalf("expected ErrTokenInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("refresh: %v", err)
			}
		})
	}
}

func TestAuthService_RefreshRejectsAccessTokens(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1"}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	if _, err := service.Refresh(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for access kind, got %v", err)
	}
}

func TestAuthService_RefreshRejectsDeactivatedSubject(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-9"}, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	mocks.refresh.getResult = token
	mocks.users.getByIDResult = &domain.User{ID: "user-1", RoleID: "role-user", IsActive: false}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	if _, err := service.Refresh(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for deactivated subject, got %v", err)
	}
}

func TestAuthService_LogoutRevokesAccessToken(t *testing.T) {
	mocks := newAuthMocks()

	current := fixedNow
	clock := func() time.Time { return current }
	codec := newTestCodec(t, clock)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-2"}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen).WithClock(clock)

	current = fixedNow.Add(5 * time.Minute)

	if err := service.Logout(context.Background(), "user-1", token); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if mocks.refresh.removeCalls != 1 || mocks.refresh.removeLastID != "user-1" {
		t.Fatal("expected the stored refresh token to be removed")
	}
	if mocks.blacklist.addCalls != 1 || mocks.blacklist.addedToken != token {
		t.Fatal("expected the access token to be blacklisted")
	}
	if mocks.blacklist.addedTTL != 10*time.Minute {
		t.Fatalf("expected blacklist ttl to match remaining lifetime, got %v", mocks.blacklist.addedTTL)
	}
	if mocks.sessions.deleteCalls != 1 || mocks.sessions.deleteLastID != "sess-2" {
		t.Fatal("expected the session record to be deleted")
	}
	if mocks.events.loggedOutCalls != 1 {
		t.Fatalf("expected one logout event, got %d", mocks.events.loggedOutCalls)
	}
}

func TestAuthService_LogoutIgnoresExpiredToken(t *testing.T) {
	mocks := newAuthMocks()

	current := fixedNow
	clock := func() time.Time { return current }
	codec := newTestCodec(t, clock)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-2"}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen).WithClock(clock)

	current = fixedNow.Add(16 * time.Minute)

	if err := service.Logout(context.Background(), "user-1", token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if mocks.blacklist.addCalls != 0 {
		t.Fatal("an expired token must not be blacklisted")
	}
	if mocks.refresh.removeCalls != 1 {
		t.Fatal("the refresh token must still be removed")
	}
}

func TestAuthService_LogoutIgnoresUndecodableToken(t *testing.T) {
	mocks := newAuthMocks()
	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	if err := service.Logout(context.Background(), "user-1", "not-a-jwt"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if mocks.blacklist.addCalls != 0 {
		t.Fatal("an undecodable token must not be blacklisted")
	}
	if mocks.events.loggedOutCalls != 1 {
		t.Fatalf("expected one logout event, got %d", mocks.events.loggedOutCalls)
	}
}

func TestAuthService_LogoutBestEffortOnCacheFailure(t *testing.T) {
	mocks := newAuthMocks()

	codec := newTestCodec(t, fixedClock)
	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", SessionID: "sess-2"}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	mocks.refresh.removeErr = errors.New("redis: connection refused")
	mocks.blacklist.addErr = errors.New("redis: connection refused")
	mocks.sessions.deleteErr = errors.New("redis: connection refused")

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	if err := service.Logout(context.Background(), "user-1", token); err != nil {
		t.Fatalf("logout must stay best-effort: %v", err)
	}
	if mocks.events.loggedOutCalls != 1 {
		t.Fatalf("expected one logout event, got %d", mocks.events.loggedOutCalls)
	}
}

func TestAuthService_CheckAccessTokenBlacklistFirst(t *testing.T) {
	mocks := newAuthMocks()
	mocks.blacklist.containsResult = true

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	// Even a structurally invalid token reports revoked: the blacklist
	// is consulted before any parsing happens.
	_, err := service.CheckAccessToken(context.Background(), "opaque-revoked-token")
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if mocks.blacklist.containsCalls != 1 {
		t.Fatalf("expected one blacklist lookup, got %d", mocks.blacklist.containsCalls)
	}
}

func TestAuthService_CheckAccessTokenAcceptsValidToken(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1", Role: domain.RoleDefault, SessionID: "sess-2"}, domain.TokenKindAccess)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	identity, err := service.CheckAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("check access token: %v", err)
	}
	if identity.SubjectID != "user-1" || identity.SessionID != "sess-2" {
		t.Fatalf("unexpected identity: subject=%q session=%q", identity.SubjectID, identity.SessionID)
	}
}

func TestAuthService_CheckAccessTokenRejectsRefreshKind(t *testing.T) {
	mocks := newAuthMocks()
	codec := newTestCodec(t, nil)

	token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1"}, domain.TokenKindRefresh)
	if err != nil {
		t.Fatalf("mint refresh token: %v", err)
	}

	service := newAuthService(t, mocks, codec, newTestHasher(t), domain.DegradationModeFailOpen)

	if _, err := service.CheckAccessToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh kind, got %v", err)
	}
}

func TestAuthService_CheckAccessTokenDegradation(t *testing.T) {
	cases := []struct {
		name    string
		mode    domain.DegradationMode
		wantErr error
	}{
		{name: "fail open admits", mode: domain.DegradationModeFailOpen, wantErr: nil},
		{name: "fail closed rejects", mode: domain.DegradationModeFailClosed, wantErr: ErrTokenRevoked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mocks := newAuthMocks()
			mocks.blacklist.containsErr = errors.New("redis: broken pipe")

			codec := newTestCodec(t, nil)
			token, err := codec.Mint(domain.TokenPayload{SubjectID: "user-1"}, domain.TokenKindAccess)
			if err != nil {
				t.Fatalf("mint access token: %v", err)
			}

			service := newAuthService(t, mocks, codec, newTestHasher(t), tc.mode)

			identity, err := service.CheckAccessToken(context.Background(), token)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("check access token: %v", err)
			}
			if identity.SubjectID != "user-1" {
				t.Fatalf("unexpected subject %q", identity.SubjectID)
			}
		})
	}
}

func TestAuthService_CurrentSubjectResolvesPermissions(t *testing.T) {
	mocks := newAuthMocks()
	mocks.users.getByIDResult = &domain.User{ID: "user-1", Email: "dana.reed@example.com", PasswordHash: "secret-hash", RoleID: "role-editor", IsActive: true}
	mocks.roles.getByIDResult = &domain.Role{ID: "role-editor", Name: "editor"}
	mocks.permissions.listByRoleResult = []domain.Permission{
		{Name: "user:read"},
		{Name: "user:update"},
	}

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	user, permissions, err := service.CurrentSubject(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("current subject: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash must not leak")
	}
	if len(permissions) != 2 || permissions[0] != "user:read" || permissions[1] != "user:update" {
		t.Fatalf("unexpected permissions %v", permissions)
	}
}

func TestAuthService_CurrentSubjectNotFound(t *testing.T) {
	cases := []struct {
		name  string
		setup func(m *authMocks)
	}{
		{
			name:  "unknown subject",
			setup: func(*authMocks) {},
		},
		{
			name: "deactivated subject",
			setup: func(m *authMocks) {
				m.users.getByIDResult = &domain.User{ID: "user-1", RoleID: "role-user", IsActive: false}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mocks := newAuthMocks()
			tc.setup(mocks)

			service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

			if _, _, err := service.CurrentSubject(context.Background(), "user-1"); !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
		})
	}
}

func TestAuthService_SessionsNewestFirst(t *testing.T) {
	mocks := newAuthMocks()
	mocks.sessions.listResult = []domain.Session{
		{ID: "sess-old", UserID: "user-1", CreatedAt: fixedNow.Add(-2 * time.Hour)},
		{ID: "sess-new", UserID: "user-1", CreatedAt: fixedNow},
		{ID: "sess-mid", UserID: "user-1", CreatedAt: fixedNow.Add(-time.Hour)},
	}

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	sessions, err := service.Sessions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i, want := range []string{"sess-new", "sess-mid", "sess-old"} {
		if sessions[i].ID != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, sessions[i].ID)
		}
	}
}

func TestAuthService_TouchSessionSwallowsMisses(t *testing.T) {
	mocks := newAuthMocks()
	mocks.sessions.touchErr = repository.ErrNotFound

	service := newAuthService(t, mocks, newTestCodec(t, nil), newTestHasher(t), domain.DegradationModeFailOpen)

	service.TouchSession(context.Background(), "sess-gone")
	if mocks.sessions.touchCalls != 1 || mocks.sessions.touchLastID != "sess-gone" {
		t.Fatal("expected a touch attempt for the session")
	}
}
