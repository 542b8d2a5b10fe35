package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/security"
	"github.com/arklim/api-starter/internal/repository"
)

// strongTestPassword satisfies the default policy: length, character
// classes, and zxcvbn strength.
const strongTestPassword = "Sup3r!SecurePass#7890"

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestCodec(t *testing.T, now func() time.Time) *security.TokenCodec {
	t.Helper()

	codec, err := security.NewTokenCodec(security.CodecOptions{
		Secret:     []byte("unit-test-signing-secret-32-byte"),
		Issuer:     "api-starter",
		Audience:   "api-starter-clients",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("create token codec: %v", err)
	}
	return codec
}

func newTestHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()

	// Minimal parameters keep hashing fast in tests.
	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("create hasher: %v", err)
	}
	return hasher
}

type mockUserRepository struct {
	createErr   error
	createCalls int
	createdUser domain.User

	getByIDResult *domain.User
	getByIDErr    error
	getByIDCalls  int
	getByIDLastID string

	getByEmailResult    *domain.User
	getByEmailErr       error
	getByEmailCalls     int
	getByEmailLastEmail string

	listResult []domain.User
	listErr    error
	listFilter port.UserFilter

	countResult int
	countErr    error

	updateErr   error
	updateCalls int
	updatedUser domain.User

	deactivateErr    error
	deactivateCalls  int
	deactivateLastID string

	countByRoleResult int
	countByRoleErr    error
	countByRoleCalls  int
}

var _ port.UserRepository = (*mockUserRepository)(nil)

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	m.createdUser = user
	return m.createErr
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.getByIDCalls++
	m.getByIDLastID = id
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	if m.getByIDResult == nil {
		return nil, repository.ErrNotFound
	}
	user := *m.getByIDResult
	return &user, nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.getByEmailCalls++
	m.getByEmailLastEmail = email
	if m.getByEmailErr != nil {
		return nil, m.getByEmailErr
	}
	if m.getByEmailResult == nil {
		return nil, repository.ErrNotFound
	}
	user := *m.getByEmailResult
	return &user, nil
}

func (m *mockUserRepository) List(_ context.Context, filter port.UserFilter) ([]domain.User, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockUserRepository) Count(context.Context, port.UserFilter) (int, error) {
	return m.countResult, m.countErr
}

func (m *mockUserRepository) Update(_ context.Context, user domain.User) error {
	m.updateCalls++
	m.updatedUser = user
	return m.updateErr
}

func (m *mockUserRepository) Deactivate(_ context.Context, id string) error {
	m.deactivateCalls++
	m.deactivateLastID = id
	return m.deactivateErr
}

func (m *mockUserRepository) CountByRole(context.Context, string) (int, error) {
	m.countByRoleCalls++
	return m.countByRoleResult, m.countByRoleErr
}

type mockRoleRepository struct {
	createErr   error
	createCalls int
	createdRole domain.Role

	getByIDResult *domain.Role
	getByIDErr    error
	getByIDCalls  int

	getByNameResult *domain.Role
	getByNameErr    error
	getByNameCalls  int
	getByNameLast   string

	listResult []domain.Role
	listErr    error

	updateErr   error
	updateCalls int
	updatedRole domain.Role

	deleteErr    error
	deleteCalls  int
	deleteLastID string
}

var _ port.RoleRepository = (*mockRoleRepository)(nil)

func (m *mockRoleRepository) Create(_ context.Context, role domain.Role) error {
	m.createCalls++
	m.createdRole = role
	return m.createErr
}

func (m *mockRoleRepository) GetByID(_ context.Context, id string) (*domain.Role, error) {
	m.getByIDCalls++
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	if m.getByIDResult == nil {
		return nil, repository.ErrNotFound
	}
	role := *m.getByIDResult
	return &role, nil
}

func (m *mockRoleRepository) GetByName(_ context.Context, name string) (*domain.Role, error) {
	m.getByNameCalls++
	m.getByNameLast = name
	if m.getByNameErr != nil {
		return nil, m.getByNameErr
	}
	if m.getByNameResult == nil {
		return nil, repository.ErrNotFound
	}
	role := *m.getByNameResult
	return &role, nil
}

func (m *mockRoleRepository) List(context.Context) ([]domain.Role, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockRoleRepository) Update(_ context.Context, role domain.Role) error {
	m.updateCalls++
	m.updatedRole = role
	return m.updateErr
}

func (m *mockRoleRepository) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	m.deleteLastID = id
	return m.deleteErr
}

type mockPermissionRepository struct {
	createErr         error
	createCalls       int
	createdPermission domain.Permission

	getByIDResult *domain.Permission
	getByIDErr    error
	getByIDCalls  int

	getByNameResult *domain.Permission
	getByNameErr    error
	getByNameCalls  int
	getByNameLast   string

	listResult []domain.Permission
	listErr    error
	listFilter port.PermissionFilter

	countResult int
	countErr    error

	updateErr         error
	updateCalls       int
	updatedPermission domain.Permission

	deleteErr    error
	deleteCalls  int
	deleteLastID string

	listByRoleResult []domain.Permission
	listByRoleErr    error
	listByRoleCalls  int

	listBySubjectResult []domain.Permission
	listBySubjectErr    error

	grantErr          error
	grantCalls        int
	grantedRoleID     string
	grantedPermission string

	revokeErr         error
	revokeCalls       int
	revokedRoleID     string
	revokedPermission string

	countGrantsResult int
	countGrantsErr    error
}

var _ port.PermissionRepository = (*mockPermissionRepository)(nil)

func (m *mockPermissionRepository) Create(_ context.Context, permission domain.Permission) error {
	m.createCalls++
	m.createdPermission = permission
	return m.createErr
}

func (m *mockPermissionRepository) GetByID(_ context.Context, id string) (*domain.Permission, error) {
	m.getByIDCalls++
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	if m.getByIDResult == nil {
		return nil, repository.ErrNotFound
	}
	permission := *m.getByIDResult
	return &permission, nil
}

func (m *mockPermissionRepository) GetByName(_ context.Context, name string) (*domain.Permission, error) {
	m.getByNameCalls++
	m.getByNameLast = name
	if m.getByNameErr != nil {
		return nil, m.getByNameErr
	}
	if m.getByNameResult == nil {
		return nil, repository.ErrNotFound
	}
	permission := *m.getByNameResult
	return &permission, nil
}

func (m *mockPermissionRepository) List(_ context.Context, filter port.PermissionFilter) ([]domain.Permission, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockPermissionRepository) Count(context.Context, port.PermissionFilter) (int, error) {
	return m.countResult, m.countErr
}

func (m *mockPermissionRepository) Update(_ context.Context, permission domain.Permission) error {
	m.updateCalls++
	m.updatedPermission = permission
	return m.updateErr
}

func (m *mockPermissionRepository) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	m.deleteLastID = id
	return m.deleteErr
}

func (m *mockPermissionRepository) ListByRole(context.Context, string) ([]domain.Permission, error) {
	m.listByRoleCalls++
	if m.listByRoleErr != nil {
		return nil, m.listByRoleErr
	}
	return m.listByRoleResult, nil
}

func (m *mockPermissionRepository) ListBySubject(context.Context, string) ([]domain.Permission, error) {
	if m.listBySubjectErr != nil {
		return nil, m.listBySubjectErr
	}
	return m.listBySubjectResult, nil
}

func (m *mockPermissionRepository) Grant(_ context.Context, roleID, permissionID string) error {
	m.grantCalls++
	m.grantedRoleID = roleID
	m.grantedPermission = permissionID
	return m.grantErr
}

func (m *mockPermissionRepository) Revoke(_ context.Context, roleID, permissionID string) error {
	m.revokeCalls++
	m.revokedRoleID = roleID
	m.revokedPermission = permissionID
	return m.revokeErr
}

func (m *mockPermissionRepository) CountGrants(context.Context, string) (int, error) {
	return m.countGrantsResult, m.countGrantsErr
}

type mockRefreshTokenStore struct {
	storeErr      error
	storeCalls    int
	storedSubject string
	storedToken   string
	storedTTL     time.Duration

	// Get reports repository.ErrNotFound until getResult is configured.
	getResult string
	getErr    error
	getCalls  int

	removeErr    error
	removeCalls  int
	removeLastID string
}

var _ port.RefreshTokenStore = (*mockRefreshTokenStore)(nil)

func (m *mockRefreshTokenStore) Store(_ context.Context, subjectID, token string, ttl time.Duration) error {
	m.storeCalls++
	m.storedSubject = subjectID
	m.storedToken = token
	m.storedTTL = ttl
	return m.storeErr
}

func (m *mockRefreshTokenStore) Get(_ context.Context, _ string) (string, error) {
	m.getCalls++
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.getResult == "" {
		return "", repository.ErrNotFound
	}
	return m.getResult, nil
}

func (m *mockRefreshTokenStore) Remove(_ context.Context, subjectID string) error {
	m.removeCalls++
	m.removeLastID = subjectID
	return m.removeErr
}

type mockAccessTokenBlacklist struct {
	addErr     error
	addCalls   int
	addedToken string
	addedTTL   time.Duration

	containsResult bool
	containsErr    error
	containsCalls  int
}

var _ port.AccessTokenBlacklist = (*mockAccessTokenBlacklist)(nil)

func (m *mockAccessTokenBlacklist) Add(_ context.Context, token string, ttl time.Duration) error {
	m.addCalls++
	m.addedToken = token
	m.addedTTL = ttl
	return m.addErr
}

func (m *mockAccessTokenBlacklist) Contains(context.Context, string) (bool, error) {
	m.containsCalls++
	return m.containsResult, m.containsErr
}

type mockSessionStore struct {
	saveErr      error
	saveCalls    int
	savedSession domain.Session
	savedTTL     time.Duration

	getResult *domain.Session
	getErr    error

	touchErr    error
	touchCalls  int
	touchLastID string

	deleteErr    error
	deleteCalls  int
	deleteLastID string

	listResult []domain.Session
	listErr    error
	listCalls  int
}

var _ port.SessionStore = (*mockSessionStore)(nil)

func (m *mockSessionStore) Save(_ context.Context, session domain.Session, ttl time.Duration) error {
	m.saveCalls++
	m.savedSession = session
	m.savedTTL = ttl
	return m.saveErr
}

func (m *mockSessionStore) Get(_ context.Context, _ string) (*domain.Session, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getResult == nil {
		return nil, repository.ErrNotFound
	}
	session := *m.getResult
	return &session, nil
}

func (m *mockSessionStore) Touch(_ context.Context, id string, _ time.Time) error {
	m.touchCalls++
	m.touchLastID = id
	return m.touchErr
}

func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	m.deleteLastID = id
	return m.deleteErr
}

func (m *mockSessionStore) ListByUser(context.Context, string) ([]domain.Session, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

type mockEventPublisher struct {
	err error

	registeredCalls int
	registered      domain.UserRegisteredEvent

	loggedInCalls int
	loggedIn      domain.UserLoggedInEvent

	loggedOutCalls int
	loggedOut      domain.UserLoggedOutEvent

	refreshedCalls int
	refreshed      domain.TokenRefreshedEvent

	deactivatedCalls int
	deactivated      domain.UserDeactivatedEvent

	grantedCalls int
	granted      domain.PermissionGrantedEvent

	revokedCalls int
	revoked      domain.PermissionRevokedEvent
}

var _ port.EventPublisher = (*mockEventPublisher)(nil)

func (m *mockEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.registeredCalls++
	m.registered = event
	return m.err
}

func (m *mockEventPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	m.loggedInCalls++
	m.loggedIn = event
	return m.err
}

func (m *mockEventPublisher) PublishUserLoggedOut(_ context.Context, event domain.UserLoggedOutEvent) error {
	m.loggedOutCalls++
	m.loggedOut = event
	return m.err
}

func (m *mockEventPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	m.refreshedCalls++
	m.refreshed = event
	return m.err
}

func (m *mockEventPublisher) PublishUserDeactivated(_ context.Context, event domain.UserDeactivatedEvent) error {
	m.deactivatedCalls++
	m.deactivated = event
	return m.err
}

func (m *mockEventPublisher) PublishPermissionGranted(_ context.Context, event domain.PermissionGrantedEvent) error {
	m.grantedCalls++
	m.granted = event
	return m.err
}

func (m *mockEventPublisher) PublishPermissionRevoked(_ context.Context, event domain.PermissionRevokedEvent) error {
	m.revokedCalls++
	m.revoked = event
	return m.err
}
