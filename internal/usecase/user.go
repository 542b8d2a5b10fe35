package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

// ErrUserNotFound indicates the requested user does not exist or is inactive.
var ErrUserNotFound = errors.New("user not found")

// UserAccount pairs a user with its resolved role name.
type UserAccount struct {
	User     domain.User
	RoleName string
}

// CreateUserInput captures the payload for administrative user creation.
type CreateUserInput struct {
	Email    string
	Name     string
	Age      *int
	Password string
	Role     string
}

// UpdateUserInput captures the mutable profile fields. Nil fields are
// left unchanged.
type UpdateUserInput struct {
	Email    *string
	Name     *string
	Age      *int
	Role     *string
	IsActive *bool
}

// ListUsersInput captures filters for listing users.
type ListUsersInput struct {
	Search   string
	Role     string
	IsActive *bool
	Limit    int
	Offset   int
}

// ListUsersResult includes accounts and pagination metadata.
type ListUsersResult struct {
	Users  []UserAccount
	Total  int
	Limit  int
	Offset int
}

// UserService handles user lifecycle operations behind the permission gate.
type UserService struct {
	users     port.UserRepository
	roles     port.RoleRepository
	hasher    port.PasswordHasher
	passwords port.PasswordPolicyValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(
	users port.UserRepository,
	roles port.RoleRepository,
	hasher port.PasswordHasher,
	passwords port.PasswordPolicyValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &UserService{
		users:     users,
		roles:     roles,
		hasher:    hasher,
		passwords: passwords,
		events:    events,
		logger:    log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *UserService) WithClock(clock func() time.Time) *UserService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// List returns users matching the filter together with role names and a total count.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersResult, error) {
	filter := port.UserFilter{
		Search:   strings.TrimSpace(input.Search),
		IsActive: input.IsActive,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}

	if roleName := strings.TrimSpace(input.Role); roleName != "" {
		role, err := s.roles.GetByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRoleNotFound
			}
			return nil, fmt.Errorf("lookup role %q: %w", roleName, err)
		}
		filter.RoleID = role.ID
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	roleNames, err := s.roleNameIndex(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]UserAccount, 0, len(users))
	for _, user := range users {
		user.PasswordHash = ""
		accounts = append(accounts, UserAccount{User: user, RoleName: roleNames[user.RoleID]})
	}

	return &ListUsersResult{
		Users:  accounts,
		Total:  total,
		Limit:  input.Limit,
		Offset: input.Offset,
	}, nil
}

// Get returns a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*UserAccount, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("user id is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	account := UserAccount{User: *user, RoleName: s.lookupRoleName(ctx, user.RoleID)}
	account.User.PasswordHash = ""

	return &account, nil
}

// Create provisions an account on behalf of an administrator. Unlike
// self-registration, any existing role may be assigned directly; the
// route gate has already required user:create.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*UserAccount, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if input.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	name := strings.TrimSpace(input.Name)

	if err := s.passwords.Validate(input.Password, email, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	roleName := strings.TrimSpace(input.Role)
	if roleName == "" {
		roleName = domain.RoleDefault
	}
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role %q: %w", roleName, err)
	}

	hash, err := s.hasher.Hash(input.Password)
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

	user.PasswordHash = ""

	return &UserAccount{User: user, RoleName: role.Name}, nil
}

// Update applies the provided profile changes to an existing user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*UserAccount, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("user id is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, fmt.Errorf("email must not be empty")
		}
		user.Email = email
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Age != nil {
		age := *input.Age
		user.Age = &age
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	roleName := ""
	if input.Role != nil {
		role, err := s.roles.GetByName(ctx, strings.TrimSpace(*input.Role))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRoleNotFound
			}
			return nil, fmt.Errorf("lookup role %q: %w", *input.Role, err)
		}
		user.RoleID = role.ID
		roleName = role.Name
	}

	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, *user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	if roleName == "" {
		roleName = s.lookupRoleName(ctx, user.RoleID)
	}

	account := UserAccount{User: *user, RoleName: roleName}
	account.User.PasswordHash = ""

	return &account, nil
}

// Deactivate soft-deletes a user. Previously issued tokens stay
// structurally valid until expiry but fail re-resolution on the next
// current-subject or refresh call.
func (s *UserService) Deactivate(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("user id is required")
	}

	if err := s.users.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("deactivate user: %w", err)
	}

	s.publishDeactivated(ctx, id, actorID)

	return nil
}

func (s *UserService) roleNameIndex(ctx context.Context) (map[string]string, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	index := make(map[string]string, len(roles))
	for _, role := range roles {
		index[role.ID] = role.Name
	}
	return index, nil
}

func (s *UserService) lookupRoleName(ctx context.Context, roleID string) string {
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

func (s *UserService) publishDeactivated(ctx context.Context, userID, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.UserDeactivatedEvent{
		EventID:       uuid.NewString(),
		UserID:        userID,
		Actor:         actorID,
		DeactivatedAt: s.now(),
	}
	if err := s.events.PublishUserDeactivated(ctx, event); err != nil {
		s.logger.Warn("user deactivated event not published", zap.String("user_id", userID), zap.Error(err))
	}
}
