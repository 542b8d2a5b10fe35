package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/repository"
)

var permissionColumns = []string{
	"id",
	"resource",
	"action",
	"name",
	"description",
	"created_at",
}

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
// It owns both the permission catalog and the role_permissions grant table.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PermissionRepository) WithTx(tx pgx.Tx) *PermissionRepository {
	if tx == nil {
		return r
	}
	return &PermissionRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new permission row. Returns repository.ErrDuplicate
// when the (resource, action) pair or derived name already exists.
func (r *PermissionRepository) Create(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Insert("starter.permissions").
		Columns(permissionColumns...).
		Values(
			permission.ID,
			permission.Resource,
			permission.Action,
			permission.Name,
			permission.Description,
			permission.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if translated := translateError(err); errors.Is(translated, repository.ErrDuplicate) {
			return translated
		}
		return fmt.Errorf("insert permission: %w", err)
	}

	return nil
}

// GetByID retrieves a permission by its identifier.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByName retrieves a permission by its derived unique name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"name": name})
}

func (r *PermissionRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns...).
		From("starter.permissions").
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	permission, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan permission: %w", err)
	}

	return permission, nil
}

// List returns permissions with optional resource/action filtering.
func (r *PermissionRepository) List(ctx context.Context, filter port.PermissionFilter) ([]domain.Permission, error) {
	query := r.builder.Select(permissionColumns...).
		From("starter.permissions").
		OrderBy("name ASC")

	query = applyPermissionFilter(query, filter)

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

// Count returns the number of permissions matching the filter.
func (r *PermissionRepository) Count(ctx context.Context, filter port.PermissionFilter) (int, error) {
	query := r.builder.Select("COUNT(*)").From("starter.permissions")
	query = applyPermissionFilter(query, filter)

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count permissions sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan permissions count: %w", err)
	}

	return int(count), nil
}

// Update modifies a permission's description. Resource and action are
// immutable; renaming a capability means creating a new one.
func (r *PermissionRepository) Update(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Update("starter.permissions").
		Set("description", permission.Description).
		Where(squirrel.Eq{"id": permission.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update permission sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a permission from the catalog.
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("starter.permissions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete permission sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByRole returns permissions granted to a role via role_permissions.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select(
		"p.id", "p.resource", "p.action", "p.name", "p.description", "p.created_at",
	).
		From("starter.permissions p").
		Join("starter.role_permissions rp ON rp.permission_id = p.id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by role sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions by role: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

// ListBySubject returns the permissions a user holds through their role.
func (r *PermissionRepository) ListBySubject(ctx context.Context, userID string) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select(
		"p.id", "p.resource", "p.action", "p.name", "p.description", "p.created_at",
	).
		From("starter.permissions p").
		Join("starter.role_permissions rp ON rp.permission_id = p.id").
		Join("starter.users u ON u.role_id = rp.role_id").
		Where(squirrel.Eq{"u.id": userID}).
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by subject sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions by subject: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

// Grant links a permission to a role. Granting an already-granted
// permission is a no-op.
func (r *PermissionRepository) Grant(ctx context.Context, roleID, permissionID string) error {
	stmt, args, err := r.builder.Insert("starter.role_permissions").
		Columns("role_id", "permission_id", "granted_at").
		Values(roleID, permissionID, time.Now().UTC()).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build grant permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}

	return nil
}

// Revoke removes a permission grant from a role. Revoking an absent
// grant is a no-op.
func (r *PermissionRepository) Revoke(ctx context.Context, roleID, permissionID string) error {
	stmt, args, err := r.builder.Delete("starter.role_permissions").
		Where(squirrel.Eq{"role_id": roleID}).
		Where(squirrel.Eq{"permission_id": permissionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}

	return nil
}

// CountGrants returns how many roles currently hold the permission.
func (r *PermissionRepository) CountGrants(ctx context.Context, permissionID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("starter.role_permissions").
		Where(squirrel.Eq{"permission_id": permissionID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count grants sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan grants count: %w", err)
	}

	return int(count), nil
}

func applyPermissionFilter(query squirrel.SelectBuilder, filter port.PermissionFilter) squirrel.SelectBuilder {
	if filter.Resource != "" {
		query = query.Where(squirrel.Eq{"resource": filter.Resource})
	}
	if filter.Action != "" {
		query = query.Where(squirrel.Eq{"action": filter.Action})
	}
	return query
}

func scanPermission(row pgx.Row) (*domain.Permission, error) {
	var (
		permission  domain.Permission
		description sql.NullString
	)

	if err := row.Scan(
		&permission.ID,
		&permission.Resource,
		&permission.Action,
		&permission.Name,
		&description,
		&permission.CreatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		permission.Description = &description.String
	}

	return &permission, nil
}

func collectPermissions(rows pgx.Rows) ([]domain.Permission, error) {
	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, *permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return permissions, nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
