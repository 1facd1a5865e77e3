package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuthorityRepository stores approval authority assignments and serves as
// the authority resolver: who may approve which document type, at which
// level, in which scope. Resolution always hits the table, so a revoked
// grant takes effect on the next decision.
type AuthorityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuthorityRepository creates a new authority repository
func NewAuthorityRepository(db *sql.DB, logger *zap.Logger) *AuthorityRepository {
	return &AuthorityRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an authority assignment.
func (r *AuthorityRepository) Create(ctx context.Context, a *port.AuthorityAssignment) error {
	query := `
		INSERT INTO authority_assignments (principal_ref, document_type, level, project_id, department_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(principal_ref, document_type, level, project_id, department_id) DO NOTHING
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		a.PrincipalRef, a.DocumentType, a.Level, a.ProjectID, a.DepartmentID)
	if err != nil {
		r.logger.Error("Failed to create assignment", zap.String("principal", a.PrincipalRef), zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Delete removes an authority assignment.
func (r *AuthorityRepository) Delete(ctx context.Context, a *port.AuthorityAssignment) error {
	query := `
		DELETE FROM authority_assignments
		WHERE principal_ref = ? AND document_type = ? AND level = ? AND project_id = ? AND department_id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		a.PrincipalRef, a.DocumentType, a.Level, a.ProjectID, a.DepartmentID)
	if err != nil {
		r.logger.Error("Failed to delete assignment", zap.String("principal", a.PrincipalRef), zap.Error(err))
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// GetByScope returns the principals granted a level for a document type and
// scope.
func (r *AuthorityRepository) GetByScope(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error) {
	query := `
		SELECT principal_ref
		FROM authority_assignments
		WHERE document_type = ? AND level = ? AND project_id = ? AND department_id = ?
		ORDER BY principal_ref
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, dt, level, scope.ProjectID, scope.DepartmentID)
	if err != nil {
		r.logger.Error("Failed to get assignments by scope", zap.Error(err))
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	var principals []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

// GetByPrincipal returns every assignment a principal holds.
func (r *AuthorityRepository) GetByPrincipal(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error) {
	query := `
		SELECT principal_ref, document_type, level, project_id, department_id
		FROM authority_assignments
		WHERE principal_ref = ?
		ORDER BY document_type, level
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, principal)
	if err != nil {
		r.logger.Error("Failed to get assignments by principal", zap.String("principal", principal), zap.Error(err))
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*port.AuthorityAssignment
	for rows.Next() {
		var a port.AuthorityAssignment
		if err := rows.Scan(&a.PrincipalRef, &a.DocumentType, &a.Level, &a.ProjectID, &a.DepartmentID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// Resolve implements port.AuthorityResolver.
func (r *AuthorityRepository) Resolve(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error) {
	return r.GetByScope(ctx, dt, scope, level)
}

// IsAuthorized implements port.AuthorityResolver.
func (r *AuthorityRepository) IsAuthorized(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error) {
	query := `
		SELECT 1
		FROM authority_assignments
		WHERE principal_ref = ? AND document_type = ? AND level = ? AND project_id = ? AND department_id = ?
	`

	var one int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query,
		principal, dt, level, scope.ProjectID, scope.DepartmentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check authorization: %w", err)
	}
	return true, nil
}

// AssignmentsFor implements port.AuthorityResolver.
func (r *AuthorityRepository) AssignmentsFor(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error) {
	return r.GetByPrincipal(ctx, principal)
}

// getExecutor returns appropriate executor based on context
func (r *AuthorityRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var (
	_ port.AuthorityRepository = (*AuthorityRepository)(nil)
	_ port.AuthorityResolver   = (*AuthorityRepository)(nil)
)
