package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new document. The decision rows are created later, as the
// document reaches each level.
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (
			document_type, title, owner_ref, project_id, department_id,
			lifecycle_status, approval_status, current_level, level0_mode,
			version, created_at, submitted_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.DocumentType,
		doc.Title,
		doc.OwnerRef,
		doc.ProjectID,
		doc.DepartmentID,
		doc.LifecycleStatus,
		doc.ApprovalStatus,
		doc.CurrentLevel,
		doc.Level0Mode,
		doc.Version,
		doc.CreatedAt,
		doc.SubmittedAt,
		doc.CompletedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// GetByID retrieves a document with its decision rows.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := `
		SELECT id, document_type, title, owner_ref, project_id, department_id,
			lifecycle_status, approval_status, current_level, level0_mode,
			version, created_at, submitted_at, completed_at, updated_at
		FROM documents
		WHERE id = ?
	`

	doc, err := r.scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", approval.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := r.loadDecisions(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByIDs retrieves multiple documents with their decision rows. Missing
// ids are simply absent from the result.
func (r *DocumentRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		SELECT id, document_type, title, owner_ref, project_id, department_id,
			lifecycle_status, approval_status, current_level, level0_mode,
			version, created_at, submitted_at, completed_at, updated_at
		FROM documents
		WHERE id IN (%s)
		ORDER BY id
	`, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get documents", zap.Error(err))
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := r.loadDecisions(ctx, doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// List retrieves documents matching the filter.
func (r *DocumentRepository) List(ctx context.Context, filter port.DocumentFilter) ([]*entity.Document, error) {
	var conds []string
	var args []interface{}

	if filter.DocumentType != "" {
		conds = append(conds, "document_type = ?")
		args = append(args, filter.DocumentType)
	}
	if filter.ApprovalStatus != "" {
		conds = append(conds, "approval_status = ?")
		args = append(args, filter.ApprovalStatus)
	}
	if filter.CurrentLevel != nil {
		conds = append(conds, "current_level = ?")
		args = append(args, *filter.CurrentLevel)
	}
	if filter.ProjectID != 0 {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.DepartmentID != 0 {
		conds = append(conds, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}

	query := `
		SELECT id, document_type, title, owner_ref, project_id, department_id,
			lifecycle_status, approval_status, current_level, level0_mode,
			version, created_at, submitted_at, completed_at, updated_at
		FROM documents
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := r.loadDecisions(ctx, doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// UpdateWithVersion writes the aggregate behind the version guard. The
// UPDATE matches on the expected version and bumps it in the same statement;
// zero rows affected means another writer committed first.
func (r *DocumentRepository) UpdateWithVersion(ctx context.Context, doc *entity.Document, expectedVersion int64) error {
	query := `
		UPDATE documents
		SET title = ?, lifecycle_status = ?, approval_status = ?,
			current_level = ?, level0_mode = ?, version = version + 1,
			submitted_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.Title,
		doc.LifecycleStatus,
		doc.ApprovalStatus,
		doc.CurrentLevel,
		doc.Level0Mode,
		doc.SubmittedAt,
		doc.CompletedAt,
		doc.UpdatedAt,
		doc.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update document", zap.Int64("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := r.getExecutor(ctx).QueryRowContext(ctx,
			`SELECT 1 FROM documents WHERE id = ?`, doc.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: id %d", approval.ErrNotFound, doc.ID)
		}
		return fmt.Errorf("%w: document %d at version %d", approval.ErrConcurrentModification, doc.ID, expectedVersion)
	}

	if err := r.saveDecisions(ctx, doc); err != nil {
		return err
	}

	doc.Version = expectedVersion + 1
	return nil
}

// saveDecisions upserts the decision rows of the aggregate.
func (r *DocumentRepository) saveDecisions(ctx context.Context, doc *entity.Document) error {
	ex := r.getExecutor(ctx)

	for i := range doc.Level0Approvers {
		d := &doc.Level0Approvers[i]
		query := `
			INSERT INTO level0_decisions (document_id, approver_ref, status, comments, decided_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(document_id, approver_ref)
			DO UPDATE SET status = excluded.status, comments = excluded.comments, decided_at = excluded.decided_at
		`
		if _, err := ex.ExecContext(ctx, query, doc.ID, d.ApproverRef, d.Status, d.Comments, d.DecidedAt); err != nil {
			return fmt.Errorf("failed to save level-0 decision: %w", err)
		}
	}

	for i := range doc.Levels {
		d := &doc.Levels[i]
		query := `
			INSERT INTO level_decisions (document_id, level, title, status, approver_ref, comments, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id, level)
			DO UPDATE SET status = excluded.status, approver_ref = excluded.approver_ref,
				comments = excluded.comments, decided_at = excluded.decided_at
		`
		if _, err := ex.ExecContext(ctx, query, doc.ID, d.Level, d.Title, d.Status, d.ApproverRef, d.Comments, d.DecidedAt); err != nil {
			return fmt.Errorf("failed to save level decision: %w", err)
		}
	}

	return nil
}

// loadDecisions populates the aggregate's decision slices.
func (r *DocumentRepository) loadDecisions(ctx context.Context, doc *entity.Document) error {
	ex := r.getExecutor(ctx)

	rows, err := ex.QueryContext(ctx, `
		SELECT id, document_id, approver_ref, status, comments, decided_at
		FROM level0_decisions
		WHERE document_id = ?
		ORDER BY id
	`, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load level-0 decisions: %w", err)
	}
	defer rows.Close()

	doc.Level0Approvers = nil
	for rows.Next() {
		var d entity.ParallelApproverDecision
		var decidedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.ApproverRef, &d.Status, &d.Comments, &decidedAt); err != nil {
			return fmt.Errorf("failed to scan level-0 decision: %w", err)
		}
		if decidedAt.Valid {
			d.DecidedAt = &decidedAt.Time
		}
		doc.Level0Approvers = append(doc.Level0Approvers, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	lrows, err := ex.QueryContext(ctx, `
		SELECT id, document_id, level, title, status, approver_ref, comments, decided_at
		FROM level_decisions
		WHERE document_id = ?
		ORDER BY level
	`, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load level decisions: %w", err)
	}
	defer lrows.Close()

	doc.Levels = nil
	for lrows.Next() {
		var d entity.LevelDecision
		var decidedAt sql.NullTime
		if err := lrows.Scan(&d.ID, &d.DocumentID, &d.Level, &d.Title, &d.Status, &d.ApproverRef, &d.Comments, &decidedAt); err != nil {
			return fmt.Errorf("failed to scan level decision: %w", err)
		}
		if decidedAt.Valid {
			d.DecidedAt = &decidedAt.Time
		}
		doc.Levels = append(doc.Levels, d)
	}
	return lrows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *DocumentRepository) scanDocument(row rowScanner) (*entity.Document, error) {
	var doc entity.Document
	var currentLevel sql.NullInt64
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.DocumentType,
		&doc.Title,
		&doc.OwnerRef,
		&doc.ProjectID,
		&doc.DepartmentID,
		&doc.LifecycleStatus,
		&doc.ApprovalStatus,
		&currentLevel,
		&doc.Level0Mode,
		&doc.Version,
		&doc.CreatedAt,
		&submittedAt,
		&completedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentLevel.Valid {
		l := int(currentLevel.Int64)
		doc.CurrentLevel = &l
	}
	if submittedAt.Valid {
		doc.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		doc.CompletedAt = &completedAt.Time
	}
	return &doc, nil
}

func (r *DocumentRepository) scanDocuments(rows *sql.Rows) ([]*entity.Document, error) {
	var docs []*entity.Document
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *DocumentRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
