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

// AuditTrailRepository implements port.AuditTrailRepository
type AuditTrailRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditTrailRepository creates a new audit trail repository
func NewAuditTrailRepository(db *sql.DB, logger *zap.Logger) port.AuditTrailRepository {
	return &AuditTrailRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts the next audit event for a document. The per-document
// sequence number is assigned inside the INSERT, so it only runs race-free
// inside the decide transaction.
func (r *AuditTrailRepository) Append(ctx context.Context, ev *entity.AuditEvent) error {
	query := `
		INSERT INTO audit_events (
			document_id, seq, event_type, level, actor_ref,
			from_status, to_status, comments, created_at
		) VALUES (
			?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_events WHERE document_id = ?),
			?, ?, ?, ?, ?, ?, ?
		)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		ev.DocumentID,
		ev.DocumentID,
		ev.EventType,
		ev.Level,
		ev.ActorRef,
		ev.FromStatus,
		ev.ToStatus,
		ev.Comments,
		ev.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit event", zap.Int64("document_id", ev.DocumentID), zap.Error(err))
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id

	return r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT seq FROM audit_events WHERE id = ?`, id).Scan(&ev.Seq)
}

// GetByDocumentID returns the document's audit trail in sequence order.
func (r *AuditTrailRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.AuditEvent, error) {
	query := `
		SELECT id, document_id, seq, event_type, level, actor_ref,
			from_status, to_status, comments, created_at
		FROM audit_events
		WHERE document_id = ?
		ORDER BY seq
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get audit trail", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	defer rows.Close()

	var events []*entity.AuditEvent
	for rows.Next() {
		var ev entity.AuditEvent
		var level sql.NullInt64

		err := rows.Scan(
			&ev.ID,
			&ev.DocumentID,
			&ev.Seq,
			&ev.EventType,
			&level,
			&ev.ActorRef,
			&ev.FromStatus,
			&ev.ToStatus,
			&ev.Comments,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if level.Valid {
			l := int(level.Int64)
			ev.Level = &l
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *AuditTrailRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AuditTrailRepository = (*AuditTrailRepository)(nil)
