package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification delivery record.
func (r *NotificationRepository) Create(ctx context.Context, n *entity.TransitionNotification) error {
	query := `
		INSERT INTO transition_notifications (
			document_id, event_type, recipient_ref, status, attempts, last_error, created_at, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		n.DocumentID,
		n.EventType,
		n.RecipientRef,
		n.Status,
		n.Attempts,
		n.LastError,
		n.CreatedAt,
		n.SentAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Int64("document_id", n.DocumentID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// GetPending returns undelivered rows (PENDING and FAILED), oldest first.
// limit <= 0 means no limit.
func (r *NotificationRepository) GetPending(ctx context.Context, limit int) ([]*entity.TransitionNotification, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, document_id, event_type, recipient_ref, status, attempts, last_error, created_at, sent_at
		FROM transition_notifications
		WHERE status != ?
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.NotificationStatusSent, limit)
	if err != nil {
		r.logger.Error("Failed to get pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending notifications: %w", err)
	}
	defer rows.Close()

	return r.scanNotifications(rows)
}

// GetPendingForDocument returns one document's undelivered rows, oldest
// first. The post-commit delivery handler uses this to drain just the
// document whose transition committed.
func (r *NotificationRepository) GetPendingForDocument(ctx context.Context, documentID int64) ([]*entity.TransitionNotification, error) {
	query := `
		SELECT id, document_id, event_type, recipient_ref, status, attempts, last_error, created_at, sent_at
		FROM transition_notifications
		WHERE document_id = ? AND status != ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID, entity.NotificationStatusSent)
	if err != nil {
		r.logger.Error("Failed to get pending notifications for document",
			zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending notifications: %w", err)
	}
	defer rows.Close()

	return r.scanNotifications(rows)
}

func (r *NotificationRepository) scanNotifications(rows *sql.Rows) ([]*entity.TransitionNotification, error) {
	var notifications []*entity.TransitionNotification
	for rows.Next() {
		var n entity.TransitionNotification
		var sentAt sql.NullTime

		err := rows.Scan(
			&n.ID,
			&n.DocumentID,
			&n.EventType,
			&n.RecipientRef,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE transition_notifications
		SET status = ?, sent_at = ?, last_error = ''
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationStatusSent, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt for later retry.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	query := `
		UPDATE transition_notifications
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationStatusFailed, errorMsg, id)
	if err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *NotificationRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
