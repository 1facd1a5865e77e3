package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

// NotificationService delivers queued transition notifications. Rows are
// written PENDING inside the decision transaction; this service drains them
// after commit and from the background retry worker. Delivery failures are
// recorded and retried, never propagated back to the decision path.
type NotificationService interface {
	// DeliverForDocument drains the pending rows of one document, typically
	// right after its transition committed.
	DeliverForDocument(ctx context.Context, documentID int64) error

	// DeliverPending drains up to limit pending rows regardless of
	// document; the retry worker calls this on a timer.
	DeliverPending(ctx context.Context, limit int) (int, error)
}

type notificationServiceImpl struct {
	notifRepo port.NotificationRepository
	docRepo   port.DocumentRepository
	notifier  port.Notifier
	logger    Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notifRepo port.NotificationRepository,
	docRepo port.DocumentRepository,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notifRepo: notifRepo,
		docRepo:   docRepo,
		notifier:  notifier,
		logger:    logger,
	}
}

// DeliverForDocument drains the pending notifications of one document.
func (s *notificationServiceImpl) DeliverForDocument(ctx context.Context, documentID int64) error {
	rows, err := s.notifRepo.GetPendingForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get pending notifications: %w", err)
	}

	for _, row := range rows {
		s.deliver(ctx, row)
	}
	return nil
}

// DeliverPending drains up to limit pending notifications and returns how
// many were sent.
func (s *notificationServiceImpl) DeliverPending(ctx context.Context, limit int) (int, error) {
	rows, err := s.notifRepo.GetPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending notifications: %w", err)
	}

	sent := 0
	for _, row := range rows {
		if s.deliver(ctx, row) {
			sent++
		}
	}
	return sent, nil
}

// deliver sends one notification and records the outcome. Returns true on
// success.
func (s *notificationServiceImpl) deliver(ctx context.Context, row *entity.TransitionNotification) bool {
	doc, err := s.docRepo.GetByID(ctx, row.DocumentID)
	if err != nil {
		s.logger.Error("Failed to load document for notification", "error", err, "notification_id", row.ID)
		s.notifRepo.MarkFailed(ctx, row.ID, err.Error())
		return false
	}

	n := &port.Notification{
		RecipientRef: row.RecipientRef,
		DocumentID:   doc.ID,
		Title:        doc.Title,
		EventType:    row.EventType,
		Body:         buildNotificationBody(doc, row.EventType),
	}

	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Error("Failed to deliver notification",
			"error", err, "notification_id", row.ID, "recipient", row.RecipientRef)
		s.notifRepo.MarkFailed(ctx, row.ID, err.Error())
		return false
	}

	if err := s.notifRepo.MarkSent(ctx, row.ID); err != nil {
		s.logger.Error("Failed to mark notification sent", "error", err, "notification_id", row.ID)
		return false
	}

	s.logger.Info("Notification delivered",
		"notification_id", row.ID, "recipient", row.RecipientRef, "event", row.EventType)
	return true
}

// buildNotificationBody renders a short human-readable message per event
// type.
func buildNotificationBody(doc *entity.Document, eventType string) string {
	switch event.Type(eventType) {
	case event.TypeApprovalStarted, event.TypeLevelAdvanced, event.TypeDocumentForwarded, event.TypeApprovalResubmitted:
		return fmt.Sprintf("Document %q (#%d) is awaiting your approval.", doc.Title, doc.ID)
	case event.TypeApprovalCompleted:
		return fmt.Sprintf("Document %q (#%d) has been fully approved.", doc.Title, doc.ID)
	case event.TypeApprovalRejected:
		return fmt.Sprintf("Document %q (#%d) was rejected. You may revise and resubmit it.", doc.Title, doc.ID)
	case event.TypeApprovalCancelled:
		return fmt.Sprintf("Approval of document %q (#%d) was cancelled.", doc.Title, doc.ID)
	case event.TypeApprovalReminder:
		return fmt.Sprintf("Reminder: document %q (#%d) is still awaiting your approval.", doc.Title, doc.ID)
	default:
		return fmt.Sprintf("Document %q (#%d) changed state.", doc.Title, doc.ID)
	}
}
