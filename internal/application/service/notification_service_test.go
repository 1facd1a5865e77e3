package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

func seedNotification(t *testing.T, deps *serviceDeps, documentID int64, recipient string, eventType event.Type) *entity.TransitionNotification {
	t.Helper()
	row := &entity.TransitionNotification{
		DocumentID:   documentID,
		EventType:    eventType.String(),
		RecipientRef: recipient,
		Status:       entity.NotificationStatusPending,
		CreatedAt:    time.Now(),
	}
	if err := deps.notifRepo.Create(context.Background(), row); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return row
}

func TestNotificationService_DeliverPending(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)
	notifier := &mockNotifier{}
	delivery := NewNotificationService(deps.notifRepo, deps.docRepo, notifier, &mockLogger{})
	ctx := context.Background()

	doc := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
	seedNotification(t, deps, doc.ID, "am-hr", event.TypeApprovalStarted)
	seedNotification(t, deps, doc.ID, "owner-1", event.TypeApprovalCompleted)

	sent, err := delivery.DeliverPending(ctx, 10)
	if err != nil {
		t.Fatalf("DeliverPending() error = %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("notifier got %d sends, want 2", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0].Body, doc.Title) {
		t.Errorf("body %q should mention the document title", notifier.sent[0].Body)
	}

	// Nothing pending remains.
	rows, _ := deps.notifRepo.GetPending(ctx, 0)
	if len(rows) != 0 {
		t.Errorf("pending rows = %d, want 0", len(rows))
	}
}

func TestNotificationService_FailureIsRecordedAndRetried(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)
	notifier := &mockNotifier{
		sendFunc: func(ctx context.Context, n *port.Notification) error {
			return errors.New("transport down")
		},
	}
	delivery := NewNotificationService(deps.notifRepo, deps.docRepo, notifier, &mockLogger{})
	ctx := context.Background()

	doc := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
	row := seedNotification(t, deps, doc.ID, "am-hr", event.TypeApprovalStarted)

	sent, err := delivery.DeliverPending(ctx, 10)
	if err != nil {
		t.Fatalf("DeliverPending() error = %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 on transport failure", sent)
	}
	if row.Status != entity.NotificationStatusFailed || row.Attempts != 1 {
		t.Errorf("row = %+v, want FAILED with 1 attempt", row)
	}

	// The transport recovers; the retry pass delivers the failed row.
	notifier.sendFunc = nil
	sent, err = delivery.DeliverPending(ctx, 10)
	if err != nil {
		t.Fatalf("retry DeliverPending() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("retry sent = %d, want 1", sent)
	}
	if row.Status != entity.NotificationStatusSent {
		t.Errorf("row status = %s, want SENT after retry", row.Status)
	}
}

func TestNotificationService_DeliverForDocument(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)
	notifier := &mockNotifier{}
	delivery := NewNotificationService(deps.notifRepo, deps.docRepo, notifier, &mockLogger{})
	ctx := context.Background()

	docA := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
	docB := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
	seedNotification(t, deps, docA.ID, "am-hr", event.TypeApprovalStarted)
	seedNotification(t, deps, docB.ID, "am-hr", event.TypeApprovalStarted)

	if err := delivery.DeliverForDocument(ctx, docA.ID); err != nil {
		t.Fatalf("DeliverForDocument() error = %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].DocumentID != docA.ID {
		t.Errorf("sent = %+v, want only docA's notification", notifier.sent)
	}

	rows, _ := deps.notifRepo.GetPending(ctx, 0)
	if len(rows) != 1 || rows[0].DocumentID != docB.ID {
		t.Errorf("pending = %+v, want docB's row untouched", rows)
	}
}
