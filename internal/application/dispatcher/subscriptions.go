package dispatcher

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/event"
)

// DocumentNotifier delivers the queued notifications of one document.
type DocumentNotifier interface {
	DeliverForDocument(ctx context.Context, documentID int64) error
}

// transitionTypes are the events that leave notification rows behind.
var transitionTypes = []event.Type{
	event.TypeApprovalStarted,
	event.TypeDecisionRecorded,
	event.TypeLevelAdvanced,
	event.TypeApprovalCompleted,
	event.TypeApprovalRejected,
	event.TypeDocumentForwarded,
	event.TypeApprovalResubmitted,
	event.TypeApprovalCancelled,
	event.TypeApprovalReminder,
}

// RegisterNotificationDelivery subscribes a handler that drains the queued
// notifications of the event's document. Delivery failures stay in the queue
// for the retry worker; the handler itself never fails the dispatch.
func RegisterNotificationDelivery(d Dispatcher, notifier DocumentNotifier) {
	handler := func(ctx context.Context, evt *event.Event) error {
		return notifier.DeliverForDocument(ctx, evt.DocumentID)
	}
	for _, t := range transitionTypes {
		d.SubscribeNamed(t, "notification-delivery", handler)
	}
}
