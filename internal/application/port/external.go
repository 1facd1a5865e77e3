package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// AuthorityResolver answers who may approve a document at a given level.
// Resolution is dynamic: it is evaluated at decision time, never cached on
// the document, except for the level-0 set which is frozen at start.
type AuthorityResolver interface {
	// Resolve returns the principals granted the level for the scope. An
	// empty result means nobody is authorized.
	Resolve(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error)

	// IsAuthorized reports whether one principal holds the level for the
	// scope.
	IsAuthorized(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error)

	// AssignmentsFor returns every (document type, level, scope) grant the
	// principal holds; this drives the pending-approvals dashboard.
	AssignmentsFor(ctx context.Context, principal string) ([]*AuthorityAssignment, error)
}

// Notification is one transition message to deliver to a recipient.
type Notification struct {
	RecipientRef string
	DocumentID   int64
	Title        string
	EventType    string
	Body         string
}

// Notifier delivers transition notifications. Delivery is best-effort;
// failures are recorded and retried out-of-band, never surfaced to the
// decision path.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}
