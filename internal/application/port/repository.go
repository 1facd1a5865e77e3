package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// DocumentFilter narrows document queries.
type DocumentFilter struct {
	DocumentType   entity.DocumentType
	ApprovalStatus string
	CurrentLevel   *int
	ProjectID      int64
	DepartmentID   int64
	Limit          int
	Offset         int
}

// DocumentRepository defines persistence operations for Document and its
// decision rows. Save methods persist the whole aggregate; UpdateWithVersion
// is the optimistic-concurrency write and must fail without side effects when
// the stored version differs from expectedVersion.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*entity.Document, error)

	// UpdateWithVersion writes the aggregate (document row plus decision
	// rows) guarded by the version column. Returns
	// approval.ErrConcurrentModification when the compare-and-swap fails.
	UpdateWithVersion(ctx context.Context, doc *entity.Document, expectedVersion int64) error
}

// AuditTrailRepository appends and reads the per-document audit trail.
// Append assigns the next per-document sequence number inside the caller's
// transaction.
type AuditTrailRepository interface {
	Append(ctx context.Context, ev *entity.AuditEvent) error
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.AuditEvent, error)
}

// NotificationRepository defines persistence operations for
// TransitionNotification delivery records.
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.TransitionNotification) error
	GetPending(ctx context.Context, limit int) ([]*entity.TransitionNotification, error)
	GetPendingForDocument(ctx context.Context, documentID int64) ([]*entity.TransitionNotification, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
}

// AuthorityAssignment grants one principal one approval level within a scope.
type AuthorityAssignment struct {
	PrincipalRef string              `json:"principal_ref"`
	DocumentType entity.DocumentType `json:"document_type"`
	Level        int                 `json:"level"`
	ProjectID    int64               `json:"project_id"`
	DepartmentID int64               `json:"department_id"`
}

// AuthorityRepository defines persistence operations for approval authority
// assignments.
type AuthorityRepository interface {
	Create(ctx context.Context, a *AuthorityAssignment) error
	Delete(ctx context.Context, a *AuthorityAssignment) error
	GetByScope(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error)
	GetByPrincipal(ctx context.Context, principal string) ([]*AuthorityAssignment, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
