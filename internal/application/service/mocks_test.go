package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

func copyDoc(d *entity.Document) *entity.Document {
	c := *d
	c.Level0Approvers = append([]entity.ParallelApproverDecision(nil), d.Level0Approvers...)
	c.Levels = append([]entity.LevelDecision(nil), d.Levels...)
	return &c
}

// mockDocRepo is an in-memory DocumentRepository honoring the version guard.
type mockDocRepo struct {
	mu   sync.Mutex
	next int64
	docs map[int64]*entity.Document

	// failUpdates makes the next N UpdateWithVersion calls lose the CAS
	// race regardless of version.
	failUpdates int
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{docs: make(map[int64]*entity.Document)}
}

func (m *mockDocRepo) Create(ctx context.Context, doc *entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	doc.ID = m.next
	m.docs[doc.ID] = copyDoc(doc)
	return nil
}

func (m *mockDocRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", approval.ErrNotFound, id)
	}
	return copyDoc(doc), nil
}

func (m *mockDocRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*entity.Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			docs = append(docs, copyDoc(doc))
		}
	}
	return docs, nil
}

func (m *mockDocRepo) List(ctx context.Context, filter port.DocumentFilter) ([]*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*entity.Document
	for _, doc := range m.docs {
		if filter.DocumentType != "" && doc.DocumentType != filter.DocumentType {
			continue
		}
		if filter.ApprovalStatus != "" && doc.ApprovalStatus != filter.ApprovalStatus {
			continue
		}
		if filter.CurrentLevel != nil && (doc.CurrentLevel == nil || *doc.CurrentLevel != *filter.CurrentLevel) {
			continue
		}
		if filter.ProjectID != 0 && doc.ProjectID != filter.ProjectID {
			continue
		}
		if filter.DepartmentID != 0 && doc.DepartmentID != filter.DepartmentID {
			continue
		}
		docs = append(docs, copyDoc(doc))
	}
	return docs, nil
}

func (m *mockDocRepo) UpdateWithVersion(ctx context.Context, doc *entity.Document, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return approval.ErrConcurrentModification
	}
	stored, ok := m.docs[doc.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", approval.ErrNotFound, doc.ID)
	}
	if stored.Version != expectedVersion {
		return approval.ErrConcurrentModification
	}
	doc.Version = expectedVersion + 1
	m.docs[doc.ID] = copyDoc(doc)
	return nil
}

// mockAuditRepo collects appended events in order.
type mockAuditRepo struct {
	mu     sync.Mutex
	events []*entity.AuditEvent
}

func (m *mockAuditRepo) Append(ctx context.Context, ev *entity.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	seq := int64(0)
	for _, e := range m.events {
		if e.DocumentID == ev.DocumentID {
			seq++
		}
	}
	ev.Seq = seq + 1
	m.events = append(m.events, ev)
	return nil
}

func (m *mockAuditRepo) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AuditEvent
	for _, e := range m.events {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mockNotifRepo stores notification rows.
type mockNotifRepo struct {
	mu   sync.Mutex
	rows []*entity.TransitionNotification
}

func (m *mockNotifRepo) Create(ctx context.Context, n *entity.TransitionNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

func (m *mockNotifRepo) GetPending(ctx context.Context, limit int) ([]*entity.TransitionNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.TransitionNotification
	for _, row := range m.rows {
		if row.Status != entity.NotificationStatusSent && (limit <= 0 || len(out) < limit) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockNotifRepo) GetPendingForDocument(ctx context.Context, documentID int64) ([]*entity.TransitionNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.TransitionNotification
	for _, row := range m.rows {
		if row.DocumentID == documentID && row.Status != entity.NotificationStatusSent {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockNotifRepo) MarkSent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			row.Status = entity.NotificationStatusSent
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (m *mockNotifRepo) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			row.Status = entity.NotificationStatusFailed
			row.Attempts++
			row.LastError = errorMsg
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

// mockResolver authorizes everything unless overridden.
type mockResolver struct {
	resolveFunc      func(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error)
	isAuthorizedFunc func(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error)
	assignmentsFunc  func(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error)
}

func (m *mockResolver) Resolve(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, dt, scope, level)
	}
	return []string{fmt.Sprintf("approver-l%d", level)}, nil
}

func (m *mockResolver) IsAuthorized(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error) {
	if m.isAuthorizedFunc != nil {
		return m.isAuthorizedFunc(ctx, principal, dt, scope, level)
	}
	return true, nil
}

func (m *mockResolver) AssignmentsFor(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error) {
	if m.assignmentsFunc != nil {
		return m.assignmentsFunc(ctx, principal)
	}
	return nil, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) Publish(ev *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockPublisher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Type
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// mockNotifier records sends and can be made to fail.
type mockNotifier struct {
	mu       sync.Mutex
	sent     []*port.Notification
	sendFunc func(ctx context.Context, n *port.Notification) error
}

func (m *mockNotifier) Send(ctx context.Context, n *port.Notification) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
