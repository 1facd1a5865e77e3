package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

func newTestQueryService(deps *serviceDeps) QueryService {
	return NewQueryService(
		workflow.DefaultRegistry(),
		deps.docRepo,
		deps.auditRepo,
		deps.resolver,
		&mockLogger{},
	)
}

func TestQueryService_History(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)
	query := newTestQueryService(deps)
	ctx := context.Background()

	doc := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
	if _, err := svc.StartApproval(ctx, doc.ID); err != nil {
		t.Fatalf("StartApproval() error = %v", err)
	}
	if _, err := svc.Decide(ctx, DecideInput{DocumentID: doc.ID, Principal: "am-hr", Level: 1, Verdict: entity.VerdictApprove}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	trail, err := query.History(ctx, doc.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("trail = %d events, want 2", len(trail))
	}
	for i := 1; i < len(trail); i++ {
		if trail[i].Seq <= trail[i-1].Seq {
			t.Errorf("trail not in sequence order at %d", i)
		}
	}

	if _, err := query.History(ctx, 999); err == nil {
		t.Error("History() of unknown document should fail")
	}
}

func TestQueryService_ListPending(t *testing.T) {
	deps := defaultDeps()
	deps.resolver.resolveFunc = func(ctx context.Context, dt entity.DocumentType, scope entity.Scope, level int) ([]string, error) {
		return []string{"pm-1", "pm-2"}, nil
	}
	deps.resolver.assignmentsFunc = func(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error) {
		return []*port.AuthorityAssignment{
			{PrincipalRef: principal, DocumentType: entity.DocumentTypeEvaluation, Level: 0, ProjectID: 10, DepartmentID: 20},
		}, nil
	}
	svc := newTestService(deps)
	query := newTestQueryService(deps)
	ctx := context.Background()

	// Two documents in the parallel tier; pm-1 decides one of them.
	docA := createSubmitted(t, svc, entity.DocumentTypeEvaluation)
	docB := createSubmitted(t, svc, entity.DocumentTypeEvaluation)
	for _, id := range []int64{docA.ID, docB.ID} {
		if _, err := svc.StartApproval(ctx, id); err != nil {
			t.Fatalf("StartApproval() error = %v", err)
		}
	}
	if _, err := svc.Decide(ctx, DecideInput{DocumentID: docA.ID, Principal: "pm-1", Level: 0, Verdict: entity.VerdictApprove}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	// pm-1 already decided docA, so only docB is waiting on them.
	pending, err := query.ListPending(ctx, "pm-1")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Document.ID != docB.ID {
		t.Errorf("ListPending(pm-1) = %d entries, want only docB", len(pending))
	}

	// pm-2 is still awaited on both.
	pending, err = query.ListPending(ctx, "pm-2")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("ListPending(pm-2) = %d entries, want 2", len(pending))
	}
	for _, p := range pending {
		if p.Level != 0 {
			t.Errorf("pending level = %d, want 0", p.Level)
		}
	}
}

func TestQueryService_GetDocument(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(deps)
	query := newTestQueryService(deps)

	doc := createSubmitted(t, svc, entity.DocumentTypeAdminTask)

	got, err := query.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.ID != doc.ID || got.DocumentType != entity.DocumentTypeAdminTask {
		t.Errorf("GetDocument() = %+v, want the created document", got)
	}

	if _, err := query.GetDocument(context.Background(), 999); !errors.Is(err, approval.ErrNotFound) {
		t.Errorf("GetDocument() of unknown id error = %v, want ErrNotFound", err)
	}
}
