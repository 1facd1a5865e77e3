package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

func setupBulk(t *testing.T, deps *serviceDeps, count int) (BulkService, []int64) {
	t.Helper()
	svc := newTestService(deps)
	bulk := NewBulkService(svc, deps.docRepo, deps.resolver, &mockLogger{})

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		doc := createSubmitted(t, svc, entity.DocumentTypeCandidateHire)
		if _, err := svc.StartApproval(context.Background(), doc.ID); err != nil {
			t.Fatalf("StartApproval() error = %v", err)
		}
		ids = append(ids, doc.ID)
	}
	return bulk, ids
}

func TestBulkApprove_AllAtCommonLevel(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 3)

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		Principal:   "am-hr",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.SuccessCount != 3 || result.FailureCount != 0 {
		t.Errorf("result = %+v, want 3 successes", result)
	}

	for _, id := range ids {
		doc, _ := deps.docRepo.GetByID(context.Background(), id)
		if doc.CurrentLevel == nil || *doc.CurrentLevel != 2 {
			t.Errorf("document %d CurrentLevel = %v, want 2", id, doc.CurrentLevel)
		}
	}
}

func TestBulkApprove_MixedLevelsRejected(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 2)
	svc := newTestService(deps)

	// Move the second document to level 2 so the selection spans levels.
	if _, err := svc.Decide(context.Background(), DecideInput{
		DocumentID: ids[1], Principal: "am-hr", Level: 1, Verdict: entity.VerdictApprove,
	}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	_, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		Principal:   "am-hr",
		Level:       1,
	})
	if !errors.Is(err, approval.ErrMixedLevels) {
		t.Fatalf("BulkApprove() error = %v, want ErrMixedLevels", err)
	}

	// Validation failed before any document was touched.
	doc, _ := deps.docRepo.GetByID(context.Background(), ids[0])
	if *doc.CurrentLevel != 1 {
		t.Errorf("document %d CurrentLevel = %d, want untouched 1", ids[0], *doc.CurrentLevel)
	}
}

func TestBulkApprove_ExclusionsHonored(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 3)

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		ExcludeIDs:  []int64{ids[1]},
		Principal:   "am-hr",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.SuccessCount != 2 || result.ExcludedCount != 1 {
		t.Errorf("result = %+v, want 2 successes and 1 excluded", result)
	}

	excluded, _ := deps.docRepo.GetByID(context.Background(), ids[1])
	if *excluded.CurrentLevel != 1 {
		t.Errorf("excluded document CurrentLevel = %d, want untouched 1", *excluded.CurrentLevel)
	}
}

func TestBulkApprove_IndependentOutcomes(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 3)

	// Reject the middle document out-of-band. It stays parked at level 1,
	// so the common-level validation still passes; the decide on it fails
	// on its own outcome without touching the others.
	svc := newTestService(deps)
	if _, err := svc.Decide(context.Background(), DecideInput{
		DocumentID: ids[1], Principal: "am-hr", Level: 1, Verdict: entity.VerdictReject,
	}); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		Principal:   "am-hr",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.SuccessCount != 2 || result.FailureCount != 1 {
		t.Fatalf("result = %+v, want 2 successes and 1 failure", result)
	}
	for _, outcome := range result.Outcomes {
		if outcome.DocumentID == ids[1] {
			if outcome.Success {
				t.Error("rejected document reported success")
			}
			if !strings.Contains(outcome.Error, approval.ErrInvalidState.Error()) {
				t.Errorf("outcome.Error = %q, want wrapped ErrInvalidState", outcome.Error)
			}
		} else if !outcome.Success {
			t.Errorf("document %d failed: %s", outcome.DocumentID, outcome.Error)
		}
	}

	// The healthy documents advanced; the rejected one is untouched.
	for _, id := range []int64{ids[0], ids[2]} {
		doc, _ := deps.docRepo.GetByID(context.Background(), id)
		if doc.CurrentLevel == nil || *doc.CurrentLevel != 2 {
			t.Errorf("document %d CurrentLevel = %v, want 2", id, doc.CurrentLevel)
		}
	}
	rejected, _ := deps.docRepo.GetByID(context.Background(), ids[1])
	if rejected.ApprovalStatus != entity.ApprovalStatusRejected {
		t.Errorf("rejected document status = %s, want REJECTED", rejected.ApprovalStatus)
	}
}

func TestBulkApprove_Unauthorized(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 2)

	deps.resolver.isAuthorizedFunc = func(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error) {
		return false, nil
	}

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		Principal:   "intruder",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.SuccessCount != 0 || result.FailureCount != 2 {
		t.Fatalf("result = %+v, want every document to fail", result)
	}
	for _, outcome := range result.Outcomes {
		if !strings.Contains(outcome.Error, approval.ErrUnauthorized.Error()) {
			t.Errorf("outcome.Error = %q, want wrapped ErrUnauthorized", outcome.Error)
		}
	}

	// Nothing moved.
	for _, id := range ids {
		doc, _ := deps.docRepo.GetByID(context.Background(), id)
		if *doc.CurrentLevel != 1 {
			t.Errorf("document %d CurrentLevel = %d, want untouched 1", id, *doc.CurrentLevel)
		}
	}
}

func TestBulkApprove_PartialAuthorization(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 2)
	svc := newTestService(deps)

	// A third document in another department, outside the caller's grant.
	other, err := svc.CreateDocument(context.Background(), CreateDocumentInput{
		DocumentType: entity.DocumentTypeCandidateHire,
		Title:        "offer for contractor",
		OwnerRef:     "owner-2",
		ProjectID:    10,
		DepartmentID: 99,
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if _, err := svc.SubmitDocument(context.Background(), other.ID); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	if _, err := svc.StartApproval(context.Background(), other.ID); err != nil {
		t.Fatalf("StartApproval() error = %v", err)
	}
	ids = append(ids, other.ID)

	deps.resolver.isAuthorizedFunc = func(ctx context.Context, principal string, dt entity.DocumentType, scope entity.Scope, level int) (bool, error) {
		return scope.DepartmentID == 20, nil
	}

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: ids,
		Principal:   "am-hr",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.SuccessCount != 2 || result.FailureCount != 1 {
		t.Fatalf("result = %+v, want the out-of-scope document filtered out", result)
	}

	outOfScope, _ := deps.docRepo.GetByID(context.Background(), other.ID)
	if *outOfScope.CurrentLevel != 1 {
		t.Errorf("out-of-scope document CurrentLevel = %d, want untouched 1", *outOfScope.CurrentLevel)
	}
}

func TestBulkApprove_MissingDocument(t *testing.T) {
	deps := defaultDeps()
	bulk, ids := setupBulk(t, deps, 1)

	_, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: append(ids, 999),
		Principal:   "am-hr",
		Level:       1,
	})
	if !errors.Is(err, approval.ErrNotFound) {
		t.Fatalf("BulkApprove() error = %v, want ErrNotFound", err)
	}
}

func TestBulkApprove_EmptySelection(t *testing.T) {
	deps := defaultDeps()
	bulk, _ := setupBulk(t, deps, 0)

	result, err := bulk.BulkApprove(context.Background(), BulkApproveInput{
		DocumentIDs: []int64{5},
		ExcludeIDs:  []int64{5},
		Principal:   "am-hr",
		Level:       1,
	})
	if err != nil {
		t.Fatalf("BulkApprove() error = %v", err)
	}
	if result.ExcludedCount != 1 || result.SuccessCount != 0 {
		t.Errorf("result = %+v, want everything excluded", result)
	}
}
