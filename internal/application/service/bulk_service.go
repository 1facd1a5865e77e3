package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// BulkApproveInput selects a set of documents to approve at one common
// level. ExcludeIDs are dropped from the selection before anything runs.
type BulkApproveInput struct {
	DocumentIDs []int64 `json:"document_ids"`
	ExcludeIDs  []int64 `json:"exclude_ids,omitempty"`
	Principal   string  `json:"principal"`
	Level       int     `json:"level"`
	Comments    string  `json:"comments,omitempty"`
}

// BulkOutcome is the per-document result of a bulk approve.
type BulkOutcome struct {
	DocumentID int64  `json:"document_id"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// BulkApproveResult summarizes one bulk approve run.
type BulkApproveResult struct {
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	ExcludedCount int           `json:"excluded_count"`
	Outcomes      []BulkOutcome `json:"outcomes"`
}

// BulkService approves many documents in one call.
type BulkService interface {
	BulkApprove(ctx context.Context, input BulkApproveInput) (*BulkApproveResult, error)
}

type bulkServiceImpl struct {
	approvals ApprovalService
	docRepo   port.DocumentRepository
	resolver  port.AuthorityResolver
	logger    Logger
}

// NewBulkService creates a new BulkService
func NewBulkService(approvals ApprovalService, docRepo port.DocumentRepository, resolver port.AuthorityResolver, logger Logger) BulkService {
	return &bulkServiceImpl{
		approvals: approvals,
		docRepo:   docRepo,
		resolver:  resolver,
		logger:    logger,
	}
}

// BulkApprove approves every selected document at the common level. The
// whole selection must sit at one level; a mixed selection is rejected
// before any document is touched. Documents are processed independently
// after validation, so one failure never rolls back the others.
func (s *bulkServiceImpl) BulkApprove(ctx context.Context, input BulkApproveInput) (*BulkApproveResult, error) {
	excluded := make(map[int64]bool, len(input.ExcludeIDs))
	for _, id := range input.ExcludeIDs {
		excluded[id] = true
	}

	selected := make([]int64, 0, len(input.DocumentIDs))
	excludedCount := 0
	for _, id := range input.DocumentIDs {
		if excluded[id] {
			excludedCount++
			continue
		}
		selected = append(selected, id)
	}
	if len(selected) == 0 {
		return &BulkApproveResult{ExcludedCount: excludedCount}, nil
	}

	docs, err := s.docRepo.GetByIDs(ctx, selected)
	if err != nil {
		return nil, err
	}
	if len(docs) != len(selected) {
		return nil, fmt.Errorf("%w: %d of %d documents", approval.ErrNotFound, len(selected)-len(docs), len(selected))
	}

	// The selection must share a single current level; this is validated
	// server-side regardless of how the caller grouped its list.
	for _, doc := range docs {
		if doc.CurrentLevel == nil || *doc.CurrentLevel != input.Level {
			return nil, fmt.Errorf("%w: document %d is not at level %d", approval.ErrMixedLevels, doc.ID, input.Level)
		}
	}

	// Authorization is re-checked per document scope, never assumed from
	// the caller's claim. An unauthorized document fails on its own
	// outcome; the rest of the selection still goes through.
	result := &BulkApproveResult{ExcludedCount: excludedCount}
	for _, doc := range docs {
		if input.Level >= 1 {
			ok, err := s.resolver.IsAuthorized(ctx, input.Principal, doc.DocumentType, doc.Scope(), input.Level)
			if err != nil {
				return nil, fmt.Errorf("authorize: %w", err)
			}
			if !ok {
				authErr := fmt.Errorf("%w: %s at level %d", approval.ErrUnauthorized, input.Principal, input.Level)
				result.FailureCount++
				result.Outcomes = append(result.Outcomes, BulkOutcome{
					DocumentID: doc.ID,
					Error:      authErr.Error(),
				})
				s.logger.Error("Bulk approve unauthorized for document", "error", authErr, "id", doc.ID)
				continue
			}
		}

		_, err := s.approvals.Decide(ctx, DecideInput{
			DocumentID: doc.ID,
			Principal:  input.Principal,
			Level:      input.Level,
			Verdict:    entity.VerdictApprove,
			Comments:   input.Comments,
		})
		outcome := BulkOutcome{DocumentID: doc.ID, Success: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			result.FailureCount++
			s.logger.Error("Bulk approve failed for document", "error", err, "id", doc.ID)
		} else {
			result.SuccessCount++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	s.logger.Info("Bulk approve finished",
		"selected", len(selected), "succeeded", result.SuccessCount,
		"failed", result.FailureCount, "excluded", excludedCount)
	return result, nil
}
