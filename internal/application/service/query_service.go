package service

import (
	"context"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// PendingApproval is one document awaiting a principal's decision.
type PendingApproval struct {
	Document *entity.Document `json:"document"`
	Level    int              `json:"level"`
	Title    string           `json:"title,omitempty"`
}

// QueryService serves the read side: document lookups, audit trails and
// per-approver worklists.
type QueryService interface {
	GetDocument(ctx context.Context, id int64) (*entity.Document, error)
	ListDocuments(ctx context.Context, filter port.DocumentFilter) ([]*entity.Document, error)
	History(ctx context.Context, documentID int64) ([]*entity.AuditEvent, error)
	AssignedLevels(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error)
	ListPending(ctx context.Context, principal string) ([]*PendingApproval, error)
}

type queryServiceImpl struct {
	registry  workflow.Registry
	docRepo   port.DocumentRepository
	auditRepo port.AuditTrailRepository
	resolver  port.AuthorityResolver
	logger    Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	registry workflow.Registry,
	docRepo port.DocumentRepository,
	auditRepo port.AuditTrailRepository,
	resolver port.AuthorityResolver,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		registry:  registry,
		docRepo:   docRepo,
		auditRepo: auditRepo,
		resolver:  resolver,
		logger:    logger,
	}
}

// GetDocument retrieves a document with its decision rows.
func (s *queryServiceImpl) GetDocument(ctx context.Context, id int64) (*entity.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, err
	}
	return doc, nil
}

// ListDocuments retrieves documents matching the filter.
func (s *queryServiceImpl) ListDocuments(ctx context.Context, filter port.DocumentFilter) ([]*entity.Document, error) {
	docs, err := s.docRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err)
		return nil, err
	}
	return docs, nil
}

// History returns the document's audit trail in sequence order.
func (s *queryServiceImpl) History(ctx context.Context, documentID int64) ([]*entity.AuditEvent, error) {
	if _, err := s.docRepo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	events, err := s.auditRepo.GetByDocumentID(ctx, documentID)
	if err != nil {
		s.logger.Error("Failed to get audit trail", "error", err, "document_id", documentID)
		return nil, err
	}
	return events, nil
}

// AssignedLevels returns every authority grant the principal holds.
func (s *queryServiceImpl) AssignedLevels(ctx context.Context, principal string) ([]*port.AuthorityAssignment, error) {
	assignments, err := s.resolver.AssignmentsFor(ctx, principal)
	if err != nil {
		s.logger.Error("Failed to get assignments", "error", err, "principal", principal)
		return nil, err
	}
	return assignments, nil
}

// ListPending returns the documents currently waiting on the principal,
// across every level they hold. For the parallel tier only documents where
// the principal's own entry is still undecided count.
func (s *queryServiceImpl) ListPending(ctx context.Context, principal string) ([]*PendingApproval, error) {
	assignments, err := s.resolver.AssignmentsFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var pending []*PendingApproval
	for _, a := range assignments {
		def, err := s.registry.Lookup(a.DocumentType)
		if err != nil {
			continue
		}
		level := a.Level
		docs, err := s.docRepo.List(ctx, port.DocumentFilter{
			DocumentType: a.DocumentType,
			CurrentLevel: &level,
			ProjectID:    a.ProjectID,
			DepartmentID: a.DepartmentID,
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if seen[doc.ID] || doc.IsTerminal() {
				continue
			}
			if !awaitsPrincipal(doc, principal, level) {
				continue
			}
			seen[doc.ID] = true
			pending = append(pending, &PendingApproval{
				Document: doc,
				Level:    level,
				Title:    def.TitleFor(level),
			})
		}
	}
	return pending, nil
}

// awaitsPrincipal reports whether the document is waiting on this principal
// at the given level, as opposed to merely sitting at it.
func awaitsPrincipal(doc *entity.Document, principal string, level int) bool {
	if level == 0 {
		d := doc.Level0DecisionFor(principal)
		return d != nil && d.Status == entity.DecisionStatusPending
	}
	d := doc.LevelDecisionAt(level)
	return d != nil && d.Status == entity.DecisionStatusPending
}
