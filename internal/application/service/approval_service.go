package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher decouples post-commit side effects (notification delivery)
// from the decision path.
type EventPublisher interface {
	Publish(ev *event.Event)
}

// casRetries bounds how many times a command is re-read and re-validated
// after losing an optimistic-concurrency race.
const casRetries = 3

// CreateDocumentInput is the caller-supplied document content.
type CreateDocumentInput struct {
	DocumentType entity.DocumentType `json:"document_type"`
	Title        string              `json:"title"`
	OwnerRef     string              `json:"owner_ref"`
	ProjectID    int64               `json:"project_id"`
	DepartmentID int64               `json:"department_id"`
	Level0Mode   string              `json:"level0_mode,omitempty"`
}

// DecideInput is one decision command.
type DecideInput struct {
	DocumentID int64  `json:"document_id"`
	Principal  string `json:"principal"`
	Level      int    `json:"level"`
	Verdict    string `json:"verdict"`
	Comments   string `json:"comments,omitempty"`
}

// ApprovalService drives documents through the multi-level workflow.
type ApprovalService interface {
	CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.Document, error)
	SubmitDocument(ctx context.Context, id int64) (*entity.Document, error)
	StartApproval(ctx context.Context, id int64) (*entity.Document, error)
	Decide(ctx context.Context, input DecideInput) (*entity.Document, error)
	Forward(ctx context.Context, id int64, principal string, targetLevel int) (*entity.Document, error)
	Resubmit(ctx context.Context, id int64, principal string) (*entity.Document, error)
	Cancel(ctx context.Context, id int64, principal string) (*entity.Document, error)
	Remind(ctx context.Context, id int64) error
}

type approvalServiceImpl struct {
	engine       *approval.Engine
	registry     workflow.Registry
	docRepo      port.DocumentRepository
	auditRepo    port.AuditTrailRepository
	notifRepo    port.NotificationRepository
	resolver     port.AuthorityResolver
	txManager    port.TransactionManager
	publisher    EventPublisher
	logger       Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	engine *approval.Engine,
	registry workflow.Registry,
	docRepo port.DocumentRepository,
	auditRepo port.AuditTrailRepository,
	notifRepo port.NotificationRepository,
	resolver port.AuthorityResolver,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		engine:    engine,
		registry:  registry,
		docRepo:   docRepo,
		auditRepo: auditRepo,
		notifRepo: notifRepo,
		resolver:  resolver,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateDocument creates a new draft document.
func (s *approvalServiceImpl) CreateDocument(ctx context.Context, input CreateDocumentInput) (*entity.Document, error) {
	if _, err := s.registry.Lookup(input.DocumentType); err != nil {
		return nil, err
	}
	if input.Level0Mode != "" && input.Level0Mode != entity.Level0ModeAll && input.Level0Mode != entity.Level0ModeAny {
		return nil, fmt.Errorf("%w: unknown level-0 mode %q", approval.ErrInvalidState, input.Level0Mode)
	}

	now := time.Now()
	doc := &entity.Document{
		DocumentType:    input.DocumentType,
		Title:           input.Title,
		OwnerRef:        input.OwnerRef,
		ProjectID:       input.ProjectID,
		DepartmentID:    input.DepartmentID,
		LifecycleStatus: entity.LifecycleStatusDraft,
		ApprovalStatus:  entity.ApprovalStatusNotStarted,
		Level0Mode:      input.Level0Mode,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		s.logger.Error("Failed to create document", "error", err, "title", input.Title)
		return nil, err
	}

	s.logger.Info("Document created", "id", doc.ID, "type", doc.DocumentType)
	return doc, nil
}

// SubmitDocument moves a draft into the SUBMITTED lifecycle state, making it
// eligible for approval.
func (s *approvalServiceImpl) SubmitDocument(ctx context.Context, id int64) (*entity.Document, error) {
	return s.mutate(ctx, id, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		switch doc.LifecycleStatus {
		case entity.LifecycleStatusDraft, entity.LifecycleStatusSent:
		default:
			return nil, fmt.Errorf("%w: document lifecycle is %s", approval.ErrInvalidState, doc.LifecycleStatus)
		}
		doc.LifecycleStatus = entity.LifecycleStatusSubmitted
		doc.SubmittedAt = &now
		doc.UpdatedAt = now
		return &approval.Result{Document: doc}, nil
	})
}

// StartApproval begins approval at the workflow's first level. For parallel
// workflows the level-0 approver set is resolved once here and frozen on the
// document.
func (s *approvalServiceImpl) StartApproval(ctx context.Context, id int64) (*entity.Document, error) {
	return s.mutate(ctx, id, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		def, err := s.registry.Lookup(doc.DocumentType)
		if err != nil {
			return nil, err
		}
		var approvers []string
		if def.HasLevel0 {
			approvers, err = s.resolver.Resolve(ctx, doc.DocumentType, doc.Scope(), 0)
			if err != nil {
				return nil, fmt.Errorf("resolve level-0 approvers: %w", err)
			}
		}
		return s.engine.StartApproval(doc, approvers, now)
	})
}

// Decide records one principal's verdict at the given level. Authorization
// for sequential levels is checked against the resolver before the engine
// runs; level-0 membership was frozen at start and is enforced by the engine.
func (s *approvalServiceImpl) Decide(ctx context.Context, input DecideInput) (*entity.Document, error) {
	return s.mutate(ctx, input.DocumentID, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		if input.Level >= 1 {
			ok, err := s.resolver.IsAuthorized(ctx, input.Principal, doc.DocumentType, doc.Scope(), input.Level)
			if err != nil {
				return nil, fmt.Errorf("authorize: %w", err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s at level %d", approval.ErrUnauthorized, input.Principal, input.Level)
			}
		}
		return s.engine.Decide(doc, input.Principal, input.Level, input.Verdict, input.Comments, now)
	})
}

// Forward moves an approved manual-forward document to a later level chosen
// by the current holder.
func (s *approvalServiceImpl) Forward(ctx context.Context, id int64, principal string, targetLevel int) (*entity.Document, error) {
	return s.mutate(ctx, id, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		if doc.CurrentLevel != nil {
			ok, err := s.resolver.IsAuthorized(ctx, principal, doc.DocumentType, doc.Scope(), *doc.CurrentLevel)
			if err != nil {
				return nil, fmt.Errorf("authorize: %w", err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s at level %d", approval.ErrUnauthorized, principal, *doc.CurrentLevel)
			}
		}
		return s.engine.Forward(doc, principal, targetLevel, now)
	})
}

// Resubmit re-opens a rejected document at the level that rejected it. Only
// the owner may resubmit.
func (s *approvalServiceImpl) Resubmit(ctx context.Context, id int64, principal string) (*entity.Document, error) {
	return s.mutate(ctx, id, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		if doc.OwnerRef != principal {
			return nil, fmt.Errorf("%w: only the owner may resubmit", approval.ErrUnauthorized)
		}
		return s.engine.Resubmit(doc, now)
	})
}

// Cancel withdraws a non-terminal document from approval. Only the owner may
// cancel.
func (s *approvalServiceImpl) Cancel(ctx context.Context, id int64, principal string) (*entity.Document, error) {
	return s.mutate(ctx, id, func(doc *entity.Document, now time.Time) (*approval.Result, error) {
		if doc.OwnerRef != principal {
			return nil, fmt.Errorf("%w: only the owner may cancel", approval.ErrUnauthorized)
		}
		return s.engine.Cancel(doc, now)
	})
}

// Remind queues a fresh notification to everyone the document is currently
// waiting on.
func (s *approvalServiceImpl) Remind(ctx context.Context, id int64) error {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.IsTerminal() || doc.CurrentLevel == nil {
		return fmt.Errorf("%w: nothing to remind", approval.ErrInvalidState)
	}

	recipients := s.engine.PendingApprovers(doc)
	if *doc.CurrentLevel >= 1 {
		recipients, err = s.resolver.Resolve(ctx, doc.DocumentType, doc.Scope(), *doc.CurrentLevel)
		if err != nil {
			return fmt.Errorf("resolve approvers: %w", err)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no approvers resolved for level %d", approval.ErrUnauthorized, *doc.CurrentLevel)
	}

	ev := event.NewEvent(event.TypeApprovalReminder, doc.ID, map[string]interface{}{
		"level": *doc.CurrentLevel,
	})
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.queueNotifications(txCtx, doc, ev, recipients)
	})
	if err != nil {
		s.logger.Error("Failed to queue reminder", "error", err, "id", id)
		return err
	}

	s.publisher.Publish(ev)
	s.logger.Info("Reminder queued", "id", id, "recipients", len(recipients))
	return nil
}

// mutate runs one command against a freshly loaded document and persists the
// result behind the version check, retrying a bounded number of times when a
// concurrent writer wins the race.
func (s *approvalServiceImpl) mutate(ctx context.Context, id int64, cmd func(*entity.Document, time.Time) (*approval.Result, error)) (*entity.Document, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		doc, err := s.docRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		fromStatus := doc.ApprovalStatus
		expectedVersion := doc.Version
		now := time.Now()

		result, err := cmd(doc, now)
		if err != nil {
			return nil, err
		}
		if result.Duplicate {
			// Idempotent replay: nothing to persist.
			return doc, nil
		}

		recipients, err := s.notifyTargets(ctx, doc, result)
		if err != nil {
			return nil, err
		}

		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.docRepo.UpdateWithVersion(txCtx, doc, expectedVersion); err != nil {
				return err
			}
			if result.Event != nil {
				if err := s.appendAudit(txCtx, doc, result.Event, fromStatus); err != nil {
					return err
				}
				if err := s.queueNotifications(txCtx, doc, result.Event, recipients); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			if result.Event != nil {
				s.publisher.Publish(result.Event)
			}
			s.logger.Info("Document updated",
				"id", doc.ID, "status", doc.ApprovalStatus, "version", doc.Version)
			return doc, nil
		}
		if !errors.Is(err, approval.ErrConcurrentModification) {
			s.logger.Error("Failed to update document", "error", err, "id", id)
			return nil, err
		}

		lastErr = err
		s.logger.Info("Concurrent modification, retrying", "id", id, "attempt", attempt+1)
	}
	return nil, lastErr
}

// appendAudit records the transition in the document's audit trail inside
// the command's transaction, so trail order always matches commit order.
func (s *approvalServiceImpl) appendAudit(ctx context.Context, doc *entity.Document, ev *event.Event, fromStatus string) error {
	var level *int
	if _, ok := ev.Payload["level"]; ok {
		l := int(ev.GetPayloadInt("level"))
		level = &l
	}
	audit := &entity.AuditEvent{
		DocumentID: doc.ID,
		EventType:  ev.Type.String(),
		Level:      level,
		ActorRef:   ev.GetPayloadString("actor"),
		FromStatus: fromStatus,
		ToStatus:   doc.ApprovalStatus,
		Comments:   ev.GetPayloadString("comments"),
		CreatedAt:  ev.Timestamp,
	}
	if err := s.auditRepo.Append(ctx, audit); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// queueNotifications writes PENDING delivery rows in the command's
// transaction. Actual delivery happens after commit.
func (s *approvalServiceImpl) queueNotifications(ctx context.Context, doc *entity.Document, ev *event.Event, recipients []string) error {
	for _, ref := range recipients {
		n := &entity.TransitionNotification{
			DocumentID:   doc.ID,
			EventType:    ev.Type.String(),
			RecipientRef: ref,
			Status:       entity.NotificationStatusPending,
			CreatedAt:    ev.Timestamp,
		}
		if err := s.notifRepo.Create(ctx, n); err != nil {
			return fmt.Errorf("queue notification: %w", err)
		}
	}
	return nil
}

// notifyTargets computes who should hear about a transition: the next
// level's approvers when a level opened, the owner on terminal outcomes.
func (s *approvalServiceImpl) notifyTargets(ctx context.Context, doc *entity.Document, result *approval.Result) ([]string, error) {
	if result.Event == nil {
		return nil, nil
	}
	switch result.Event.Type {
	case event.TypeApprovalCompleted, event.TypeApprovalRejected, event.TypeApprovalCancelled:
		return []string{doc.OwnerRef}, nil
	}
	if result.NextLevel == nil {
		return nil, nil
	}
	if *result.NextLevel == 0 {
		return s.engine.PendingApprovers(doc), nil
	}
	recipients, err := s.resolver.Resolve(ctx, doc.DocumentType, doc.Scope(), *result.NextLevel)
	if err != nil {
		return nil, fmt.Errorf("resolve approvers for level %d: %w", *result.NextLevel, err)
	}
	return recipients, nil
}
