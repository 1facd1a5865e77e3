package approval

import (
	"fmt"
	"time"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Engine applies approval commands to a document in memory. It owns the
// decision semantics (level ordering, level-0 aggregation, manual forwarding)
// and knows nothing about persistence, authorization or notification; the
// application service wraps it with those concerns and a transaction.
type Engine struct {
	registry workflow.Registry
}

// NewEngine creates an engine over a workflow definition registry.
func NewEngine(registry workflow.Registry) *Engine {
	return &Engine{registry: registry}
}

// Result describes the outcome of one command. Document is the mutated
// aggregate; Event is the transition to record and notify, nil when the
// command was an idempotent replay.
type Result struct {
	Document *entity.Document
	Event    *event.Event

	// Duplicate is true for an idempotent replay of an identical decision;
	// the document was not modified.
	Duplicate bool

	// Completed is true when this command drove the aggregate to APPROVED.
	Completed bool

	// NextLevel is set when a new level opened and its approvers should be
	// notified.
	NextLevel *int
}

// StartApproval moves a submitted document from NOT_STARTED to PENDING at the
// workflow's first level. For workflows with the parallel tier, approvers is
// the resolved level-0 approver set; an empty resolution is an authorization
// failure, never an implicit approval.
func (e *Engine) StartApproval(doc *entity.Document, approvers []string, now time.Time) (*Result, error) {
	def, err := e.registry.Lookup(doc.DocumentType)
	if err != nil {
		return nil, err
	}
	if doc.ApprovalStatus != entity.ApprovalStatusNotStarted {
		return nil, fmt.Errorf("%w: approval already started", ErrInvalidState)
	}
	if doc.LifecycleStatus != entity.LifecycleStatusSubmitted {
		return nil, fmt.Errorf("%w: document lifecycle is %s", ErrInvalidState, doc.LifecycleStatus)
	}

	if err := e.fire(doc, workflow.TriggerStart); err != nil {
		return nil, err
	}

	first := def.FirstLevel()
	doc.CurrentLevel = &first
	if def.HasLevel0 {
		if len(approvers) == 0 {
			return nil, fmt.Errorf("%w: no parallel approvers resolved", ErrUnauthorized)
		}
		if doc.Level0Mode == "" {
			doc.Level0Mode = entity.Level0ModeAll
		}
		doc.Level0Approvers = make([]entity.ParallelApproverDecision, 0, len(approvers))
		for _, ref := range approvers {
			doc.Level0Approvers = append(doc.Level0Approvers, entity.ParallelApproverDecision{
				DocumentID:  doc.ID,
				ApproverRef: ref,
				Status:      entity.DecisionStatusPending,
			})
		}
	} else {
		e.openLevel(doc, def, first)
	}
	doc.UpdatedAt = now

	ev := event.NewEvent(event.TypeApprovalStarted, doc.ID, map[string]interface{}{
		"level":  first,
		"status": doc.ApprovalStatus,
	})
	return &Result{Document: doc, Event: ev, NextLevel: &first}, nil
}

// Decide records a principal's verdict at the given level. The level must be
// the document's current level; authorization against the resolver is the
// caller's responsibility except for the level-0 tier, whose membership was
// frozen at start.
func (e *Engine) Decide(doc *entity.Document, principal string, level int, verdict, comments string, now time.Time) (*Result, error) {
	def, err := e.registry.Lookup(doc.DocumentType)
	if err != nil {
		return nil, err
	}
	if verdict != entity.VerdictApprove && verdict != entity.VerdictReject {
		return nil, fmt.Errorf("%w: unknown verdict %q", ErrInvalidState, verdict)
	}
	if doc.IsTerminal() {
		return nil, fmt.Errorf("%w: approval is %s", ErrInvalidState, doc.ApprovalStatus)
	}
	if doc.ApprovalStatus == entity.ApprovalStatusNotStarted {
		return nil, fmt.Errorf("%w: approval has not started", ErrInvalidState)
	}
	if doc.LifecycleStatus != entity.LifecycleStatusSubmitted {
		return nil, fmt.Errorf("%w: document lifecycle is %s", ErrInvalidState, doc.LifecycleStatus)
	}
	if doc.CurrentLevel == nil || *doc.CurrentLevel != level {
		return nil, fmt.Errorf("%w: current level is %s, got %d", ErrLevelMismatch, levelString(doc.CurrentLevel), level)
	}

	if level == 0 {
		return e.decideLevel0(doc, def, principal, verdict, comments, now)
	}
	return e.decideSequential(doc, def, principal, level, verdict, comments, now)
}

func (e *Engine) decideLevel0(doc *entity.Document, def workflow.Definition, principal, verdict, comments string, now time.Time) (*Result, error) {
	entry := doc.Level0DecisionFor(principal)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s is not a parallel approver", ErrUnauthorized, principal)
	}
	if entry.Status != entity.DecisionStatusPending {
		if sameVerdict(entry.Status, verdict) {
			return &Result{Document: doc, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("%w: %s already recorded %s", ErrConflictingDecision, principal, entry.Status)
	}

	if verdict == entity.VerdictReject {
		entry.Status = entity.DecisionStatusRejected
		entry.Comments = comments
		entry.DecidedAt = &now
		if err := e.fire(doc, workflow.TriggerReject); err != nil {
			return nil, err
		}
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeApprovalRejected, doc.ID, map[string]interface{}{
			"level":    0,
			"actor":    principal,
			"comments": comments,
		})
		return &Result{Document: doc, Event: ev}, nil
	}

	entry.Status = entity.DecisionStatusApproved
	entry.Comments = comments
	entry.DecidedAt = &now

	if !e.level0Closed(doc) {
		if err := e.fire(doc, workflow.TriggerRecordPartial); err != nil {
			return nil, err
		}
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeDecisionRecorded, doc.ID, map[string]interface{}{
			"level":     0,
			"actor":     principal,
			"remaining": e.level0Remaining(doc),
		})
		return &Result{Document: doc, Event: ev}, nil
	}

	// Tier closed approved: open level 1.
	if err := e.fire(doc, workflow.TriggerAdvance); err != nil {
		return nil, err
	}
	next := 1
	doc.CurrentLevel = &next
	e.openLevel(doc, def, next)
	doc.UpdatedAt = now
	ev := event.NewEvent(event.TypeLevelAdvanced, doc.ID, map[string]interface{}{
		"level":      0,
		"next_level": next,
		"actor":      principal,
	})
	return &Result{Document: doc, Event: ev, NextLevel: &next}, nil
}

func (e *Engine) decideSequential(doc *entity.Document, def workflow.Definition, principal string, level int, verdict, comments string, now time.Time) (*Result, error) {
	decision := doc.LevelDecisionAt(level)
	if decision == nil {
		return nil, fmt.Errorf("%w: level %d has not been opened", ErrLevelMismatch, level)
	}
	if decision.Status != entity.DecisionStatusPending {
		if decision.ApproverRef == principal && sameVerdict(decision.Status, verdict) {
			return &Result{Document: doc, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("%w: level %d is %s", ErrConflictingDecision, level, decision.Status)
	}

	if verdict == entity.VerdictReject {
		decision.Status = entity.DecisionStatusRejected
		decision.ApproverRef = principal
		decision.Comments = comments
		decision.DecidedAt = &now
		if err := e.fire(doc, workflow.TriggerReject); err != nil {
			return nil, err
		}
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeApprovalRejected, doc.ID, map[string]interface{}{
			"level":    level,
			"actor":    principal,
			"comments": comments,
		})
		return &Result{Document: doc, Event: ev}, nil
	}

	decision.Status = entity.DecisionStatusApproved
	decision.ApproverRef = principal
	decision.Comments = comments
	decision.DecidedAt = &now

	switch {
	case level == def.LastLevel():
		if err := e.fire(doc, workflow.TriggerComplete); err != nil {
			return nil, err
		}
		doc.LifecycleStatus = entity.LifecycleStatusCompleted
		doc.CompletedAt = &now
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeApprovalCompleted, doc.ID, map[string]interface{}{
			"level": level,
			"actor": principal,
		})
		return &Result{Document: doc, Event: ev, Completed: true}, nil

	case def.ManualForward:
		// Approval is recorded but the document stays at this level until
		// the holder forwards it.
		if err := e.fire(doc, workflow.TriggerRecordPartial); err != nil {
			return nil, err
		}
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeDecisionRecorded, doc.ID, map[string]interface{}{
			"level":         level,
			"actor":         principal,
			"awaiting":      "forward",
			"next_statuses": def.NextStatuses(level),
		})
		return &Result{Document: doc, Event: ev}, nil

	default:
		if err := e.fire(doc, workflow.TriggerAdvance); err != nil {
			return nil, err
		}
		next := level + 1
		doc.CurrentLevel = &next
		e.openLevel(doc, def, next)
		doc.UpdatedAt = now
		ev := event.NewEvent(event.TypeLevelAdvanced, doc.ID, map[string]interface{}{
			"level":      level,
			"next_level": next,
			"actor":      principal,
		})
		return &Result{Document: doc, Event: ev, NextLevel: &next}, nil
	}
}

// Forward moves a manual-forward document whose current level is approved to
// a strictly later level chosen from the workflow's remaining statuses.
func (e *Engine) Forward(doc *entity.Document, principal string, targetLevel int, now time.Time) (*Result, error) {
	def, err := e.registry.Lookup(doc.DocumentType)
	if err != nil {
		return nil, err
	}
	if !def.ManualForward {
		return nil, fmt.Errorf("%w: %s does not use manual forwarding", ErrForwardNotAllowed, doc.DocumentType)
	}
	if doc.ApprovalStatus != entity.ApprovalStatusInProgress {
		return nil, fmt.Errorf("%w: approval is %s", ErrInvalidState, doc.ApprovalStatus)
	}
	if doc.CurrentLevel == nil {
		return nil, fmt.Errorf("%w: approval has not started", ErrInvalidState)
	}
	current := *doc.CurrentLevel
	decision := doc.LevelDecisionAt(current)
	if decision == nil || decision.Status != entity.DecisionStatusApproved {
		return nil, fmt.Errorf("%w: current level %d is not approved", ErrInvalidState, current)
	}
	if targetLevel <= current || targetLevel > def.LastLevel() {
		return nil, fmt.Errorf("%w: level %d from %d", ErrForwardNotAllowed, targetLevel, current)
	}

	if err := e.fire(doc, workflow.TriggerForward); err != nil {
		return nil, err
	}
	doc.CurrentLevel = &targetLevel
	e.openLevel(doc, def, targetLevel)
	doc.UpdatedAt = now

	ev := event.NewEvent(event.TypeDocumentForwarded, doc.ID, map[string]interface{}{
		"from_level": current,
		"to_level":   targetLevel,
		"to_status":  def.TitleFor(targetLevel),
		"actor":      principal,
	})
	return &Result{Document: doc, Event: ev, NextLevel: &targetLevel}, nil
}

// Resubmit re-opens a rejected document at the level that rejected it. The
// rejecting decision is cleared; approvals recorded before the rejection are
// kept.
func (e *Engine) Resubmit(doc *entity.Document, now time.Time) (*Result, error) {
	if _, err := e.registry.Lookup(doc.DocumentType); err != nil {
		return nil, err
	}
	if doc.ApprovalStatus != entity.ApprovalStatusRejected {
		return nil, fmt.Errorf("%w: approval is %s", ErrInvalidState, doc.ApprovalStatus)
	}
	if doc.CurrentLevel == nil {
		return nil, fmt.Errorf("%w: no rejection level recorded", ErrInvalidState)
	}
	level := *doc.CurrentLevel

	if err := e.fire(doc, workflow.TriggerResubmit); err != nil {
		return nil, err
	}

	if level == 0 {
		for i := range doc.Level0Approvers {
			if doc.Level0Approvers[i].Status == entity.DecisionStatusRejected {
				doc.Level0Approvers[i].Status = entity.DecisionStatusPending
				doc.Level0Approvers[i].Comments = ""
				doc.Level0Approvers[i].DecidedAt = nil
			}
		}
	} else if decision := doc.LevelDecisionAt(level); decision != nil {
		decision.Status = entity.DecisionStatusPending
		decision.ApproverRef = ""
		decision.Comments = ""
		decision.DecidedAt = nil
	}
	doc.LifecycleStatus = entity.LifecycleStatusSubmitted
	doc.UpdatedAt = now

	ev := event.NewEvent(event.TypeApprovalResubmitted, doc.ID, map[string]interface{}{
		"level": level,
	})
	return &Result{Document: doc, Event: ev, NextLevel: &level}, nil
}

// Cancel withdraws a non-terminal document from approval. The aggregate
// status is left as-is; the CANCELLED lifecycle blocks further decisions.
func (e *Engine) Cancel(doc *entity.Document, now time.Time) (*Result, error) {
	if doc.IsTerminal() {
		return nil, fmt.Errorf("%w: approval is %s", ErrInvalidState, doc.ApprovalStatus)
	}
	if doc.LifecycleStatus == entity.LifecycleStatusCancelled {
		return &Result{Document: doc, Duplicate: true}, nil
	}
	doc.LifecycleStatus = entity.LifecycleStatusCancelled
	doc.UpdatedAt = now

	ev := event.NewEvent(event.TypeApprovalCancelled, doc.ID, map[string]interface{}{
		"status": doc.ApprovalStatus,
	})
	return &Result{Document: doc, Event: ev}, nil
}

// PendingApprovers returns who the document is currently waiting on: the
// undecided parallel approvers at level 0, or nil for sequential levels,
// where the waiting set comes from the authority resolver instead.
func (e *Engine) PendingApprovers(doc *entity.Document) []string {
	if doc.CurrentLevel == nil || *doc.CurrentLevel != 0 {
		return nil
	}
	var pending []string
	for i := range doc.Level0Approvers {
		if doc.Level0Approvers[i].Status == entity.DecisionStatusPending {
			pending = append(pending, doc.Level0Approvers[i].ApproverRef)
		}
	}
	return pending
}

// openLevel materializes the pending decision slot for a sequential level.
// Slots for skipped levels on manual-forward workflows are never created.
func (e *Engine) openLevel(doc *entity.Document, def workflow.Definition, level int) {
	if doc.LevelDecisionAt(level) != nil {
		return
	}
	doc.Levels = append(doc.Levels, entity.LevelDecision{
		DocumentID: doc.ID,
		Level:      level,
		Title:      def.TitleFor(level),
		Status:     entity.DecisionStatusPending,
	})
}

// level0Closed reports whether the parallel tier has reached its approval
// condition: every entry approved in ALL mode, at least one in ANY mode.
func (e *Engine) level0Closed(doc *entity.Document) bool {
	if doc.Level0Mode == entity.Level0ModeAny {
		for i := range doc.Level0Approvers {
			if doc.Level0Approvers[i].Status == entity.DecisionStatusApproved {
				return true
			}
		}
		return false
	}
	for i := range doc.Level0Approvers {
		if doc.Level0Approvers[i].Status != entity.DecisionStatusApproved {
			return false
		}
	}
	return len(doc.Level0Approvers) > 0
}

func (e *Engine) level0Remaining(doc *entity.Document) int {
	remaining := 0
	for i := range doc.Level0Approvers {
		if doc.Level0Approvers[i].Status == entity.DecisionStatusPending {
			remaining++
		}
	}
	return remaining
}

// fire runs one aggregate status transition and writes the new state back.
func (e *Engine) fire(doc *entity.Document, trigger workflow.Trigger) error {
	machine, err := workflow.NewStatusMachine(workflow.State(doc.ApprovalStatus))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := machine.Fire(trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	doc.ApprovalStatus = machine.State().String()
	return nil
}

func sameVerdict(decisionStatus, verdict string) bool {
	switch verdict {
	case entity.VerdictApprove:
		return decisionStatus == entity.DecisionStatusApproved
	case entity.VerdictReject:
		return decisionStatus == entity.DecisionStatusRejected
	}
	return false
}

func levelString(level *int) string {
	if level == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *level)
}
