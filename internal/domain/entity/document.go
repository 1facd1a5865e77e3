package entity

import "time"

// DocumentType selects which workflow definition governs a document.
type DocumentType string

const (
	DocumentTypeEvaluation    DocumentType = "evaluation"
	DocumentTypeCandidateHire DocumentType = "candidate_hire"
	DocumentTypeAdminTask     DocumentType = "admin_task"
)

// Scope is the organizational context used to resolve approval authority.
type Scope struct {
	ProjectID    int64 `json:"project_id"`
	DepartmentID int64 `json:"department_id"`
}

// Document is an approvable document moving through a multi-level workflow.
// Once approval starts, its approval fields are owned exclusively by the
// approval engine; Version guards every write (optimistic concurrency).
type Document struct {
	ID              int64        `json:"id"`
	DocumentType    DocumentType `json:"document_type"`
	Title           string       `json:"title"`
	OwnerRef        string       `json:"owner_ref"`
	ProjectID       int64        `json:"project_id"`
	DepartmentID    int64        `json:"department_id"`
	LifecycleStatus string       `json:"lifecycle_status"`
	ApprovalStatus  string       `json:"approval_status"`
	// CurrentLevel is nil until approval starts. Level 0 is the parallel
	// tier; 1..N are the sequential levels.
	CurrentLevel *int   `json:"current_level,omitempty"`
	Level0Mode   string `json:"level0_mode,omitempty"`
	Version      int64  `json:"version"`

	// Level0Approvers is only meaningful for workflows with the parallel
	// tier enabled; Levels is lazily populated as the document reaches
	// each sequential level.
	Level0Approvers []ParallelApproverDecision `json:"level0_approvers,omitempty"`
	Levels          []LevelDecision            `json:"levels,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Scope returns the authority-resolution context for the document.
func (d *Document) Scope() Scope {
	return Scope{ProjectID: d.ProjectID, DepartmentID: d.DepartmentID}
}

// LevelDecisionAt returns the decision entry for a sequential level, or nil
// if the document has not reached that level yet.
func (d *Document) LevelDecisionAt(level int) *LevelDecision {
	for i := range d.Levels {
		if d.Levels[i].Level == level {
			return &d.Levels[i]
		}
	}
	return nil
}

// Level0DecisionFor returns the parallel-tier entry recorded for a principal,
// or nil if the principal is not among the level-0 approvers.
func (d *Document) Level0DecisionFor(principal string) *ParallelApproverDecision {
	for i := range d.Level0Approvers {
		if d.Level0Approvers[i].ApproverRef == principal {
			return &d.Level0Approvers[i]
		}
	}
	return nil
}

// IsTerminal reports whether the approval outcome is final (no further
// decide calls succeed without a resubmit).
func (d *Document) IsTerminal() bool {
	return d.ApprovalStatus == ApprovalStatusApproved || d.ApprovalStatus == ApprovalStatusRejected
}
