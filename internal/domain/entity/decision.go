package entity

import "time"

// ParallelApproverDecision is one approver's verdict in the level-0 parallel
// tier. The tier approves only when every entry is approved; the first
// rejection closes the tier immediately.
type ParallelApproverDecision struct {
	ID          int64      `json:"id"`
	DocumentID  int64      `json:"document_id"`
	ApproverRef string     `json:"approver_ref"`
	Status      string     `json:"status"`
	Comments    string     `json:"comments,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// LevelDecision is the decision slot for one sequential level (1..N).
// At most one LevelDecision per document is pending at a time.
type LevelDecision struct {
	ID          int64      `json:"id"`
	DocumentID  int64      `json:"document_id"`
	Level       int        `json:"level"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	ApproverRef string     `json:"approver_ref,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// DisplayLabel renders the decision for dashboards. Closed decisions on
// manual-forward workflows read like "Approved (from Send to Audit)"; the
// composite string is always derived here, never stored.
func (ld *LevelDecision) DisplayLabel() string {
	switch ld.Status {
	case DecisionStatusApproved:
		return "Approved (from " + ld.Title + ")"
	case DecisionStatusRejected:
		return "Rejected (from " + ld.Title + ")"
	default:
		return ld.Title
	}
}
