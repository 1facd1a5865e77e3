package entity

// Lifecycle status constants for Document. Lifecycle tracks the underlying
// content, independently of approval: a document must be SUBMITTED before
// approval can start.
const (
	LifecycleStatusDraft      = "DRAFT"
	LifecycleStatusSent       = "SENT"
	LifecycleStatusInProgress = "IN_PROGRESS"
	LifecycleStatusSubmitted  = "SUBMITTED"
	LifecycleStatusCompleted  = "COMPLETED"
	LifecycleStatusArchived   = "ARCHIVED"
	LifecycleStatusCancelled  = "CANCELLED"
)

// Aggregate approval status constants for Document.
const (
	ApprovalStatusNotStarted = "NOT_STARTED"
	ApprovalStatusPending    = "PENDING"
	ApprovalStatusInProgress = "IN_PROGRESS"
	ApprovalStatusApproved   = "APPROVED"
	ApprovalStatusRejected   = "REJECTED"
)

// Decision status constants for LevelDecision and ParallelApproverDecision.
const (
	DecisionStatusPending  = "PENDING"
	DecisionStatusApproved = "APPROVED"
	DecisionStatusRejected = "REJECTED"
)

// Verdict constants for decide calls.
const (
	VerdictApprove = "APPROVE"
	VerdictReject  = "REJECT"
)

// Level-0 aggregation modes. ALL requires every parallel approver to
// approve; ANY closes the tier on the first approval.
const (
	Level0ModeAll = "ALL"
	Level0ModeAny = "ANY"
)

// Notification status constants.
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
