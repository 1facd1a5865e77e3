package event

// Type identifies the type of domain event
type Type string

const (
	TypeApprovalStarted     Type = "approval.started"
	TypeDecisionRecorded    Type = "approval.decision_recorded"
	TypeLevelAdvanced       Type = "approval.level_advanced"
	TypeApprovalCompleted   Type = "approval.completed"
	TypeApprovalRejected    Type = "approval.rejected"
	TypeDocumentForwarded   Type = "approval.forwarded"
	TypeApprovalResubmitted Type = "approval.resubmitted"
	TypeApprovalCancelled   Type = "approval.cancelled"
	TypeApprovalReminder    Type = "approval.reminder"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApprovalStarted,
		TypeDecisionRecorded,
		TypeLevelAdvanced,
		TypeApprovalCompleted,
		TypeApprovalRejected,
		TypeDocumentForwarded,
		TypeApprovalResubmitted,
		TypeApprovalCancelled,
		TypeApprovalReminder:
		return true
	default:
		return false
	}
}
