package approval

import "errors"

// Error taxonomy for approval commands. These are returned as typed results
// to the caller; the HTTP layer translates them to user-facing responses.
var (
	// ErrNotFound is returned for an unknown document id.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidState is returned when the document is terminal or its
	// lifecycle has not reached SUBMITTED.
	ErrInvalidState = errors.New("document is not in a decidable state")

	// ErrLevelMismatch is returned when the caller's claimed level differs
	// from the document's current level.
	ErrLevelMismatch = errors.New("level does not match current approval level")

	// ErrUnauthorized is returned when the authority resolver does not
	// grant the principal the claimed level for the document's scope.
	ErrUnauthorized = errors.New("principal is not authorized for this level")

	// ErrConflictingDecision is returned when a principal attempts a
	// different verdict than their recorded one, or any decide attempt on
	// an already-closed level by another principal.
	ErrConflictingDecision = errors.New("conflicting decision for an already-decided level")

	// ErrMixedLevels is returned when a bulk selection spans more than one
	// approval level.
	ErrMixedLevels = errors.New("selected documents span multiple approval levels")

	// ErrConcurrentModification is returned when the optimistic concurrency
	// check fails; the caller should retry with fresh state.
	ErrConcurrentModification = errors.New("document was modified concurrently")

	// ErrForwardNotAllowed is returned when a forward targets a level that
	// is not strictly after the current one, or the workflow does not use
	// manual forwarding.
	ErrForwardNotAllowed = errors.New("forward target is not a later workflow status")
)
