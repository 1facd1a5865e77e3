package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a state is not a known aggregate status
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidDefinition is returned when a workflow definition is inconsistent
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrUnknownDocumentType is returned when no definition exists for a document type
	ErrUnknownDocumentType = errors.New("unknown document type")
)
