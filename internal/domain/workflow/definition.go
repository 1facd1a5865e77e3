package workflow

import (
	"fmt"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// Definition is the static, per-document-type configuration of an approval
// workflow: the ordered sequential levels 1..N, whether the parallel level-0
// tier is enabled, and whether advancement past an approved level is manual
// (the admin-task forwarding variant) or automatic.
type Definition struct {
	DocumentType  entity.DocumentType
	LevelCount    int
	HasLevel0     bool
	ManualForward bool
	// LevelTitles holds the role label for each sequential level;
	// LevelTitles[0] is level 1.
	LevelTitles []string
}

// Validate checks internal consistency of the definition.
func (d Definition) Validate() error {
	if d.LevelCount < 1 {
		return fmt.Errorf("%w: level count must be at least 1", ErrInvalidDefinition)
	}
	if len(d.LevelTitles) != d.LevelCount {
		return fmt.Errorf("%w: %d titles for %d levels", ErrInvalidDefinition, len(d.LevelTitles), d.LevelCount)
	}
	return nil
}

// FirstLevel returns the level approval starts at: 0 when the parallel tier
// is enabled, otherwise 1.
func (d Definition) FirstLevel() int {
	if d.HasLevel0 {
		return 0
	}
	return 1
}

// LastLevel returns N, the final sequential level.
func (d Definition) LastLevel() int {
	return d.LevelCount
}

// TitleFor returns the role label for a sequential level, or "" for level 0
// and out-of-range levels.
func (d Definition) TitleFor(level int) string {
	if level < 1 || level > d.LevelCount {
		return ""
	}
	return d.LevelTitles[level-1]
}

// NextStatuses returns the titles of every level strictly after the given
// one, in workflow order. This is the forwarding choice set for
// manual-forward workflows; it is always computed from the level list, never
// hand-maintained per status.
func (d Definition) NextStatuses(level int) []string {
	if level >= d.LevelCount {
		return nil
	}
	next := make([]string, 0, d.LevelCount-level)
	for l := level + 1; l <= d.LevelCount; l++ {
		next = append(next, d.LevelTitles[l-1])
	}
	return next
}

// Registry maps document types to their workflow definitions.
type Registry map[entity.DocumentType]Definition

// Lookup returns the definition for a document type.
func (r Registry) Lookup(dt entity.DocumentType) (Definition, error) {
	def, ok := r[dt]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownDocumentType, dt)
	}
	return def, nil
}

// DefaultRegistry returns the built-in workflow definitions for the three
// document types.
func DefaultRegistry() Registry {
	return Registry{
		entity.DocumentTypeEvaluation: {
			DocumentType: entity.DocumentTypeEvaluation,
			LevelCount:   4,
			HasLevel0:    true,
			LevelTitles:  []string{"HOD", "HR Manager", "Vice President", "CEO"},
		},
		entity.DocumentTypeCandidateHire: {
			DocumentType: entity.DocumentTypeCandidateHire,
			LevelCount:   5,
			HasLevel0:    false,
			LevelTitles: []string{
				"Assistant Manager HR",
				"Manager HR",
				"HOD HR",
				"Vice President",
				"CEO",
			},
		},
		entity.DocumentTypeAdminTask: {
			DocumentType:  entity.DocumentTypeAdminTask,
			LevelCount:    5,
			HasLevel0:     false,
			ManualForward: true,
			LevelTitles: []string{
				"Send to AM Admin",
				"Send to Audit",
				"Send to Finance",
				"Send to CEO Office",
				"Forwarded to CEO",
			},
		},
	}
}
