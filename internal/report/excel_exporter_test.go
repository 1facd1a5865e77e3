package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

func TestExcelExporter_Export(t *testing.T) {
	logger := zap.NewNop()
	exporter := NewExcelExporter(workflow.DefaultRegistry(), logger)

	submitted := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	level := 2
	docs := []*entity.Document{
		{
			ID:              1,
			DocumentType:    entity.DocumentTypeAdminTask,
			Title:           "Office relocation",
			OwnerRef:        "ou_owner",
			LifecycleStatus: entity.LifecycleStatusSubmitted,
			ApprovalStatus:  entity.ApprovalStatusInProgress,
			CurrentLevel:    &level,
			SubmittedAt:     &submitted,
			Levels: []entity.LevelDecision{
				{Level: 2, Title: "Send to Audit", Status: entity.DecisionStatusApproved},
			},
		},
		{
			ID:              2,
			DocumentType:    entity.DocumentTypeEvaluation,
			Title:           "Annual review",
			OwnerRef:        "ou_owner",
			LifecycleStatus: entity.LifecycleStatusSubmitted,
			ApprovalStatus:  entity.ApprovalStatusPending,
			CurrentLevel:    intPtr(0),
			Level0Approvers: []entity.ParallelApproverDecision{
				{ApproverRef: "pm-1", Status: entity.DecisionStatusApproved},
				{ApproverRef: "pm-2", Status: entity.DecisionStatusPending},
			},
		},
	}

	outputPath := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, exporter.Export(docs, outputPath))

	f, err := excelize.OpenFile(outputPath)
	require.NoError(t, err)
	defer f.Close()

	get := func(cell string) string {
		v, err := f.GetCellValue("Documents", cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "ID", get("A1"))
	assert.Equal(t, "Current Stage", get("G1"))

	assert.Equal(t, "1", get("A2"))
	assert.Equal(t, "admin_task", get("B2"))
	assert.Equal(t, "Approved (from Send to Audit)", get("G2"))
	assert.Equal(t, "2026-03-10 09:00", get("H2"))

	assert.Equal(t, "Parallel Review (1/2 approved)", get("G3"))
}

func TestExcelExporter_StageLabelFallsBackToDefinitionTitle(t *testing.T) {
	exporter := NewExcelExporter(workflow.DefaultRegistry(), zap.NewNop())

	level := 3
	doc := &entity.Document{
		DocumentType: entity.DocumentTypeCandidateHire,
		CurrentLevel: &level,
	}

	assert.Equal(t, "HOD HR", exporter.stageLabel(doc))
}

func TestExcelExporter_StageLabelEmptyBeforeStart(t *testing.T) {
	exporter := NewExcelExporter(workflow.DefaultRegistry(), zap.NewNop())
	assert.Equal(t, "", exporter.stageLabel(&entity.Document{}))
}

func intPtr(v int) *int { return &v }
