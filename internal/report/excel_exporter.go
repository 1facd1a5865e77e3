// Package report renders approval data into Excel workbooks for
// offline review.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// ExcelExporter writes one row per document with its current workflow
// position.
type ExcelExporter struct {
	registry workflow.Registry
	logger   *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(registry workflow.Registry, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		registry: registry,
		logger:   logger,
	}
}

var reportHeaders = []string{
	"ID", "Type", "Title", "Owner", "Lifecycle", "Approval Status",
	"Current Stage", "Submitted", "Completed",
}

// Export writes the documents to an xlsx workbook at outputPath.
func (e *ExcelExporter) Export(docs []*entity.Document, outputPath string) error {
	e.logger.Info("Exporting approval report",
		zap.Int("document_count", len(docs)),
		zap.String("output_path", outputPath))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Documents"
	f.SetSheetName(f.GetSheetName(0), sheetName)

	for col, header := range reportHeaders {
		e.setCell(f, sheetName, cellRef(col, 1), header)
	}

	for i, doc := range docs {
		row := i + 2
		e.setCell(f, sheetName, cellRef(0, row), strconv.FormatInt(doc.ID, 10))
		e.setCell(f, sheetName, cellRef(1, row), string(doc.DocumentType))
		e.setCell(f, sheetName, cellRef(2, row), doc.Title)
		e.setCell(f, sheetName, cellRef(3, row), doc.OwnerRef)
		e.setCell(f, sheetName, cellRef(4, row), doc.LifecycleStatus)
		e.setCell(f, sheetName, cellRef(5, row), doc.ApprovalStatus)
		e.setCell(f, sheetName, cellRef(6, row), e.stageLabel(doc))
		e.setCell(f, sheetName, cellRef(7, row), formatTime(doc.SubmittedAt))
		e.setCell(f, sheetName, cellRef(8, row), formatTime(doc.CompletedAt))
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	e.logger.Info("Approval report written",
		zap.String("output_path", outputPath))

	return nil
}

// stageLabel renders where the document sits in its workflow. Decided
// sequential levels read like "Approved (from Send to Audit)".
func (e *ExcelExporter) stageLabel(doc *entity.Document) string {
	if doc.CurrentLevel == nil {
		return ""
	}
	level := *doc.CurrentLevel

	if level == 0 {
		approved := 0
		for _, d := range doc.Level0Approvers {
			if d.Status == entity.DecisionStatusApproved {
				approved++
			}
		}
		return fmt.Sprintf("Parallel Review (%d/%d approved)", approved, len(doc.Level0Approvers))
	}

	if d := doc.LevelDecisionAt(level); d != nil {
		return d.DisplayLabel()
	}

	def, err := e.registry.Lookup(doc.DocumentType)
	if err != nil {
		return ""
	}
	return def.TitleFor(level)
}

// setCell sets a cell value in the Excel file
func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// cellRef builds an A1-style reference from zero-based column and one-based
// row.
func cellRef(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
