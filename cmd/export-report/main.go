// Command export-report writes the current approval state of all documents
// to an xlsx workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/config"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/report"
	"github.com/garyjia/approval-engine/pkg/database"
	"github.com/garyjia/approval-engine/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		docType    = flag.String("type", "", "restrict to one document type (evaluation, candidate_hire, admin_task)")
		status     = flag.String("status", "", "restrict to one approval status")
		output     = flag.String("output", "", "output file (default: <report dir>/approvals-<date>.xlsx)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	docRepo := repository.NewDocumentRepository(db.DB, logger)
	docs, err := docRepo.List(context.Background(), port.DocumentFilter{
		DocumentType:   entity.DocumentType(*docType),
		ApprovalStatus: *status,
	})
	if err != nil {
		logger.Fatal("Failed to list documents", zap.Error(err))
	}

	outputPath := *output
	if outputPath == "" {
		if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
			logger.Fatal("Failed to create report directory", zap.Error(err))
		}
		name := fmt.Sprintf("approvals-%s.xlsx", time.Now().Format("2006-01-02"))
		outputPath = filepath.Join(cfg.Report.OutputDir, name)
	}

	exporter := report.NewExcelExporter(workflow.DefaultRegistry(), logger)
	if err := exporter.Export(docs, outputPath); err != nil {
		logger.Fatal("Failed to export report", zap.Error(err))
	}

	fmt.Printf("Wrote %d documents to %s\n", len(docs), outputPath)
}
