package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	appdispatcher "github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/approval"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
	extlark "github.com/garyjia/approval-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/worker"
	"github.com/garyjia/approval-engine/pkg/database"
)

// DatabaseBundle groups the raw database handle and the transaction manager.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, runs migrations and wraps the handle in
// the transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over one database handle.
func ProvideRepositories(db *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	authority := repository.NewAuthorityRepository(db, logger)

	return &RepositoryBundle{
		Document:     repository.NewDocumentRepository(db, logger),
		Audit:        repository.NewAuditTrailRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
		Authority:    authority,
		Resolver:     authority,
	}, nil
}

// LarkBundle groups the Lark SDK wrapper and the notifier built on it.
type LarkBundle struct {
	SDK      *extlark.SDKClient
	Notifier port.Notifier
}

// ProvideLarkClients creates the Lark SDK client and notifier.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark credentials are required")
	}

	sdk := extlark.NewSDKClient(extlark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	}, logger)

	return &LarkBundle{
		SDK:      sdk,
		Notifier: extlark.NewNotifier(sdk, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (appdispatcher.Dispatcher, error) {
	return appdispatcher.NewDispatcher(
		appdispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	), nil
}

// ProvideEngine creates the workflow registry and the approval engine over
// it.
func ProvideEngine() (workflow.Registry, *approval.Engine) {
	registry := workflow.DefaultRegistry()
	return registry, approval.NewEngine(registry)
}

// ServiceDeps are the dependencies needed to build the service bundle.
type ServiceDeps struct {
	Engine     *approval.Engine
	Registry   workflow.Registry
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Notifier   port.Notifier
	Dispatcher appdispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services and registers the
// post-commit notification delivery handler on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	svcLogger := &zapLoggerAdapter{logger: deps.Logger}
	publisher := appdispatcher.NewPublisher(deps.Dispatcher)

	approvalSvc := service.NewApprovalService(
		deps.Engine,
		deps.Registry,
		deps.Repos.Document,
		deps.Repos.Audit,
		deps.Repos.Notification,
		deps.Repos.Resolver,
		deps.TxManager,
		publisher,
		svcLogger,
	)

	notificationSvc := service.NewNotificationService(
		deps.Repos.Notification,
		deps.Repos.Document,
		deps.Notifier,
		svcLogger,
	)

	appdispatcher.RegisterNotificationDelivery(deps.Dispatcher, notificationSvc)

	return &ServiceBundle{
		Approval:     approvalSvc,
		Bulk:         service.NewBulkService(approvalSvc, deps.Repos.Document, deps.Repos.Resolver, svcLogger),
		Query:        service.NewQueryService(deps.Registry, deps.Repos.Document, deps.Repos.Audit, deps.Repos.Resolver, svcLogger),
		Notification: notificationSvc,
	}, nil
}

// WorkerDeps are the dependencies needed to build the worker manager.
type WorkerDeps struct {
	Notification service.NotificationService
	WorkerCfg    *WorkerConfig
	Logger       *zap.Logger
}

// ProvideWorkers creates the worker manager with the notification retry
// worker registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Notification == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	cfg := worker.DefaultNotificationWorkerConfig()
	if deps.WorkerCfg != nil {
		if deps.WorkerCfg.NotificationPollInterval > 0 {
			cfg.PollInterval = deps.WorkerCfg.NotificationPollInterval
		}
		if deps.WorkerCfg.NotificationBatchSize > 0 {
			cfg.BatchSize = deps.WorkerCfg.NotificationBatchSize
		}
		if deps.WorkerCfg.DeliveryTimeout > 0 {
			cfg.DeliveryTimeout = deps.WorkerCfg.DeliveryTimeout
		}
	}

	manager := worker.NewWorkerManager(deps.Logger)
	manager.Register(worker.NewNotificationWorker(cfg, deps.Notification, deps.Logger))

	return manager, nil
}
