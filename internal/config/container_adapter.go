package config

import (
	"github.com/garyjia/approval-engine/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Lark: container.LarkConfig{
			AppID:           c.Lark.AppID,
			AppSecret:       c.Lark.AppSecret,
			APITimeout:      c.Lark.APITimeout,
			EnableWebsocket: c.Lark.EnableWebsocket,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Worker: container.WorkerConfig{
			NotificationPollInterval: c.Worker.NotificationPollInterval,
			NotificationBatchSize:    c.Worker.NotificationBatchSize,
			DeliveryTimeout:          c.Worker.DeliveryTimeout,
		},
		Report: container.ReportConfig{
			OutputDir: c.Report.OutputDir,
		},
	}
}
