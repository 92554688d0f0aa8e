// Package app wires configuration into the services shared by the HTTP server
// and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/ansyar-project/split-the-bill/internal/config"
	"github.com/ansyar-project/split-the-bill/internal/database"
	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/handlers"
	"github.com/ansyar-project/split-the-bill/internal/metrics"
	"github.com/ansyar-project/split-the-bill/internal/report"
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/internal/storage"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Metrics   *metrics.Metrics
	Publisher events.Publisher
	Archive   storage.ReportArchive
	Services  handlers.Services
}

// Build connects to the database and the optional broker and object store,
// then constructs every service.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	m := metrics.New()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.PublishTimeout)
		if err != nil {
			return nil, fmt.Errorf("amqp initialization failed: %w", err)
		}
		publisher = amqpPublisher
		logger.Info("amqp_publisher_ready", map[string]interface{}{"exchange": cfg.AMQP.Exchange})
	}
	publisher = m.Publisher(publisher)

	var archive storage.ReportArchive
	if cfg.MinIO.Enabled {
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("minio initialization failed: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed ensuring minio bucket: %w", err)
		}
		archive = client
		logger.Info("report_archive_ready", map[string]interface{}{"bucket": cfg.MinIO.Bucket})
	}

	audit := services.NewAuditService(db, publisher, cfg.Audit.QueueSize)
	auth := services.NewAuthorizer(db)
	reports := services.NewReportService(db, auth, audit, report.NewPDFRenderer(cfg.Report.Currency), archive)
	reports.LinkTTL = cfg.Report.LinkTTL

	return &App{
		Config:    cfg,
		DB:        db,
		Metrics:   m,
		Publisher: publisher,
		Archive:   archive,
		Services: handlers.Services{
			Users:    services.NewUserService(db, auth, audit),
			Groups:   services.NewGroupService(db, auth, audit),
			Members:  services.NewMembershipService(db, auth, audit),
			Invites:  services.NewInviteService(db, auth, audit, cfg.Invite.TTL),
			Expenses: services.NewExpenseService(db, auth, audit),
			Reports:  reports,
			Audit:    audit,
		},
	}, nil
}

// Close drains pending audit rows, then releases the broker and database.
func (a *App) Close() {
	a.Services.Audit.Close()

	if err := a.Publisher.Close(); err != nil {
		logger.Error("event_publisher_close_failed", err, nil)
	}

	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
