package service

import (
	"log/slog"

	"github.com/minio/minio-go/v7"

	"agenda-eventos/internal/config"
	"agenda-eventos/internal/inbox"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/realtime"
	"agenda-eventos/internal/repository"
	"agenda-eventos/internal/service/archive"
	"agenda-eventos/internal/service/cascade"
	"agenda-eventos/internal/service/decision"
	"agenda-eventos/internal/service/email"
	"agenda-eventos/internal/service/involvement"
	"agenda-eventos/internal/service/notification"
	"agenda-eventos/internal/service/retention"
)

type Services struct {
	Email        email.Service
	Notification notification.Service
	Involvement  involvement.Service
	Decision     decision.Service
	Retention    retention.Service
	Cascade      cascade.Service
	Inbox        *inbox.Hub
}

// NewServices wires every service. minioClient may be nil, in which case
// deleted events are not archived.
func NewServices(
	repos *repository.Repositories,
	broker realtime.Broker,
	minioClient *minio.Client,
	catalog *i18n.Catalog,
	cfg *config.Config,
	logger *slog.Logger,
) *Services {
	emailService := email.NewService(cfg, logger)
	notificationService := notification.NewService(repos, emailService, catalog, cfg.DefaultLocale, logger)
	involvementService := involvement.NewService(repos, logger)
	retentionService := retention.NewService(repos.Notification, logger)

	decisionService := decision.NewService(
		repos,
		notificationService,
		realtime.Refresher{Broker: broker},
		cfg.RefreshDelay,
		catalog,
		cfg.DefaultLocale,
		logger,
	)

	var archiver cascade.Archiver
	if minioClient != nil {
		archiver = archive.NewService(minioClient, cfg.MinIOBucket)
	}
	cascadeService := cascade.NewService(repos, notificationService, archiver, cfg.CleanupBatchSize, catalog, cfg.DefaultLocale, logger)

	hub := inbox.NewHub(notificationService, notificationService, retentionService, broker, logger)

	return &Services{
		Email:        emailService,
		Notification: notificationService,
		Involvement:  involvementService,
		Decision:     decisionService,
		Retention:    retentionService,
		Cascade:      cascadeService,
		Inbox:        hub,
	}
}
