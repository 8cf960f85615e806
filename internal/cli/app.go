package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/config"
	"github.com/pqrs_dashboard/backend/internal/db"
	"github.com/pqrs_dashboard/backend/internal/files"
	httpapi "github.com/pqrs_dashboard/backend/internal/http"
	"github.com/pqrs_dashboard/backend/internal/memstore"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/service"
	"github.com/pqrs_dashboard/backend/internal/store"
)

// app holds the process-wide collaborators assembled from config.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    store.Store
	mailer   notify.Mailer
	location *time.Location
	close    func()
}

func openApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, close: func() {}}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}
	a.location = loc

	switch cfg.StoreDriver {
	case "memory":
		a.store = memstore.New()
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	default:
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, cfg.DatabaseURL, "up", logger); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.store = pg
		a.close = pg.Close
	}

	switch cfg.MailDriver {
	case "smtp":
		a.mailer = notify.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}
	default:
		a.mailer = notify.LogMailer{Logger: logger}
		logger.Info().Msg("using log mailer")
	}
	return a, nil
}

func (a *app) deps() service.Deps {
	return service.Deps{
		Store:      a.store,
		Mailer:     a.mailer,
		NotifyMode: a.cfg.NotifyMode,
		PublicURL:  a.cfg.PublicBaseURL,
		Location:   a.location,
		Logger:     a.logger,
	}
}

func (a *app) directory() *service.Directory {
	return &service.Directory{Deps: a.deps(), DefaultMaxResponseDays: a.cfg.DefaultMaxResponseDays}
}

func (a *app) services() (httpapi.Services, error) {
	local, err := files.NewLocal(a.cfg.UploadDir, httpapi.FilesPrefix)
	if err != nil {
		return httpapi.Services{}, err
	}
	deps := a.deps()
	lifecycle := &service.Lifecycle{Deps: deps}
	return httpapi.Services{
		Store:     a.store,
		Lifecycle: lifecycle,
		Intake:    &service.Intake{Deps: deps},
		Directory: a.directory(),
		Dashboard: &service.Dashboard{Lifecycle: lifecycle},
		Files:     local,
		Tokens:    auth.NewTokens(a.cfg.JWTSecret, a.cfg.TokenTTL),
	}, nil
}

func (a *app) worker() *notify.Worker {
	return notify.NewWorker(a.store, a.mailer, notify.WorkerConfig{
		BatchSize:   a.cfg.OutboxBatchSize,
		MaxAttempts: a.cfg.OutboxMaxAttempts,
		Lease:       a.cfg.OutboxLease,
		BaseBackoff: a.cfg.OutboxBackoff,
		MaxBackoff:  a.cfg.OutboxMaxBackoff,
	}, a.logger)
}

// bootstrap seeds the first entity and super admin when configured.
func (a *app) bootstrap(ctx context.Context) error {
	if a.cfg.BootstrapAdminEmail == "" {
		return nil
	}
	_, err := a.directory().Bootstrap(ctx, service.BootstrapInput{
		EntityName:    a.cfg.BootstrapEntityName,
		EntityEmail:   a.cfg.BootstrapEntityEmail,
		EntityCode:    a.cfg.BootstrapEntityCode,
		AdminEmail:    a.cfg.BootstrapAdminEmail,
		AdminPassword: a.cfg.BootstrapAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}
