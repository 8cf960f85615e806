package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/pqrs_dashboard/backend/internal/http"
	"github.com/pqrs_dashboard/backend/internal/notify"
	"github.com/pqrs_dashboard/backend/internal/service"
	"github.com/pqrs_dashboard/backend/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, in outbox mode, the notification worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	svc, err := a.services()
	if err != nil {
		return err
	}
	router := httpapi.Router(cfg, svc, logger)

	workerDone := make(chan struct{})
	if cfg.NotifyMode == service.NotifyOutbox {
		go func() {
			defer close(workerDone)
			notify.Start(ctx, cfg.OutboxPollInterval, a.worker())
		}()
		logger.Info().Dur("interval", cfg.OutboxPollInterval).Msg("outbox worker started")
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("notify", cfg.NotifyMode).Msg("server started")
	err = listenUntilDone(ctx, srv, logger)
	// A listen failure must also stop the worker.
	stop()
	<-workerDone

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = shutdownTracing(ctxShutdown)
	logger.Info().Msg("server stopped")
	return err
}

// listenUntilDone serves until ctx ends or the listener fails, then shuts the
// server down. A listen failure is returned.
func listenUntilDone(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			listenErr = fmt.Errorf("listen: %w", err)
		}
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil && listenErr == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return listenErr
}
