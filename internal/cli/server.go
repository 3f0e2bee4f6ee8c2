package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tereo-quiz-service/internal/config"
	"tereo-quiz-service/internal/logging"
	transport "tereo-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	router := transport.NewRouter(
		transport.NewWSHandler(d.service, logger),
		transport.NewRESTHandler(d.service, d.supply, d.recorder, logger),
		logger,
	)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// hijacked websocket connections outlive server.Shutdown; their sessions
	// must stop writing before Redis and Postgres are closed by d.Close
	if serr := d.service.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("sessions did not settle before shutdown", zap.Error(serr))
	}
	return err
}
