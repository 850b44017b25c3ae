package main

import (
	"codegen-app/internal/api/handlers"
	"codegen-app/internal/app"
	"codegen-app/internal/config"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/postgres"
	"codegen-app/internal/service/llm"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 30 * time.Second

type ServeFlags struct {
	ListenAddr string
	SkipSeed   bool
}

func NewServeFlags() *ServeFlags {
	return &ServeFlags{}
}

func (f *ServeFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve on (default :SERVER_PORT)")
	fs.BoolVar(&f.SkipSeed, "skip-seed", f.SkipSeed, "Do not create the demo user")
}

func NewServeCommand() *cobra.Command {
	f := NewServeFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the generation pipeline and the deploy root sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, f)
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, f *ServeFlags) error {
	appConfig, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Log.Info("Initializing database...")
	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return err
	}
	if !f.SkipSeed {
		if err := postgres.SeedDemoUser(ctx, database); err != nil {
			return fmt.Errorf("failed to seed demo user: %w", err)
		}
	}

	backend := llm.NewOpenRouterBackend(&appConfig.LLM)
	cfg := app.NewConfig(database, appConfig, backend)

	if _, err := cfg.Sweeper.Schedule(ctx, appConfig.Storage.SweepSchedule); err != nil {
		return err
	}

	mdlw := middleware.New(middleware.Config{
		Recorder: metrics.NewRecorder(metrics.Config{}),
	})
	router := handlers.NewHandlers(cfg).NewRouter(func(handlerID string, h http.Handler) http.Handler {
		return std.Handler(handlerID, mdlw, h)
	})

	addr := f.ListenAddr
	if addr == "" {
		addr = ":" + appConfig.Server.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Warn("Server shutdown did not complete cleanly")
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"addr":        addr,
		"model":       appConfig.LLM.Model,
		"output_root": appConfig.Storage.OutputRoot,
		"deploy_root": appConfig.Storage.DeployRoot,
		"public_host": appConfig.Storage.PublicHost,
	}).Info("Server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Log.Info("Server stopped")
	return nil
}
