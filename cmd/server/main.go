package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"compliance/internal/app"
	"compliance/internal/audit"
	"compliance/internal/identity"
	"compliance/internal/platform/config"
	"compliance/internal/platform/httpserver"
	"compliance/internal/platform/logger"
	"compliance/internal/platform/metrics"
	"compliance/internal/platform/middleware"
	"compliance/internal/platform/postgres"
	"compliance/internal/platform/redis"
	refservice "compliance/internal/refdata/service"
	"compliance/internal/registry"
	httptransport "compliance/internal/transport/http"
	"compliance/pkg/fieldcrypt"
	"compliance/pkg/platform/circuit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "compliance",
		Short:         "Compliance case management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newOutboxCmd())
	return root
}

// env loads the config, logger and database shared by every command.
type env struct {
	cfg    config.Server
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger.New(cfg.LogLevel, cfg.LogFormat)}, nil
}

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, e, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, e *env, migrate bool) error {
	cfg, log := e.cfg, e.logger
	if cfg.Crypto.FieldKey == "" {
		return errors.New("FIELD_ENCRYPTION_KEY is required")
	}
	cipher, err := fieldcrypt.New(cfg.Crypto.FieldKey)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if _, err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	m := metrics.New()
	var projects registry.Registry = registry.NewClient(cfg.Registry.BaseURL,
		registry.WithHTTPClient(&http.Client{Timeout: cfg.Registry.Timeout}),
		registry.WithLogger(log),
		registry.WithMetrics(m),
		registry.WithBreaker(circuit.New(registry.DependencyName)),
	)
	checks := map[string]httptransport.HealthCheck{"database": db.PingContext}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		projects = registry.NewCached(projects, rdb.Client, cfg.Registry.CacheTTL, log)
		checks["redis"] = rdb.Health
	}

	idp := identity.NewClient(cfg.Identity.BaseURL,
		identity.WithHTTPClient(&http.Client{Timeout: cfg.Identity.Timeout}),
		identity.WithLogger(log),
		identity.WithMetrics(m),
	)

	a := app.New(app.PostgresStores(db, cfg.TxTimeout),
		app.Upstreams{Registry: projects, Identity: idp, Sealer: cipher},
		app.Options{Logger: log, Metrics: m, NumberRetryAttempts: cfg.NumberRetryAttempts},
	)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Metrics:   m,
		Validator: middleware.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
		Checks:    checks,
	}, a.Routes()...)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting compliance api", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := postgres.Open(cmd.Context(), e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			for _, name := range applied {
				color.Green("applied  %s", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				color.Yellow("database is up to date")
			}
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Upsert reference data from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			seed, err := refservice.ParseSeed(f)
			if err != nil {
				return err
			}

			db, err := postgres.Open(cmd.Context(), e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			stores := app.PostgresStores(db, e.cfg.TxTimeout)
			svc := refservice.New(stores.RefData, stores.Tx, refservice.WithLogger(e.logger))
			res, err := svc.Seed(cmd.Context(), seed)
			if err != nil {
				return err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("positions            %s\n", green(res.Positions))
			fmt.Printf("agencies             %s\n", green(res.Agencies))
			fmt.Printf("topics               %s\n", green(res.Topics))
			fmt.Printf("requirement sources  %s\n", green(res.RequirementSources))
			fmt.Printf("options              %s\n", green(res.Options))
			return nil
		},
	}
}

func newOutboxCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Relay recorded versions to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if len(e.cfg.Kafka.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := postgres.Open(ctx, e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			publisher, err := audit.NewKafkaPublisher(e.cfg.Kafka.Brokers, e.cfg.Kafka.VersionTopic)
			if err != nil {
				return err
			}
			defer publisher.Close()
			if err := publisher.EnsureTopic(ctx, 3, 1); err != nil {
				return err
			}

			w := audit.NewWorker(audit.NewPostgresStore(db), publisher, e.cfg.Kafka.PollInterval, e.cfg.Kafka.BatchSize,
				audit.WithWorkerLogger(e.logger),
				audit.WithWorkerMetrics(metrics.New()),
			)
			if once {
				n, err := w.Drain(ctx)
				if err != nil {
					return err
				}
				color.Green("published %d versions", n)
				return nil
			}
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "drain the outbox once and exit")
	return cmd
}
