package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/umutisafe/api/internal/config"
	"github.com/umutisafe/api/internal/domain/admin"
	"github.com/umutisafe/api/internal/domain/disposal"
	"github.com/umutisafe/api/internal/domain/education"
	"github.com/umutisafe/api/internal/domain/medicine"
	"github.com/umutisafe/api/internal/domain/pickup"
	"github.com/umutisafe/api/internal/domain/user"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/blobstore"
	"github.com/umutisafe/api/internal/platform/db"
	"github.com/umutisafe/api/internal/platform/events"
	"github.com/umutisafe/api/internal/platform/middleware"
	"github.com/umutisafe/api/internal/platform/notification"
	"github.com/umutisafe/api/internal/platform/reporting"
	"github.com/umutisafe/api/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "umutisafe-server",
		Short: "UmutiSafe medicine disposal API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// importCmd loads a registry CSV from disk through the same import path as
// the admin upload endpoint.
func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-medicines <file.csv>",
		Short: "Import the medicine registry from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawMode, _ := cmd.Flags().GetString("mode")
			mode, ok := medicine.ParseImportMode(rawMode)
			if !ok {
				return fmt.Errorf("invalid --mode %q, use replace or append", rawMode)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read csv: %w", err)
			}
			if int64(len(data)) > cfg.MaxCSVFileSize {
				return fmt.Errorf("csv file is %d bytes, limit is %d", len(data), cfg.MaxCSVFileSize)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg), logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := medicine.NewService(medicine.NewRepo(pool), db.NewTxRunner(pool), logger)
			res, err := svc.ImportCSV(ctx, data, mode)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d row(s): %d created, %d updated, %d skipped, %d removed (mode %s).\n",
				res.Total, res.Created, res.Updated, res.Skipped, res.Removed, res.Mode)
			return nil
		},
	}
	cmd.Flags().String("mode", string(medicine.ImportReplace), "Import mode: replace or append")
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Retries:  cfg.DBConnectRetries,
	}
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Infrastructure backends
	secret, err := signingSecret(cfg, logger)
	if err != nil {
		return err
	}
	ttl, _ := cfg.TokenTTL()
	tokens, err := auth.NewTokenIssuer(secret, ttl)
	if err != nil {
		return err
	}

	revocations, closeRevocations, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRevocations()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	logger.Info().Str("backend", cfg.StorageBackend).Msg("blob store ready")

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}
	live := websocket.NewHub(logger)
	emitter := events.NewEmitter(events.Fanout{publisher, live}, logger)

	notifier := notification.NewNotifier(newEmailSender(cfg, logger), notification.NewTemplateEngine(), cfg.FrontendURL, logger)

	// Domain services
	tx := db.NewTxRunner(pool)

	userSvc := user.NewService(user.NewRepo(pool), tokens, revocations, notifier, logger)
	medicineSvc := medicine.NewService(medicine.NewRepo(pool), tx, logger)
	disposalRepo := disposal.NewRepo(pool)
	disposalSvc := disposal.NewService(disposalRepo, blobs, emitter, logger)
	pickupSvc := pickup.NewService(pickup.NewRepo(pool), tx, userSvc, disposalRepo, emitter, logger)
	educationSvc := education.NewService(education.NewRepo(pool), logger)
	adminSvc := admin.NewService(reporting.NewAggregator(reporting.NewPGStore(pool)), disposalSvc, pickupSvc, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, !cfg.IsProduction())

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	requireAuth := auth.JWTMiddleware(auth.JWTConfig{
		Tokens:      tokens,
		Revocations: revocations,
		Accounts:    userSvc.Account,
	})
	authLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	api := e.Group("/api")
	api.GET("/health", db.HealthHandler(pool, cfg.Env))

	user.NewHandler(userSvc).RegisterRoutes(api, requireAuth, authLimit)
	medicine.NewHandler(medicineSvc, cfg.MaxCSVFileSize).RegisterRoutes(api, requireAuth)
	disposal.NewHandler(disposalSvc).RegisterRoutes(api, requireAuth)
	pickup.NewHandler(pickupSvc).RegisterRoutes(api, requireAuth)
	education.NewHandler(educationSvc).RegisterRoutes(api, requireAuth)
	admin.NewHandler(adminSvc).RegisterRoutes(api, requireAuth)
	websocket.NewHandler(live, cfg.CORSOrigins).RegisterRoutes(api, requireAuth)
	blobstore.NewHandler(blobs).RegisterRoutes(e)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	notifier.Wait()
	if err := emitter.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing event publisher failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
