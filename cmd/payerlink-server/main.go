package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/simrs/payerlink/internal/audit"
	"github.com/simrs/payerlink/internal/config"
	"github.com/simrs/payerlink/internal/domain/claims"
	"github.com/simrs/payerlink/internal/payer"
	"github.com/simrs/payerlink/internal/platform/auth"
	"github.com/simrs/payerlink/internal/platform/db"
	"github.com/simrs/payerlink/internal/platform/middleware"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "payerlink-server",
		Short: "Payer gateway integration service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the payer integration server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// newRouter builds the HTTP surface. Health endpoints are registered before
// the auth group so load balancers and probes reach them without a token;
// everything under /api/v1 requires the acting user.
func newRouter(cfg *config.Config, logger zerolog.Logger, recorder *audit.Recorder, client *payer.Client, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	authMW := auth.JWTMiddleware(cfg.AuthSecret)
	if cfg.IsDev() && cfg.AuthSecret == "" {
		authMW = auth.DevAuthMiddleware()
	}
	apiV1 := e.Group("/api/v1", authMW)

	claimsHandler := claims.NewHandler(claims.NewService(client), recorder)
	claimsHandler.RegisterRoutes(apiV1)

	auditHandler := audit.NewHandler(recorder)
	auditHandler.RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Audit store: Postgres when configured, in-memory otherwise.
	ctx := context.Background()
	var store audit.Store
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to audit database")
		}
		defer pool.Close()

		pg := audit.NewPGStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare audit schema")
		}
		store = pg
		logger.Info().Msg("audit store: postgres")
	} else {
		store = audit.NewMemoryStore()
		logger.Warn().Msg("audit store: in-memory (entries do not survive restarts)")
	}

	recorder := audit.NewRecorder(store, logger)

	// Gateway client with the configured retry policy.
	client := payer.NewClient(cfg.GatewayBaseURL, cfg.GatewayConsID, cfg.GatewaySecret,
		payer.WithRetryOptions(
			payer.WithMaxAttempts(cfg.RetryMaxAttempts),
			payer.WithInitialDelay(cfg.RetryInitialDelay()),
			payer.WithMaxDelay(cfg.RetryMaxDelay()),
			payer.WithBackoffMultiplier(cfg.RetryBackoffMultiplier),
		),
	)

	e := newRouter(cfg, logger, recorder, client, pool)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("gateway", cfg.GatewayBaseURL).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
