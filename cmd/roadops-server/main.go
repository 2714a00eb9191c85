// Package main provides the roadops server entry point: the construction
// event lifecycle API, the asset registry, and the recent-edits feed in a
// single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/civicworks/roadops/pkg/assets"
	"github.com/civicworks/roadops/pkg/notify"
	"github.com/civicworks/roadops/pkg/rbac"
	"github.com/civicworks/roadops/pkg/workflow"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		policyPath   string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql, or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&policyPath, "closure-policy", "", "Path to closure policy YAML (optional)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting roadops server",
		"listen", listenAddr,
		"dbType", databaseType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	// Closure policy: defaults to sign-off required everywhere.
	policy := workflow.DefaultClosurePolicy()
	if policyPath == "" {
		policyPath = os.Getenv("ROADOPS_CLOSURE_POLICY")
	}
	if policyPath != "" {
		policy, err = workflow.LoadClosurePolicy(policyPath)
		if err != nil {
			glog.Fatalf("Failed to load closure policy: %v", err)
		}
		logger.Info("loaded closure policy", "path", policyPath)
	}

	// Set up auth based on ROADOPS_AUTH_MODE.
	var extractor rbac.RoleExtractor
	authMode := os.Getenv("ROADOPS_AUTH_MODE")
	switch authMode {
	case "jwt":
		jwtCfg := rbac.JWTRoleExtractorConfig{
			RoleClaim:     envOrDefault("ROADOPS_JWT_ROLE_CLAIM", "role"),
			PublicKeyPath: os.Getenv("ROADOPS_JWT_PUBLIC_KEY_PATH"),
			Issuer:        os.Getenv("ROADOPS_JWT_ISSUER"),
			Audience:      os.Getenv("ROADOPS_JWT_AUDIENCE"),
			Logger:        logger,
		}
		extractor, err = rbac.NewJWTRoleExtractor(jwtCfg)
		if err != nil {
			glog.Fatalf("Failed to create JWT role extractor: %v", err)
		}
		logger.Info("using JWT auth",
			"roleClaim", jwtCfg.RoleClaim,
			"hasPublicKey", jwtCfg.PublicKeyPath != "")
	case "header", "":
		// Default: use X-User-Role header (development mode)
		extractor = rbac.DefaultRoleExtractor
		if authMode == "" {
			logger.Info("using default header-based auth (X-User-Role)")
		}
	default:
		glog.Fatalf("Unknown auth mode: %q (expected jwt, header, or empty)", authMode)
	}
	checker := rbac.DefaultChecker

	// Stores.
	eventStore := workflow.NewEventStore(gormDB)
	if err := eventStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate workflow tables: %v", err)
	}
	changeStore := workflow.NewStatusChangeStore(gormDB)
	editLog := notify.NewEditLog(gormDB)
	if err := editLog.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate recent_edits: %v", err)
	}
	bus := notify.NewBus(editLog, notify.BusConfigFromEnv(), logger)
	assetStore := assets.NewStore(gormDB, editLog, bus)
	if err := assetStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate road_assets: %v", err)
	}
	views := workflow.NewViews(gormDB)

	engine := workflow.NewEngine(workflow.EngineConfig{
		Store:        eventStore,
		Changes:      changeStore,
		Capabilities: checker,
		Policy:       policy,
		Publisher:    bus,
		Logger:       logger,
	})

	// Retention worker for the recent-edits log.
	retention := notify.NewRetentionWorker(editLog, notify.RetentionConfigFromEnv(), logger)
	go retention.Run(ctx)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Last-Event-ID", rbac.RoleHeader, rbac.PrincipalHeader},
		MaxAge:         300,
	}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Mount("/api/v1", workflow.NewRouter(engine, eventStore, changeStore, views, extractor, checker))
	router.Mount("/api/v1/assets", assets.NewRouter(assetStore, extractor, checker))
	router.Mount("/api/v1/notify", notify.NewRouter(editLog, bus))

	logger.Info("roadops server ready", "listen", listenAddr)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("roadops server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "postgres"
		}
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql, or sqlite)", dbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}
	return gormDB, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
