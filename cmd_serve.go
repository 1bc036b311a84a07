package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	_ "github.com/ekaya-inc/orgpulse/pkg/adapters/directory/csv"
	_ "github.com/ekaya-inc/orgpulse/pkg/adapters/directory/demo"
	"github.com/ekaya-inc/orgpulse/pkg/config"
	"github.com/ekaya-inc/orgpulse/pkg/crypto"
	"github.com/ekaya-inc/orgpulse/pkg/database"
	"github.com/ekaya-inc/orgpulse/pkg/handlers"
	"github.com/ekaya-inc/orgpulse/pkg/logging"
	"github.com/ekaya-inc/orgpulse/pkg/middleware"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Env)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Strings("required_fields", cfg.Reconciliation.RequiredFields))

	if cfg.ProjectCredentialsKey == "" {
		return errors.New("PROJECT_CREDENTIALS_KEY must be set")
	}
	encryptor, err := crypto.NewCredentialEncryptor(cfg.ProjectCredentialsKey)
	if err != nil {
		return fmt.Errorf("invalid credentials key: %w", err)
	}
	pseudonymizer, err := crypto.NewPseudonymizer(cfg.ProjectCredentialsKey)
	if err != nil {
		return fmt.Errorf("invalid credentials key: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	sqlDB, err := database.OpenMigrationDB(cfg.Database.URL())
	if err != nil {
		return err
	}
	err = database.RunMigrations(sqlDB, logger)
	_ = sqlDB.Close()
	if err != nil {
		return err
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, analytics will not be cached", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	defaults, err := services.LoadReferenceDefaults(cfg.ReferenceDataPath)
	if err != nil {
		return err
	}

	// Repositories
	employeeRepo := repositories.NewEmployeeRepository()
	connectionRepo := repositories.NewConnectionRepository()
	setupRepo := repositories.NewSetupRepository()
	departmentRepo := repositories.NewDepartmentRepository()
	locationRepo := repositories.NewLocationRepository()

	// Services
	required := cfg.Reconciliation.RequiredFields
	factory := directory.NewConnectorFactory(directory.Options{CSVEncoding: cfg.Discovery.CSVEncoding})
	cache := services.NewOverviewCache(redisClient, cfg.Redis.TTL)
	invalidator := services.NewCacheInvalidator(cache, logger)

	reconciliationService := services.NewReconciliationService(employeeRepo, cache, services.ReconciliationConfig{
		RequiredFields: required,
		FillValue:      cfg.Reconciliation.DefaultFillValue,
		BulkDelay:      cfg.Reconciliation.BulkDelay(),
		BulkTimeout:    cfg.Reconciliation.BulkTimeout(),
	}, logger)
	employeeService := services.NewEmployeeService(employeeRepo, required, logger, reconciliationService, invalidator)
	connectionService := services.NewConnectionService(connectionRepo, encryptor, factory, logger)
	discoveryService := services.NewDiscoveryService(connectionService, factory, employeeRepo, required,
		time.Duration(cfg.Discovery.SourcesTimeoutSeconds)*time.Second, logger)
	setupService := services.NewSetupService(setupRepo, connectionService, discoveryService, reconciliationService,
		employeeRepo, pseudonymizer, logger, invalidator)
	referenceService := services.NewReferenceDataService(departmentRepo, locationRepo, defaults, logger)
	analyticsService := services.NewAnalyticsService(employeeRepo, cache, logger)

	// Routes
	mux := http.NewServeMux()
	tenant := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	checks := map[string]handlers.HealthCheck{"database": db.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, logger).RegisterRoutes(mux, tenant)
	handlers.NewSetupHandler(setupService, logger).RegisterRoutes(mux, tenant)
	handlers.NewEmployeeHandler(employeeService, logger).RegisterRoutes(mux, tenant)
	handlers.NewReconciliationHandler(reconciliationService, required, logger).RegisterRoutes(mux, tenant)
	handlers.NewReferenceDataHandler(referenceService, logger).RegisterRoutes(mux, tenant)
	handlers.NewAnalyticsHandler(analyticsService, logger).RegisterRoutes(mux, tenant)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting orgpulse",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
