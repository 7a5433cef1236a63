package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/tariffscope/admission/configs"
	"github.com/tariffscope/admission/internal/application/services"
	"github.com/tariffscope/admission/internal/core/ports"
	"github.com/tariffscope/admission/internal/infrastructure/db"
	"github.com/tariffscope/admission/internal/infrastructure/email"
	"github.com/tariffscope/admission/internal/infrastructure/health"
	"github.com/tariffscope/admission/internal/infrastructure/httpserver"
	"github.com/tariffscope/admission/internal/infrastructure/redis"
	"github.com/tariffscope/admission/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting admission service...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Window counters live in Redis so every instance sees the same counts.
	windowStore := repositories.NewWindowRedisRepository(redisClient, cfg.Admission.KeyPrefix)

	// Generic Redis cache for the read-heavy organization lookups
	redisCache := redis.NewRedisCache(redisClient, "appcache")

	// Initialize db repository implementations
	baseOrgRepo := repositories.NewOrganizationRepository(database, logger)
	quotaUsageRepo := repositories.NewQuotaUsageRepository(database, logger)
	violationRepo := repositories.NewViolationRepository(database, logger)
	auditRepo := repositories.NewAuditRepository(database, logger)

	// Decorate the organization reads with caching; the TTL bounds how long
	// a stale plan can misenforce after a missed invalidation.
	orgRepo := repositories.NewCachingOrganizationRepository(baseOrgRepo, redisCache, cfg.Admission.OrgCacheTTL)

	// Warning-zone notifier
	var notifier ports.UsageNotifier
	if cfg.Notifier.Driver == "sendgrid" {
		notifierConfig := &email.NotifierConfig{
			SendGridAPIKey: cfg.Notifier.SendGridAPIKey,
			FromEmail:      cfg.Notifier.FromEmail,
			FromName:       cfg.Notifier.FromName,
			BaseURL:        cfg.Notifier.BaseURL,
		}
		notifier, err = email.NewUsageNotifier(notifierConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize usage notifier:", err)
		}
	} else {
		notifier = email.NewLogNotifier(logger)
	}

	// Wire services
	auditService := services.NewAuditService(auditRepo, logger)
	violationService := services.NewViolationService(violationRepo, logger)

	quotaService, err := services.NewQuotaService(quotaUsageRepo, orgRepo, auditService, notifier, cfg.Admission.PlanLimits, logger)
	if err != nil {
		logger.Fatal("Failed to initialize quota service:", err)
	}

	admissionConfig := &services.AdmissionServiceConfig{
		Window:        cfg.Admission.Window,
		IPLimit:       cfg.Admission.IPLimit,
		RoleLimits:    cfg.Admission.RoleLimits,
		FailurePolicy: cfg.Admission.FailurePolicy,
		StoreTimeout:  cfg.Admission.StoreTimeout,
		UpgradeURL:    cfg.Admission.UpgradeURL,
	}
	admissionService := services.NewAdmissionService(windowStore, quotaService, violationService, admissionConfig, logger)

	// Background maintenance. The Redis window store expires windows via
	// TTL, so no sweeper is registered here.
	cleanupConfig := &services.CleanupConfig{
		SweepSchedule:      cfg.Cleanup.WindowSweepSchedule,
		PurgeSchedule:      cfg.Cleanup.ViolationPurgeSchedule,
		ViolationRetention: cfg.Cleanup.ViolationRetention,
		AuditRetention:     cfg.Cleanup.AuditRetention,
	}
	cleanupService := services.NewCleanupService(nil, violationService, auditService, cleanupConfig, logger)
	if err := cleanupService.Start(); err != nil {
		logger.Fatal("Failed to start cleanup scheduler:", err)
	}
	defer cleanupService.Stop()

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		AdmissionService: admissionService,
		QuotaService:     quotaService,
		ViolationService: violationService,
		AuditService:     auditService,
		OrganizationRepo: orgRepo,
		HealthCheckers:   hcSlice,
	}

	server := httpserver.NewServer(serverConfig, cfg.Identity.JWTSecret, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
