package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-nexus-api/internal/handler"
	"github.com/noah-isme/event-nexus-api/internal/middleware"
	"github.com/noah-isme/event-nexus-api/internal/models"
	"github.com/noah-isme/event-nexus-api/internal/repository"
	"github.com/noah-isme/event-nexus-api/internal/service"
	"github.com/noah-isme/event-nexus-api/pkg/cache"
	"github.com/noah-isme/event-nexus-api/pkg/config"
	"github.com/noah-isme/event-nexus-api/pkg/database"
	"github.com/noah-isme/event-nexus-api/pkg/export"
	"github.com/noah-isme/event-nexus-api/pkg/logger"
	"github.com/noah-isme/event-nexus-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/event-nexus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/event-nexus-api/pkg/middleware/requestid"
	"github.com/noah-isme/event-nexus-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, event listing cache disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}

	mail, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init mailer", "error", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	var listingCache *service.CacheService
	if cfg.EventCache.Enabled && redisClient != nil {
		listingCache = service.NewCacheService(redisClient, cfg.EventCache.TTL)
	}
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	eventSvc := service.NewEventService(eventRepo, enrollmentRepo, listingCache, metricsSvc, nil, logr)
	userSvc := service.NewUserService(userRepo, eventSvc, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, eventRepo, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	certificateSvc := service.NewCertificateService(
		certificateRepo, userRepo, eventRepo, enrollmentRepo,
		export.NewCertificateRenderer(), store, mail, notificationRepo, logr,
	)
	reportSvc := service.NewReportService(reportRepo, export.NewCSVExporter(), logr)

	scanner := service.NewCompletionScanner(
		eventRepo, enrollmentRepo, certificateRepo, certificateSvc, metricsSvc,
		cfg.Certificates.ScanInterval, cfg.Certificates.ScanWindow, logr,
	)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, eventSvc, metricsSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	secured.GET("/users/me", userHandler.Me)
	secured.PUT("/users/me", userHandler.UpdateProfile)
	secured.DELETE("/users/me", userHandler.Deactivate)

	api.GET("/events", eventHandler.ListAvailable)
	api.GET("/events/:id", eventHandler.Detail)

	organizer := secured.Group("")
	organizer.Use(middleware.RequireRoles(models.RoleOrganizer))
	organizer.POST("/events", eventHandler.Create)
	organizer.PUT("/events/:id", eventHandler.Update)
	organizer.DELETE("/events/:id", eventHandler.Delete)
	organizer.GET("/events/mine", eventHandler.ListMine)
	organizer.GET("/events/:id/participants", enrollmentHandler.Participants)
	organizer.POST("/events/:id/certificates/batch", certificateHandler.IssueBatch)
	organizer.GET("/reports/summary", reportHandler.Summary)
	organizer.GET("/reports/events", reportHandler.EventStats)
	organizer.GET("/reports/events/export", reportHandler.ExportCSV)

	secured.POST("/events/:id/enrollments", enrollmentHandler.Enroll)
	secured.DELETE("/events/:id/enrollments", enrollmentHandler.Cancel)
	secured.GET("/enrollments", enrollmentHandler.ListMine)

	secured.POST("/events/:id/certificates", certificateHandler.Request)
	secured.GET("/certificates", certificateHandler.ListMine)
	secured.GET("/certificates/:id/download", certificateHandler.Download)
	secured.POST("/certificates/:id/email", certificateHandler.Email)

	secured.GET("/notifications", notificationHandler.List)
	secured.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	secured.PUT("/notifications/:id/read", notificationHandler.MarkRead)
	secured.PUT("/notifications/read-all", notificationHandler.MarkAllRead)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Certificates.ScanEnabled {
		scanner.Start(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	scanner.Stop()
}
