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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/faculty-reporting-api/api/swagger"
	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/handler"
	"github.com/noah-isme/faculty-reporting-api/internal/middleware"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/repository"
	"github.com/noah-isme/faculty-reporting-api/internal/service"
	"github.com/noah-isme/faculty-reporting-api/pkg/cache"
	"github.com/noah-isme/faculty-reporting-api/pkg/config"
	"github.com/noah-isme/faculty-reporting-api/pkg/database"
	"github.com/noah-isme/faculty-reporting-api/pkg/jobs"
	"github.com/noah-isme/faculty-reporting-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/faculty-reporting-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/faculty-reporting-api/pkg/middleware/requestid"
	"github.com/noah-isme/faculty-reporting-api/pkg/storage"
)

// @title Faculty Reporting API
// @version 1.0.0
// @description Role-scoped academic reporting backend
// @BasePath /api/v1
// @schemes http

const exportJobType = "report_export"

type exportQueueAdapter struct {
	queue *jobs.Queue
}

func (a *exportQueueAdapter) EnqueueExport(payload service.ExportJobPayload) error {
	return a.queue.Enqueue(jobs.Job{ID: payload.JobID, Type: exportJobType, Payload: payload})
}

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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	guard := authz.NewGuard(db)

	userRepo := repository.NewUserRepository(db)
	streamRepo := repository.NewStreamRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	reportRepo := repository.NewReportRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	streamSvc := service.NewStreamService(streamRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, streamRepo, userRepo, guard, validate, logr)
	classSvc := service.NewClassService(classRepo, streamRepo, courseRepo, guard, validate, logr)
	reportSvc := service.NewReportService(reportRepo, courseRepo, classRepo, guard, userRepo, cacheSvc, validate, logr)
	ratingSvc := service.NewRatingService(ratingRepo, courseRepo, validate, logr)
	complaintSvc := service.NewComplaintService(complaintRepo, courseRepo, guard, userRepo, validate, logr)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Reports:    reportRepo,
		Courses:    courseRepo,
		Classes:    classRepo,
		Complaints: complaintRepo,
		Ratings:    ratingRepo,
		Cache:      cacheSvc,
		Logger:     logr,
		Config:     service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportJobRepo := repository.NewExportJobRepository(db)

		exportQueue = jobs.NewQueue("report-exports", func(ctx context.Context, job jobs.Job) error {
			payload, ok := job.Payload.(service.ExportJobPayload)
			if !ok {
				return fmt.Errorf("unexpected payload type for job %s", job.ID)
			}
			ctx, cancel := database.WithTimeout(ctx, cfg.Database)
			defer cancel()
			return exportSvc.Process(ctx, payload)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})

		exportSvc = service.NewExportService(service.ExportServiceParams{
			Jobs:      exportJobRepo,
			Reports:   reportRepo,
			Storage:   localStorage,
			Signer:    signer,
			Queue:     &exportQueueAdapter{queue: exportQueue},
			Audit:     userRepo,
			Validator: validate,
			Logger:    logr,
			Config: service.ExportConfig{
				APIPrefix: cfg.APIPrefix,
				ResultTTL: cfg.Exports.SignedURLTTL,
			},
		})

		exportQueue.Start(rootCtx)
		defer exportQueue.Stop()

		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					if purged, err := exportSvc.Cleanup(rootCtx, 0); err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
					} else if purged > 0 {
						logr.Sugar().Infow("export cleanup", "purged", purged)
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	streamHandler := handler.NewStreamHandler(streamSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	classHandler := handler.NewClassHandler(classSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	ratingHandler := handler.NewRatingHandler(ratingSvc)
	complaintHandler := handler.NewComplaintHandler(complaintSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Deadline(cfg.Database))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	pl := middleware.RequireRoles(metricsSvc, models.RoleProgramLeader)
	reviewers := middleware.RequireRoles(metricsSvc, models.RolePrincipalLecturer, models.RoleProgramLeader)
	lecturers := middleware.RequireRoles(metricsSvc, models.RoleLecturer)
	students := middleware.RequireRoles(metricsSvc, models.RoleStudent)

	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.POST("/users", pl, middleware.Audit(userRepo, models.AuditActionUserCreate, "user"), userHandler.Create)
	authed.PUT("/users/:id", pl, middleware.Audit(userRepo, models.AuditActionUserUpdate, "user"), userHandler.Update)
	authed.DELETE("/users/:id", pl, middleware.Audit(userRepo, models.AuditActionUserDelete, "user"), userHandler.Delete)

	authed.GET("/streams", streamHandler.List)
	authed.GET("/streams/:id", streamHandler.Get)
	authed.POST("/streams", pl, middleware.Audit(userRepo, models.AuditActionStreamAdmin, "stream"), streamHandler.Create)
	authed.PUT("/streams/:id", pl, middleware.Audit(userRepo, models.AuditActionStreamAdmin, "stream"), streamHandler.Update)
	authed.DELETE("/streams/:id", pl, middleware.Audit(userRepo, models.AuditActionStreamAdmin, "stream"), streamHandler.Delete)

	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:id", courseHandler.Get)
	authed.POST("/courses", pl, middleware.Audit(userRepo, models.AuditActionCourseAdmin, "course"), courseHandler.Create)
	authed.PUT("/courses/:id", pl, middleware.Audit(userRepo, models.AuditActionCourseAdmin, "course"), courseHandler.Update)
	authed.PUT("/courses/:id/lecturer", pl, middleware.Audit(userRepo, models.AuditActionCourseAdmin, "course"), courseHandler.AssignLecturer)
	authed.DELETE("/courses/:id", pl, middleware.Audit(userRepo, models.AuditActionCourseAdmin, "course"), courseHandler.Delete)

	authed.GET("/classes", classHandler.List)
	authed.GET("/classes/:id", classHandler.Get)
	authed.POST("/classes", pl, middleware.Audit(userRepo, models.AuditActionClassAdmin, "class"), classHandler.Create)
	authed.PUT("/classes/:id", pl, middleware.Audit(userRepo, models.AuditActionClassAdmin, "class"), classHandler.Update)
	authed.DELETE("/classes/:id", pl, middleware.Audit(userRepo, models.AuditActionClassAdmin, "class"), classHandler.Delete)
	authed.PUT("/classes/:id/courses/:courseId", pl, middleware.Audit(userRepo, models.AuditActionClassAdmin, "class"), classHandler.LinkCourse)
	authed.DELETE("/classes/:id/courses/:courseId", pl, middleware.Audit(userRepo, models.AuditActionClassAdmin, "class"), classHandler.UnlinkCourse)

	authed.GET("/reports", reportHandler.List)
	authed.GET("/reports/:id", reportHandler.Get)
	authed.GET("/reports/:id/feedback", reportHandler.Feedback)
	authed.POST("/reports", lecturers, reportHandler.Create)
	authed.PUT("/reports/:id", lecturers, reportHandler.Update)
	authed.DELETE("/reports/:id", lecturers, reportHandler.Delete)
	authed.POST("/reports/:id/review", reviewers, reportHandler.Review)

	authed.GET("/ratings", ratingHandler.List)
	authed.POST("/ratings", students, ratingHandler.Submit)
	authed.GET("/ratings/summary", ratingHandler.Summaries)

	authed.GET("/complaints", complaintHandler.List)
	authed.GET("/complaints/:id", complaintHandler.Get)
	authed.POST("/complaints", complaintHandler.Create)
	authed.POST("/complaints/:id/resolve", reviewers, complaintHandler.Resolve)

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard", dashboardHandler.Summary)
	}
	authed.GET("/metrics/summary", pl, metricsHandler.Snapshot)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		authed.POST("/exports", exportHandler.Request)
		authed.GET("/exports", exportHandler.List)
		authed.GET("/exports/:id", exportHandler.Get)
		// Download authenticates through the signed token, not a JWT, so
		// rendered links work from browsers and scripts alike.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
