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
	"go.uber.org/zap"

	_ "github.com/noah-isme/markaz-go-api/api/swagger"
	"github.com/noah-isme/markaz-go-api/internal/handler"
	"github.com/noah-isme/markaz-go-api/internal/middleware"
	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/internal/repository"
	"github.com/noah-isme/markaz-go-api/internal/service"
	"github.com/noah-isme/markaz-go-api/pkg/cache"
	"github.com/noah-isme/markaz-go-api/pkg/config"
	"github.com/noah-isme/markaz-go-api/pkg/database"
	"github.com/noah-isme/markaz-go-api/pkg/jobs"
	"github.com/noah-isme/markaz-go-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/markaz-go-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/markaz-go-api/pkg/middleware/requestid"
	"github.com/noah-isme/markaz-go-api/pkg/storage"
)

// @title Markaz Portal API
// @version 1.0.0
// @description Academic records portal: subjects, marks entry, performance resolution and async reports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	subjectRepo := repository.NewSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	markRepo := repository.NewMarkRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheEnabled := cfg.Views.CacheEnabled && redisClient != nil
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Views.CacheTTL, logr, cacheEnabled)

	classifier := service.NewLevelClassifier(cfg.Performance)
	performanceSvc := service.NewPerformanceService(studentRepo, markRepo, subjectRepo, classifier, metricsSvc, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, studentRepo, cacheSvc, cfg.Views.CacheTTL, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, validate, logr)
	marksSvc := service.NewMarksService(markRepo, subjectRepo, studentRepo, performanceSvc, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, performanceSvc, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL:      cfg.Dashboard.CacheTTL,
		TopPerformers: cfg.Dashboard.TopPerformers,
	})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(performanceSvc, subjectRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, metricsSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, metricsSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(ctx)
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, performanceSvc)
	marksHandler := handler.NewMarksHandler(marksSvc)
	performanceHandler := handler.NewPerformanceHandler(performanceSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, logr, authSvc, authHandler, subjectHandler, studentHandler, marksHandler, performanceHandler, dashboardHandler, reportHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	reportQueue.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	logr *zap.Logger,
	authSvc *service.AuthService,
	authHandler *handler.AuthHandler,
	subjectHandler *handler.SubjectHandler,
	studentHandler *handler.StudentHandler,
	marksHandler *handler.MarksHandler,
	performanceHandler *handler.PerformanceHandler,
	dashboardHandler *handler.DashboardHandler,
	reportHandler *handler.ReportHandler,
) {
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	// Downloads carry their own signed token, no session required.
	api.GET("/reports/download/:token", reportHandler.Download)

	secured := api.Group("", middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleStudent)
	selfOrStaff := middleware.RBAC(string(models.RoleAdmin), string(models.RoleFaculty), "SELF")

	subjects := secured.Group("/subjects")
	subjects.GET("", anyRole, subjectHandler.List)
	subjects.GET("/assignments", anyRole, subjectHandler.Assignments)
	subjects.GET("/assignments/by-faculty", anyRole, subjectHandler.AssignmentsByFaculty)
	subjects.GET("/:id", anyRole, subjectHandler.Get)
	subjects.POST("/resolve", staff, subjectHandler.Resolve)
	subjects.POST("", staff, middleware.Audit(logr, "subjects"), subjectHandler.Create)
	subjects.PUT("/:id", staff, middleware.Audit(logr, "subjects"), subjectHandler.Update)
	subjects.DELETE("/:id", staff, middleware.Audit(logr, "subjects"), subjectHandler.Delete)
	subjects.POST("/bulk-delete", staff, middleware.Audit(logr, "subjects"), subjectHandler.BulkDelete)
	subjects.POST("/:id/enrollments", staff, middleware.Audit(logr, "enrollments"), subjectHandler.Enroll)
	subjects.DELETE("/:id/enrollments/:studentId", staff, middleware.Audit(logr, "enrollments"), subjectHandler.Unenroll)

	students := secured.Group("/students")
	students.GET("", staff, studentHandler.List)
	students.GET("/classes", staff, studentHandler.Classes)
	students.GET("/:id", selfOrStaff, studentHandler.Get)
	students.GET("/:id/scorecard", selfOrStaff, studentHandler.Scorecard)
	students.POST("", staff, middleware.Audit(logr, "students"), studentHandler.Create)
	students.PUT("/:id", staff, middleware.Audit(logr, "students"), studentHandler.Update)
	students.DELETE("/:id", staff, middleware.Audit(logr, "students"), studentHandler.Delete)

	marks := secured.Group("/marks", staff, middleware.Audit(logr, "marks"))
	marks.POST("", marksHandler.Enter)
	marks.POST("/bulk", marksHandler.BulkEnter)
	marks.DELETE("/:studentId/:subjectId", marksHandler.Remove)

	performance := secured.Group("/performance", staff)
	performance.GET("/classes/:class", performanceHandler.ClassResults)
	performance.GET("/classes/:class/stats", performanceHandler.ClassStats)
	performance.GET("/distribution", performanceHandler.Distribution)
	performance.GET("/top", performanceHandler.TopPerformers)

	dashboard := secured.Group("/dashboard", staff)
	dashboard.GET("/overview", dashboardHandler.Overview)
	dashboard.GET("/system", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.System)

	reports := secured.Group("/reports", staff)
	reports.POST("", middleware.Audit(logr, "reports"), reportHandler.Create)
	reports.GET("", reportHandler.List)
	reports.GET("/:id", reportHandler.Status)
}
