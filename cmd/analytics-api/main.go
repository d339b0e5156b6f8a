package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ucu-dw/ucu-analytics-api/api/swagger"
	"github.com/ucu-dw/ucu-analytics-api/internal/handler"
	"github.com/ucu-dw/ucu-analytics-api/internal/middleware"
	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/repository"
	"github.com/ucu-dw/ucu-analytics-api/internal/service"
	"github.com/ucu-dw/ucu-analytics-api/pkg/cache"
	"github.com/ucu-dw/ucu-analytics-api/pkg/config"
	"github.com/ucu-dw/ucu-analytics-api/pkg/database"
	"github.com/ucu-dw/ucu-analytics-api/pkg/logger"
	corsmiddleware "github.com/ucu-dw/ucu-analytics-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ucu-dw/ucu-analytics-api/pkg/middleware/requestid"
)

// @title UCU Analytics API
// @version 1.0.0
// @description Role-scoped analytics over the institutional data warehouse
// @BasePath /api/v1
// @schemes http

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

	rbacDB, err := database.NewPostgres(cfg.RBACDB)
	if err != nil {
		logr.Fatal("failed to connect rbac database", zap.Error(err))
	}
	defer rbacDB.Close()

	warehouseDB, err := database.NewPostgres(cfg.Warehouse)
	if err != nil {
		logr.Fatal("failed to connect warehouse database", zap.Error(err))
	}
	defer warehouseDB.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.EnsureSchema(schemaCtx, rbacDB); err != nil {
		cancelSchema()
		logr.Fatal("failed to apply rbac schema", zap.Error(err))
	}
	cancelSchema()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The cache is an accelerator, not a dependency.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	// Repositories.
	credentialRepo := repository.NewCredentialRepository(rbacDB, warehouseDB)
	warehouseRepo := repository.NewWarehouseRepository(warehouseDB)
	auditRepo := repository.NewAuditRepository(rbacDB)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, logr)
	defer auditSvc.Flush()

	authSvc := service.NewAuthService(
		credentialRepo,
		service.DerivedSecretVerifier{Suffix: cfg.Auth.InstitutionSuffix},
		auditSvc,
		nil,
		logr,
		service.AuthConfig{
			Secret:        cfg.JWT.Secret,
			AccessExpiry:  cfg.JWT.AccessExpiry,
			RefreshExpiry: cfg.JWT.RefreshExpiry,
			Issuer:        cfg.JWT.Issuer,
		},
	)
	accountSvc := service.NewAccountService(credentialRepo, auditSvc, cacheRepo, nil, logr, cfg.Auth.BcryptCost)
	dashboardSvc := service.NewDashboardService(warehouseRepo, cacheRepo, metricsSvc, logr, service.DashboardConfig{
		CacheEnabled: cfg.Dashboard.CacheEnabled && redisClient != nil,
		CacheTTL:     cfg.Dashboard.CacheTTL,
	})
	statusSvc := service.NewStatusService(rbacDB, warehouseDB, redisClient, warehouseRepo, metricsSvc, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(dashboardSvc, auditSvc, logr)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(dashboardSvc, exportSvc)
	accountHandler := handler.NewAccountHandler(accountSvc)
	adminHandler := handler.NewAdminHandler(warehouseRepo, auditSvc, statusSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, statusSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	api := r.Group(cfg.APIPrefix)

	api.GET("/health", metricsHandler.Health)
	api.GET("/ready", metricsHandler.Ready)
	api.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		api.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	dashboards := api.Group("/dashboards", middleware.JWT(authSvc))
	dashboards.GET("/stats", dashboardHandler.Stats)
	dashboards.GET("/students-by-department", dashboardHandler.StudentsByDepartment)
	dashboards.GET("/grade-distribution", dashboardHandler.GradeDistribution)
	dashboards.GET("/grades-over-time", dashboardHandler.GradesOverTime)
	dashboards.GET("/attendance-by-course", dashboardHandler.AttendanceByCourse)
	dashboards.GET("/attendance-trends", dashboardHandler.AttendanceTrend)
	dashboards.GET("/payment-status", dashboardHandler.PaymentStatus)
	dashboards.GET("/payment-trends", dashboardHandler.PaymentTrend)
	dashboards.GET("/top-students", dashboardHandler.TopStudents)

	reports := api.Group("/reports", middleware.JWT(authSvc))
	reports.GET("/enrollment-summary", reportHandler.EnrollmentSummary)
	if cfg.Exports.Enabled {
		reports.GET("/enrollment-summary/export", reportHandler.ExportEnrollmentSummary)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleSysadmin))
	admin.GET("/users", accountHandler.List)
	admin.POST("/users", accountHandler.Create)
	admin.GET("/users/:id", accountHandler.Get)
	admin.PUT("/users/:id", accountHandler.Update)
	admin.DELETE("/users/:id", accountHandler.Delete)
	admin.GET("/faculties", adminHandler.Faculties)
	admin.GET("/departments", adminHandler.Departments)
	admin.GET("/audit-logs", adminHandler.AuditLogs)
	admin.GET("/system-status", adminHandler.SystemStatus)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("forced shutdown", zap.Error(err))
	}
}
