package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/campuscore/campus-api/internal/handler"
	"github.com/campuscore/campus-api/internal/middleware"
	"github.com/campuscore/campus-api/internal/models"
	"github.com/campuscore/campus-api/internal/repository"
	"github.com/campuscore/campus-api/internal/service"
	"github.com/campuscore/campus-api/pkg/cache"
	"github.com/campuscore/campus-api/pkg/config"
	"github.com/campuscore/campus-api/pkg/database"
	"github.com/campuscore/campus-api/pkg/logger"
	corsmiddleware "github.com/campuscore/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuscore/campus-api/pkg/middleware/requestid"
)

// @title Campus Core API
// @version 1.0.0
// @description Enrollment and grading service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Catalog caching degrades to live reads without redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, metricsSvc, validate, logr)
	gradingSvc := service.NewGradingService(enrollmentRepo, auditRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheRepo, cfg.Catalog, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradingSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, enrollmentSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, enrollmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api.GET("/me", studentHandler.Me)

	courses := api.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", admin, courseHandler.Create)
		courses.PUT("/:id/capacity", admin, courseHandler.UpdateCapacity)
		courses.GET("/:id/roster", staff, courseHandler.Roster)
		courses.GET("/:id/audit-log", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RoleAnalyst), gradeHandler.AuditTrail)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), enrollmentHandler.Apply)
		enrollments.GET("/:studentId/:courseId", enrollmentHandler.Get)
		enrollments.PUT("/:studentId/:courseId/status", staff, enrollmentHandler.Transition)
		enrollments.PUT("/:studentId/:courseId/score", staff, gradeHandler.Grade)
		enrollments.GET("/:studentId/:courseId/score-history", staff, gradeHandler.ScoreHistory)
		enrollments.DELETE("/:studentId/:courseId", admin, enrollmentHandler.Delete)
	}

	students := api.Group("/students")
	{
		students.POST("", admin, studentHandler.Create)
		students.GET("/:id", studentHandler.Get)
		students.GET("/:id/enrollments", studentHandler.Enrollments)
		students.DELETE("/:id", admin, studentHandler.Delete)
	}

	if cfg.Enrollment.ReconcileEnabled {
		api.POST("/admin/reconcile-enrollments", admin, enrollmentHandler.Reconcile)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
