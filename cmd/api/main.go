package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mentorhub/mentorhub-api/api/swagger"
	"github.com/mentorhub/mentorhub-api/internal/handler"
	"github.com/mentorhub/mentorhub-api/internal/middleware"
	"github.com/mentorhub/mentorhub-api/internal/models"
	"github.com/mentorhub/mentorhub-api/internal/repository"
	"github.com/mentorhub/mentorhub-api/internal/service"
	"github.com/mentorhub/mentorhub-api/pkg/cache"
	"github.com/mentorhub/mentorhub-api/pkg/clock"
	"github.com/mentorhub/mentorhub-api/pkg/config"
	"github.com/mentorhub/mentorhub-api/pkg/database"
	"github.com/mentorhub/mentorhub-api/pkg/jobs"
	"github.com/mentorhub/mentorhub-api/pkg/logger"
	corsmiddleware "github.com/mentorhub/mentorhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mentorhub/mentorhub-api/pkg/middleware/requestid"
)

// @title MentorHub API
// @version 1.0.0
// @description Scheduling core for mentoring sessions
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, slot cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	clk := clock.System()

	// Repositories.
	availabilityRepo := repository.NewAvailabilityRepository(db)
	exceptionRepo := repository.NewExceptionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	commitmentRepo := repository.NewCommitmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Slots.CacheTTL, logr, cfg.Slots.CacheEnabled && redisClient != nil)
	notificationService := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)
	notificationService.Start(ctx)
	defer notificationService.Stop()

	rewardLedger := service.NewLogRewardLedger(logr)

	authService := service.NewAuthService(cfg.JWT.Secret, logr)
	slotService := service.NewSlotService(availabilityRepo, exceptionRepo, bookingRepo, cacheService, metricsService, clk, cfg.Slots.CacheTTL, cfg.Slots.MaxRangeDays, validate, logr)
	bookingService := service.NewBookingService(db, bookingRepo, availabilityRepo, cacheService, metricsService, notificationService, clk, cfg.Booking.PendingTTL, validate, logr)
	commitmentService := service.NewCommitmentService(db, commitmentRepo, bookingRepo, cacheService, notificationService, clk, cfg.Programs.MaxMissedAllowed, cfg.Programs.DisciplineDurationDays, validate, logr)
	attendanceService := service.NewAttendanceService(db, bookingRepo, commitmentRepo, rewardLedger, notificationService, metricsService, clk, validate, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, exceptionRepo, bookingRepo, cacheService, clk, validate, logr)
	taskService := service.NewTaskService(db, taskRepo, notificationService, clk, cfg.Tasks.PostponeThreshold, validate, logr)
	exportService := service.NewExportService(commitmentRepo, bookingRepo, logr)

	bookingService.StartSweeper(ctx, cfg.Booking.SweepInterval)
	commitmentService.StartSweeper(ctx, cfg.Programs.SweepInterval)

	// Handlers.
	slotHandler := handler.NewSlotHandler(slotService)
	bookingHandler := handler.NewBookingHandler(bookingService, attendanceService)
	commitmentHandler := handler.NewCommitmentHandler(commitmentService, exportService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	taskHandler := handler.NewTaskHandler(taskService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authService))
	{
		api.GET("/mentors/:id/slots", slotHandler.Resolve)

		api.POST("/bookings", middleware.RequireRoles(models.RoleAdmin, models.RoleParticipant), bookingHandler.Reserve)
		api.GET("/bookings", bookingHandler.List)
		api.GET("/bookings/:id", bookingHandler.Get)
		api.POST("/bookings/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleMentor), bookingHandler.MarkAttendance)

		api.POST("/commitments/program", middleware.RequireRoles(models.RoleAdmin, models.RoleParticipant), commitmentHandler.EnrollProgram)
		api.POST("/commitments/discipline", middleware.RequireRoles(models.RoleAdmin, models.RoleParticipant), commitmentHandler.SubscribeDiscipline)
		api.GET("/commitments/:id", commitmentHandler.Get)
		api.POST("/commitments/:id/withdraw", middleware.RequireRoles(models.RoleAdmin, models.RoleParticipant), commitmentHandler.Withdraw)
		api.GET("/commitments/:id/sessions", commitmentHandler.Sessions)
		api.GET("/commitments/:id/attendance/export", commitmentHandler.ExportAttendance)

		api.PUT("/mentors/:id/availability", middleware.RBAC("ADMIN", "SELF"), availabilityHandler.ReplaceWindows)
		api.GET("/mentors/:id/availability", availabilityHandler.ListWindows)
		api.DELETE("/availability/windows/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleMentor), availabilityHandler.DeleteWindow)
		api.POST("/mentors/:id/exceptions", middleware.RBAC("ADMIN", "SELF"), availabilityHandler.CreateException)
		api.GET("/mentors/:id/exceptions", availabilityHandler.ListExceptions)
		api.DELETE("/exceptions/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleMentor), availabilityHandler.DeleteException)

		api.POST("/tasks/:id/postpone", taskHandler.Postpone)
		api.GET("/tasks/:id/alerts", middleware.RequireRoles(models.RoleAdmin, models.RoleMentor), taskHandler.Alerts)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
