package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/fitbook/trainer-crm-api/api/swagger"
	"github.com/fitbook/trainer-crm-api/internal/handler"
	"github.com/fitbook/trainer-crm-api/internal/middleware"
	"github.com/fitbook/trainer-crm-api/internal/notify"
	"github.com/fitbook/trainer-crm-api/internal/repository"
	"github.com/fitbook/trainer-crm-api/internal/service"
	"github.com/fitbook/trainer-crm-api/pkg/cache"
	"github.com/fitbook/trainer-crm-api/pkg/config"
	"github.com/fitbook/trainer-crm-api/pkg/database"
	"github.com/fitbook/trainer-crm-api/pkg/jobs"
	"github.com/fitbook/trainer-crm-api/pkg/logger"
	corsmiddleware "github.com/fitbook/trainer-crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fitbook/trainer-crm-api/pkg/middleware/requestid"
)

// @title Trainer CRM API
// @version 0.1.0
// @description Appointment booking and scheduling backend for solo trainers
// @BasePath /
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
		// Settings reads fall through to postgres without redis.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	clock := service.SystemClock()

	settingsRepo := repository.NewBusinessSettingsRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	clientRepo := repository.NewClientRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var sender notify.Sender = notify.NoopSender{}
	if cfg.Telegram.BotToken != "" {
		sender = notify.NewTelegramSender(cfg.Telegram, logr)
	}

	tokenSvc := service.NewTokenService(cfg.JWT)
	settingsSvc := service.NewBusinessSettingsService(settingsRepo, cacheRepo, cfg.Booking.SettingsCacheTTL, nil, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, clientRepo, settingsSvc, nil, clock, metricsSvc, logr)
	availabilitySvc := service.NewAvailabilityService(appointmentRepo, settingsSvc, cfg.Booking.MaxDurationMinutes, logr)
	reminderSvc := service.NewReminderService(settingsRepo, appointmentRepo, clientRepo, reminderRepo, sender, clock, cfg.Reminder.JitterBuffer, metricsSvc, logr)
	clientSvc := service.NewClientService(clientRepo, nil, logr)
	exportSvc := service.NewExportService(appointmentRepo, clientRepo, logr)

	settingsHandler := handler.NewBusinessSettingsHandler(settingsSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc, exportSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	reminderHandler := handler.NewReminderHandler(reminderSvc)
	clientHandler := handler.NewClientHandler(clientSvc)

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

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		api.GET("/business-settings", settingsHandler.Get)
		api.PUT("/business-settings", settingsHandler.Update)

		api.POST("/appointments", appointmentHandler.Create)
		api.GET("/appointments", appointmentHandler.ListDay)
		api.GET("/appointments/export", appointmentHandler.Export)
		api.GET("/appointments/:id", appointmentHandler.Get)
		api.PUT("/appointments/:id", appointmentHandler.Update)
		api.PATCH("/appointments/:id", appointmentHandler.Update)
		api.DELETE("/appointments/:id", appointmentHandler.Cancel)
		api.POST("/appointments/:id/attendance", appointmentHandler.SetAttendance)

		api.GET("/availability/slots", availabilityHandler.Slots)
		api.GET("/availability/durations", availabilityHandler.Durations)

		api.POST("/reminders/dispatch", reminderHandler.Dispatch)

		api.GET("/clients", clientHandler.List)
		api.GET("/clients/:id", clientHandler.Get)
		api.POST("/clients", clientHandler.Create)
	}

	if cfg.Reminder.Enabled {
		startReminderLoop(cfg.Reminder, reminderSvc, logr)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// startReminderLoop runs reminder dispatch on a fixed interval through the
// worker queue, so a slow telegram round-trip never stalls the ticker.
func startReminderLoop(cfg config.ReminderConfig, reminderSvc *service.ReminderService, logr *zap.Logger) {
	queue := jobs.NewQueue("reminders", func(ctx context.Context, job jobs.Job) error {
		summary, err := reminderSvc.RunOnce(ctx)
		if err != nil {
			return err
		}
		logr.Sugar().Infow("reminder batch finished",
			"sent", len(summary.Sent), "skipped", summary.Skipped, "failed", summary.Failed)
		return nil
	}, jobs.QueueConfig{Workers: cfg.Workers, Logger: logr})
	queue.Start(context.Background())

	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := queue.Enqueue(jobs.Job{Type: "reminder_dispatch"}); err != nil {
				logr.Sugar().Warnw("failed to enqueue reminder batch", "error", err)
			}
		}
	}()
}
