package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-booking-api/api/swagger"
	"github.com/noah-isme/tutor-booking-api/internal/handler"
	"github.com/noah-isme/tutor-booking-api/internal/middleware"
	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/platform"
	"github.com/noah-isme/tutor-booking-api/internal/repository"
	"github.com/noah-isme/tutor-booking-api/internal/service"
	"github.com/noah-isme/tutor-booking-api/pkg/cache"
	"github.com/noah-isme/tutor-booking-api/pkg/config"
	"github.com/noah-isme/tutor-booking-api/pkg/database"
	"github.com/noah-isme/tutor-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-booking-api/pkg/middleware/requestid"
	"github.com/noah-isme/tutor-booking-api/pkg/storage"
)

// @title Tutor Booking API
// @version 0.1.0
// @description Lesson booking and credit entitlement engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// The slot cache is an optimization; a missing Redis only costs latency.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, slot cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	slotCache := repository.NewSlotCacheRepository(redisClient, logr)

	directory := platform.NewClient(cfg.Platform)

	metricsSvc := service.NewMetricsService()
	slotSvc := service.NewSlotService(availabilityRepo, bookingRepo, profileRepo, slotCache, metricsSvc, cfg.Booking, logr)

	var (
		availabilitySvc *service.AvailabilityService
		bookingSvc      *service.BookingService
	)
	if cfg.Warmer.Enabled {
		warmer := service.NewCacheWarmer(slotCache, slotSvc, cfg.Warmer, logr)
		warmer.Start(context.Background())
		defer warmer.Stop()
		availabilitySvc = service.NewAvailabilityService(availabilityRepo, warmer, logr)
		bookingSvc = service.NewBookingService(bookingRepo, slotSvc, directory, warmer, metricsSvc, cfg.Booking, validate, logr)
	} else {
		availabilitySvc = service.NewAvailabilityService(availabilityRepo, slotCache, logr)
		bookingSvc = service.NewBookingService(bookingRepo, slotSvc, directory, slotCache, metricsSvc, cfg.Booking, validate, logr)
	}
	creditSvc := service.NewCreditService(creditRepo, directory, metricsSvc, validate, logr)

	store, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Export.SignSecret, cfg.Export.DownloadTTL)
	exportSvc := service.NewExportService(creditRepo, store, signer, logr)

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, slotSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	creditHandler := handler.NewCreditHandler(creditSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", readiness(db, logr))
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(cfg.JWT.Secret)

	// Discovery reads stay public; teacher profile pages embed them
	// before sign-in. Writes require a token.
	teachers := api.Group("/teachers")
	{
		teachers.GET("/:id/availability", availabilityHandler.Get)
		teachers.GET("/:id/slots", availabilityHandler.Slots)
		teachers.GET("/:id/slots/range", availabilityHandler.SlotsRange)
		teachers.PUT("/:id/availability", auth,
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), availabilityHandler.Set)
	}

	bookings := api.Group("/bookings", auth)
	{
		bookings.POST("", bookingHandler.Reserve)
		bookings.PUT("/:id/reschedule", bookingHandler.Reschedule)
		bookings.GET("/:id/next-occurrence", bookingHandler.NextOccurrence)
	}

	credits := api.Group("/credits", auth)
	{
		credits.POST("/grant", middleware.RequireRoles(models.RoleAdmin), creditHandler.Grant)
		credits.POST("/spend", creditHandler.Spend)
		credits.GET("/balance", creditHandler.Balance)
		credits.GET("/ledger", creditHandler.Ledger)
		credits.POST("/ledger/export", middleware.RequireRoles(models.RoleAdmin), exportHandler.ExportLedger)
	}

	r.GET("/downloads/:token", exportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func readiness(db interface {
	PingContext(ctx context.Context) error
}, logr *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logr.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
