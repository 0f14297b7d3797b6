package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbmuseum/arb/backend/internal/alerts"
	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/cache"
	"github.com/arbmuseum/arb/backend/internal/config"
	"github.com/arbmuseum/arb/backend/internal/database"
	"github.com/arbmuseum/arb/backend/internal/email"
	"github.com/arbmuseum/arb/backend/internal/handlers"
	"github.com/arbmuseum/arb/backend/internal/logger"
	"github.com/arbmuseum/arb/backend/internal/metrics"
	"github.com/arbmuseum/arb/backend/internal/middleware"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/arbmuseum/arb/backend/internal/queue"
	"github.com/arbmuseum/arb/backend/internal/scoring"
	"github.com/arbmuseum/arb/backend/internal/storage"
	"github.com/arbmuseum/arb/backend/internal/telemetry"
	"github.com/arbmuseum/arb/backend/internal/validation"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== ARB backend starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	if len(cfg.JWTSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	// Tracing
	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(ctx, tp)
	}()

	// Database
	if err := database.Initialize(cfg.DatabaseURL, !cfg.IsProduction()); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()
	if tp != nil {
		if err := database.DB.Use(telemetry.GORMTracingPlugin()); err != nil {
			logger.WarnWithFields("Failed to register GORM tracing", err)
		}
	}
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}
	db := database.DB

	validator := validation.NewServiceValidator()
	validator.Register("database", func(context.Context) error { return database.Health() })

	metrics.Initialize()
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if sqlDB, err := db.DB(); err == nil {
		go metrics.CollectDBStats(bgCtx, sqlDB, 15*time.Second)
	}

	// Redis is optional: without it the score cache and rate limits fall back
	var redisClient *cache.RedisClient
	if cfg.RedisEnabled() {
		redisClient, err = cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, running without cache", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			validator.Register("redis", redisClient.Ping)
		}
	}

	// Promo delivery
	var sender email.Sender = email.LogSender{}
	if cfg.SESFromEmail != "" && cfg.AWSRegion != "" {
		ses, err := email.NewSESSender(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.PublicBaseURL)
		if err != nil {
			logger.WarnWithFields("SES unavailable, promo emails will only be logged", err)
		} else {
			sender = ses
		}
	}
	promoQueue := queue.NewPromoQueue(db, sender, queue.Options{
		Workers:    cfg.NotifierWorkers,
		MaxRetries: cfg.NotifierMaxRetries,
		BaseDelay:  cfg.NotifierBaseDelay,
	})
	promoQueue.Start()
	defer promoQueue.Stop()
	if n, err := promoQueue.EnqueueUnsent(bgCtx, 500); err != nil {
		logger.WarnWithFields("Failed to requeue unsent promo codes", err)
	} else if n > 0 {
		logger.Log.Info("Requeued unsent promo codes", zap.Int("count", n))
	}

	evaluator := alerts.NewEvaluator(alerts.NewAlertManager(), promoQueue)
	evaluator.InitializeDefaultRules()
	go evaluator.Run(bgCtx, time.Minute)

	// Progress engine
	engine := progress.NewEngine(db, progress.Config{FirstViewPoints: cfg.FirstViewPoints})
	engine.SetNotifier(promoQueue)
	if redisClient != nil {
		engine.SetScoreCache(cache.NewScoreCache(redisClient, cfg.ScoreCacheTTL))
	}

	// Video storage
	var store storage.VideoStore
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3VideoStore(cfg.AWSRegion, cfg.S3Bucket, cfg.CDNBaseURL)
		if err != nil {
			logger.FatalWithFields("Failed to initialize S3 video store", err)
		}
		validator.Register("s3", s3Store.CheckBucketAccess)
		store = s3Store
	} else {
		local, err := storage.NewLocalVideoStore(cfg.MediaDir, cfg.PublicBaseURL+"/media")
		if err != nil {
			logger.FatalWithFields("Failed to initialize local video store", err)
		}
		store = local
	}
	uploader := scoring.NewUploader(db, store,
		scoring.NewService(db, cfg.PointsPerVideo, cfg.FirstUploadBonus),
		scoring.UploadLimits{AllowedMIME: cfg.AllowedVideoMIME, MaxBytes: cfg.MaxVideoBytes()},
	)

	if err := validator.ValidateServices(bgCtx); err != nil {
		logger.FatalWithFields("Startup checks failed", err)
	}

	authService := auth.NewService(db, cfg.JWTSecret, cfg.AccessTokenTTL)

	h := handlers.NewHandlers(db, engine)
	h.SetAuthService(authService)
	h.SetUploader(uploader, cfg.MaxVideoBytes())
	h.SetHealthMessage(cfg.HealthMessage)
	h.SetAlertEvaluator(evaluator)

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	if tp != nil {
		r.Use(middleware.TracingMiddleware(cfg.ServiceName)...)
	}
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.LocaleMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/media"})))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AllowCredentials = cfg.CORSAllowCredentials
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.LocaleHeader, middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	routeOpts := handlers.RouteOptions{
		AuthLimit:   middleware.NewRateLimiter(middleware.AuthRateLimitConfig()),
		UploadLimit: middleware.NewRateLimiter(middleware.UploadRateLimitConfig()),
	}
	if redisClient != nil && cfg.RateLimitRequests > 0 {
		routeOpts.ViewLimit = middleware.RedisRateLimitMiddleware(redisClient, "view", cfg.RateLimitRequests, cfg.RateLimitWindow)
		routeOpts.AuthLimit = middleware.RedisRateLimitMiddleware(redisClient, "auth", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	h.RegisterRoutes(r, routeOpts)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.S3Bucket == "" {
		r.Static("/media", cfg.MediaDir)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("Server exited")
}
