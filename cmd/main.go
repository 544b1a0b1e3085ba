package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"template_shop_server/api"
	"template_shop_server/config"
	handlers "template_shop_server/internal/api"
	"template_shop_server/internal/flow"
	"template_shop_server/internal/lead"
	"template_shop_server/internal/logger"
	"template_shop_server/internal/middleware"
)

func main() {
	// .env is optional; it must be loaded before viper reads the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: error loading .env file: %v", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Cannot build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Dependency Initialization ---
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			zl.Fatal("Redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		pingCancel()
		defer redisClient.Close()
		zl.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	}

	generator, err := buildGenerator(cfg, zl)
	if err != nil {
		zl.Fatal("Cannot initialize generation service", zap.Error(err))
	}
	gateway := buildGateway(cfg, zl)
	storeFactory, forgetCart := buildStoreFactory(cfg, redisClient, zl)

	recorder, closeRecorder, err := buildRecorder(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Cannot initialize order ledger", zap.Error(err))
	}
	defer closeRecorder()

	price, _ := cfg.Price()
	services, _ := cfg.FlowServices()
	flowCfg := flow.Config{
		TemplatePrice:        price,
		Currency:             cfg.Currency,
		ClearCartOnStartOver: cfg.ClearCartOnStartOver,
		ExportDir:            cfg.ExportDir,
		Services:             services,
	}
	sessions := flow.NewSessions(
		sessionFactory(flowCfg, generator, gateway, recorder, storeFactory, zl),
		cfg.SessionTTL,
		zl,
		flow.WithMaxSessions(cfg.MaxSessions),
		flow.WithEvictHook(forgetCart),
	)
	go sessions.Run(ctx, time.Minute)

	var leads *lead.Client
	if cfg.FormspreeEndpoint != "" {
		leads = lead.NewClient(cfg.FormspreeEndpoint, 15*time.Second, zl)
	}
	apiHandler := handlers.NewAPIHandler(sessions, leads, zl)

	// --- Rate limiting ---
	var limitStore rateli.Store
	if redisClient != nil {
		limitStore = rateli.RedisStore(&rateli.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       uint(cfg.RatePerMinute),
		})
	} else {
		limitStore = rateli.InMemoryStore(&rateli.InMemoryOptions{
			Rate:  time.Minute,
			Limit: uint(cfg.RatePerMinute),
		})
	}
	generateLimit := api.GenerateRateLimiter(limitStore, zl)

	// --- HTTP Server Setup (Gin) ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapLogger(zl))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	session := middleware.Session(int(cfg.SessionTTL.Seconds()), cfg.AppEnv == "production")
	api.RegisterRoutes(router, apiHandler, session, generateLimit)

	// Applied after the routes so every route is instrumented; also serves /metrics.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 30*time.Second, // generation responses are slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("Starting API server", zap.String("address", cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("API server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zl.Info("Shutting down server", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("API server forced shutdown", zap.Error(err))
	} else {
		zl.Info("API server gracefully stopped")
	}
}
