package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/personal/adunit-lifecycle/internal/application/service"
	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/cache"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/external"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/adunit-lifecycle/internal/interfaces/http/handlers"
	"github.com/personal/adunit-lifecycle/pkg/config"
	"github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

func main() {
	// Handle health check command
	if len(os.Args) > 1 && os.Args[1] == "-health-check" {
		os.Exit(0)
	}

	configPath := flag.String("config", "", "Configuration file (defaults to ./configs/config.yaml)")
	allow := flag.Bool("allow", true, "Open the ad gate at startup")
	flag.Parse()

	// Initialize configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Environment)

	unitIDs, err := service.ParseUnitIDs(cfg.Provider.UnitIDs)
	if err != nil {
		logger.Fatalf("Invalid provider configuration: %v", err)
	}

	// Host environment and provider
	env := external.NewStaticEnvironment(true, environment.Geometry{
		Width:       1080,
		Height:      1920,
		Orientation: environment.OrientationPortrait,
	})
	provider := external.NewSimulatedProvider(external.SimulatedProviderConfig{
		FillRate:    cfg.Provider.FillRate,
		LoadLatency: time.Duration(cfg.Provider.LoadLatencyMS) * time.Millisecond,
		InitLatency: time.Duration(cfg.Provider.InitLatencyMS) * time.Millisecond,
	}, env)

	// Journal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// journalRepo serves reads; entries are written through either
	// journalWriter or journalPublisher.
	var journalRepo, journalWriter journal.Repository
	var journalPublisher journal.Publisher
	if cfg.Journal.Enabled {
		redisClient, err := initRedis(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer redisClient.Close()

		redisJournal := cache.NewRedisJournal(redisClient, cfg.Journal.Channel, int64(cfg.Journal.BufferSize)*10)
		journalRepo = redisJournal
		journalPublisher = redisJournal
		logger.WithField("channel", cfg.Journal.Channel).Info("Publishing lifecycle journal to Redis")
	} else {
		memoryJournal := persistence.NewMemoryJournalRepository(cfg.Journal.BufferSize * 10)
		journalRepo = memoryJournal
		journalWriter = memoryJournal
		logger.Info("Keeping lifecycle journal in memory")
	}

	// Lifecycle core
	manager := service.NewManager(provider, persistence.NewMemoryUnitRepository(), logger, unitIDs)
	journalService := service.NewJournalService(journalWriter, journalPublisher, logger, cfg.Journal.BufferSize, cfg.Journal.WorkerCount)
	manager.AddObserver(journalService.Observer(manager))
	journalService.Start(ctx)

	driver := service.NewDriver(manager, env, service.NewDriverConfig(cfg.Scheduler), logger)
	runner := service.NewRunner(driver, cfg.Scheduler.FrameInterval(), logger)
	if *allow {
		manager.Submit(func() { manager.SetAllow(true) })
	}
	if err := runner.Start(ctx); err != nil {
		logger.Fatalf("Failed to start tick loop: %v", err)
	}

	// Initialize services and handlers
	unitService := service.NewUnitService(manager, driver, env, journalRepo)
	unitHandler := handlers.NewUnitHandler(unitService)
	hostHandler := handlers.NewHostHandler(unitService, "adunit-host")

	// Setup HTTP server
	router := setupRouter(cfg, logger)
	v1 := router.Group("/api/v1")
	hostHandler.RegisterRoutes(router, v1)
	unitHandler.RegisterRoutes(v1)
	if cfg.Monitoring.Metrics.Enabled {
		router.GET(cfg.Monitoring.Metrics.Path, gin.WrapH(monitoring.PrometheusHandler()))
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Starting ad unit host on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down host...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Tear the units down on the tick goroutine before the loop stops
	if err := manager.Call(shutdownCtx, func() error {
		manager.Destroy(service.AllGroups)
		return nil
	}); err != nil {
		logger.WithError(err).Warn("Failed to destroy units")
	}
	runner.Stop()
	journalService.Stop()

	logger.Info("Host exited")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		PoolSize:        cfg.Redis.PoolSize,
		ConnMaxIdleTime: time.Duration(cfg.Redis.IdleTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
		DialTimeout:     5 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

func setupRouter(cfg *config.Config, logger *logger.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(logger))
	router.Use(monitoring.MetricsMiddleware())

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: logger.Writer(),
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[%s] %s %s %d %s %s\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.ClientIP,
			)
		},
	})
}
