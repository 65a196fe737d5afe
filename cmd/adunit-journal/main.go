package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/personal/adunit-lifecycle/internal/application/service"
	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/cache"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/adunit-lifecycle/migrations"
	"github.com/personal/adunit-lifecycle/pkg/config"
	mylogger "github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// JournalConsumer copies lifecycle entries announced on Redis into PostgreSQL
type JournalConsumer struct {
	source   *cache.RedisJournal
	store    *persistence.PostgresJournalRepository
	writer   *service.JournalService
	logger   *mylogger.Logger
	config   *config.Config
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewJournalConsumer creates a new JournalConsumer
func NewJournalConsumer(source *cache.RedisJournal, store *persistence.PostgresJournalRepository, logger *mylogger.Logger, cfg *config.Config) *JournalConsumer {
	return &JournalConsumer{
		source:   source,
		store:    store,
		writer:   service.NewJournalService(store, nil, logger, cfg.Journal.BufferSize, cfg.Journal.WorkerCount),
		logger:   logger,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start starts the subscription and the storage workers
func (c *JournalConsumer) Start(ctx context.Context) error {
	c.writer.Start(ctx)

	c.wg.Add(1)
	go c.consume(ctx)

	c.wg.Add(1)
	go c.reportStats(ctx)

	return nil
}

// Stop stops consuming and flushes buffered entries
func (c *JournalConsumer) Stop() {
	c.logger.Info("Stopping journal consumer...")

	close(c.stopChan)
	c.wg.Wait()
	c.writer.Stop()

	c.logger.Info("Journal consumer stopped")
}

// consume resubscribes with a backoff until stopped
func (c *JournalConsumer) consume(ctx context.Context) {
	defer c.wg.Done()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-subCtx.Done():
		}
	}()

	backoff := time.Second
	for {
		err := c.source.Subscribe(subCtx, c.handle, func(err error) {
			c.logger.WithError(err).Warn("Skipping journal message")
		})
		if subCtx.Err() != nil {
			return
		}

		c.logger.WithError(err).Errorf("Journal subscription lost, retrying in %s", backoff)
		monitoring.RecordSystemError("journal_consumer", "error")
		select {
		case <-subCtx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *JournalConsumer) handle(e *journal.Entry) {
	if err := c.writer.Enqueue(e); err != nil {
		c.logger.WithError(err).WithField("entryId", e.ID).Warn("Dropping journal entry")
	}
}

// reportStats periodically logs table statistics
func (c *JournalConsumer) reportStats(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			stats, err := c.store.GetStats(ctx)
			if err != nil {
				c.logger.WithError(err).Error("Failed to read journal statistics")
				continue
			}
			c.logger.WithFields(mylogger.Fields{
				"totalEntries": stats.TotalEntries,
				"byCause":      stats.EntriesByCause,
				"openConns":    stats.OpenConnections,
			}).Info("Journal statistics")
			c.prune(ctx)
		}
	}
}

// prune drops entries past the retention window
func (c *JournalConsumer) prune(ctx context.Context) {
	hours := c.config.Journal.RetentionHours
	if hours <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	deleted, err := c.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		c.logger.WithError(err).Error("Failed to prune journal")
		return
	}
	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("Pruned old journal entries")
	}
}

func main() {
	// Handle health check command
	if len(os.Args) > 1 && os.Args[1] == "-health-check" {
		os.Exit(0)
	}

	configPath := flag.String("config", "", "Configuration file (defaults to ./configs/config.yaml)")
	migrate := flag.Bool("migrate", true, "Apply pending migrations at startup")
	flag.Parse()

	// Initialize configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	myLogger := mylogger.New(cfg.LogLevel, cfg.Environment)

	// Initialize database connection
	db, err := initDatabase(cfg)
	if err != nil {
		myLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if *migrate {
		if err := migrations.Up(db); err != nil {
			myLogger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg)
	if err != nil {
		myLogger.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redisClient.Close()

	source := cache.NewRedisJournal(redisClient, cfg.Journal.Channel, int64(cfg.Journal.BufferSize)*10)
	store := persistence.NewPostgresJournalRepository(db)
	consumer := NewJournalConsumer(source, store, myLogger, cfg)

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		myLogger.Fatalf("Failed to start consumer: %v", err)
	}

	var metricsServer *http.Server
	if cfg.Monitoring.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Monitoring.Metrics.Path, monitoring.PrometheusHandler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}
		go func() {
			myLogger.Infof("Serving metrics on port %d", cfg.Server.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				myLogger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	myLogger.Info("Shutting down journal consumer...")
	consumer.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	myLogger.Info("Journal consumer exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
