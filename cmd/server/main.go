/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Catalyst office scheduler server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store and audit batcher
  3. Connect Redis for the regeneration lease (optional)
  4. Build the scheduling engine and API handler
  5. Start the background daily scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: scheduler.db)
                   Use ":memory:" for an in-memory database
  -redis           Redis address for the cross-instance lease; empty
                   disables the lease (single-instance mode)
  -webhook-secret  Shared secret for webhook HMAC verification
  -timezone        Practice timezone for business-date math
  -no-repair       Disable automatic conflict repair

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the daily scheduler, flush the audit batcher
  4. Close database connection
  5. Exit

EXAMPLES:
  # Single instance with a file database
  ./server -db="./data/scheduler.db" -webhook-secret="..."

  # Multi-instance behind a load balancer
  ./server -redis="localhost:6379" -webhook-secret="..."

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background regeneration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/api"
	"github.com/catalyst-eval/catalyst-scheduler/audit"
	"github.com/catalyst-eval/catalyst-scheduler/lock"
	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
	"github.com/catalyst-eval/catalyst-scheduler/store/sheets"
	"github.com/catalyst-eval/catalyst-scheduler/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "scheduler.db", "SQLite database path")
	redisAddr := flag.String("redis", "", "Redis address for the regeneration lease (empty disables)")
	webhookSecret := flag.String("webhook-secret", os.Getenv("WEBHOOK_SECRET"), "shared secret for webhook signatures")
	timezone := flag.String("timezone", "America/New_York", "practice timezone")
	noRepair := flag.Bool("no-repair", false, "disable automatic conflict repair")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	location, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", *timezone), zap.Error(err))
	}

	if *webhookSecret == "" {
		logger.Warn("no webhook secret configured, all webhook deliveries will be rejected")
	}

	// Initialize store
	repo, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	// Audit entries batch through the repository; flushed on shutdown.
	batcher := audit.NewBatcher(repo, logger)
	defer batcher.Close()

	// Optional Redis lease for multi-instance deployments.
	var locker api.Locker
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", *redisAddr), zap.Error(err))
		}
		defer client.Close()
		locker = lock.NewLease(client, logger)
		logger.Info("regeneration lease enabled", zap.String("redis", *redisAddr))
	}

	cached := scheduling.NewCachedRepository(repo, scheduling.DefaultConfigTTL)
	engine := scheduling.NewEngine(cached,
		scheduling.WithLogger(logger),
		scheduling.WithLocation(location),
		scheduling.WithAutoRepair(!*noRepair),
		scheduling.WithAuditSink(batcher))

	// Initialize handler
	handler := api.NewHandler(engine, repo, logger)
	handler.Appointments = repo
	handler.Audit = repo
	handler.Importer = sheets.NewImporter(repo, logger)
	handler.ConfigCache = cached
	handler.WebhookSecret = *webhookSecret

	// Background regeneration under the lease
	scheduler := api.NewDailyScheduler(engine, locker, logger)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.String("timezone", *timezone))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
