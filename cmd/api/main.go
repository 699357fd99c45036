package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mobilierdefrance/sav-ai-platform/internal/ai"
	"github.com/mobilierdefrance/sav-ai-platform/internal/api/router"
	appconfig "github.com/mobilierdefrance/sav-ai-platform/internal/config"
	"github.com/mobilierdefrance/sav-ai-platform/internal/http/handlers"
	"github.com/mobilierdefrance/sav-ai-platform/internal/observability/metrics"
	"github.com/mobilierdefrance/sav-ai-platform/internal/resilience"
	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/workflow"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sav-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	triageMetrics := metrics.NewTriageMetrics(nil)
	circuitMetrics := metrics.NewCircuitMetrics(nil)

	circuits := resilience.NewRegistry(resilience.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		CallTimeout:      cfg.BreakerCallTimeout,
		OnStateChange: func(name string, state resilience.State) {
			circuitMetrics.SetState(name, string(state))
		},
	}, logger)

	// Pending store: memory by default, Redis when instances share the
	// validation window.
	var pending ticket.PendingStore
	var redisClient *redis.Client
	if cfg.UseRedisPending {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		pending = ticket.NewRedisStore(redisClient, cfg.PendingTTL, logger)
		logger.Info("pending tickets stored in redis", "addr", cfg.RedisAddr)
	} else {
		pending = ticket.NewMemoryStore()
	}

	// Durable store is optional: without DATABASE_URL tickets live in the
	// pending store only.
	var durable workflow.DurableStore
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		durable = ticket.NewPostgresStore(pool, logger)
		logger.Info("durable ticket store enabled")
	}

	var assessor workflow.ToneAssessor
	if cfg.AIEnabled && cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		llm := ai.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		assessor = ai.NewGatedAnalyzer(llm, circuits.Get("bedrock"), cfg.BedrockModelID, logger)
		logger.Info("AI tone assessment enabled", "model", cfg.BedrockModelID)
	}

	engine := workflow.NewEngine(workflow.Deps{
		Pending:       pending,
		Durable:       durable,
		Assessor:      assessor,
		Metrics:       triageMetrics,
		Logger:        logger,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		Tickets:        handlers.NewTicketsHandler(engine, circuits, logger),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	logger.Info("server stopped")
}
