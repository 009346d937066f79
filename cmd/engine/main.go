package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/adapters"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/batch"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/condition"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/consumer"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/credits"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/dispatch"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/executor"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/graph"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/handlers"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/metrics"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/routes"
	"github.com/chigozzdevv/zecflow-sub000/common/cache"
	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/db"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/queue"
	"github.com/chigozzdevv/zecflow-sub000/common/ratelimit"
	"github.com/chigozzdevv/zecflow-sub000/common/redis"
	"github.com/chigozzdevv/zecflow-sub000/common/repository"
	"github.com/chigozzdevv/zecflow-sub000/common/server"
)

const serviceName = "engine"

// runWorkers is the number of concurrent run executors per instance
const runWorkers = 8

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	database, err := db.New(ctx, cfg, log)
	if err != nil {
		log.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	redisClient, err := redis.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Repositories
	workflowRepo := repository.NewWorkflowRepository(database)
	blockRepo := repository.NewBlockRepository(database)
	connectorRepo := repository.NewConnectorRepository(database)
	runRepo := repository.NewRunRepository(database)
	ledgerRepo := repository.NewLedgerRepository(database)

	// Infrastructure
	memCache := cache.NewMemoryCache(log)
	defer memCache.Close()
	graphCache := cache.NewGraphCache(memCache, 10*time.Minute)

	runQueue := queue.NewMemoryQueue(log)
	defer runQueue.Close()

	engineMetrics := metrics.New(prometheus.DefaultRegisterer)

	var limiter executor.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redisClient, cfg.RateLimit.RunsPerMinute, time.Minute, log)
	}

	// External adapters
	nillion := adapters.NewNillionClient(cfg.Adapters, log)
	nilai := adapters.NewNilaiClient(cfg.Adapters, log)
	zcash := adapters.NewZcashClient(cfg.Adapters, log)
	nildb := adapters.NewNildbClient(cfg.Adapters, log)
	httpAdapter := adapters.NewHTTPAdapter(cfg.Adapters.HTTPTimeout, log)

	dispatcher := dispatch.NewDispatcher(&dispatch.Adapters{
		MPC:      nillion,
		LLM:      nilai,
		Transfer: zcash,
		State:    nildb,
		HTTP:     httpAdapter,
	}, log)

	// Engine core
	filterEval := condition.NewEvaluator()
	materializer := graph.NewMaterializer(blockRepo, connectorRepo, log)
	creditPlanner := credits.NewPlanner(ledgerRepo, cfg.Credits.BaseRunCost, log)
	batchPlanner := batch.NewPlanner(nillion, log)

	runExecutor := executor.New(&executor.Opts{
		Workflows: workflowRepo,
		Runs:      runRepo,
		Builder:   materializer,
		Graphs:    graphCache,
		Credits:   creditPlanner,
		Dispatch:  dispatcher,
		Batches:   batchPlanner,
		Filter:    filterEval,
		Cancel:    redisClient,
		Limiter:   limiter,
		Metrics:   engineMetrics,
		Logger:    log,
	})

	startWorkers(ctx, runQueue, runExecutor, log)

	// Stream trigger path
	runConsumer := consumer.NewRunRequestConsumer(redisClient, runRepo, runQueue, cfg, log)
	go func() {
		if err := runConsumer.Start(ctx); err != nil {
			log.Error("run consumer stopped", "error", err)
		}
	}()

	// HTTP surface
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	runHandler := handlers.NewRunHandler(runRepo, workflowRepo, runQueue, redisClient, log)
	workflowHandler := handlers.NewWorkflowHandler(workflowRepo, blockRepo, materializer, filterEval, log)
	creditHandler := handlers.NewCreditHandler(ledgerRepo, log)
	healthHandler := handlers.NewHealthHandler(database, serviceName)
	routes.Register(e, runHandler, workflowHandler, creditHandler, healthHandler)

	log.Info("starting engine", "port", cfg.Service.Port, "environment", cfg.Service.Environment)
	if err := server.New(serviceName, cfg.Service.Port, e, log).Start(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// startWorkers drains the run queue with a fixed-size worker pool. Each
// message carries one run id; each run executes on exactly one worker.
func startWorkers(ctx context.Context, q queue.Queue, exec *executor.Executor, log *logger.Logger) {
	for i := 0; i < runWorkers; i++ {
		worker := i
		_ = q.Subscribe(ctx, consumer.RunQueueTopic, func(ctx context.Context, key string, value []byte) error {
			runID, err := uuid.Parse(string(value))
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", value, err)
			}
			log.Debug("worker picked up run", "worker", worker, "run_id", runID)
			return exec.Execute(ctx, runID)
		})
	}
}
