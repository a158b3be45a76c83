package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/podforge/api/internal/breaker"
	"github.com/podforge/api/internal/client"
	"github.com/podforge/api/internal/config"
	"github.com/podforge/api/internal/dispatch"
	"github.com/podforge/api/internal/handler"
	"github.com/podforge/api/internal/middleware"
	"github.com/podforge/api/internal/orchestrator"
	"github.com/podforge/api/internal/service"
	"github.com/podforge/api/internal/store"
	"github.com/podforge/api/internal/transcription"
	"github.com/podforge/api/internal/ttsengine"
	ws "github.com/podforge/api/internal/websocket"
	"github.com/podforge/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	transcribeClient := client.NewTranscribeClient(&cfg.Transcription)
	ttsClient := client.NewTTSClient(&cfg.TTS)
	audioProcClient := client.NewAudioProcClient(&cfg.AudioProc)
	workerClient := client.NewWorkerClient(&cfg.Worker)
	opsClient := client.NewOpsClient(&cfg.Ops)

	// Initialize R2 client (optional - continues if not configured)
	var storage client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
			storage = client.NewMockStorageClient()
		} else {
			storage = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, using mock storage")
		storage = client.NewMockStorageClient()
	}

	// One breaker per external dependency, shared defaults
	breakers := breaker.NewRegistry(breaker.Options{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(cfg.Breaker.RecoveryTimeoutSec) * time.Second,
	})

	// Episode persistence
	episodes := store.NewRedisEpisodeStore(redisClient)

	// Transcription coordination: webhook and polling race on PendingJobs
	pending := transcription.NewPendingJobs(0)
	coordinator := transcription.NewCoordinator(transcribeClient, pending, breakers.Get(breaker.ServiceTranscription), transcription.Config{
		WebhookURL:      cfg.Transcription.WebhookURL,
		WebhookWait:     time.Duration(cfg.Transcription.WebhookWaitSec) * time.Second,
		PollInterval:    time.Duration(cfg.Transcription.PollIntervalSec) * time.Second,
		PollMultiplier:  cfg.Transcription.PollMultiplier,
		PollMaxInterval: time.Duration(cfg.Transcription.PollMaxSec) * time.Second,
	})

	// Voice synthesis pipeline
	pipeline := ttsengine.NewPipeline(ttsClient, breakers.Get(breaker.ServiceTTS), ttsengine.Config{
		MaxChunkLen:  cfg.TTS.MaxChunkLen,
		MinChunkLen:  cfg.TTS.MinChunkLen,
		MaxAttempts:  cfg.TTS.MaxAttempts,
		RetryBackoff: time.Duration(cfg.TTS.RetryBackoffSec) * time.Second,
		SampleRate:   cfg.TTS.SampleRate,
		ChunkGap:     time.Duration(cfg.TTS.ChunkGapMs) * time.Millisecond,
		Crossfade:    time.Duration(cfg.TTS.CrossfadeMs) * time.Millisecond,
	})

	// Assembly orchestrator
	orch := orchestrator.New(episodes, coordinator, pipeline, audioProcClient, storage, breakers, hub, orchestrator.Config{
		TranscriptTimeout: time.Duration(cfg.Transcription.TimeoutSec) * time.Second,
		Voice:             cfg.TTS.Voice,
	})

	// Dispatcher: remote worker first, inline fallback, durable queue last
	dispatcher := dispatch.NewDispatcher(workerClient, orch, episodes, breakers.Get(breaker.ServiceWorker), opsClient, dispatch.Config{
		WorkerBaseURL:  cfg.Worker.BaseURL,
		HealthCacheTTL: time.Duration(cfg.Worker.HealthCacheSec) * time.Second,
		AllowInline:    cfg.Worker.AllowInline,
	})
	retryManager := dispatch.NewRetryManager(episodes, workerClient, cfg.Worker.BaseURL, dispatch.RetryConfig{
		TightInterval:   time.Duration(cfg.QueueRetry.TightIntervalSec) * time.Second,
		RelaxedInterval: time.Duration(cfg.QueueRetry.RelaxedIntervalSec) * time.Second,
		TightWindow:     time.Duration(cfg.QueueRetry.TightWindowSec) * time.Second,
	})

	// Initialize services
	episodeService := service.NewEpisodeService(episodes, asynqClient)

	// Initialize handlers
	episodeHandler := handler.NewEpisodeHandler(episodeService, validate)
	webhookHandler := handler.NewWebhookHandler(coordinator, validate)
	taskHandler := handler.NewTaskHandler(orch, pipeline, storage, validate)
	healthHandler := handler.NewHealthHandler(breakers, pending, map[string]bool{
		"transcription": transcribeClient.IsConfigured(),
		"tts":           ttsClient.IsConfigured(),
		"audioproc":     audioProcClient.IsConfigured(),
		"r2":            cfg.R2.AccessKeyID != "",
		"ops":           opsClient.IsConfigured(),
	})

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check, also the peer handoff probe
	app.Get("/health", healthHandler.Check)

	// Provider callbacks
	app.Post("/webhooks/transcription", webhookHandler.Transcription)

	// Remote worker surface, guarded by the shared secret
	tasks := app.Group("/tasks", middleware.WorkerAuth(cfg.Worker.Secret))
	tasks.Post("/assemble", taskHandler.Assemble)
	tasks.Post("/process-chunk", taskHandler.ProcessChunk)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	episodesGroup := api.Group("/episodes")
	episodesGroup.Post("/", rateLimiter.EpisodeLimit(cfg.RateLimit.EpisodesPerHour), episodeHandler.Create)
	episodesGroup.Post("/:id/assemble", rateLimiter.EpisodeLimit(cfg.RateLimit.EpisodesPerHour), episodeHandler.Assemble)
	episodesGroup.Get("/:id", episodeHandler.Status)
	episodesGroup.Post("/:id/decision", rateLimiter.DecisionLimit(cfg.RateLimit.DecisionsPerMin), episodeHandler.Decision)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/episodes/:id", websocket.New(func(c *websocket.Conn) {
		episodeID := c.Params("id")
		hub.HandleConnection(c, episodeID)
	}))

	// Start Asynq worker server and retry scheduler
	go startWorkerServer(cfg, dispatcher, retryManager)
	go startScheduler(cfg)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, dispatcher *dispatch.Dispatcher, retryManager *dispatch.RetryManager) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"assemble": 8,
				"retry":    2,
			},
			LogLevel: asynqLogLevel,
		},
	)

	assembleWorker := worker.NewAssembleWorker(dispatcher)
	retryWorker := worker.NewRetryWorker(retryManager)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeAssemble, assembleWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeQueueRetry, retryWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

// startScheduler periodically enqueues the queued-task retry sweep.
func startScheduler(cfg *config.Config) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		nil,
	)

	_, err := scheduler.Register("@every 1m",
		asynq.NewTask(service.TaskTypeQueueRetry, nil),
		asynq.Queue("retry"),
	)
	if err != nil {
		log.Printf("Failed to register retry sweep: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
