package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/alveusgg/sanctuary/internal/alert"
	"github.com/alveusgg/sanctuary/internal/api"
	"github.com/alveusgg/sanctuary/internal/calendar"
	"github.com/alveusgg/sanctuary/internal/circuitbreaker"
	"github.com/alveusgg/sanctuary/internal/config"
	"github.com/alveusgg/sanctuary/internal/data"
	"github.com/alveusgg/sanctuary/internal/db"
	"github.com/alveusgg/sanctuary/internal/discord"
	"github.com/alveusgg/sanctuary/internal/observ"
	"github.com/alveusgg/sanctuary/internal/push"
	"github.com/alveusgg/sanctuary/internal/redis"
	"github.com/alveusgg/sanctuary/internal/schedule"
	"github.com/alveusgg/sanctuary/internal/scheduler"
	"github.com/alveusgg/sanctuary/internal/sqs"
	"github.com/alveusgg/sanctuary/internal/twitch"
	"github.com/alveusgg/sanctuary/internal/worker"
	"github.com/alveusgg/sanctuary/internal/youtube"
)

const version = "v1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting sanctuary server",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("version", version),
	)

	static, err := data.Load()
	if err != nil {
		return fmt.Errorf("failed to load static data: %w", err)
	}
	loc := cfg.Location()

	ctx := context.Background()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)

	// Redis backs idempotency, rate limiting and the YouTube cache
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, idempotency, rate limiting and caching disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}

	var (
		idempotencyService *redis.IdempotencyService
		rateLimiter        *redis.RateLimiter
		videoCache         youtube.Cache
	)
	if redisClient != nil {
		defer redisClient.Close()
		idempotencyService = redis.NewIdempotencyService(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  60,
			Window: time.Minute,
		})
		videoCache = redis.NewCache(redisClient, "youtube:latest")
	}

	// Push delivery
	transport := newPushTransport(cfg, logger)
	pipeline := push.NewPipeline(repo, transport, cfg.PushMaxAttempts, push.Presentation{
		DefaultTitle: "Alveus Sanctuary",
		DefaultTag:   "alveus",
		IconURL:      strings.TrimRight(cfg.BaseURL, "/") + "/notification-icon.png",
		BadgeURL:     strings.TrimRight(cfg.BaseURL, "/") + "/notification-badge.png",
		Lang:         cfg.PushLang,
		TextDir:      cfg.PushTextDir,
	}, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		dispatcher push.Dispatcher
		inProcess  *push.InProcessDispatcher
	)
	if cfg.SQSQueueURL != "" {
		sqsClient, err := sqs.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return fmt.Errorf("failed to create sqs client: %w", err)
		}
		dispatcher = sqs.NewProducer(sqsClient, cfg.SQSQueueURL, logger)

		consumer := sqs.NewConsumer(sqsClient, cfg.SQSQueueURL, logger)
		go worker.NewQueueWorker(consumer, pipeline, logger).Start(workerCtx)

		logger.Info("deliveries queued through sqs", zap.String("queue_url", cfg.SQSQueueURL))
	} else {
		inProcess = push.NewInProcessDispatcher(pipeline, push.DeliveryTimeout, logger)
		dispatcher = inProcess
		logger.Info("deliveries run in-process")
	}

	batcher := push.NewBatcher(repo, dispatcher, logger)
	notifications := push.NewService(repo, batcher, logger)

	retryWorker := worker.New(repo, pipeline, worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		BatchSize:    cfg.WorkerBatchSize,
	}, logger)
	go retryWorker.Start(workerCtx)

	// Calendar and schedule sync
	alerter := alert.New(cfg.AlertURL, nil, logger)
	generator := calendar.NewGenerator(repo, static.Ambassadors, cfg.ShortBaseURL, loc, logger)

	syncCfg := schedule.SyncerConfig{
		Reconciler: schedule.NewReconciler(repo, logger),
		Creds:      repo,
		Channels:   static.TwitchChannels,
		Timezone:   cfg.SiteTimezone,
		Alerter:    alerter,
	}
	if tw, err := twitch.NewClient(twitch.Config{ClientID: cfg.TwitchClientID}, logger); err != nil {
		logger.Warn("twitch schedule sync disabled", zap.Error(err))
	} else {
		syncCfg.Twitch = tw
	}
	if dc, err := discord.NewClient(cfg.DiscordBotToken, cfg.DiscordGuildID, logger); err != nil {
		logger.Warn("discord event sync disabled", zap.Error(err))
	} else {
		syncCfg.Discord = dc
	}
	syncer := schedule.NewSyncer(syncCfg, logger)

	var videos api.LatestVideoService
	if cfg.YouTubeAPIKey != "" {
		yt, err := youtube.NewAPIClient(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create youtube client: %w", err)
		}
		videos = youtube.NewService(yt, videoCache, logger)
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, latest video routes disabled")
	}

	jobs := scheduler.New(loc, logger)
	for _, job := range []scheduler.Job{
		{
			Name:    "generate-regular-events",
			Spec:    cfg.ScheduleGenerate,
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				return generator.GenerateMonth(ctx, time.Now())
			},
		},
		{
			Name:    "sync-twitch-schedules",
			Spec:    cfg.ScheduleTwitch,
			Timeout: 15 * time.Minute,
			Run: func(ctx context.Context) error {
				err := syncer.SyncAllTwitch(ctx)
				if errors.Is(err, schedule.ErrPlatformDisabled) {
					return nil
				}
				return err
			},
		},
		{
			Name:    "sync-discord-events",
			Spec:    cfg.ScheduleDiscord,
			Timeout: time.Hour,
			Run: func(ctx context.Context) error {
				_, err := syncer.SyncDiscord(ctx)
				if errors.Is(err, schedule.ErrPlatformDisabled) {
					return nil
				}
				return err
			},
		},
	} {
		if err := jobs.Add(job); err != nil {
			return err
		}
	}
	jobs.Start()

	handler := api.NewHandler(api.Deps{
		Deliverer:       pipeline,
		Batcher:         batcher,
		Notifications:   notifications,
		Calendar:        repo,
		TwitchStore:     repo,
		Generator:       generator,
		Syncer:          syncer,
		YouTube:         videos,
		Idempotency:     idempotencyService,
		YouTubeChannels: static.YouTubeChannels,
		Location:        loc,
	}, logger)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(handler, api.RouterConfig{
			ActionSecret: cfg.ActionAPISecret,
			RateLimiter:  rateLimiter,
		}, logger),
		ReadTimeout: 15 * time.Second,
		// Manual Discord syncs are spaced by the rate limit and run long
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.ActionAPISecret == "" {
		logger.Warn("ACTION_API_SECRET not set, action endpoints reject every request")
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Fan-out deliveries outlive their request, let them settle
		if inProcess != nil {
			if err := inProcess.Wait(ctx); err != nil {
				logger.Warn("in-flight deliveries abandoned", zap.Error(err))
			}
		}

		if err := jobs.Stop(ctx); err != nil {
			logger.Warn("scheduled jobs did not stop in time", zap.Error(err))
		}
		workerCancel()

		logger.Info("server stopped gracefully")
	}

	return nil
}

// newPushTransport returns the web push transport behind a circuit breaker,
// or a logging transport when no VAPID keys are configured
func newPushTransport(cfg *config.Config, logger *zap.Logger) push.Transport {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		logger.Warn("VAPID keys not set, push messages are logged instead of sent")
		return push.NewLogTransport(logger)
	}

	webPush := push.NewWebPushTransport(push.VAPIDConfig{
		Subject:    cfg.VAPIDSubject,
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
	}, &http.Client{Timeout: 30 * time.Second}, logger)

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("webpush"), logger)
	return circuitbreaker.NewProtectedTransport(webPush, breaker, logger)
}
