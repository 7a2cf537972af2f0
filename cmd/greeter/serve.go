package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dggpoliticalaction/greeter/internal/application/onboarding"
	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/application/retention"
	"github.com/dggpoliticalaction/greeter/internal/application/threads"
	"github.com/dggpoliticalaction/greeter/internal/config"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/discord"
	httpapi "github.com/dggpoliticalaction/greeter/internal/infrastructure/http"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/http/handlers"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/jobs"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/metrics"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/queue"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/ratelimit"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and run onboarding, the reaper job and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	welcome := cfg.WelcomeThreadSettings()
	if welcome == nil {
		log.Warn().Msg("welcomeThread.channelName not set; welcome threads disabled")
	}

	ctx := cmd.Context()
	healthChecks := []handlers.HealthCheck{}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis.url: %w", err)
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; continuing without redis")
			redisClient = nil
		} else {
			healthChecks = append(healthChecks, handlers.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			})
		}
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	provider := discord.NewProvider(session)
	healthChecks = append(healthChecks, handlers.HealthCheck{Name: "discord", Check: provider.Ping})

	var sink ports.LifecycleEmitter = webhook.NewNoopEmitter()
	if cfg.Webhook.URL != "" {
		sink = webhook.NewHTTPEmitter(cfg.Webhook.URL, webhook.WithHeaders(cfg.Webhook.Headers))
	}

	var (
		deferrer     ports.Deferrer
		timers       *queue.TimerDeferrer
		asynqWorker  *queue.Worker
		taskEnqueuer *queue.TaskEnqueuer
		limiter      ports.EventLimiter
	)
	if redisClient != nil {
		asynqOpt, err := queue.RedisOpt(cfg.Redis.URL)
		if err != nil {
			return err
		}
		taskEnqueuer, err = queue.NewAsynqEnqueuer(asynqOpt, log)
		if err != nil {
			return fmt.Errorf("create asynq enqueuer: %w", err)
		}
		defer taskEnqueuer.Close()
		deferrer = taskEnqueuer
		asynqWorker = queue.NewWorker(asynqOpt, log)
		asynqWorker.HandleWebhooks(sink)
		if cfg.Webhook.URL != "" {
			sink = taskEnqueuer
		}

		rl, err := ratelimit.NewRedisLimiter(redisClient, cfg.RateLimiting.Amount, cfg.RateLimitInterval(), log)
		if err != nil {
			log.Warn().Err(err).Msg("redis rate limit store unavailable; using memory store")
		} else {
			limiter = rl
		}
	} else {
		timers = queue.NewTimerDeferrer(log)
		deferrer = timers
	}
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimiting.Amount, cfg.RateLimitInterval(), log)
	}
	emitter := metrics.NewEmitter(sink)

	manager := threads.NewManager(provider, provider, welcome, emitter, log)
	scheduler := onboarding.NewScheduler(deferrer, provider, manager, emitter, cfg.OnboardingDelay(), log)
	detector := onboarding.NewDetector(scheduler, limiter, cfg.Teams, log)
	reaper := retention.NewReaper(provider, provider, manager, welcome, emitter, log)
	metrics.RegisterPendingGauge(scheduler.PendingCount)

	if timers != nil {
		timers.Handle(scheduler.Fire)
	} else {
		asynqWorker.HandleOnboarding(scheduler.Fire)
		if err := asynqWorker.Start(); err != nil {
			return fmt.Errorf("start asynq worker: %w", err)
		}
	}

	events := discord.NewEvents(detector, provider.StateRole, log)
	removeHandlers := events.Register(session)
	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	log.Info().Int("teams", len(cfg.Teams)).Msg("discord gateway connected")

	runner := jobs.NewRunner(log)
	jobCfg := cfg.Jobs.AutoCloseWelcomeThreads
	err = runner.Add("auto-close-welcome-threads", jobs.Settings{
		Schedule:     jobCfg.Schedule,
		RunOnce:      jobCfg.RunOnce,
		InitialDelay: time.Duration(jobCfg.InitialDelaySecs) * time.Second,
		Log:          jobCfg.Log,
	}, func(ctx context.Context) error {
		report, err := reaper.Run(ctx)
		metrics.RecordReaperRun(report, err)
		return err
	})
	if err != nil {
		return fmt.Errorf("schedule auto-close job: %w", err)
	}
	runner.Start()

	router := httpapi.NewRouter(httpapi.RouterConfig{
		HealthHandler:     handlers.NewHealthHandler(healthChecks...),
		OnboardingHandler: handlers.NewOnboardingHandler(scheduler),
		Log:               log,
		Metrics:           cfg.Metrics.Enabled,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	removeHandlers()
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("jobs shutdown")
	}
	if timers != nil {
		timers.Stop()
	}
	if asynqWorker != nil {
		asynqWorker.Shutdown()
	}
	if err := session.Close(); err != nil {
		log.Error().Err(err).Msg("discord gateway close")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}
