package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheredis "github.com/open-builders/sponsor-points-backend/internal/cache/redis"
	"github.com/open-builders/sponsor-points-backend/internal/common/config"
	"github.com/open-builders/sponsor-points-backend/internal/common/logger"
	apphttp "github.com/open-builders/sponsor-points-backend/internal/http"
	"github.com/open-builders/sponsor-points-backend/internal/platform/postgres"
	"github.com/open-builders/sponsor-points-backend/internal/platform/redis"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
	pgrepo "github.com/open-builders/sponsor-points-backend/internal/repository/postgres"
	"github.com/open-builders/sponsor-points-backend/internal/service/membership"
	"github.com/open-builders/sponsor-points-backend/internal/service/scheduler"
	"github.com/open-builders/sponsor-points-backend/internal/service/sponsors"
	"github.com/open-builders/sponsor-points-backend/internal/workers"
)

// @title           Sponsor Points API
// @version         1.0
// @description     Awards points to Telegram users for joining sponsor channels. All endpoints require Telegram init data.

// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Telegram Mini App init data string

// @tag.name memberships
// @tag.description Sponsor channel memberships of the caller

// @tag.name sponsors
// @tag.description Sponsor channel administration

// @tag.name admin
// @tag.description Membership scheduler control

const chatCacheTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.ServiceName, cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("Starting sponsor points backend")

	// run returns only after every deferred close has happened.
	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("Server exited")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		logger.Info().Msg("Database schema applied")
	}

	health := map[string]apphttp.HealthChecker{"postgres": pg}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		health["redis"] = rdb
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	} else {
		logger.Warn().Msg("Redis disabled: locks and tick leases are process-local")
	}

	users := pgrepo.NewUserRepository(pg.GetDB())
	channels := pgrepo.NewSponsorRepository(pg.GetDB())

	tg := telegram.NewClient(cfg.Telegram.BotToken, telegram.Options{
		BaseURL:           cfg.Telegram.APIBaseURL,
		Timeout:           cfg.Telegram.RequestTimeout,
		RequestsPerSecond: cfg.Membership.RequestsPerSecond,
		Burst:             cfg.Membership.Burst,
		Logger:            logger.Component("telegram"),
	})

	var (
		remoteLock membership.RemoteLock
		tickStore  scheduler.TickStore
		chatCache  sponsors.ChatCache
	)
	if rdb != nil {
		remoteLock = cacheredis.NewPairLock(rdb, cfg.Membership.PairLockTTL)
		tickStore = cacheredis.NewTickStore(rdb, cfg.Membership.TickLeaseTTL)
		chatCache = cacheredis.NewChatCache(rdb, chatCacheTTL)
	}

	auditor := membership.NewAuditor(channels, tg, logger.Component("auditor"))
	reconciler := membership.NewReconciler(users, channels, tg, membership.ReconcilerOptions{
		Concurrency: cfg.Membership.Concurrency,
		Locker:      membership.NewPairLocker(remoteLock),
		Logger:      logger.Component("reconciler"),
	})

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled() {
		loc, _ := cfg.Location()
		sched, err = scheduler.New(channels, auditor, reconciler, scheduler.Options{
			Cron:        cfg.Membership.Cron,
			Location:    loc,
			WarmupDelay: cfg.Membership.WarmupDelay,
			Store:       tickStore,
			Logger:      logger.Component("scheduler"),
		})
		if err != nil {
			return fmt.Errorf("create membership scheduler: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start membership scheduler: %w", err)
		}
		defer sched.Stop()
	} else {
		logger.Warn().Msg("BOT_TOKEN is not set: membership scheduler disabled")
	}

	deps := apphttp.Deps{
		Users:    users,
		Sponsors: sponsors.NewService(channels, tg, chatCache, auditor, logger.Component("sponsors")),
		Health:   health,
		Logger:   logger.Component("http"),
	}
	// A nil *Scheduler must not end up as a non-nil interface.
	if sched != nil {
		deps.Scheduler = sched
	}

	router := apphttp.NewRouter(apphttp.Config{
		Debug:       cfg.Debug,
		Origin:      cfg.Server.Origin,
		BotToken:    cfg.Telegram.BotToken,
		InitDataTTL: cfg.Telegram.InitDataTTL,
		AdminIDs:    cfg.Telegram.AdminIDs,
	}, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var background []func(context.Context)
	if rdb != nil {
		worker := workers.NewRedisStreamWorker(rdb, channels, cfg.ServiceName, logger.Component("stream_worker"))
		background = append(background, worker.Start)
	}

	// Returns after the worker stops, so the deferred Redis and Postgres closes run last.
	return apphttp.Serve(ctx, server, logger.Component("http"), background...)
}
