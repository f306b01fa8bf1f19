package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meetup-engagement-system/config"
	"meetup-engagement-system/handlers"
	"meetup-engagement-system/middleware"
	"meetup-engagement-system/models"
	"meetup-engagement-system/services"
	"meetup-engagement-system/utils"
	"meetup-engagement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("❌ logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}

	loc := cfg.Location()
	store := services.NewStore(db, cfg.StoreTimeout, cfg.StoreMaxRetries, logger)

	var notifier services.Broker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		notifier = services.NewRedisBroker(rdb, logger)
		logger.Info("✅ notifications via redis pub/sub")
	} else {
		notifier = services.NewHub(logger)
		logger.Info("✅ notifications via in-process hub")
	}

	profiles := services.NewProfileService(store)
	friendships := services.NewFriendshipService(store, notifier)
	badges := services.NewBadgeService(store, notifier)
	gamification := services.NewGamificationService(store, badges, cfg.StreakCadenceDays)
	events := services.NewEventService(store, cfg.DefaultEventCapacity)
	registrations := services.NewRegistrationService(store, gamification, cfg.DefaultEventCapacity, loc)
	leaderboard := services.NewLeaderboardService(store, loc)

	if err := badges.SeedBadges(ctx); err != nil {
		return err
	}

	sched, err := services.StartEngagementScheduler(ctx, gamification, badges, loc,
		cfg.AttendanceCreditInterval, cfg.BadgeReconcileInterval, logger)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.IdentitySyncURL != "" {
		workers.NewIdentitySyncWorker(db, cfg.IdentitySyncURL, cfg.IdentitySyncPath,
			cfg.IdentitySyncToken, cfg.IdentitySyncInterval, logger).Start(ctx)
	} else {
		logger.Info("⚠️ IDENTITY_SYNC_URL not set, profiles are created on first login only")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger.Named("http")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		Profiles:      profiles,
		Friendships:   friendships,
		Events:        events,
		Registrations: registrations,
		Gamification:  gamification,
		Badges:        badges,
		Leaderboard:   leaderboard,
		Notifier:      notifier,
		Verifier:      services.NewIdentityVerifier(cfg.IdentityJWTSecret, cfg.IdentityIssuer),
		AdminToken:    cfg.AdminServiceToken,
		Location:      loc,
		SSEKeepalive:  cfg.SSEKeepalive,
		Log:           logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	logger.Info("✅ server running",
		zap.String("port", cfg.Port),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.String("timezone", loc.String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
