package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/config"
	"github.com/loanflow/loan-engine/internal/domain"
	"github.com/loanflow/loan-engine/internal/notifier"
	"github.com/loanflow/loan-engine/internal/repository"
	"github.com/loanflow/loan-engine/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	appRepo := repository.NewApplicationRepository(db)
	notif := notifier.NewRedisNotifier(redisClient, cfg.Business.NotificationChannel, zapLogger)

	jobs := &schedulerJobs{
		appRepo: appRepo,
		notif:   notif,
		redis:   redisClient,
		cfg:     cfg,
		logger:  zapLogger,
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(cfg.Scheduler.ReminderCron, jobs.remindStalePending); err != nil {
		zapLogger.Fatal("failed to schedule pending reminder job", zap.Error(err))
	}
	if _, err := c.AddFunc(cfg.Scheduler.SweepCron, jobs.sweepScheduleCache); err != nil {
		zapLogger.Fatal("failed to schedule cache sweep job", zap.Error(err))
	}

	c.Start()
	zapLogger.Info("scheduler started",
		zap.String("reminder_cron", cfg.Scheduler.ReminderCron),
		zap.String("sweep_cron", cfg.Scheduler.SweepCron))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down scheduler")
	<-c.Stop().Done()
	zapLogger.Info("scheduler stopped")
}

type schedulerJobs struct {
	appRepo repository.ApplicationRepository
	notif   notifier.Notifier
	redis   *redis.Client
	cfg     *config.Config
	logger  *zap.Logger
}

// remindStalePending publishes a reminder for every application that
// has waited in review longer than the configured number of days.
func (j *schedulerJobs) remindStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	apps, err := j.appRepo.FetchPendingSince(ctx, j.cfg.Business.ReminderAfterDays)
	if err != nil {
		j.logger.Error("stale pending scan failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, app := range apps {
		event := &domain.PendingReminderEvent{
			ApplicationID: app.ID,
			BorrowerID:    app.BorrowerID,
			PendingSince:  app.CreatedAt,
			Timestamp:     now,
		}
		if err := j.notif.PublishPendingReminder(ctx, event); err != nil {
			j.logger.Warn("pending reminder not delivered",
				zap.String("application_id", app.ID.String()),
				zap.Error(err))
		}
	}

	j.logger.Info("stale pending scan finished", zap.Int("reminders", len(apps)))
}

// sweepScheduleCache drops cached schedules for applications that are
// no longer approved, e.g. after an admin override back to pending.
func (j *schedulerJobs) sweepScheduleCache() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var cursor uint64
	var swept int
	for {
		keys, next, err := j.redis.Scan(ctx, cursor, "schedule:*", 100).Result()
		if err != nil {
			j.logger.Error("schedule cache scan failed", zap.Error(err))
			return
		}

		for _, key := range keys {
			id, err := uuid.Parse(strings.TrimPrefix(key, "schedule:"))
			if err != nil {
				continue
			}
			app, err := j.appRepo.GetByID(ctx, id)
			if err != nil || app.Status != domain.StatusApproved {
				if delErr := j.redis.Del(ctx, key).Err(); delErr == nil {
					swept++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	j.logger.Info("schedule cache sweep finished", zap.Int("swept", swept))
}
