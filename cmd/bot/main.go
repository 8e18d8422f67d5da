package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-bot/internal/conversation"
	"github.com/noah-isme/attendance-bot/internal/handler"
	"github.com/noah-isme/attendance-bot/internal/repository"
	"github.com/noah-isme/attendance-bot/internal/service"
	"github.com/noah-isme/attendance-bot/internal/session"
	"github.com/noah-isme/attendance-bot/pkg/cache"
	"github.com/noah-isme/attendance-bot/pkg/config"
	"github.com/noah-isme/attendance-bot/pkg/database"
	"github.com/noah-isme/attendance-bot/pkg/export"
	"github.com/noah-isme/attendance-bot/pkg/logger"
	"github.com/noah-isme/attendance-bot/pkg/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("bot stopped", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	probes := []handler.Probe{{Name: "database", Check: repository.NewTeacherRepository(db).Ping}}

	sessions, redisClient, err := newSessionStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		probes = append(probes, handler.Probe{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }})
	}

	metrics := service.NewMetricsService()
	machine, exports, err := newMachine(ctx, cfg, db, sessions, metrics, logr)
	if err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	bot.Debug = cfg.Telegram.Debug
	logr.Sugar().Infow("telegram authorized", "username", bot.Self.UserName)

	ops := handler.NewOpsHandler(metrics, nil, logr, probes...)
	if exports != nil {
		ops = handler.NewOpsHandler(metrics, exports, logr, probes...)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OpsPort),
		Handler:           handler.NewRouter(ops, metrics, logr),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("ops server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("ops server failed", "error", err)
			stop()
		}
	}()

	tg := handler.NewTelegramHandler(bot, machine, cfg.Dispatch, cfg.Telegram.PollTimeout, logr)
	runErr := tg.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("ops server shutdown", "error", err)
	}
	logr.Info("bot stopped")
	return runErr
}

func newSessionStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (session.Store, *redis.Client, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logr.Sugar().Infow("sessions stored in redis", "ttl", cfg.Session.TTL)
		return session.NewRedisStore(client, cfg.Session.TTL), client, nil
	case "", config.SessionBackendMemory:
		store := session.NewMemoryStore(cfg.Session.TTL)
		go sweep(ctx, store, logr)
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

func sweep(ctx context.Context, store *session.MemoryStore, logr *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logr.Debug("idle sessions evicted", zap.Int("count", n))
			}
		}
	}
}

func newMachine(ctx context.Context, cfg *config.Config, db *sqlx.DB, sessions session.Store, metrics *service.MetricsService, logr *zap.Logger) (*conversation.Machine, *service.ExportService, error) {
	validate := validator.New()
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	renderer, err := export.NewRenderer(cfg.Reports.Format)
	if err != nil {
		return nil, nil, err
	}

	var exports *service.ExportService
	if cfg.Reports.LinksEnabled {
		files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			return nil, nil, fmt.Errorf("prepare report storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exports = service.NewExportService(files, signer, service.ExportConfig{
			PublicBaseURL: cfg.Reports.PublicBaseURL,
			ResultTTL:     cfg.Reports.SignedURLTTL,
		}, logr)
		go exports.RunCleanup(ctx, cfg.Reports.CleanupInterval)
	}

	machine := conversation.New(conversation.Deps{
		Sessions:   sessions,
		Teachers:   service.NewTeacherService(teacherRepo, validate, logr),
		Students:   service.NewStudentService(studentRepo, validate, logr),
		Attendance: service.NewAttendanceService(attendanceRepo, studentRepo, metrics, logr),
		Reports:    service.NewReportService(teacherRepo, attendanceRepo, renderer, exports, metrics, logr),
		Metrics:    metrics,
		Logger:     logr,
		Location:   cfg.Location(),
	})
	return machine, exports, nil
}
