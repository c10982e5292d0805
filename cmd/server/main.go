package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/anvarDev14/davomatoriental/internal/attendance"
	"github.com/anvarDev14/davomatoriental/internal/config"
	internalhttp "github.com/anvarDev14/davomatoriental/internal/http"
	"github.com/anvarDev14/davomatoriental/internal/jobs"
	"github.com/anvarDev14/davomatoriental/internal/lesson"
	"github.com/anvarDev14/davomatoriental/internal/report"
	"github.com/anvarDev14/davomatoriental/internal/repository"
	"github.com/anvarDev14/davomatoriental/internal/session"
	"github.com/anvarDev14/davomatoriental/internal/stats"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if cfg.BotToken == "" {
		logger.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := repository.NewStore(pool)
	if err := store.Bootstrap(ctx); err != nil {
		logger.Error("schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Error("redis ping failed", "error", err)
		os.Exit(1)
	}
	cancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", "error", err)
		}
	}()

	sessions := session.NewManager(session.NewRedisStore(redisClient))
	lessons := lesson.NewService(store, lesson.Config{
		Location:            cfg.Location,
		MarkWindow:          cfg.MarkWindow,
		LateThreshold:       cfg.LateThreshold,
		DefaultLessonLength: cfg.DefaultLessonLength,
	})
	marker := attendance.NewService(store, lessons)
	aggregator := stats.NewAggregator(store, cfg.CountExcusedAsAttended)
	reports := report.NewBuilder(store)

	server := internalhttp.NewServer(cfg, store, sessions, lessons, marker, aggregator, reports, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartLessonJobs(ctx, cfg, store, lessons, logger)

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
}
