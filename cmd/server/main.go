package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/language_school/internal/config"
	"github.com/Skotchmaster/language_school/internal/db"
	"github.com/Skotchmaster/language_school/internal/es"
	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/service/search"
	"github.com/Skotchmaster/language_school/internal/session"
	httpserver "github.com/Skotchmaster/language_school/internal/transport/http"
)

const sessionPurgeInterval = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("config_loaded", "config", cfg.String())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gdb, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Error("db_init_failed", "error", err)
		os.Exit(1)
	}

	var publisher mykafka.Publisher = mykafka.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Error("kafka_init_failed", "error", err)
			os.Exit(1)
		}
		publisher = prod
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var index search.CourseIndex = &search.DBCourseIndex{DB: gdb}
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword}, logger)
		if err != nil {
			logger.Error("es_init_failed", "error", err)
			os.Exit(1)
		}
		index = search.NewESCourseIndex(esClient, cfg.ESCourseIndex)
	} else {
		logger.Warn("es_disabled", "reason", "ES_URL is empty, using database search")
	}

	var rdb *redis.Client
	opts := httpserver.Options{Config: cfg, DB: gdb, Logger: logger, Publisher: publisher, Index: index}
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("redis_init_failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		opts.Redis = rdb
	} else {
		logger.Warn("rate_limit_disabled", "reason", "REDIS_ADDR is empty")
	}

	server, err := httpserver.New(opts)
	if err != nil {
		logger.Error("server_init_failed", "error", err)
		os.Exit(1)
	}

	go purgeSessions(ctx, server.Sessions, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Echo,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	go func() {
		<-quit
		logger.Warn("force exit")
		os.Exit(1)
	}()

	logger.Info("shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	} else {
		logger.Error("db_handle_error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func purgeSessions(ctx context.Context, m *session.Manager, l *slog.Logger) {
	t := time.NewTicker(sessionPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				l.Error("session_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("sessions_purged", "count", n)
			}
		}
	}
}
