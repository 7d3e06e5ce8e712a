package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/maillog"
	"github.com/ignite/mailroom/internal/pipeline"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/render"
	"github.com/ignite/mailroom/internal/transport"
	"github.com/ignite/mailroom/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("Worker requires redis.addr to be configured")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rc.Close()

	if err := rc.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to reach redis: %v", err)
	}

	t, err := buildTransport(cfg)
	if err != nil {
		log.Fatalf("Failed to build transport: %v", err)
	}

	p := pipeline.New(cfg.Site, cfg.Transport.Provider, lookup.NewStore(db),
		maillog.NewStore(db), t, pipeline.NewEnricher(render.NewService()))

	d := worker.NewDispatcher(rc, p, cfg.Worker.Queue, cfg.Worker.NumWorkers)
	d.Start(context.Background())

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("worker shutting down")
	d.Stop()
}

func buildTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport.Provider {
	case config.ProviderSES:
		return transport.NewSES(context.Background(), cfg.Transport.SES)
	case config.ProviderSparkPost, config.ProviderMailjet, config.ProviderMandrill:
		return transport.NewSparkPost(cfg.Transport.SparkPost), nil
	default:
		logger.Warn("no provider configured, using capture transport")
		return transport.NewCapture(), nil
	}
}
