package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/api"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/maillog"
	"github.com/ignite/mailroom/internal/pipeline"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/render"
	"github.com/ignite/mailroom/internal/transport"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	t, err := buildTransport(cfg)
	if err != nil {
		log.Fatalf("Failed to build transport: %v", err)
	}

	var rc *redis.Client
	if cfg.Redis.Addr != "" {
		rc = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rc.Close()
	}

	logs := maillog.NewStore(db)
	p := pipeline.New(cfg.Site, cfg.Transport.Provider, lookup.NewStore(db), logs,
		t, pipeline.NewEnricher(render.NewService()))

	router := api.SetupRoutes(api.NewHandlers(p, logs, rc, cfg.Worker.Queue))

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "addr", addr, "provider", t.Name())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-done
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// buildTransport selects the outbound transport from explicit provider
// configuration. An empty provider gets the in-memory capture transport,
// which is only useful for local development.
func buildTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport.Provider {
	case config.ProviderSES:
		return transport.NewSES(context.Background(), cfg.Transport.SES)
	case config.ProviderSparkPost, config.ProviderMailjet, config.ProviderMandrill:
		// Mailjet and Mandrill sites relay through a SparkPost-compatible
		// endpoint; the provider name drives metadata headers only.
		return transport.NewSparkPost(cfg.Transport.SparkPost), nil
	default:
		logger.Warn("no provider configured, using capture transport")
		return transport.NewCapture(), nil
	}
}
