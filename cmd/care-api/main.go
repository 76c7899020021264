package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"caremesh.org/internal/auth/remote"
	"caremesh.org/internal/care"
	"caremesh.org/internal/careapi"
	"caremesh.org/internal/config"
	"caremesh.org/internal/event"
	"caremesh.org/internal/httpapi"
	"caremesh.org/internal/obs"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()
	obs.Init()

	var cfg config.Care
	if err := config.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing CAREMESH_PG_DSN")
	}
	if cfg.RedisAddr == "" {
		log.Fatal("missing CAREMESH_REDIS_ADDR")
	}

	store, err := care.OpenPG(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	peer := remote.New(cfg.AuthBaseURL, cfg.PeerConnectTimeout, cfg.PeerReadTimeout)
	verifier := remote.NewVerifier(peer)

	name := cfg.ConsumerName
	if name == "" {
		name, _ = os.Hostname()
		if name == "" {
			name = "care-api"
		}
	}
	consumer := event.NewConsumer(rdb, cfg.ConsumerGroup, name, event.WithWorkers(cfg.ConsumerWorkers))
	care.NewHandlers(store).Register(consumer)

	api := careapi.New(verifier, store, httpapi.ReadyProbe{DB: store.DB(), Redis: rdb}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil && err != context.Canceled {
			log.Printf("event consumer stopped: %v", err)
		}
	}()

	log.Printf("Starting caremesh-care-api %s on %s (consumer %s/%s)", version, srv.Addr, cfg.ConsumerGroup, name)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
	}
	_ = store.Close()
	_ = rdb.Close()
	log.Println("Stopped")
}
