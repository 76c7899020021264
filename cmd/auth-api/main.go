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

	"caremesh.org/internal/auth"
	"caremesh.org/internal/config"
	"caremesh.org/internal/event"
	"caremesh.org/internal/httpapi"
	"caremesh.org/internal/obs"
)

var version = "0.3.0"

func main() {
	_ = godotenv.Load()
	obs.Init()

	var cfg config.Auth
	if err := config.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing CAREMESH_PG_DSN")
	}

	store, err := auth.OpenPG(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	codec, err := auth.NewCodec([]byte(cfg.SigningSecret), auth.WithCodecIssuer(cfg.Issuer))
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	opts := []auth.ServiceOption{
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		opts = append(opts, auth.WithPublisher(event.NewStreamPublisher(rdb, 0)))
	} else {
		log.Print("no CAREMESH_REDIS_ADDR set, identity events disabled")
	}

	svc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, auth.NewLocalVerifier(codec, store), httpapi.ReadyProbe{DB: store.DB(), Redis: rdb}, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting caremesh-auth-api %s on %s", version, srv.Addr)

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
	_ = store.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Println("Stopped")
}
