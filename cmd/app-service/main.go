// cmd/app-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenon/internal/dashapi"
	"tenon/internal/hooks"
	"tenon/pkg/auth"
	"tenon/pkg/authstore"
	"tenon/pkg/config"
	"tenon/pkg/db"
	"tenon/pkg/features"
	"tenon/pkg/keyset"
	"tenon/pkg/logger"
	"tenon/pkg/policy"
	"tenon/pkg/webhooks"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	spec, err := features.Load(cfg.AppSpecPath)
	if err != nil {
		log.Fatalw("app spec", "path", cfg.AppSpecPath, "err", err)
	}

	var cipher *authstore.Cipher
	if cfg.TokenEncryptionKey != "" {
		cipher = authstore.NewCipher(cfg.TokenEncryptionKey)
	}

	var store authstore.Store
	var flagStore features.FlagStore
	switch cfg.StoreBackend {
	case "postgres":
		pool := db.MustConnect(cfg, log)
		if err := authstore.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = authstore.NewPostgres(pool, cipher, log)
		if err := authstore.SeedFromEnv(context.Background(), store, os.Getenv("AUTH_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
		flagStore = features.NewPostgres(pool)
	case "redis":
		rdb := db.MustRedis(cfg, log)
		store = authstore.NewRedis(rdb, cipher, log)
		if err := authstore.SeedFromEnv(context.Background(), store, os.Getenv("AUTH_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
		flagStore = features.NewRedis(rdb)
	default:
		store = authstore.NewMemoryFromEnv(log)
		flagStore = features.NewMemory(log)
	}
	flags := features.NewCached(flagStore, 30*time.Second)

	keys := keyset.NewFetcher(cfg.KeySetTTL, log)
	verifier := auth.NewVerifier(keys, log)
	sync := webhooks.NewSynchronizer(log, cfg.ReconcileWorkers)

	gate, err := policy.Load(cfg.PolicyPath, log)
	if err != nil {
		log.Fatalw("policy", "path", cfg.PolicyPath, "err", err)
	}

	rcv := hooks.NewReceiver(spec, store, keys, log)
	app := dashapi.New(log, cfg, spec, store, flags, verifier, sync, gate, rcv)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("app-service listening", "addr", cfg.HTTPAddr, "app", spec.ID, "version", spec.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("app-service stopped")
}
