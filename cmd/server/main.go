package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boutik/backend/internal/cache"
	"boutik/backend/internal/config"
	"boutik/backend/internal/httpapi"
	"boutik/backend/internal/service"
	"boutik/backend/internal/store"
	"boutik/backend/internal/store/memory"
	pgstore "boutik/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	idemStore := cache.SaleIdempotencyStore(cache.NoopSaleIdempotencyStore{})
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisSaleIdempotencyStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), sale idempotency disabled", err)
		} else {
			idemStore = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("idempotency store: redis")
		}
	} else {
		log.Println("idempotency store: noop")
	}

	svc := service.New(repo, idemStore, time.Duration(cfg.IdempotencyTTLMinutes)*time.Minute)
	if err := svc.Bootstrap(ctx); err != nil {
		log.Fatalf("bootstrap default categories: %v", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := auth.EnsureManager(ctx, cfg.BootstrapManagerUser, cfg.BootstrapManagerSecret); err != nil {
		log.Fatalf("bootstrap manager account: %v", err)
	}

	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("back-office API listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BootstrapManagerUser != "" && len(cfg.BootstrapManagerSecret) < 6 {
		return fmt.Errorf("BOOTSTRAP_MANAGER_PASSWORD must be at least 6 characters when bootstrap is requested")
	}
	return nil
}
