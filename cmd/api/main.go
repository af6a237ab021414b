package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/cache"
	"github.com/geocoder89/attendance/internal/config"
	"github.com/geocoder89/attendance/internal/db"
	"github.com/geocoder89/attendance/internal/events"
	httpx "github.com/geocoder89/attendance/internal/http"
	"github.com/geocoder89/attendance/internal/lock"
	"github.com/geocoder89/attendance/internal/observability"
	"github.com/geocoder89/attendance/internal/queue/redisclient"
	"github.com/geocoder89/attendance/internal/repo/memory"
	"github.com/geocoder89/attendance/internal/repo/postgres"
	"github.com/geocoder89/attendance/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "attendance-api", cfg.OTELEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL())

	var (
		backends httpx.Backends
		ping     func(ctx context.Context) error
	)

	// credential store + ledger
	switch cfg.StoreDriver {
	case config.StoreMemory:
		store := memory.NewStore()
		backends.Users = memory.NewUsersRepo(store)
		backends.Ledger = memory.NewAttendanceRepo(store)
		log.Warn("using in-memory store; data is lost on restart")

	default:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		mctx, cancel := config.WithTimeout(30 * time.Second)
		err = db.Migrate(mctx, pool)
		cancel()
		if err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		backends.Users = postgres.NewUsersRepo(pool, prom)
		backends.Ledger = postgres.NewAttendanceRepo(pool, prom)
		ping = pool.Ping
	}

	// lock + stats cache: Redis when shared across instances
	if cfg.RedisAddr != "" {
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rc.Close()

		backends.Locker = lock.NewRedisLocker(rc.Raw(), 5*time.Second)
		backends.Stats = cache.NewRedisStats(rc.Raw(), cfg.StatsCacheTTL)
	} else {
		backends.Locker = lock.NewKeyedMutex()
		backends.Stats = cache.NewMemoryStats(cfg.StatsCacheTTL)
	}

	// domain events
	if cfg.RabbitMQURL != "" {
		pub, err := events.NewRabbitPublisher(cfg.RabbitMQURL, events.DefaultDialTimeout)
		if err != nil {
			log.Error("rabbitmq connect failed", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		backends.Publisher = pub
	} else {
		backends.Publisher = events.NewLogPublisher(log)
	}

	sctx, cancel := config.WithTimeout(10 * time.Second)
	err = db.EnsureSeedUsers(sctx, backends.Users, hasher, db.SeedUsersFromConfig(cfg), log)
	cancel()
	if err != nil {
		log.Error("seeding users failed", "err", err)
		os.Exit(1)
	}

	deps := httpx.NewDeps(log, prom, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), hasher, tokens, cfg.Location, nil, backends)
	deps.Ping = ping

	// set up routers with the log
	router := httpx.NewRouter(cfg, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown

	select {
	case <-ctx.Done():
		log.Info("server shutting down")
	case err := <-serverErr:
		log.Error("server failed", "err", err)
	}

	shutdownCtx, cancelShutdown := config.WithTimeout(10 * time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}
	log.Info("shutdown complete")
}
