package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veo1flow-25/teman-cors/internal/audit"
	"github.com/veo1flow-25/teman-cors/internal/auth"
	"github.com/veo1flow-25/teman-cors/internal/cache"
	"github.com/veo1flow-25/teman-cors/internal/config"
	internalhttp "github.com/veo1flow-25/teman-cors/internal/http"
	"github.com/veo1flow-25/teman-cors/internal/monitor"
	"github.com/veo1flow-25/teman-cors/internal/postgres"
	"github.com/veo1flow-25/teman-cors/internal/repository"
	"github.com/veo1flow-25/teman-cors/internal/settings"
	"github.com/veo1flow-25/teman-cors/internal/sheets"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	localStore, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("cache open failed: %v", err)
	}
	defer localStore.Close()

	// Every remote tier is optional. With neither configured the service runs
	// fully offline in demo mode against the local cache alone.
	var (
		scriptAuth  auth.ScriptAuth
		primary     repository.RecordStore
		directory   auth.Directory
		secondary   repository.RecordStore
		remoteLog   audit.RemoteLog
		remoteCfg   settings.RemoteSettings
		probeTarget monitor.Prober
	)

	if cfg.ScriptURL != "" {
		client := sheets.New(cfg.ScriptURL)
		scriptAuth = client
		primary = client
		probeTarget = client
		log.Printf("store A configured: %s", cfg.ScriptURL)
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection failed: %v", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("schema migration failed: %v", err)
		}
		store := postgres.NewStore(pool)
		directory = store
		secondary = store
		remoteLog = store
		remoteCfg = store
		if probeTarget == nil {
			probeTarget = store
		}
		log.Printf("store B configured")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
	}

	if scriptAuth == nil && directory == nil {
		if err := auth.SeedMockDirectory(localStore); err != nil {
			log.Fatalf("mock directory seed failed: %v", err)
		}
		log.Printf("no remote configured, running in demo mode")
	}

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL, redisClient)
	reports := repository.New(primary, secondary, localStore, nil)
	authService := auth.NewService(scriptAuth, directory, localStore, sessions, cfg.AppOrigin, nil)
	pipeline := audit.New(localStore, remoteLog, nil)
	settingsManager := settings.NewManager(localStore, remoteCfg, pipeline, nil)
	connMonitor := monitor.New(probeTarget, nil)

	heartbeat := connMonitor.StartHeartbeat(ctx, cfg.HeartbeatInterval)

	server := internalhttp.NewServer(cfg, reports, authService, sessions, pipeline, settingsManager, connMonitor)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("teman-datacore listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// Let detached remote legs settle before the process exits.
	heartbeat.Stop()
	reports.Wait()
	pipeline.Wait()
}
