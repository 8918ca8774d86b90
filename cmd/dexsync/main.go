package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/application/service"
	"dexsync/internal/domain/model"
	memorycache "dexsync/internal/infrastructure/cache/memory"
	rediscache "dexsync/internal/infrastructure/cache/redis"
	"dexsync/internal/infrastructure/config"
	"dexsync/internal/infrastructure/indexer"
	"dexsync/internal/infrastructure/logger"
	"dexsync/internal/infrastructure/storage/postgres"
	"dexsync/internal/infrastructure/storage/sqlite"
	"dexsync/internal/interfaces/httpapi"
)

func main() {
	_ = godotenv.Load()
	logger.Setup()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open store failed")
	}
	defer store.Close()

	cache := newCache(cfg)

	fetcher := indexer.NewClient(cfg.Indexer.BaseURL, time.Duration(cfg.Indexer.FetchTimeoutSeconds)*time.Second)
	extractor := service.NewExtractor()
	orch := service.NewOrchestrator(store, cache)
	accounts := service.NewAccounts(store, cache)

	if cfg.Sync.AutoResync {
		resync := service.NewResync(store, accounts, orch, fetcher,
			time.Duration(cfg.Sync.ResyncIntervalSeconds)*time.Second)
		if err := resync.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("start resync scheduler failed")
		}
	}

	if cfg.Indexer.StreamEnabled {
		startStream(ctx, cfg, store, orch)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httpapi.NewHandler(extractor, orch, accounts, fetcher).Register(app)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.Server.ListenAddr).
		Str("driver", cfg.Storage.Driver).
		Str("cache", cfg.Cache.Backend).
		Bool("auto_resync", cfg.Sync.AutoResync).
		Msg("dexsync started")

	if err := app.Listen(cfg.Server.ListenAddr); err != nil {
		log.Error().Err(err).Msg("http server exited")
	}
}

func newStore(cfg *config.Config) (port.RecordStore, error) {
	if cfg.Storage.Driver == "postgres" {
		return postgres.New(cfg.Storage.PostgresDSN)
	}
	return sqlite.New(cfg.Storage.SQLitePath, cfg.Storage.BusyTimeoutMs)
}

func newCache(cfg *config.Config) port.Cache {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		return rediscache.New(rdb, cfg.Cache.RedisPrefix, ttl)
	}
	return memorycache.New(ttl)
}

// startStream subscribes the live indexer feed for every account the
// ledger already knows about. New accounts pick up the stream on the
// next restart.
func startStream(ctx context.Context, cfg *config.Config, store port.RecordStore, orch *service.Orchestrator) {
	addrs, err := store.ListSyncedAccounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("stream: list accounts failed")
		return
	}
	if len(addrs) == 0 {
		log.Info().Msg("stream: no synced accounts yet, skipping")
		return
	}
	stream := indexer.NewStream(cfg.Indexer.WsURL, addrs, func(ctx context.Context, account string, batch *model.Batch) {
		if _, err := orch.RunSync(ctx, model.SourceLedger, account, batch); err != nil {
			log.Error().Err(err).Str("account", account).Msg("stream sync failed")
		}
	})
	go func() {
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("stream exited")
		}
	}()
}
