package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/vbonduro/auctionhouse/internal/balance"
	"github.com/vbonduro/auctionhouse/internal/config"
	"github.com/vbonduro/auctionhouse/internal/db"
	"github.com/vbonduro/auctionhouse/internal/domain"
	"github.com/vbonduro/auctionhouse/internal/ingest"
	"github.com/vbonduro/auctionhouse/internal/ledger"
	memoryledger "github.com/vbonduro/auctionhouse/internal/ledger/memory"
	natsledger "github.com/vbonduro/auctionhouse/internal/ledger/nats"
	"github.com/vbonduro/auctionhouse/internal/logging"
	"github.com/vbonduro/auctionhouse/internal/metadata"
	"github.com/vbonduro/auctionhouse/internal/metadata/ipfs"
	redicache "github.com/vbonduro/auctionhouse/internal/metadata/redis"
	"github.com/vbonduro/auctionhouse/internal/projection"
	"github.com/vbonduro/auctionhouse/internal/service"
	"github.com/vbonduro/auctionhouse/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	house := domain.Address(cfg.HouseAddr)
	store := projection.NewStore(database, house, logger)

	led, oracle, closeLedger, err := newLedger(ctx, cfg, house)
	if err != nil {
		logger.Error("failed to initialize ledger backend", "error", err)
		return
	}
	defer closeLedger()

	resolver := metadata.NewCached(ipfs.NewGateway(cfg.IPFSGateway), newMetadataCache(cfg, logger), logger)
	svc := service.NewAuctionService(store, led, oracle, resolver, house, logger)

	feed := web.NewFeed(logger)
	go feed.Run(ctx)

	ingestor := ingest.New(led, store, logger, cfg.PollInterval, cfg.BatchSize)
	ingestor.OnApplied(feed.Publish)
	go func() {
		if err := ingestor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("ingestor stopped", "error", err)
			stop()
		}
	}()

	server := web.NewServer(svc, feed, logger)
	go func() {
		if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}

func newLedger(ctx context.Context, cfg *config.Config, house domain.Address) (ledger.Ledger, balance.Oracle, func(), error) {
	switch cfg.LedgerBackend {
	case "nats":
		l, err := natsledger.Connect(ctx, natsledger.Config{
			URL:            cfg.NATSURL,
			Stream:         cfg.NATSStream,
			EventSubjects:  cfg.EventSubjects,
			CommandSubject: cfg.CommandSubject,
			BalanceSubject: cfg.BalanceSubject,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return l, l, l.Close, nil
	default:
		l := memoryledger.New(house, domain.Address(cfg.GenesisAdmin))
		return l, l, func() {}, nil
	}
}

func newMetadataCache(cfg *config.Config, logger *slog.Logger) metadata.Cache {
	if cfg.MetadataCache == "redis" {
		logger.Info("using Redis metadata cache", "addr", cfg.RedisAddr)
		return redicache.NewCache(cfg.RedisAddr, cfg.CacheTTL)
	}
	logger.Info("using in-memory metadata cache")
	return metadata.NewMemoryCache()
}
