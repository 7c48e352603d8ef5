package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coregmedia/rtb-exchange-backend/internal/api/rest"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/cache"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/config"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/database"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/repository"
	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/telemetry"
	"github.com/coregmedia/rtb-exchange-backend/internal/metrics"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "rtb-exchange",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := database.Connect(ctx, &cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	campaignStore := cache.NewCampaignCache(
		repository.NewCampaignRepository(db),
		redisClient,
		cfg.Redis.CampaignTTL,
		zapLogger,
	)
	requests := repository.NewBidRequestRepository(db)
	bids := repository.NewBidRepository(db)
	auctions := repository.NewAuctionRepository(db)
	tracking := repository.NewTrackingRepository(db)

	collector := metrics.NewCollector()
	scorer := auction.NewScorer(cfg.Tracking.BaseURL)
	engine := auction.NewEngine(campaignStore, requests, bids, auctions, scorer, collector, logger)
	recorder := auction.NewRecorder(auctions, tracking, collector, logger)

	defaultFloor, err := decimal.NewFromString(cfg.Auction.DefaultFloorPrice)
	if err != nil {
		log.Fatalf("Invalid default floor price %q: %v", cfg.Auction.DefaultFloorPrice, err)
	}
	svc := auction.NewService(engine, requests, recorder, logger, defaultFloor, cfg.Auction.DefaultTimeout)

	server := rest.NewServer(cfg, svc, logger, db, redisClient)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
