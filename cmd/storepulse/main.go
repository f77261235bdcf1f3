package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platewise/storepulse/internal/abtest"
	"github.com/platewise/storepulse/internal/config"
	"github.com/platewise/storepulse/internal/forecast"
	"github.com/platewise/storepulse/internal/logger"
	"github.com/platewise/storepulse/internal/optimizer"
	"github.com/platewise/storepulse/internal/pricing"
	"github.com/platewise/storepulse/internal/rules"
	"github.com/platewise/storepulse/internal/storage"
	"github.com/platewise/storepulse/internal/telegram"
	"github.com/platewise/storepulse/internal/trends"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

const insightsInterval = time.Hour

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxSnapshotsPerStore, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var notifier telegram.Notifier = telegram.NopNotifier{}
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = client
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	forecastSvc := forecast.New(store, forecast.Config{
		MinDataPoints:     cfg.Analytics.MinDataPoints,
		SeasonalMinPoints: cfg.Analytics.SeasonalMinPoints,
		TrendWindow:       cfg.Analytics.TrendWindow,
		HistoryDays:       cfg.Analytics.HistoryDays,
	})

	pricingCfg := pricing.DefaultConfig()
	pricingCfg.MinDataPoints = cfg.Analytics.MinDataPoints
	pricingCfg.HistoryDays = cfg.Analytics.HistoryDays
	pricingSvc := pricing.New(store, forecastSvc, pricing.SimulatedMarket{}, pricingCfg)

	trendsSvc := trends.New(store, trends.Config{
		MinDataPoints: cfg.Analytics.MinDataPoints,
		TrendDays:     cfg.Analytics.TrendDays,
	})

	engine := abtest.New(store, abtest.LogApplier{}, abtest.Config{
		SignificanceThreshold: cfg.Optimizer.SignificanceThreshold,
		MinSampleSize:         cfg.Optimizer.MinSampleSize,
	})
	learner := rules.New(store, rules.SimulatedSampler{})

	optimizerCfg := optimizer.DefaultConfig()
	optimizerCfg.TickInterval = cfg.Optimizer.TickInterval
	optimizerCfg.MetricsWindow = cfg.Optimizer.MetricsWindow
	optimizerCfg.MinConversionRate = cfg.Optimizer.MinConversionRate
	optimizerCfg.MinAvgOrderValue = cfg.Optimizer.MinAvgOrderValue
	optimizerCfg.MaxBounceRate = cfg.Optimizer.MaxBounceRate

	optimizers := make([]*optimizer.Optimizer, 0, len(cfg.Stores))
	for _, storeID := range cfg.Stores {
		opt := optimizer.New(storeID, store, engine, learner, notifier,
			optimizer.SimulatedSessions{}, optimizerCfg)
		opt.Start()
		optimizers = append(optimizers, opt)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runInsights(ctx, cfg.Stores, store, forecastSvc, pricingSvc, trendsSvc)

	logger.Info("storepulse running for %d store(s) (tick: %v)", len(cfg.Stores), cfg.Optimizer.TickInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, cleaning up...")
	cancel()
	for _, opt := range optimizers {
		opt.Stop()
	}
	logger.Info("Service stopped")
}

// runInsights periodically logs demand forecasts, price recommendations, and
// category trends for every configured store.
func runInsights(ctx context.Context, storeIDs []string, store *storage.Storage,
	forecastSvc *forecast.Service, pricingSvc *pricing.Service, trendsSvc *trends.Service) {
	ticker := time.NewTicker(insightsInterval)
	defer ticker.Stop()

	reportInsights(storeIDs, store, forecastSvc, pricingSvc, trendsSvc)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportInsights(storeIDs, store, forecastSvc, pricingSvc, trendsSvc)
		}
	}
}

func reportInsights(storeIDs []string, store *storage.Storage,
	forecastSvc *forecast.Service, pricingSvc *pricing.Service, trendsSvc *trends.Service) {
	for _, storeID := range storeIDs {
		analyses, err := trendsSvc.DetectTrends(storeID)
		if err != nil {
			logger.Error("Trend detection failed for store %s: %v", storeID, err)
		}
		for _, a := range analyses {
			logger.Info("Store %s: %s category is %s (strength %.2f) over %s",
				storeID, a.Category, a.Trend, a.Strength, a.Timeframe)
		}

		products, err := store.ListProducts(storeID)
		if err != nil {
			logger.Error("Failed to list products for store %s: %v", storeID, err)
			continue
		}
		for _, product := range products {
			demand, err := forecastSvc.ForecastDemand(storeID, product.ID, 7)
			if err != nil {
				logger.Error("Demand forecast failed for %s/%s: %v", storeID, product.ID, err)
			} else if demand != nil {
				logger.Info("Store %s: forecast %d units of %s (confidence %.2f)",
					storeID, demand.ForecastedDemand, product.Name, demand.Confidence)
			}

			opt, err := pricingSvc.OptimizePrice(storeID, product.ID)
			if err != nil {
				logger.Error("Price optimization failed for %s/%s: %v", storeID, product.ID, err)
			} else if opt != nil && opt.OptimizedPrice != opt.CurrentPrice {
				logger.Info("Store %s: recommend %s at %.2f (now %.2f, confidence %.2f)",
					storeID, product.Name, opt.OptimizedPrice, opt.CurrentPrice, opt.Confidence)
			}
		}
	}
}
