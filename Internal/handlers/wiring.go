package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/smarttrader/Internal/broker"
	datafeed "github.com/fazecat/smarttrader/Internal/database"
	"github.com/fazecat/smarttrader/Internal/handlers/risk"
	newsscraping "github.com/fazecat/smarttrader/Internal/news_scraping"
	"github.com/fazecat/smarttrader/Internal/ports"
	"github.com/fazecat/smarttrader/Internal/recommendations"
	"github.com/fazecat/smarttrader/Internal/scheduler"
	"github.com/fazecat/smarttrader/Internal/strategy/indicators"
	"github.com/fazecat/smarttrader/Internal/utils/config"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
	"github.com/fazecat/smarttrader/Internal/utils/scoring"
)

// App owns every long-lived component built from a Config
type App struct {
	Service   *Service
	Loop      *scanner.Loop
	Scheduler *scheduler.Scheduler
	DB        *sql.DB
	log       zerolog.Logger
}

// NewApp builds providers, storage and the service graph from cfg
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	market, yahoo, err := buildMarketData(cfg, log)
	if err != nil {
		return nil, err
	}

	var fundamentals ports.FundamentalsProvider
	if cfg.Providers.Fundamentals == config.FundamentalsYahoo {
		if yahoo == nil {
			yahoo = datafeed.NewYahooProvider(log)
		}
		fundamentals = yahoo
	}

	var sentiment ports.SentimentProvider
	var news NewsSource
	if cfg.Providers.Sentiment != config.SentimentNone {
		client, err := newsscraping.NewFinnhubClient(newsscraping.FinnhubConfig{
			APIKey:   cfg.Secrets.FinnhubAPIKey,
			NewsOnly: cfg.Providers.Sentiment == config.SentimentLexicon,
		}, log)
		if err != nil {
			return nil, err
		}
		sentiment = client
		news = client
	}

	executor, err := broker.New(cfg.Providers.Broker, market, log)
	if err != nil {
		return nil, err
	}

	db, err := datafeed.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := datafeed.NewTradeStore(db, cfg.Database.Driver, log)

	engine := recommendations.NewEngine(risk.NewSizer(cfg.Risk), executor, store, log)
	indicatorEngine := indicators.NewEngine()
	screener := scanner.NewScreener(market, indicatorEngine, scanner.ScreenerConfig{
		Workers:  cfg.Screener.Workers,
		Period:   cfg.Screener.Period,
		Interval: cfg.Screener.BarInterval,
	}, log)
	aggregator := scoring.NewAggregator(market, sentiment, fundamentals, indicatorEngine,
		cfg.Screener.Period, cfg.Screener.BarInterval, log)

	svc := NewService(Deps{
		Aggregator: aggregator,
		Screener:   screener,
		Engine:     engine,
		Broker:     executor,
		Sentiment:  sentiment,
		News:       news,
		Universe:   cfg.Screener.Universe,
	}, log)

	loop := scanner.NewLoop(screener, svc.Universe(), svc.ProcessResults, scanner.LoopConfig{
		Interval: cfg.Screener.Interval,
		Backoff:  cfg.Screener.Backoff,
	}, log)

	sched := scheduler.New(time.Minute, log)
	if cfg.Scheduler.Housekeeping != "" {
		if err := sched.AddJob(cfg.Scheduler.Housekeeping, scheduler.NewHousekeeping(engine, executor, log)); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %w", ports.ErrConfiguration, err)
		}
	}

	log.Info().
		Str("market_data", cfg.Providers.MarketData).
		Str("fundamentals", cfg.Providers.Fundamentals).
		Str("sentiment", cfg.Providers.Sentiment).
		Str("broker", cfg.Providers.Broker.Kind).
		Str("database", cfg.Database.Driver).
		Int("universe", len(svc.Universe())).
		Msg("application wired")

	return &App{
		Service:   svc,
		Loop:      loop,
		Scheduler: sched,
		DB:        db,
		log:       log,
	}, nil
}

func buildMarketData(cfg *config.Config, log zerolog.Logger) (ports.MarketDataProvider, *datafeed.YahooProvider, error) {
	switch cfg.Providers.MarketData {
	case config.MarketAlpaca:
		return datafeed.NewAlpacaDataProvider(datafeed.AlpacaDataConfig{
			APIKey:    cfg.Secrets.AlpacaAPIKey,
			APISecret: cfg.Secrets.AlpacaAPISecret,
			Feed:      cfg.Providers.AlpacaFeed,
		}, log), nil, nil
	case config.MarketBinance:
		client, err := broker.NewBinanceClient(cfg.Providers.Broker.Binance, log)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}
	yahoo := datafeed.NewYahooProvider(log)
	return yahoo, yahoo, nil
}

// Start launches the screening loop and scheduler; both stop with ctx
func (a *App) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	a.Scheduler.Start()
	go func() {
		done <- a.Loop.Run(ctx)
	}()
	return done
}

func (a *App) Close() error {
	a.Scheduler.Stop()
	if err := a.DB.Close(); err != nil {
		a.log.Error().Err(err).Msg("closing database")
		return err
	}
	return nil
}
