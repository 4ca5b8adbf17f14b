package app

import (
	"net/http"

	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib"
	"github.com/fiffu/timetablewatch/lib/geocoder"
	"github.com/fiffu/timetablewatch/lib/notify"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/fiffu/timetablewatch/lib/shortener"
	"github.com/fiffu/timetablewatch/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewShortener(cfg *config.Config, log *zap.Logger, client *http.Client) scraper.Shortener {
	if cfg.Bitly.AccessToken == "" {
		log.Sugar().Info("URL shortening disabled since BITLY_ACCESS_TOKEN is not set")
		return shortener.Passthrough{}
	}
	return shortener.NewBitly(client, cfg.Bitly.Endpoint, cfg.Bitly.AccessToken)
}

func NewGeocoder(cfg *config.Config, log *zap.Logger, client *http.Client) lib.Geocoder {
	if cfg.LocationIQ.APIKey == "" {
		log.Sugar().Info("Location search disabled since LOCATIONIQ_API_KEY is not set")
		return geocoder.Disabled{}
	}
	return geocoder.NewLocationIQ(client, cfg.LocationIQ.Endpoint, cfg.LocationIQ.APIKey)
}

func NewFetcher(client *http.Client) scraper.PageFetcher {
	return scraper.NewFetcher(client)
}

func NewParser(cfg *config.Config) *scraper.Parser {
	return scraper.NewParser(cfg.Scraper.TableID)
}

func NewEnricher(cfg *config.Config, log *zap.Logger, sh scraper.Shortener, fetcher scraper.PageFetcher, metrics *scraper.Metrics) *scraper.Enricher {
	return scraper.NewEnricher(
		log, sh, fetcher,
		scraper.Delay{Min: cfg.Scraper.ShortenDelayMin, Max: cfg.Scraper.ShortenDelayMax},
		scraper.Delay{Min: cfg.Scraper.HashDelayMin, Max: cfg.Scraper.HashDelayMax},
		metrics,
	)
}

func NewObserver(d *notify.Dispatcher) scraper.ChangeObserver {
	return d
}

func NewScraper(
	cfg *config.Config, log *zap.Logger,
	fetcher scraper.PageFetcher, parser *scraper.Parser, enricher *scraper.Enricher,
	st store.Store, observer scraper.ChangeObserver, metrics *scraper.Metrics,
) *scraper.Scraper {
	opts := scraper.Options{URL: cfg.Scraper.URL, SkipUnchanged: cfg.Scraper.SkipUnchanged}
	return scraper.New(log, opts, fetcher, parser, enricher, st, observer, metrics)
}

func NewScrapeRunner(s *scraper.Scraper) lib.ScrapeRunner {
	return s
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, s *scraper.Scraper) *scraper.Scheduler {
	return scraper.NewScheduler(lc, log, s, cfg.Scraper.Hour, cfg.Scraper.RunOnStart)
}
