package app

import (
	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib"
	"github.com/fiffu/timetablewatch/lib/notify"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/fiffu/timetablewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Core provides everything a scrape run needs. Servers and schedulers are
// added on top by the commands that want them.
var Core = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	}),

	fx.Provide(config.NewConfig),
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry, NewRegisterer),

	fx.Provide(NewDatabase),
	fx.Provide(NewStore),
	fx.Provide(NewTransport),
	fx.Provide(NewHTTPClient),

	fx.Provide(senders.NewSenderRegistry),
	fx.Provide(notify.NewDispatcher),
	fx.Provide(NewObserver),

	fx.Provide(scraper.NewMetrics),
	fx.Provide(NewShortener),
	fx.Provide(NewFetcher),
	fx.Provide(NewParser),
	fx.Provide(NewEnricher),
	fx.Provide(NewScraper),
	fx.Provide(NewScrapeRunner),

	fx.Provide(NewGeocoder),
	fx.Provide(lib.NewService),
)
