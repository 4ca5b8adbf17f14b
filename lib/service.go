package lib

import (
	"context"
	"errors"
	"strings"

	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/fiffu/timetablewatch/lib/store"
	"go.uber.org/zap"
)

// Geocoder resolves coordinates to a city name as written on the timetable.
type Geocoder interface {
	City(ctx context.Context, lat, lon float64) (string, error)
}

// ErrInvalidQuery is returned for unusable search parameters.
type ErrInvalidQuery struct {
	Reason string
}

func (e ErrInvalidQuery) Error() string {
	return e.Reason
}

// ScrapeRunner is the part of *scraper.Scraper the service drives.
type ScrapeRunner interface {
	Run(ctx context.Context) (*scraper.Result, error)
	Running() bool
}

type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	scraper ScrapeRunner
	geo     Geocoder

	*subscribe
}

func NewService(cfg *config.Config, log *zap.Logger, st store.Store, scr ScrapeRunner, geo Geocoder) *Service {
	return &Service{
		cfg, log, st, scr, geo,
		&subscribe{log, st},
	}
}

func (svc *Service) FindLine(ctx context.Context, code string) (*models.Line, error) {
	return svc.store.Get(ctx, strings.TrimSpace(code))
}

func (svc *Service) LinesByCity(ctx context.Context, city string) (models.Lines, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrInvalidQuery{"city is required"}
	}
	return svc.store.FindByCity(ctx, city)
}

// LinesNear finds the lines serving the city at lat, lon.
func (svc *Service) LinesNear(ctx context.Context, lat, lon float64) (models.Lines, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidQuery{"coordinates out of range"}
	}

	city, err := svc.geo.City(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	svc.log.Sugar().Debugw("Reverse geocoded location", "lat", lat, "lon", lon, "city", city)
	return svc.store.FindByCity(ctx, city)
}

func (svc *Service) LastSession(ctx context.Context) (*models.ScrapeSession, error) {
	return svc.store.LastSession(ctx)
}

// TriggerScrape starts a run in the background and returns immediately.
// The run outlives ctx.
func (svc *Service) TriggerScrape(ctx context.Context) error {
	if svc.scraper.Running() {
		return scraper.ErrRunInProgress
	}

	go func() {
		_, err := svc.scraper.Run(context.WithoutCancel(ctx))
		if errors.Is(err, scraper.ErrRunInProgress) {
			svc.log.Sugar().Infow("Manual scrape skipped", "err", err)
		}
	}()
	return nil
}
