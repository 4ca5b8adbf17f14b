package scraper

import (
	"context"
	"fmt"

	"github.com/fiffu/timetablewatch/lib/models"
	"go.uber.org/zap"
)

type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Enricher shortens each line's timetable URL and hashes the document behind it.
// Lines are processed one at a time with a pause in between; a failure on one
// line is logged and leaves the others untouched.
type Enricher struct {
	log          *zap.Logger
	shortener    Shortener
	fetcher      PageFetcher
	shortenDelay Delay
	hashDelay    Delay
	metrics      *Metrics
}

func NewEnricher(log *zap.Logger, shortener Shortener, fetcher PageFetcher, shortenDelay, hashDelay Delay, metrics *Metrics) *Enricher {
	return &Enricher{log, shortener, fetcher, shortenDelay, hashDelay, metrics}
}

// Enrich mutates lines in place. It only fails when ctx is done.
func (e *Enricher) Enrich(ctx context.Context, lines models.Lines) error {
	for i := range lines {
		e.shorten(ctx, &lines[i])
		if i < len(lines)-1 {
			if err := e.shortenDelay.Wait(ctx); err != nil {
				return err
			}
		}
	}

	for i := range lines {
		e.hash(ctx, &lines[i], i, len(lines))
		if i < len(lines)-1 {
			if err := e.hashDelay.Wait(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Enricher) shorten(ctx context.Context, line *models.Line) {
	if line.URL == "" {
		return
	}

	short, err := e.shortener.Shorten(ctx, line.URL)
	if err != nil {
		e.metrics.lineErrors.WithLabelValues("shorten").Inc()
		e.log.Sugar().Warnw("Cannot shorten url", "code", line.Code, "err", &NetworkError{URL: line.URL, Err: err})
		return
	}
	if short != "" && short != line.URL {
		e.log.Sugar().Debugw("Shortened url", "code", line.Code, "from", line.URL, "to", short)
		line.URL = short
	}
}

func (e *Enricher) hash(ctx context.Context, line *models.Line, i, total int) {
	line.ContentHash = ""
	if line.URL == "" {
		return
	}

	page, err := e.fetcher.Fetch(ctx, line.URL)
	if err != nil {
		e.metrics.lineErrors.WithLabelValues("hash").Inc()
		e.log.Sugar().Warnw("Cannot compute timetable hash", "code", line.Code, "progress", progress(i, total), "err", err)
		return
	}
	line.ContentHash = page.Digest
	e.log.Sugar().Debugw("Computed timetable hash", "code", line.Code, "progress", progress(i, total), "hash", page.Digest)
}

func progress(i, total int) string {
	return fmt.Sprintf("%d/%d", i+1, total)
}
