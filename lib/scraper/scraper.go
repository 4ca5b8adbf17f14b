package scraper

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/lib/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChangeObserver is told about lines that disappeared from the timetable and
// lines whose timetable document changed. Created lines are not reported.
type ChangeObserver interface {
	OnDeleted(ctx context.Context, lines models.Lines)
	OnChanged(ctx context.Context, lines models.Lines)
}

type Options struct {
	URL string
	// SkipUnchanged ends the run early when the page digest equals the one
	// recorded by the previous completed run.
	SkipUnchanged bool
}

type Result struct {
	RunID    string
	PageHash string
	Skipped  bool
	Diff     Diff
}

type Scraper struct {
	log      *zap.Logger
	opts     Options
	fetcher  PageFetcher
	parser   *Parser
	enricher *Enricher
	store    store.Store
	observer ChangeObserver
	metrics  *Metrics

	mu      sync.Mutex
	running atomic.Bool
	now     func() time.Time
}

func New(
	log *zap.Logger, opts Options,
	fetcher PageFetcher, parser *Parser, enricher *Enricher,
	st store.Store, observer ChangeObserver, metrics *Metrics,
) *Scraper {
	return &Scraper{
		log: log, opts: opts,
		fetcher: fetcher, parser: parser, enricher: enricher,
		store: st, observer: observer, metrics: metrics,
		now: time.Now,
	}
}

func (s *Scraper) Running() bool {
	return s.running.Load()
}

// Run scrapes the timetable once. Concurrent calls fail with ErrRunInProgress.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	log.Sugar().Infow("Scraping started", "url", s.opts.URL)

	start := s.now()
	res, err := s.run(ctx, log, runID)
	elapsed := s.now().Sub(start)
	s.metrics.observeRun(res, err, elapsed)

	var schemaErr *SchemaError
	switch {
	case errors.As(err, &schemaErr):
		log.Error("Table schema changed. Cannot scrape data.", zap.String("severity", "fatal"), zap.Error(err))
	case err != nil:
		log.Error("Scraping failed", zap.Error(err))
	case res.Skipped:
		log.Info("Timetable page unchanged since last session, nothing to do")
	default:
		log.Sugar().Infow("Scraping completed",
			"lines", len(res.Diff.Lines),
			"created", len(res.Diff.Created),
			"deleted", len(res.Diff.Deleted),
			"changed", len(res.Diff.Changed),
			"elapsed_msecs", elapsed.Milliseconds(),
		)
	}
	return res, err
}

func (s *Scraper) run(ctx context.Context, log *zap.Logger, runID string) (*Result, error) {
	page, err := s.fetcher.Fetch(ctx, s.opts.URL)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, PageHash: page.Digest}

	if s.opts.SkipUnchanged && s.unchangedSinceLastSession(ctx, log, page.Digest) {
		res.Skipped = true
		return res, nil
	}

	lines, err := s.parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Parsed timetable", "lines", len(lines))

	if err := s.enricher.Enrich(ctx, lines); err != nil {
		return nil, err
	}

	stored, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	res.Diff = Reconcile(lines, stored)
	persisted := s.persist(ctx, log, res.Diff)
	s.notify(ctx, res.Diff)

	if !persisted {
		// Without a marker the next run of the same page is not skipped and
		// retries the writes.
		log.Warn("Not recording last session since some writes failed")
		return res, nil
	}
	if err := s.store.SetLastSession(ctx, page.Digest, s.now()); err != nil {
		log.Error("Failed to record last session", zap.Error(err))
	}
	return res, nil
}

func (s *Scraper) unchangedSinceLastSession(ctx context.Context, log *zap.Logger, digest string) bool {
	sess, err := s.store.LastSession(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false
	case err != nil:
		log.Warn("Cannot read last session, scraping anyway", zap.Error(err))
		return false
	}
	return sess.ResponseHash == digest
}

// persist is best effort: the writes are upserts keyed by code, so the next
// run converges even if some batches fail here. It reports whether every
// write succeeded.
func (s *Scraper) persist(ctx context.Context, log *zap.Logger, diff Diff) bool {
	ok := true
	if len(diff.Deleted) > 0 {
		codes := diff.Deleted.Codes()
		if err := s.store.Delete(ctx, codes); err != nil {
			ok = false
			log.Error("Failed to delete outdated lines", zap.Strings("codes", codes), zap.Error(err))
		} else {
			log.Sugar().Infow("Deleted outdated lines", "codes", codes)
		}
	}

	if err := s.store.SaveAll(ctx, diff.Lines); err != nil {
		ok = false
		log.Error("Failed to save lines", zap.Error(err))
	}
	return ok
}

func (s *Scraper) notify(ctx context.Context, diff Diff) {
	if len(diff.Deleted) > 0 {
		s.observer.OnDeleted(ctx, diff.Deleted)
	}
	if len(diff.Changed) > 0 {
		s.observer.OnChanged(ctx, diff.Changed)
	}
}
