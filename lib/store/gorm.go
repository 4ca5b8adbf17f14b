package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns refreshed by a scrape. user_subscriptions is deliberately absent.
var scrapedColumns = []string{"name", "timetable_url", "cities", "file_hash", "updated_at"}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.LineRecord{},
		&models.ScrapeSession{},
	)
}

type GormStore struct {
	db        *gorm.DB
	log       *zap.Logger
	batchSize int
	commits   *prometheus.CounterVec
}

func NewGormStore(db *gorm.DB, log *zap.Logger, batchSize int, reg prometheus.Registerer) *GormStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	commits := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "timetablewatch_store_batch_commits_total",
		Help: "Committed write batches by operation.",
	}, []string{"op"})
	return &GormStore{db, log, batchSize, commits}
}

// inBatches runs fn in one transaction per chunk. A failing chunk is reported
// and the remaining chunks are still attempted.
func inBatches[T any](ctx context.Context, s *GormStore, op string, items []T, fn func(tx *gorm.DB, chunk []T) error) error {
	var errs []error
	for i, chunk := range Chunk(items, s.batchSize) {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx, chunk)
		})
		if err != nil {
			s.log.Sugar().Errorw("Batch write failed", "op", op, "batch", i, "size", len(chunk), "err", err)
			errs = append(errs, &PersistenceError{Op: op, Err: err})
			continue
		}
		s.commits.WithLabelValues(op).Inc()
		s.log.Sugar().Debugw("Batch committed", "op", op, "batch", i, "size", len(chunk))
	}
	return errors.Join(errs...)
}

func (s *GormStore) LoadAll(ctx context.Context) (models.Lines, error) {
	var all models.LineRecords
	var batch models.LineRecords
	tx := s.db.WithContext(ctx).
		FindInBatches(&batch, s.batchSize, func(tx *gorm.DB, n int) error {
			all = append(all, batch...)
			return nil
		})
	if err := tx.Error; err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return all.ToLines(), nil
}

func (s *GormStore) SaveAll(ctx context.Context, lines models.Lines) error {
	records := make(models.LineRecords, len(lines))
	for i, l := range lines {
		records[i] = models.NewLineRecord(l)
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns(scrapedColumns),
	}
	return inBatches(ctx, s, "save", []models.LineRecord(records), func(tx *gorm.DB, chunk []models.LineRecord) error {
		return tx.Clauses(upsert).Create(&chunk).Error
	})
}

func (s *GormStore) Delete(ctx context.Context, codes []string) error {
	return inBatches(ctx, s, "delete", codes, func(tx *gorm.DB, chunk []string) error {
		return tx.Where("code IN ?", chunk).Delete(&models.LineRecord{}).Error
	})
}

func (s *GormStore) LastSession(ctx context.Context) (*models.ScrapeSession, error) {
	sess := &models.ScrapeSession{}
	tx := s.db.WithContext(ctx).Where("id = ?", models.LastSessionID).First(sess)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, &PersistenceError{Op: "last session", Err: err}
	}
	return sess, nil
}

func (s *GormStore) SetLastSession(ctx context.Context, pageHash string, timestamp time.Time) error {
	sess := &models.ScrapeSession{
		ID:           models.LastSessionID,
		ResponseHash: pageHash,
		Date:         timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return &PersistenceError{Op: "set last session", Err: err}
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, code string) (*models.Line, error) {
	rec, err := s.find(s.db.WithContext(ctx), code)
	if err != nil {
		return nil, err
	}
	line := rec.ToLine()
	return &line, nil
}

func (s *GormStore) find(tx *gorm.DB, code string) (*models.LineRecord, error) {
	rec := &models.LineRecord{}
	err := tx.Where("code = ?", code).First(rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return rec, nil
}

// FindByCity matches any of a line's cities, ignoring case.
func (s *GormStore) FindByCity(ctx context.Context, city string) (models.Lines, error) {
	var records models.LineRecords
	tx := s.db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM json_each(lines.cities) WHERE upper(json_each.value) = upper(?))", city).
		Order("code").
		Find(&records)
	if err := tx.Error; err != nil {
		return nil, &PersistenceError{Op: "find by city", Err: err}
	}
	return records.ToLines(), nil
}

func (s *GormStore) AddSubscriber(ctx context.Context, code, subscriber string) (*models.Line, error) {
	return s.updateSubscribers(ctx, code, func(subs []string) []string {
		if slices.ContainsFunc(subs, func(v string) bool { return models.SameSubscriber(v, subscriber) }) {
			return subs
		}
		return append(subs, subscriber)
	})
}

func (s *GormStore) RemoveSubscriber(ctx context.Context, code, subscriber string) (*models.Line, error) {
	return s.updateSubscribers(ctx, code, func(subs []string) []string {
		return slices.DeleteFunc(subs, func(v string) bool { return models.SameSubscriber(v, subscriber) })
	})
}

func (s *GormStore) updateSubscribers(ctx context.Context, code string, update func([]string) []string) (*models.Line, error) {
	var line models.Line
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.find(tx, code)
		if err != nil {
			return err
		}

		rec.Subscribers = update(slices.Clone(rec.Subscribers))
		if rec.Subscribers == nil {
			rec.Subscribers = []string{}
		}
		if err := tx.Model(rec).Update("user_subscriptions", rec.Subscribers).Error; err != nil {
			return &PersistenceError{Op: "update subscribers", Err: err}
		}
		line = rec.ToLine()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}
