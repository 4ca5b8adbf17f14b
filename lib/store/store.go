package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/timetablewatch/lib/models"
)

const DefaultBatchSize = 500

var ErrNotFound = errors.New("record not found")

// Store persists lines and the last scrape session.
//
// SaveAll upserts by code and never overwrites the subscribers of an existing
// line. Writes are split into batches of at most the configured batch size;
// each batch is atomic, a multi-batch write is not.
type Store interface {
	LoadAll(ctx context.Context) (models.Lines, error)
	SaveAll(ctx context.Context, lines models.Lines) error
	Delete(ctx context.Context, codes []string) error

	LastSession(ctx context.Context) (*models.ScrapeSession, error)
	SetLastSession(ctx context.Context, pageHash string, timestamp time.Time) error

	Get(ctx context.Context, code string) (*models.Line, error)
	FindByCity(ctx context.Context, city string) (models.Lines, error)
	AddSubscriber(ctx context.Context, code, subscriber string) (*models.Line, error)
	RemoveSubscriber(ctx context.Context, code, subscriber string) (*models.Line, error)
}

// PersistenceError wraps a failed write or read against the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for lo := 0; lo < len(items); lo += size {
		hi := min(lo+size, len(items))
		chunks = append(chunks, items[lo:hi])
	}
	return chunks
}
