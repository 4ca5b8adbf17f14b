package scraper

import (
	"slices"

	"github.com/fiffu/timetablewatch/lib/models"
)

type Diff struct {
	// Lines is the fresh set with stored subscribers carried over, ready to persist.
	Lines models.Lines

	Created models.Lines
	Deleted models.Lines
	// Changed holds the stored version of each line whose timetable document
	// changed, so its subscriber list is the persisted one. Name, URL, cities
	// and hash are taken from the fresh scrape.
	Changed models.Lines
}

// Reconcile compares fresh against stored by models.LineKey. Neither input is
// modified, and the result only depends on the inputs.
func Reconcile(fresh, stored models.Lines) Diff {
	prev := stored.Index()
	seen := make(map[string]struct{}, len(fresh))

	d := Diff{
		Lines:   make(models.Lines, 0, len(fresh)),
		Created: models.Lines{},
		Deleted: models.Lines{},
		Changed: models.Lines{},
	}

	for _, f := range fresh {
		line := f.Clone()
		key := models.LineKey(line)
		seen[key] = struct{}{}

		old, ok := prev[key]
		if !ok {
			d.Created = append(d.Created, line.Clone())
			d.Lines = append(d.Lines, line)
			continue
		}

		line.Subscribers = slices.Clone(old.Subscribers)

		switch {
		case !line.HasHash():
			// Document unreachable this time; keep the last known hash so the
			// next successful fetch is still compared against it.
			line.ContentHash = old.ContentHash

		case old.HasHash() && old.ContentHash != line.ContentHash:
			changed := old.Clone()
			changed.Name = line.Name
			changed.URL = line.URL
			changed.Cities = slices.Clone(line.Cities)
			changed.ContentHash = line.ContentHash
			d.Changed = append(d.Changed, changed)
		}

		d.Lines = append(d.Lines, line)
	}

	for _, old := range stored {
		if _, ok := seen[models.LineKey(old)]; !ok {
			d.Deleted = append(d.Deleted, old.Clone())
		}
	}

	return d
}
