package app

import (
	"time"

	"github.com/fiffu/timetablewatch/lib/models"
)

type LineView struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Cities      []string `json:"cities"`
	ContentHash *string  `json:"content_hash"`
	Subscribers []string `json:"subscribers"`
}

func (view LineView) From(entity models.Line) LineView {
	v := LineView{
		Code:        entity.Code,
		Name:        entity.Name,
		URL:         entity.URL,
		Cities:      nonNil(entity.Cities),
		Subscribers: nonNil(entity.Subscribers),
	}
	if entity.HasHash() {
		v.ContentHash = &entity.ContentHash
	}
	return v
}

type SessionView struct {
	ResponseHash string `json:"response_hash"`
	Date         string `json:"date"`
}

func (view SessionView) From(entity *models.ScrapeSession) SessionView {
	return SessionView{
		ResponseHash: entity.ResponseHash,
		Date:         isoformat(entity.Date),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
