package models

import "slices"

// Line is a bus route as scraped from the timetable page.
//
// Two Lines with the same Code are the same line, possibly in different versions.
// Use LineKey for every set or map operation; the remaining fields are never
// part of a line's identity.
type Line struct {
	Code        string
	Name        string
	URL         string
	Cities      []string
	ContentHash string // empty when the timetable document could not be fetched
	Subscribers []string
}

func LineKey(l Line) string {
	return l.Code
}

func (l Line) HasHash() bool {
	return l.ContentHash != ""
}

// Clone returns a copy that shares no slices with l.
func (l Line) Clone() Line {
	l.Cities = slices.Clone(l.Cities)
	l.Subscribers = slices.Clone(l.Subscribers)
	return l
}

func (l Line) IsSubscribed(subscriber string) bool {
	return slices.ContainsFunc(l.Subscribers, func(v string) bool { return SameSubscriber(v, subscriber) })
}

type Lines []Line

// Index maps each line by LineKey. Later duplicates win.
func (ls Lines) Index() map[string]Line {
	idx := make(map[string]Line, len(ls))
	for _, l := range ls {
		idx[LineKey(l)] = l
	}
	return idx
}

func (ls Lines) Codes() []string {
	codes := make([]string, len(ls))
	for i, l := range ls {
		codes[i] = LineKey(l)
	}
	return codes
}
