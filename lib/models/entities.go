package models

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
)

const LastSessionID = "last_session"

type LineRecord struct {
	Code        string `gorm:"primaryKey"`
	Name        string
	URL         string `gorm:"column:timetable_url"`
	Cities      datatypes.JSONSlice[string]
	FileHash    sql.NullString
	Subscribers datatypes.JSONSlice[string] `gorm:"column:user_subscriptions"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (LineRecord) TableName() string { return "lines" }

type LineRecords []LineRecord

func NewLineRecord(l Line) LineRecord {
	return LineRecord{
		Code:        l.Code,
		Name:        l.Name,
		URL:         l.URL,
		Cities:      nonNil(l.Cities),
		FileHash:    sql.NullString{String: l.ContentHash, Valid: l.ContentHash != ""},
		Subscribers: nonNil(l.Subscribers),
	}
}

func (r LineRecord) ToLine() Line {
	l := Line{
		Code:        r.Code,
		Name:        r.Name,
		URL:         r.URL,
		Cities:      nonNil(r.Cities),
		Subscribers: nonNil(r.Subscribers),
	}
	if r.FileHash.Valid {
		l.ContentHash = r.FileHash.String
	}
	return l
}

func (rs LineRecords) ToLines() Lines {
	lines := make(Lines, len(rs))
	for i, r := range rs {
		lines[i] = r.ToLine()
	}
	return lines
}

// nonNil keeps JSON columns as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

type ScrapeSession struct {
	ID           string `gorm:"primaryKey"`
	ResponseHash string
	Date         time.Time
}

func DigestContent(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
