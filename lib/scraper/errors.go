package scraper

import (
	"errors"
	"fmt"
)

var ErrRunInProgress = errors.New("scrape run already in progress")

// NetworkError reports a failed fetch, shorten or document download.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaError means the timetable page no longer has the expected shape.
// Runs that hit it must not persist anything.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "timetable schema changed: " + e.Reason
}
