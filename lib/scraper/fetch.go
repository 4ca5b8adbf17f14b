package scraper

import (
	"bytes"
	"context"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/timetablewatch/lib/models"
)

type Page struct {
	Body   []byte
	Digest string
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client}
}

// Fetch downloads url with a single GET. Anything but 200 OK is a *NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	var buf bytes.Buffer
	err := requests.URL(url).
		Client(f.client).
		CheckStatus(http.StatusOK).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	body := buf.Bytes()
	return &Page{Body: body, Digest: models.DigestContent(body)}, nil
}
