package shortener

import (
	"context"
	"errors"
	"net/http"

	"github.com/carlmjohnson/requests"
)

const DefaultBitlyEndpoint = "https://api-ssl.bitly.com/v4/shorten"

type Bitly struct {
	client   *http.Client
	endpoint string
	token    string
}

func NewBitly(client *http.Client, endpoint, token string) *Bitly {
	if endpoint == "" {
		endpoint = DefaultBitlyEndpoint
	}
	return &Bitly{client, endpoint, token}
}

func (b *Bitly) Shorten(ctx context.Context, longURL string) (string, error) {
	var resp struct {
		Link string `json:"link"`
	}
	err := requests.URL(b.endpoint).
		Client(b.client).
		Bearer(b.token).
		BodyJSON(map[string]string{"long_url": longURL}).
		CheckStatus(http.StatusOK, http.StatusCreated).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", err
	}
	if resp.Link == "" {
		return "", errors.New("bitly response has no link")
	}
	return resp.Link, nil
}

// Passthrough returns every URL unchanged.
type Passthrough struct{}

func (Passthrough) Shorten(_ context.Context, longURL string) (string, error) {
	return longURL, nil
}
