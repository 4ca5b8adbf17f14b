package geocoder

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"
)

const DefaultLocationIQEndpoint = "https://us1.locationiq.com/v1/reverse.php"

var (
	ErrDisabled = errors.New("reverse geocoding is not configured")
	ErrNoCity   = errors.New("no city found at location")
)

type LocationIQ struct {
	client   *http.Client
	endpoint string
	key      string
}

func NewLocationIQ(client *http.Client, endpoint, key string) *LocationIQ {
	if endpoint == "" {
		endpoint = DefaultLocationIQEndpoint
	}
	return &LocationIQ{client, endpoint, key}
}

type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
}

// City returns the upper-cased name of the municipality at lat, lon, the way
// cities appear on the timetable. Small comuni come back as town or village.
func (l *LocationIQ) City(ctx context.Context, lat, lon float64) (string, error) {
	var resp reverseResponse
	err := requests.URL(l.endpoint).
		Client(l.client).
		Param("key", l.key).
		Param("lat", strconv.FormatFloat(lat, 'f', -1, 64)).
		Param("lon", strconv.FormatFloat(lon, 'f', -1, 64)).
		Param("format", "json").
		CheckStatus(http.StatusOK).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", err
	}

	for _, name := range []string{resp.Address.City, resp.Address.Town, resp.Address.Village} {
		if name = strings.TrimSpace(name); name != "" {
			return strings.ToUpper(name), nil
		}
	}
	return "", ErrNoCity
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) City(context.Context, float64, float64) (string, error) {
	return "", ErrDisabled
}
