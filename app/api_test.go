package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib"
	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/fiffu/timetablewatch/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubRunner struct {
	running atomic.Bool
	runs    atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context) (*scraper.Result, error) {
	r.runs.Add(1)
	return &scraper.Result{}, nil
}

func (r *stubRunner) Running() bool { return r.running.Load() }

type apiFixture struct {
	srv    *httptest.Server
	store  store.Store
	runner *stubRunner
}

// newLocationIQ answers reverse lookups for a single point inside Boves.
func newLocationIQ(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("lat") == "44.33" && r.URL.Query().Get("lon") == "7.55" {
			w.Write([]byte(`{"address":{"town":"Boves","county":"Cuneo"}}`))
			return
		}
		w.Write([]byte(`{"address":{"country":"Italia"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAPIFixture(t *testing.T, environ map[string]string) *apiFixture {
	t.Helper()
	environ["LOCATIONIQ_ENDPOINT"] = newLocationIQ(t).URL
	cfg, err := config.Parse(env.Options{Environment: environ})
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.sqlite")), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zaptest.NewLogger(t)
	reg := NewRegistry()
	st := NewStore(cfg, log, db, reg)
	runner := &stubRunner{}
	svc := lib.NewService(cfg, log, st, runner, NewGeocoder(cfg, log, http.DefaultClient))

	srv := httptest.NewServer(router(cfg, log, svc, reg))
	t.Cleanup(srv.Close)

	require.NoError(t, st.SaveAll(context.Background(), models.Lines{
		{Code: "101", Name: "Cuneo - Boves", URL: "https://bit.ly/101", Cities: []string{"CUNEO", "BOVES"}, ContentHash: "abc"},
		{Code: "202", Name: "Alba - Bra", Cities: []string{"ALBA"}},
	}))
	return &apiFixture{srv, st, runner}
}

func (f *apiFixture) do(t *testing.T, method, path string, form url.Values) (*http.Response, []byte) {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})
	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestAPI_Metrics(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})
	resp, body := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "timetablewatch_store_batch_commits_total")
}

func TestAPI_ViewLine(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, body := f.do(t, http.MethodGet, "/api/lines/101", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view LineView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "101", view.Code)
	assert.Equal(t, []string{"CUNEO", "BOVES"}, view.Cities)
	require.NotNil(t, view.ContentHash)
	assert.Equal(t, "abc", *view.ContentHash)
	assert.Equal(t, []string{}, view.Subscribers)

	resp, body = f.do(t, http.MethodGet, "/api/lines/202", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"content_hash":null`)

	resp, _ = f.do(t, http.MethodGet, "/api/lines/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_LinesByCity(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, body := f.do(t, http.MethodGet, "/api/lines?city=boves", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []LineView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "101", views[0].Code)

	resp, body = f.do(t, http.MethodGet, "/api/lines?city=bra", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))

	resp, _ = f.do(t, http.MethodGet, "/api/lines", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/lines?city=%20%20", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/lines?city=%20boves%20", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"101"`)
}

func TestAPI_LinesByLocation(t *testing.T) {
	f := newAPIFixture(t, map[string]string{"LOCATIONIQ_API_KEY": "k3y"})

	resp, body := f.do(t, http.MethodGet, "/api/lines?lat=44.33&lon=7.55", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []LineView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "101", views[0].Code)

	resp, _ = f.do(t, http.MethodGet, "/api/lines?lat=45&lon=8", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/lines?lat=north&lon=8", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/lines?lat=44.33", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/lines?lat=100&lon=8", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_LinesByLocationDisabled(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, _ := f.do(t, http.MethodGet, "/api/lines?lat=44.33&lon=7.55", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPI_Subscribers(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, body := f.do(t, http.MethodPost, "/api/lines/101/subscribers", url.Values{"subscriber": {"42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"subscribers":["42"]`)

	resp, _ = f.do(t, http.MethodPost, "/api/lines/101/subscribers", url.Values{"subscriber": {""}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/lines/999/subscribers", url.Values{"subscriber": {"42"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodDelete, "/api/lines/101/subscribers?subscriber=42", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"subscribers":[]`)

	line, err := f.store.Get(context.Background(), "101")
	require.NoError(t, err)
	assert.Empty(t, line.Subscribers)
}

func TestAPI_LastSession(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, _ := f.do(t, http.MethodGet, "/api/scraper/last-session", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	at := time.Date(2024, 5, 10, 0, 0, 3, 0, time.UTC)
	require.NoError(t, f.store.SetLastSession(context.Background(), "deadbeef", at))

	resp, body := f.do(t, http.MethodGet, "/api/scraper/last-session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view SessionView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, SessionView{ResponseHash: "deadbeef", Date: "2024-05-10T00:00:03Z"}, view)
}

func TestAPI_TriggerScrape(t *testing.T) {
	f := newAPIFixture(t, map[string]string{})

	resp, _ := f.do(t, http.MethodPost, "/api/scraper/run", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, func() bool { return f.runner.runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	f.runner.running.Store(true)
	resp, _ = f.do(t, http.MethodPost, "/api/scraper/run", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_BasicAuth(t *testing.T) {
	f := newAPIFixture(t, map[string]string{"BASIC_AUTH_CREDS": "admin:secret"})

	resp, _ := f.do(t, http.MethodGet, "/api/lines/101", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/lines/101", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err = f.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
