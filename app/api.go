package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib"
	"github.com/fiffu/timetablewatch/lib/geocoder"
	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/lib/scraper"
	"github.com/fiffu/timetablewatch/lib/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, reg *prometheus.Registry) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc, reg)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			log.Sugar().Infow("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service, reg *prometheus.Registry) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("timetablewatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/lines", func(r chi.Router) {
			r.Get("/", ctrl.searchLines)
			r.Get("/{code}", ctrl.viewLine)
			r.Post("/{code}/subscribers", ctrl.subscribe)
			r.Delete("/{code}/subscribers", ctrl.unsubscribe)
		})
		r.Route("/scraper", func(r chi.Router) {
			r.Get("/last-session", ctrl.lastSession)
			r.Post("/run", ctrl.triggerScrape)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

// fail picks the status for err and rejects with it.
func (ctrl *controller) fail(w http.ResponseWriter, err error) {
	var invalid lib.ErrInvalidSubscriber
	var badQuery lib.ErrInvalidQuery
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, geocoder.ErrNoCity):
		ctrl.reject(w, http.StatusNotFound, err)
	case errors.Is(err, scraper.ErrRunInProgress):
		ctrl.reject(w, http.StatusConflict, err)
	case errors.As(err, &invalid), errors.As(err, &badQuery):
		ctrl.reject(w, http.StatusBadRequest, err)
	case errors.Is(err, geocoder.ErrDisabled):
		ctrl.reject(w, http.StatusServiceUnavailable, err)
	default:
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// searchLines looks lines up by ?city= or, failing that, by ?lat=&lon=.
func (ctrl *controller) searchLines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var lines models.Lines
	var err error
	if q.Has("lat") || q.Has("lon") {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(q.Get("lon")), 64)
		if latErr != nil || lonErr != nil {
			ctrl.reject(w, http.StatusBadRequest, errors.New("lat and lon must be decimal degrees"))
			return
		}
		lines, err = ctrl.svc.LinesNear(r.Context(), lat, lon)
	} else {
		lines, err = ctrl.svc.LinesByCity(r.Context(), strings.TrimSpace(q.Get("city")))
	}
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Line, LineView](lines))
}

func (ctrl *controller) viewLine(w http.ResponseWriter, r *http.Request) {
	line, err := ctrl.svc.FindLine(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, LineView{}.From(*line))
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	line, err := ctrl.svc.Subscribe(r.Context(), chi.URLParam(r, "code"), r.FormValue("subscriber"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, LineView{}.From(*line))
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	line, err := ctrl.svc.Unsubscribe(r.Context(), chi.URLParam(r, "code"), r.URL.Query().Get("subscriber"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, LineView{}.From(*line))
}

func (ctrl *controller) lastSession(w http.ResponseWriter, r *http.Request) {
	sess, err := ctrl.svc.LastSession(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, SessionView{}.From(sess))
}

func (ctrl *controller) triggerScrape(w http.ResponseWriter, r *http.Request) {
	if err := ctrl.svc.TriggerScrape(r.Context()); err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusAccepted, map[string]any{"started": true})
}
