package app

import (
	"net/http"
	"time"

	"github.com/fiffu/timetablewatch/config"
	"go.uber.org/zap"
)

func NewTransport(log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

func NewHTTPClient(cfg *config.Config, tpt http.RoundTripper) *http.Client {
	return &http.Client{Transport: tpt, Timeout: cfg.HTTPTimeout()}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := tpt.base.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		tpt.log.Sugar().Debugw("Outbound request failed", "method", req.Method, "host", req.URL.Host, "elapsed_msecs", elapsed, "err", err)
		return nil, err
	}
	tpt.log.Sugar().Debugw("Outbound request", "method", req.Method, "host", req.URL.Host, "status", resp.StatusCode, "elapsed_msecs", elapsed)
	return resp, nil
}
