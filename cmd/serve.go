package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/1F47E/quadcursor/internal/config"
	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/internal/metrics"
	"github.com/1F47E/quadcursor/pkg/session"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cursor descriptions over HTTP",
	Long: `GET /describe?lon=..&lat=..&keys=.. runs a headless session and returns its
snapshot and announcements as JSON. /metrics exposes Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default: server.addr from config)")
}

type server struct {
	cfg      config.Config
	provider session.FeatureProvider
	poi      session.POILookup
	extent   orb.Bound
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe", s.handleDescribe)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return logger.AccessMiddleware(logger.L())(mux)
}

func (s *server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	center := s.extent.Center()
	if q.Has("lon") || q.Has("lat") {
		lon, err1 := strconv.ParseFloat(q.Get("lon"), 64)
		lat, err2 := strconv.ParseFloat(q.Get("lat"), 64)
		if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			writeError(w, http.StatusBadRequest, "lon and lat must both be valid coordinates")
			return
		}
		center = orb.Point{lon, lat}
	}
	keys, err := parseKeys(q.Get("keys"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := newDriver(s.cfg, s.provider, s.poi, center, logger.L())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer d.close()

	if err := d.start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, ev := range keys {
		if err := d.press(ev); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, describeResult{
		Snapshot: d.session.Snapshot(),
		Commands: d.out.Commands(),
		Labels:   d.out.Labels(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr == "" {
		serveAddr = cfg.Server.Addr
	}
	l := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx, sourceTarget, cfg)
	if err != nil {
		return err
	}
	defer src.close()

	lookup, closePOI, err := buildPOI(cfg)
	if err != nil {
		return err
	}
	defer closePOI()

	s := &server{cfg: cfg, provider: src.provider, poi: lookup, extent: src.extent}
	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("server_start", "addr", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
