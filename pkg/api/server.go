// Package api exposes the survey engine to the presentation layer over
// HTTP JSON. The API is the boundary spec'd for external UIs: house
// structure in, profiles/edges/recommendations out.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markus-lassfolk/wifisurvey/pkg/config"
	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/mqtt"
	"github.com/markus-lassfolk/wifisurvey/pkg/overlap"
	"github.com/markus-lassfolk/wifisurvey/pkg/plan"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/session"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

// Server wires the aggregator, analyzer and recommendation engine behind
// the HTTP boundary
type Server struct {
	cfg        *config.Config
	aggregator *site.Aggregator
	analyzer   *overlap.Analyzer
	engine     *plan.Engine
	scanner    scan.Scanner
	store      *session.Store
	publisher  *mqtt.Client
	logger     *logx.Logger
	metrics    *metrics
	registry   *prometheus.Registry
	startTime  time.Time

	// The adapter runs one scan at a time; concurrent triggers get 409
	scanMu sync.Mutex

	httpServer *http.Server
}

// NewServer assembles the API server
func NewServer(cfg *config.Config, aggregator *site.Aggregator, analyzer *overlap.Analyzer,
	engine *plan.Engine, scanner scan.Scanner, store *session.Store,
	publisher *mqtt.Client, logger *logx.Logger,
) *Server {
	registry := prometheus.NewRegistry()
	return &Server{
		cfg:        cfg,
		aggregator: aggregator,
		analyzer:   analyzer,
		engine:     engine,
		scanner:    scanner,
		store:      store,
		publisher:  publisher,
		logger:     logger,
		metrics:    newMetrics(registry),
		registry:   registry,
		startTime:  time.Now(),
	}
}

// Router builds the HTTP route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/status", s.auth(s.handleStatus)).Methods(http.MethodGet)
	v1.HandleFunc("/house", s.auth(s.handleSetHouse)).Methods(http.MethodPost)
	v1.HandleFunc("/house", s.auth(s.handleGetHouse)).Methods(http.MethodGet)
	v1.HandleFunc("/scan", s.auth(s.handleScan)).Methods(http.MethodPost)
	v1.HandleFunc("/quick-channel", s.auth(s.handleQuickChannel)).Methods(http.MethodGet)
	v1.HandleFunc("/connected", s.auth(s.handleConnected)).Methods(http.MethodGet)
	v1.HandleFunc("/profiles", s.auth(s.handleProfiles)).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{bssid}", s.auth(s.handleProfile)).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{bssid}/owned", s.auth(s.handleSetOwned)).Methods(http.MethodPost)
	v1.HandleFunc("/overlap", s.auth(s.handleOverlap)).Methods(http.MethodGet)
	v1.HandleFunc("/recommendations", s.auth(s.handleRecommendations)).Methods(http.MethodGet)
	v1.HandleFunc("/census", s.auth(s.handleCensus)).Methods(http.MethodGet)
	v1.HandleFunc("/sessions", s.auth(s.handleListSessions)).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{name}", s.auth(s.handleSaveSession)).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{name}", s.auth(s.handleLoadSession)).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{name}", s.auth(s.handleDeleteSession)).Methods(http.MethodDelete)

	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves HTTP until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.cfg.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// auth validates the optional API key before a handler runs
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("auth")
		}
		if key != s.cfg.APIKey {
			s.logger.Warn("Invalid authentication attempt", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleStatus reports daemon health and model size
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	house := s.aggregator.House()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_s": int(time.Since(s.startTime).Seconds()),
		"house":    house.Name,
		"rooms":    house.RoomCount(),
		"profiles": s.aggregator.ProfileCount(),
		"region":   s.cfg.Region,
		"device":   s.cfg.Device,
	})
}

// handleSetHouse installs the house/floor/room structure
func (s *Server) handleSetHouse(w http.ResponseWriter, r *http.Request) {
	var house site.House
	if err := json.NewDecoder(r.Body).Decode(&house); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.aggregator.SetHouse(house); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.House())
}

type scanRequest struct {
	Floor string `json:"floor"`
	Room  string `json:"room"`
}

// handleScan runs one blocking scan and ingests the results for a room.
// A driver failure reports zero records for the room; it never fails the
// session. Concurrent scan triggers are rejected: the hardware runs one
// scan at a time.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.scanMu.TryLock() {
		s.writeError(w, http.StatusConflict, errors.New("scan already in progress"))
		return
	}
	defer s.scanMu.Unlock()

	s.metrics.scansTotal.Inc()

	raws, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.metrics.scanErrorsTotal.Inc()
		s.logger.Warn("Scan failed, reporting zero records",
			"floor", req.Floor,
			"room", req.Room,
			"error", err)
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"scan_error": err.Error(),
			"report":     &site.IngestReport{},
		})
		return
	}

	// Cancelled before results: ingest nothing
	if r.Context().Err() != nil {
		s.writeError(w, http.StatusRequestTimeout, r.Context().Err())
		return
	}

	report, err := s.aggregator.IngestRaw(raws, req.Floor, req.Room, time.Now().UTC())
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, site.ErrNoRooms) {
			status = http.StatusInternalServerError
		}
		s.writeError(w, status, err)
		return
	}

	s.metrics.recordsAccepted.Add(float64(report.Accepted))
	s.metrics.recordsDiscarded.Add(float64(report.Discarded))
	s.metrics.recordsDuplicate.Add(float64(report.Duplicates))
	s.metrics.profilesGauge.Set(float64(s.aggregator.ProfileCount()))

	s.publisher.Publish("scan", map[string]interface{}{
		"floor":  req.Floor,
		"room":   req.Room,
		"report": report,
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

// handleQuickChannel runs a single scan and returns the instant
// best-channel heuristic, for use before any survey exists
func (s *Server) handleQuickChannel(w http.ResponseWriter, r *http.Request) {
	if !s.scanMu.TryLock() {
		s.writeError(w, http.StatusConflict, errors.New("scan already in progress"))
		return
	}
	defer s.scanMu.Unlock()

	raws, err := s.scanner.Scan(r.Context())
	if err != nil {
		s.metrics.scanErrorsTotal.Inc()
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"channel": plan.QuickBestChannel(raws)})
}

// handleConnected reports the BSSID the survey interface is associated
// with, so the UI can pre-flag the user's own AP
func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	bssid, err := s.scanner.ConnectedBSSID(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"bssid": bssid})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.Snapshot())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.aggregator.GetProfile(mux.Vars(r)["bssid"])
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

type ownedRequest struct {
	Owned bool `json:"owned"`
}

func (s *Server) handleSetOwned(w http.ResponseWriter, r *http.Request) {
	var req ownedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.aggregator.SetOwned(mux.Vars(r)["bssid"], req.Owned); err != nil {
		if errors.Is(err, site.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOverlap recomputes edges from an atomic snapshot
func (s *Server) handleOverlap(w http.ResponseWriter, r *http.Request) {
	edges := s.analyzer.ComputeOverlap(s.aggregator.Snapshot())
	if edges == nil {
		edges = []overlap.Edge{}
	}
	s.writeJSON(w, http.StatusOK, edges)
}

// handleRecommendations runs the full analysis pass: snapshot → edges →
// recommendations
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	snapshot := s.aggregator.Snapshot()
	edges := s.analyzer.ComputeOverlap(snapshot)
	recommendations := s.engine.Recommend(snapshot, edges)
	if recommendations == nil {
		recommendations = []plan.Recommendation{}
	}

	s.metrics.recommendationsTotal.Add(float64(len(recommendations)))

	if len(recommendations) > 0 {
		s.publisher.Publish("recommendations", recommendations)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recommendations,
		"message":         recommendationMessage(len(recommendations)),
	})
}

func recommendationMessage(n int) string {
	if n == 0 {
		return "no action needed"
	}
	return "channel changes recommended"
}

func (s *Server) handleCensus(w http.ResponseWriter, r *http.Request) {
	band := scan.Band(r.URL.Query().Get("band"))
	switch band {
	case scan.Band24, scan.Band5, scan.Band6:
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("band must be 2.4GHz, 5GHz or 6GHz"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.ChannelCensus(band))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	doc := session.NewDocument(s.aggregator.House(), s.aggregator.Records())
	if err := s.store.Save(mux.Vars(r)["name"], doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"records": len(doc.Records),
	})
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Load(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	report, err := doc.Restore(s.aggregator)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.metrics.profilesGauge.Set(float64(s.aggregator.ProfileCount()))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"house":  doc.House,
		"report": report,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["name"]); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
