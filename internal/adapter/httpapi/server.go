// Package httpapi exposes the dashboard API plus health, readiness, and
// metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
)

// Aggregator produces station records on demand.
type Aggregator interface {
	Aggregate(ctx context.Context) []domain.StationRecord
	AggregateOne(ctx context.Context, stationID int) domain.StationRecord
}

// HistoryReader returns stored readings for a station, oldest first.
type HistoryReader interface {
	Readings(ctx context.Context, stationID, limit int) ([]domain.StationRecord, error)
}

// LocationStore is the operator-facing locations CRUD.
type LocationStore interface {
	GetLocation(ctx context.Context, stationID int) (domain.StationLocation, bool, error)
	ListLocations(ctx context.Context) (map[int]domain.StationLocation, error)
	PutLocation(ctx context.Context, stationID int, loc domain.StationLocation) error
}

// Rescanner drops cached discovery state so the next cycle probes afresh.
type Rescanner interface {
	Invalidate()
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

const defaultHistoryLimit = 100

// Server exposes the dashboard HTTP API.
type Server struct {
	httpServer *http.Server

	aggregator    Aggregator
	history       HistoryReader
	locations     LocationStore
	rescanner     Rescanner
	recencyWindow time.Duration

	logger *slog.Logger
}

// NewServer wires the dashboard routes. history, locations, and rescanner
// may be nil; the corresponding endpoints then answer 503.
func NewServer(addr string, agg Aggregator, history HistoryReader, locations LocationStore, rescanner Rescanner, ready ReadinessChecker, recencyWindow time.Duration, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		aggregator:    agg,
		history:       history,
		locations:     locations,
		rescanner:     rescanner,
		recencyWindow: recencyWindow,
		logger:        logger,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	mux.HandleFunc("GET /api/dados", s.handleReadings)
	mux.HandleFunc("GET /api/dados/{id}", s.handleStationReading)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/historico/{id}", s.handleHistory)
	mux.HandleFunc("POST /api/rescan", s.handleRescan)
	mux.HandleFunc("GET /api/locations", s.handleGetLocations)
	mux.HandleFunc("POST /api/locations", s.handleSaveLocation)
	mux.HandleFunc("PUT /api/locations", s.handleSaveLocation)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// middleware applies CORS headers, answers preflight requests, and converts
// handler panics into a 500 response. The dashboard is served from arbitrary
// origins, so CORS is permissive.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "erro interno do servidor",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	records := s.aggregator.Aggregate(r.Context())
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStationReading(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.aggregator.AggregateOne(r.Context(), id))
}

// stationStatus is one row of the /api/status summary.
type stationStatus struct {
	ID            int        `json:"id"`
	Online        bool       `json:"online"`
	UltimaLeitura *time.Time `json:"ultimaLeitura"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	records := s.aggregator.Aggregate(r.Context())

	stations := make([]stationStatus, 0, len(records))
	online := 0
	for _, rec := range records {
		active := rec.Active(s.recencyWindow)
		if active {
			online++
		}
		stations = append(stations, stationStatus{
			ID:            rec.StationID,
			Online:        active,
			UltimaLeitura: rec.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalEstacoes":  len(records),
		"estacoesOnline": online,
		"estacoes":       stations,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "histórico indisponível"})
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limite"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limite inválido"})
			return
		}
		limit = n
	}

	records, err := s.history.Readings(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history query failed", "station_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao ler histórico"})
		return
	}
	if records == nil {
		records = []domain.StationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRescan(w http.ResponseWriter, _ *http.Request) {
	if s.rescanner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rescan indisponível"})
		return
	}
	s.rescanner.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Nova varredura de estações agendada",
	})
}

func (s *Server) handleGetLocations(w http.ResponseWriter, r *http.Request) {
	if s.locations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "localizações indisponíveis"})
		return
	}

	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
			return
		}
		loc, ok, err := s.locations.GetLocation(r.Context(), id)
		if err != nil {
			s.logger.Error("location lookup failed", "station_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao ler localização"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "localização não encontrada"})
			return
		}
		writeJSON(w, http.StatusOK, loc)
		return
	}

	all, err := s.locations.ListLocations(r.Context())
	if err != nil {
		s.logger.Error("locations list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao ler localizações"})
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// locationRequest is the POST/PUT /api/locations body.
type locationRequest struct {
	ID        *int   `json:"id"`
	Nome      string `json:"nome"`
	Endereco  string `json:"endereco"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	if s.locations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "localizações indisponíveis"})
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo da requisição inválido"})
		return
	}
	if req.ID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id da estação é obrigatório"})
		return
	}

	loc := domain.StationLocation{
		Nome:      req.Nome,
		Endereco:  req.Endereco,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if loc.Nome == "" {
		loc.Nome = domain.DefaultStationName(*req.ID)
	}

	if err := s.locations.PutLocation(r.Context(), *req.ID, loc); err != nil {
		s.logger.Error("location save failed", "station_id", *req.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "erro ao salvar localização"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Localização salva",
		"data":    loc,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// pathID parses the {id} path segment, answering 400 on garbage.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id de estação inválido"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
