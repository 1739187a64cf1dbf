// Package api provides the HTTP REST API server for ratescope.
//
// It exposes endpoints for currency-pair analysis, summary statistics,
// insights, and a records-oriented JSON export. The handlers only
// consume the pipeline's output types; all analysis happens in
// internal/analysis.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smenon/ratescope/internal/analysis"
	"github.com/smenon/ratescope/internal/config"
	"github.com/smenon/ratescope/internal/instrument"
	"github.com/smenon/ratescope/internal/provider"
	"github.com/smenon/ratescope/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	registry *provider.Registry
	cache    *instrument.Cache // shared memo cache; analysis repeats are free
	log      *slog.Logger
}

// APIResponse is the envelope for all JSON endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, registry *provider.Registry, log *slog.Logger) *Server {
	srv := &Server{
		cfg:      cfg,
		registry: registry,
		cache:    instrument.NewCache(),
		log:      log,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", "err", err)
			os.Exit(1)
		}
	}()
	s.log.Info("listening", "addr", addr)

	<-done
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/providers", s.handleProviders)
		r.Get("/analyze", s.handleAnalyze)
		r.Get("/latest", s.handleLatest)
		r.Get("/convert", s.handleConvert)
		r.Get("/export", s.handleExport)
	})

	return r
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "ok"},
	})
}

// handleProviders lists the registered rate providers.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.registry.List(),
	})
}

// handleAnalyze runs the full pipeline for the requested pair and range.
//
//	GET /api/analyze?base=AUD&target=NZD&days=30[&provider=x-rates]
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, status, errMsg := s.runAnalysis(r)
	if errMsg != "" {
		s.writeError(w, status, errMsg)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: report})
}

// LatestRate is the payload of the latest-rate endpoint.
type LatestRate struct {
	Pair      models.Pair `json:"pair"`
	Rate      float64     `json:"rate"`
	Provider  string      `json:"provider"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// handleLatest serves the current exchange rate for a pair, bypassing the
// historical pipeline.
//
//	GET /api/latest?base=AUD&target=NZD[&provider=exchangerate-api]
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	base := q.Get("base")
	if base == "" {
		base = s.cfg.Analysis.BaseCurrency
	}
	target := q.Get("target")
	if target == "" {
		target = s.cfg.Analysis.TargetCurrency
	}

	params := provider.QueryParams{
		provider.ParamBase:   base,
		provider.ParamTarget: target,
	}
	if name := q.Get("provider"); name != "" {
		if _, err := s.registry.Get(name); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params[provider.ParamProvider] = name
	}

	result, err := s.registry.FetchWithFallback(r.Context(), provider.ModelCurrencySnapshot, params)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	rate, ok := result.Data.(float64)
	if !ok {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("unexpected data type %T", result.Data))
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: LatestRate{
			Pair:      models.Pair{Base: base, Target: target},
			Rate:      rate,
			Provider:  result.Provider,
			FetchedAt: result.FetchedAt,
		},
	})
}

// handleConvert serves the value of a fixed target-currency amount
// converted through each day's rate.
//
//	GET /api/convert?amount=100&base=AUD&target=NZD&days=30
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	amount := 100.0
	if v := r.URL.Query().Get("amount"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			s.writeError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		amount = f
	}

	report, status, errMsg := s.runAnalysis(r)
	if errMsg != "" {
		s.writeError(w, status, errMsg)
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    models.ConversionOverTime(report.Series, amount),
	})
}

// handleExport serves the records-oriented JSON export of the analyzed
// series, suitable for download collaborators.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	report, status, errMsg := s.runAnalysis(r)
	if errMsg != "" {
		s.writeError(w, status, errMsg)
		return
	}

	data, err := models.ExportRecords(report.Series)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="exchange_rates.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Error("failed to write export response", "err", err)
	}
}

// runAnalysis builds an analyzer from request parameters and executes the
// pipeline. On failure it returns the HTTP status and message to serve.
func (s *Server) runAnalysis(r *http.Request) (*analysis.Report, int, string) {
	q := r.URL.Query()

	base := q.Get("base")
	if base == "" {
		base = s.cfg.Analysis.BaseCurrency
	}
	target := q.Get("target")
	if target == "" {
		target = s.cfg.Analysis.TargetCurrency
	}

	days := s.cfg.Analysis.Days
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, http.StatusBadRequest, "days must be a positive integer"
		}
		days = n
	}

	opts := []analysis.Option{analysis.WithCache(s.cache)}
	if name := q.Get("provider"); name != "" {
		if _, err := s.registry.Get(name); err != nil {
			return nil, http.StatusBadRequest, err.Error()
		}
		opts = append(opts, analysis.WithProvider(name))
	}

	analyzer, err := analysis.New(s.registry, s.log, models.Pair{Base: base, Target: target}, days, opts...)
	if err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}

	report, err := analyzer.Run(r.Context())
	if err != nil {
		if errors.Is(err, analysis.ErrNoData) {
			return nil, http.StatusUnprocessableEntity, "no data for the requested pair and range"
		}
		return nil, http.StatusBadGateway, err.Error()
	}
	return report, http.StatusOK, ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write JSON response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{Success: false, Error: msg})
}
