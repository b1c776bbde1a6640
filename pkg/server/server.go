// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/search"
)

const maxBodyBytes = 1 << 20

// Searcher runs one search. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error)
}

// StatsSource reports cache statistics. *cache.Store implements it.
type StatsSource interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Options configures a Server. Cache and Metrics are optional.
type Options struct {
	Listen  string
	Cache   StatsSource
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server is the vendor search HTTP API.
type Server struct {
	opts     Options
	searcher Searcher
	log      *zap.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

// New creates a Server with all routes registered.
func New(searcher Searcher, opts Options) *Server {
	s := &Server{
		opts:     opts,
		searcher: searcher,
		log:      logging.Named(opts.Logger, "server"),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/search", s.handleSearch)
	s.mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", opts.Metrics.Handler())
	s.handler = opts.Metrics.Middleware(withCORS(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("vendorsearch listening", zap.String("addr", s.opts.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-request-id")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var in models.InboundSearch
	switch r.Method {
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	case http.MethodGet:
		var err error
		if in, err = inboundFromQuery(r); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := in.ToRequest()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)

	resp, err := s.searcher.Search(search.WithRequestID(r.Context(), id), req)
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		// The engine has already logged the stage and cause.
		writeJSONError(w, http.StatusInternalServerError, "search failed")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, resp)
}

func inboundFromQuery(r *http.Request) (models.InboundSearch, error) {
	q := r.URL.Query()
	in := models.InboundSearch{
		Keyword:  q.Get("keyword"),
		Location: q.Get("location"),
	}
	if q.Has("subcategory") {
		sub := q.Get("subcategory")
		in.Subcategory = &sub
	}
	for name, dst := range map[string]**int{"page": &in.Page, "limit": &in.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return in, fmt.Errorf("%w: %s must be an integer", models.ErrInvalidRequest, name)
		}
		*dst = &n
	}
	return in, nil
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.Cache == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	stats, err := s.opts.Cache.Stats(r.Context())
	if err != nil {
		s.log.Error("cache stats failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "cache stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"vendorsearch_error","code":%d}}`, message, code)
}
