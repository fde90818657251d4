package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"backtestplot/internal/cache"
	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
	"backtestplot/internal/storage"
)

// RunStore is the subset of the run store the service needs.
type RunStore interface {
	SaveRun(ctx context.Context, name string, b *finance.Batch) (*storage.Run, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, limit int) ([]storage.Run, error)
	DeleteRun(ctx context.Context, id string) error
}

type Server struct {
	store    RunStore
	cache    cache.Cache
	size     figure.Size
	limiter  *rate.Limiter
	metrics  *Metrics
	gatherer prometheus.Gatherer
}

// New builds the render service. A nil limiter disables rate limiting.
func New(store RunStore, c cache.Cache, size figure.Size, limiter *rate.Limiter, reg *prometheus.Registry) *Server {
	return &Server{
		store:    store,
		cache:    c,
		size:     size,
		limiter:  limiter,
		metrics:  NewMetrics(reg),
		gatherer: reg,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.Handle("/figure", s.rateLimit(http.HandlerFunc(s.handleFigure))).Methods(http.MethodPost)
	r.Handle("/preview", s.rateLimit(http.HandlerFunc(s.handlePreview))).Methods(http.MethodPost)
	r.Handle("/runs/{id}/figure", s.rateLimit(http.HandlerFunc(s.handleRunFigure))).Methods(http.MethodGet)

	r.HandleFunc("/runs", s.handleCreateRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleDeleteRun).Methods(http.MethodDelete)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.RateLimited.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("http: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
