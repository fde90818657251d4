package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"backtestplot/internal/cache"
	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
	"backtestplot/internal/storage"
)

const maxBodyBytes = 32 << 20

var contentTypes = map[string]string{
	"pdf": "application/pdf",
	"png": "image/png",
	"svg": "image/svg+xml",
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, finance.ErrEmptyBatch),
		errors.Is(err, finance.ErrShapeMismatch),
		errors.Is(err, finance.ErrNonFinite),
		errors.Is(err, figure.ErrUnknownWidth),
		errors.Is(err, figure.ErrInvalidSize),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrRunNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("http: request failed")
	}
	http.Error(w, err.Error(), status)
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("http: failed to encode response")
	}
}

func readBatch(r *http.Request) (*finance.Batch, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	b, err := finance.DecodeBatch(body)
	if err != nil {
		if errors.Is(err, finance.ErrEmptyBatch) || errors.Is(err, finance.ErrShapeMismatch) || errors.Is(err, finance.ErrNonFinite) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return b, nil
}

// requestSize reads optional width/fraction query parameters.
func (s *Server) requestSize(r *http.Request) (figure.Size, error) {
	q := r.URL.Query()
	width, fraction := q.Get("width"), q.Get("fraction")
	if width == "" && fraction == "" {
		return s.size, nil
	}
	if width == "" {
		width = "thesis"
	}
	f := 1.0
	if fraction != "" {
		var err error
		f, err = strconv.ParseFloat(fraction, 64)
		if err != nil {
			return figure.Size{}, fmt.Errorf("%w: invalid fraction %q", errBadRequest, fraction)
		}
	}
	size, err := figure.SetSize(width, f)
	if err != nil {
		return figure.Size{}, err
	}
	return size, size.Validate()
}

func requestFormat(r *http.Request) (string, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	if _, ok := contentTypes[format]; !ok {
		return "", fmt.Errorf("%w: unsupported format %q", errBadRequest, format)
	}
	return format, nil
}

// render returns the figure bytes, consulting the cache first.
func (s *Server) render(ctx context.Context, b *finance.Batch, format string, size figure.Size) ([]byte, error) {
	key, err := cache.Key(format, size.Width, size.Height, b)
	if err != nil {
		return nil, err
	}
	if img, ok, err := s.cache.Get(ctx, key); err != nil {
		s.metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("cache: lookup failed")
	} else if ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return img, nil
	} else {
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := figure.Render(&buf, format, b, size); err != nil {
		s.metrics.Renders.WithLabelValues(format, "error").Inc()
		return nil, err
	}
	s.metrics.RenderDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	s.metrics.Renders.WithLabelValues(format, "ok").Inc()
	log.Debug().Str("format", format).Int("runs", b.Runs()).Int("bytes", buf.Len()).
		Dur("took", time.Since(start)).Msg("figure: rendered")

	img := buf.Bytes()
	if err := s.cache.Set(ctx, key, img); err != nil {
		log.Warn().Err(err).Msg("cache: store failed")
	}
	return img, nil
}

func (s *Server) serveFigure(w http.ResponseWriter, r *http.Request, b *finance.Batch) {
	format, err := requestFormat(r)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := s.requestSize(r)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := s.render(r.Context(), b, format, size)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

func (s *Server) handleFigure(w http.ResponseWriter, r *http.Request) {
	b, err := readBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.serveFigure(w, r, b)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	b, err := readBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sum, err := finance.Summarize(b)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := finance.MakeReturnsPreview(b, sum)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *Server) handleRunFigure(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := run.Batch()
	if err != nil {
		writeError(w, err)
		return
	}
	s.serveFigure(w, r, b)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	b, err := readBatch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "unnamed"
	}
	run, err := s.store.SaveRun(r.Context(), name, b)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("id", run.ID).Str("name", run.Name).Int("runs", b.Runs()).Msg("runs: stored")
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, v))
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	*storage.Run
	Batch *finance.Batch `json:"batch"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := run.Batch()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Run: run, Batch: b})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRun(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
