// Package server exposes the operator HTTP surface: health, Prometheus
// metrics, job inspection and retry, and upload decisions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"shorts-pipeline/intake"
	"shorts-pipeline/job"
	"shorts-pipeline/logging"
	"shorts-pipeline/metrics"
	"shorts-pipeline/types"
	"shorts-pipeline/upload"
)

// Requeuer hands a job back to a running consumer
type Requeuer interface {
	Resubmit(a intake.Admission) error
}

type Server struct {
	addr    string
	machine *job.Machine
	gate    upload.Gate
	requeue Requeuer
	log     *zerolog.Logger
	now     func() time.Time
}

// NewServer accepts a nil gate, in which case /uploads/decision answers 404
func NewServer(addr string, machine *job.Machine, gate upload.Gate, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{addr: addr, machine: machine, gate: gate, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithRequeuer makes POST /jobs/{id}/retry queue the job on the running
// watcher instead of leaving it for the next start
func (s *Server) WithRequeuer(r Requeuer) *Server {
	s.requeue = r
	return s
}

// Routes builds the router; tests serve it through httptest
func (s *Server) Routes() chi.Router {
	metrics.MustRegister()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Get("/{id}", s.getJob)
		r.Post("/{id}/retry", s.retryJob)
	})
	if s.gate != nil {
		r.Get("/uploads/decision/{platform}/{account}", s.decision)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", ww.Status()).
			Dur("took", time.Since(start)).Str("request_id", middleware.GetReqID(r.Context())).Msg("http")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.machine.Store().List()
	if err != nil && len(recs) == 0 {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("some job records unreadable")
	}
	status := types.JobStatus(r.URL.Query().Get("status"))
	items := make([]types.JobRecord, 0, len(recs))
	for _, rec := range recs {
		if status == "" || rec.Status == status {
			items = append(items, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.machine.Store().Load(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

type retryResponse struct {
	types.JobRecord
	Queued bool `json:"queued"`
}

// retryJob flips a failed job back to detected. With a requeuer the job is
// queued right away; otherwise `watch` picks it up when it next starts.
func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.machine.Store().Load(chi.URLParam(r, "id"))
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rec, err = s.machine.Retry(rec)
	switch {
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := retryResponse{JobRecord: rec}
	if s.requeue != nil {
		if err := s.requeue.Resubmit(intake.Admission{JobID: rec.ID, Path: rec.SourcePath}); err != nil {
			s.log.Warn().Err(err).Str("job", rec.ID).Msg("retried job not queued, it runs on next start")
		} else {
			resp.Queued = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type decisionResponse struct {
	Platform          string  `json:"platform"`
	Account           string  `json:"account"`
	Allowed           bool    `json:"allowed"`
	Reason            string  `json:"reason"`
	UsedToday         int     `json:"used_today"`
	DailyLimit        int     `json:"daily_limit"`
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
	Error             string  `json:"error,omitempty"`
}

func (s *Server) decision(w http.ResponseWriter, r *http.Request) {
	platform, account := chi.URLParam(r, "platform"), chi.URLParam(r, "account")
	d := s.gate.CanUpload(r.Context(), platform, account, s.now())
	resp := decisionResponse{
		Platform:          platform,
		Account:           account,
		Allowed:           d.Allowed,
		Reason:            d.Reason,
		UsedToday:         d.UsedToday,
		DailyLimit:        d.DailyLimit,
		RetryAfterSeconds: d.RetryAfter.Seconds(),
	}
	if d.Err != nil {
		resp.Error = d.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
