// Package server exposes the pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
)

// StatusClientClosedRequest is reported when the caller went away mid-run.
const StatusClientClosedRequest = 499

type Processor interface {
	ProcessUpload(ctx context.Context, reqID, filename string, body io.Reader) (*pipeline.Result, error)
}

type Server struct {
	proc      Processor
	maxUpload int64
	gatherer  prometheus.Gatherer
	log       *logger.Logger
}

func New(proc Processor, maxUpload int64, g prometheus.Gatherer, log *logger.Logger) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if log == nil {
		log = logger.New()
	}
	return &Server{proc: proc, maxUpload: maxUpload, gatherer: g, log: log.WithComponent("server")}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/audio/update", s.handleUpload)
	return r
}

type errorDetail struct {
	Stage  string `json:"stage,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reqID := logger.RequestID(r)
	w.Header().Set("X-Request-ID", reqID)
	reqLog := s.log.WithRequest(r, reqID).WithField("handler", "audio_update")
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	part, filename, err := audioPart(r)
	if err != nil {
		reqLog.WithError(err).Warn("bad upload")
		s.writeError(w, reqID, err)
		return
	}
	defer part.Close()
	reqLog = reqLog.WithField("upload", filename)
	reqLog.Info("audio received")

	res, err := s.proc.ProcessUpload(r.Context(), reqID, filename, part)
	if err != nil {
		reqLog.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).Error("processing failed")
		s.writeError(w, reqID, err)
		return
	}
	reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("processing complete")
	if err := writeJSON(w, http.StatusOK, res); err != nil {
		reqLog.WithError(err).Error("encode result")
		_ = writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:     errorDetail{Kind: "Internal", Reason: "encode result: " + err.Error()},
			RequestID: reqID,
		})
	}
}

// audioPart streams the multipart field named "audio" without buffering the
// whole form.
func audioPart(r *http.Request) (io.ReadCloser, string, error) {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || ct != "multipart/form-data" {
		return nil, "", failure.New(failure.MissingPrerequisite, "upload", "expected multipart/form-data with an audio field")
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", failure.Wrap(failure.MissingPrerequisite, "upload", err)
	}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", failure.New(failure.MissingPrerequisite, "upload", "missing audio field")
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, "", err
			}
			return nil, "", failure.Wrap(failure.MissingPrerequisite, "upload", err)
		}
		if p.FormName() == "audio" {
			return p, p.FileName(), nil
		}
		p.Close()
	}
}

func (s *Server) writeError(w http.ResponseWriter, reqID string, err error) {
	status, detail := describe(err)
	if err := writeJSON(w, status, errorBody{Error: detail, RequestID: reqID}); err != nil {
		s.log.WithError(err).Error("encode error body")
	}
}

func describe(err error) (int, errorDetail) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, errorDetail{Kind: "RequestTooLarge", Reason: err.Error()}
	}

	d := errorDetail{Reason: err.Error()}
	kind := failure.KindOf(err)
	var se *pipeline.StageError
	if errors.As(err, &se) {
		d.Stage = string(se.Stage)
		d.Reason = se.Err.Error()
		kind = se.Kind()
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = failure.Canceled
	}
	if kind == "" {
		kind = "Internal"
	}
	d.Kind = string(kind)
	return statusFor(kind), d
}

func statusFor(k failure.Kind) int {
	switch k {
	case failure.MissingPrerequisite:
		return http.StatusBadRequest
	case failure.UpstreamUnavailable, failure.SchemaViolation:
		return http.StatusBadGateway
	case failure.Canceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON only returns encoding errors; w is untouched when it does.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
	return nil
}
