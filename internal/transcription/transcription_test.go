package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

func init() {
	logger.SetOutput(&bytes.Buffer{})
}

func audioFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "call.m4a")
	if err := os.WriteFile(p, []byte("fake audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func newClient(t *testing.T, url string, attempts int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:      url,
		APIKey:       "key",
		PollInterval: time.Millisecond,
		PollAttempts: attempts,
	}, httpclient.New(time.Second, time.Second), nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// jobServer fakes the STT API; statuses are returned one per status check.
func jobServer(t *testing.T, statuses []string, record any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var checks atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-subscription-key") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		if hdr.Filename != "call.m4a" || string(b) != "fake audio" {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "saaras:v3" || r.FormValue("language_code") != "unknown" ||
			r.FormValue("with_diarization") != "true" || r.FormValue("with_timestamps") != "true" {
			http.Error(w, "bad fields", http.StatusBadRequest)
			return
		}
		var resp PublishResponse
		resp.Code = 200
		resp.Data.JobId = "job-1"
		resp.Data.Status = "Queued"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("jobId") != "job-1" {
			http.Error(w, "unknown job", http.StatusNotFound)
			return
		}
		n := int(checks.Add(1)) - 1
		var resp StatusResponse
		resp.Code = 200
		resp.Data.JobId = "job-1"
		resp.Data.Status = statuses[min(n, len(statuses)-1)]
		if resp.Data.Status == "Success" {
			resp.Data.OutputURL = srv.URL + "/output/job-1.json"
		}
		if resp.Data.Status == "Failed" {
			resp.Reason = "unsupported codec"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/output/job-1.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(record)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &checks
}

func TestTranscribePollsUntilSuccess(t *testing.T) {
	t.Parallel()

	want, _ := Mock{}.Transcribe(context.Background(), "")
	srv, checks := jobServer(t, []string{"Queued", "Processing", "Success"}, want)

	rec, err := newClient(t, srv.URL, 10).Transcribe(context.Background(), audioFile(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if rec.LanguageCode != "ta-IN" || len(rec.Entries()) != 3 || rec.Entries()[1].Transcript != types.NoSpeech {
		t.Fatalf("unexpected record %+v", rec)
	}
	if checks.Load() != 3 {
		t.Fatalf("expected 3 status checks, got %d", checks.Load())
	}
}

func TestTranscribeJobFailed(t *testing.T) {
	t.Parallel()

	srv, _ := jobServer(t, []string{"Processing", "Failed"}, nil)
	_, err := newClient(t, srv.URL, 10).Transcribe(context.Background(), audioFile(t))
	if !failure.Is(err, failure.UpstreamUnavailable) {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestTranscribePollTimeout(t *testing.T) {
	t.Parallel()

	srv, checks := jobServer(t, []string{"Processing"}, nil)
	_, err := newClient(t, srv.URL, 3).Transcribe(context.Background(), audioFile(t))
	if !failure.Is(err, failure.UpstreamUnavailable) {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
	if checks.Load() != 3 {
		t.Fatalf("expected 3 status checks, got %d", checks.Load())
	}
}

func TestTranscribeAlreadyComplete(t *testing.T) {
	t.Parallel()

	var checks atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		var resp PublishResponse
		resp.Code = 200
		resp.Data.Status = "Success"
		resp.Data.OutputURL = srv.URL + "/out.json"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) { checks.Add(1) })
	mux.HandleFunc("/out.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"language_code":"hi-IN","transcript":"नमस्ते"}`))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	rec, err := newClient(t, srv.URL, 5).Transcribe(context.Background(), audioFile(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if rec.LanguageCode != "hi-IN" || checks.Load() != 0 {
		t.Fatalf("expected direct download, got %+v after %d checks", rec, checks.Load())
	}
}

func TestTranscribeCanceled(t *testing.T) {
	t.Parallel()

	srv, _ := jobServer(t, []string{"Processing"}, nil)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key", PollInterval: time.Hour, PollAttempts: 5},
		httpclient.New(time.Second, time.Second), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Transcribe(ctx, audioFile(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClientConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: "k"}, nil, nil, nil); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError for missing URL, got %v", err)
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}, nil, nil, nil); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError for missing key, got %v", err)
	}
}
