package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/httpclient"
	"call-insights-go/internal/types"
)

func TestSarvamTranslate(t *testing.T) {
	t.Parallel()

	var got sarvamRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-subscription-key") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(sarvamResponse{RequestID: "r1", TranslatedText: "Hello"})
	}))
	defer srv.Close()

	c, err := NewSarvamClient(srv.URL, "key", "", httpclient.New(time.Second, time.Second))
	if err != nil {
		t.Fatalf("NewSarvamClient: %v", err)
	}
	out, err := c.Translate(context.Background(), "வணக்கம்", "ta-IN", "en-IN")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Hello" {
		t.Fatalf("expected Hello, got %q", out)
	}
	if got.Model != "mayura:v1" || got.Mode != "formal" || got.SourceLanguageCode != "ta-IN" || got.TargetLanguageCode != "en-IN" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestSarvamPassthroughNeverCallsAPI(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c, _ := NewSarvamClient(srv.URL, "key", "", httpclient.New(time.Second, time.Second))
	for _, in := range []string{"", types.NoSpeech} {
		out, err := c.Translate(context.Background(), in, "ta-IN", "en-IN")
		if err != nil || out != in {
			t.Fatalf("Translate(%q) = %q, %v; want passthrough", in, out, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no API calls, got %d", calls.Load())
	}
}

func TestSarvamErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewSarvamClient("", "", "", nil); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid language"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewSarvamClient(srv.URL, "key", "", httpclient.New(time.Second, time.Second))
	if _, err := c.Translate(context.Background(), "hello", "xx", "en-IN"); !failure.Is(err, failure.UpstreamUnavailable) {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestMockTranslate(t *testing.T) {
	t.Parallel()

	out, _ := Mock{}.Translate(context.Background(), "வணக்கம்", "ta-IN", "en-IN")
	if out != "[en-IN] வணக்கம்" {
		t.Fatalf("unexpected mock output %q", out)
	}
}
