package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"call-insights-go/internal/failure"
)

type rawSchema map[string]any

func (s rawSchema) MarshalJSON() ([]byte, error) { return json.Marshal(map[string]any(s)) }

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string          `json:"name"`
			Strict bool            `json:"strict"`
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

// fakeAPI serves chat completions from reply and records each request.
type fakeAPI struct {
	mu       sync.Mutex
	requests []chatRequest
	reply    func(n int) (int, string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	status, body := f.reply(n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func completion(content, refusal, finish string) string {
	msg := map[string]any{"role": "assistant", "content": content}
	if refusal != "" {
		msg["refusal"] = refusal
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": msg, "finish_reason": finish}},
	})
	return string(b)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/v1", MaxElapsed: 3 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGenerateSendsStrictSchema(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: func(int) (int, string) { return 200, completion(`{"ok":true}`, "", "stop") }}
	c := newTestClient(t, api)

	resp, err := c.Generate(context.Background(), GenerateRequest{
		System:     "sys",
		User:       "user",
		SchemaName: "insights",
		Schema:     rawSchema{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Kind != KindText || resp.Text != `{"ok":true}` {
		t.Fatalf("unexpected response %+v", resp)
	}

	req := api.requests[0]
	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
		t.Fatalf("missing json_schema response format: %+v", req.ResponseFormat)
	}
	if !req.ResponseFormat.JSONSchema.Strict || req.ResponseFormat.JSONSchema.Name != "insights" {
		t.Errorf("schema not strict or misnamed: %+v", req.ResponseFormat.JSONSchema)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "user" {
		t.Errorf("unexpected messages %+v", req.Messages)
	}
}

func TestGenerateNormalizesResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want Kind
	}{
		{"refusal", completion("", "I can't help with that", "stop"), KindRefusal},
		{"empty", completion("  ", "", "stop"), KindEmpty},
		{"truncated", completion(`{"insights":`, "", "length"), KindTruncated},
		{"no choices", `{"id":"x","object":"chat.completion","choices":[]}`, KindEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{reply: func(int) (int, string) { return 200, tc.body }}
			resp, err := newTestClient(t, api).Generate(context.Background(), GenerateRequest{Schema: rawSchema{}})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if resp.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", resp.Kind, tc.want)
			}
		})
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: func(n int) (int, string) {
		if n == 1 {
			return 500, `{"error":{"message":"overloaded","type":"server_error"}}`
		}
		return 200, completion(`{}`, "", "stop")
	}}
	resp, err := newTestClient(t, api).Generate(context.Background(), GenerateRequest{Schema: rawSchema{}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Kind != KindText || len(api.requests) != 2 {
		t.Fatalf("expected success on second attempt, got %+v after %d requests", resp, len(api.requests))
	}
}

func TestGenerateClientErrorIsUpstreamUnavailable(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: func(int) (int, string) {
		return 401, `{"error":{"message":"bad key","type":"invalid_request_error"}}`
	}}
	_, err := newTestClient(t, api).Generate(context.Background(), GenerateRequest{Schema: rawSchema{}})
	if !failure.Is(err, failure.UpstreamUnavailable) {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("client errors must not be retried, got %d requests", len(api.requests))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: func(int) (int, string) {
		return 200, completion("```json\n{\"label\":\"AGREEMENT\",\"reason\":\"ok\"}\n```", "", "stop")
	}}
	c := newTestClient(t, api)

	for _, prompt := range []string{"first utterance", "second utterance"} {
		s, err := c.NewSession(context.Background())
		if err != nil {
			t.Fatalf("NewSession: %v", err)
		}
		if _, err := s.Ask(context.Background(), prompt); err != nil {
			t.Fatalf("Ask: %v", err)
		}
		if _, err := s.Ask(context.Background(), prompt); !errors.Is(err, ErrSessionUsed) {
			t.Fatalf("expected ErrSessionUsed on reuse, got %v", err)
		}
	}

	if len(api.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(api.requests))
	}
	second := api.requests[1]
	if len(second.Messages) != 2 {
		t.Fatalf("second session carried %d messages, want 2", len(second.Messages))
	}
	for _, m := range second.Messages {
		if m.Content == "first utterance" {
			t.Fatal("second session leaked the first utterance")
		}
	}
	if second.Model != "gpt-4o" {
		t.Errorf("classification model = %q, want gpt-4o", second.Model)
	}
}

func TestSessionRefusalIsError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reply: func(int) (int, string) { return 200, completion("", "no", "stop") }}
	s, _ := newTestClient(t, api).NewSession(context.Background())
	if _, err := s.Ask(context.Background(), "x"); err == nil {
		t.Fatal("expected refusal to surface as an error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}); !failure.Is(err, failure.Configuration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
