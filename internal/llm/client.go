// Package llm adapts the OpenAI chat completions API to the two call shapes
// the pipeline uses: schema-enforced generation and one-shot classification
// sessions. Every response is normalized into Response before it leaves the
// package.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"call-insights-go/internal/failure"
)

type Kind int

const (
	KindText Kind = iota
	KindRefusal
	KindEmpty
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRefusal:
		return "refusal"
	case KindEmpty:
		return "empty"
	case KindTruncated:
		return "truncated"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Response is the single shape callers see, whatever the API returned.
type Response struct {
	Kind         Kind
	Text         string
	Refusal      string
	FinishReason string
	Model        string
}

type GenerateRequest struct {
	System      string
	User        string
	SchemaName  string
	Schema      json.Marshaler
	Temperature float32
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	IntentModel string
	MaxElapsed  time.Duration
}

type Client struct {
	api         *openai.Client
	model       string
	intentModel string
	maxElapsed  time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, failure.New(failure.Configuration, "llm", "OPENAI_API_KEY is not set")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.IntentModel == "" {
		cfg.IntentModel = "gpt-4o"
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		intentModel: cfg.IntentModel,
		maxElapsed:  cfg.MaxElapsed,
	}, nil
}

// Generate asks for output that conforms to req.Schema under strict
// json_schema decoding.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Response, error) {
	if req.Schema == nil {
		return Response{}, errors.New("llm generate: schema is required")
	}
	name := req.SchemaName
	if name == "" {
		name = "output"
	}
	cr := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: req.Schema,
				Strict: true,
			},
		},
	}
	return c.complete(ctx, cr)
}

const classifierSystemPrompt = "You are a professional financial services assistant specializing in intent classification."

// Session is a single-use conversation: it holds only its own system
// prompt and answers exactly one Ask.
type Session struct {
	client *Client
	mu     sync.Mutex
	used   bool
}

// NewSession starts a fresh, empty conversation.
func (c *Client) NewSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Session{client: c}, nil
}

var ErrSessionUsed = errors.New("llm session already used")

func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		return "", ErrSessionUsed
	}
	s.used = true
	s.mu.Unlock()

	resp, err := s.client.complete(ctx, openai.ChatCompletionRequest{
		Model: s.client.intentModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	switch resp.Kind {
	case KindText:
		return resp.Text, nil
	case KindRefusal:
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	default:
		return "", fmt.Errorf("model returned %s response", resp.Kind)
	}
}

func (c *Client) complete(ctx context.Context, cr openai.ChatCompletionRequest) (Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed

	var out openai.ChatCompletionResponse
	op := func() error {
		resp, err := c.api.CreateChatCompletion(ctx, cr)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, failure.Wrap(failure.UpstreamUnavailable, "openai chat completion", err)
	}
	return normalize(out), nil
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func normalize(resp openai.ChatCompletionResponse) Response {
	out := Response{Model: resp.Model}
	if len(resp.Choices) == 0 {
		out.Kind = KindEmpty
		return out
	}
	choice := resp.Choices[0]
	out.FinishReason = string(choice.FinishReason)
	switch {
	case choice.Message.Refusal != "":
		out.Kind = KindRefusal
		out.Refusal = choice.Message.Refusal
	case choice.FinishReason == openai.FinishReasonLength:
		out.Kind = KindTruncated
		out.Text = choice.Message.Content
	case strings.TrimSpace(choice.Message.Content) == "":
		out.Kind = KindEmpty
	default:
		out.Kind = KindText
		out.Text = choice.Message.Content
	}
	return out
}
