package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/types"
)

type PublishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		JobId     string `json:"JobId"`
		Status    string `json:"Status"`
		OutputURL string `json:"OutputURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type StatusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		JobId     string `json:"JobId"`
		Status    string `json:"Status"` // Queued, Processing, Success, Failed
		OutputURL string `json:"OutputURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

// Transcribe uploads the audio file, waits for the job and returns the
// diarized call record it produced.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*types.CallRecord, error) {
	const op = "transcribe"
	log := c.log.WithField("audio", filepath.Base(audioPath))

	jobID, outputURL, err := c.publish(ctx, audioPath)
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}
	if outputURL == "" {
		log.WithField("job_id", jobID).Info("transcription job queued")
		outputURL, err = c.poll(ctx, jobID)
		if err != nil {
			return nil, c.fail(ctx, op, err)
		}
	}
	log.WithField("output_url", outputURL).Info("download final transcript")

	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	})
	if err != nil {
		return nil, c.fail(ctx, op, fmt.Errorf("download failed: %w", err))
	}

	var rec types.CallRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		err = failure.Wrap(failure.SchemaViolation, op, fmt.Errorf("decode transcript: %w", err))
		c.metrics.Call("transcribe", err)
		return nil, err
	}
	c.metrics.Call("transcribe", nil)
	return &rec, nil
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	c.metrics.Call("transcribe", err)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return failure.Wrap(failure.UpstreamUnavailable, op, err)
}

func (c *Client) publish(ctx context.Context, audioPath string) (string, string, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/transcribe"
	var resp PublishResponse
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := c.form(audioPath)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("api-subscription-key", c.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Code != 200 {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.OutputURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return resp.Data.JobId, resp.Data.OutputURL, nil
	}
	if resp.Data.JobId == "" {
		return "", "", fmt.Errorf("transcribe publish error: no job id")
	}
	return resp.Data.JobId, "", nil
}

func (c *Client) form(audioPath string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	fields := map[string]string{
		"model":            c.model,
		"language_code":    "unknown",
		"with_timestamps":  "true",
		"with_diarization": "true",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

func (c *Client) poll(ctx context.Context, jobID string) (string, error) {
	base := strings.TrimRight(c.baseURL, "/") + "/getstatus"
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("jobId", jobID)
	u.RawQuery = q.Encode()

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	for i := 0; i < c.pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
		timer.Reset(c.pollInterval)

		var s StatusResponse
		err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("api-subscription-key", c.apiKey)
			return req, nil
		}, &s)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.log.WithError(err).WithField("job_id", jobID).Warn("status check failed")
			continue
		}
		switch s.Data.Status {
		case "Success":
			if s.Data.OutputURL == "" {
				return "", fmt.Errorf("transcription job %s succeeded without output", jobID)
			}
			return s.Data.OutputURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", s.Reason)
		}
	}
	return "", fmt.Errorf("transcription timeout after %d status checks", c.pollAttempts)
}
