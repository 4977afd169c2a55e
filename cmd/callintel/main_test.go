package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"call-insights-go/internal/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || strings.TrimSpace(out) != version {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestSchemaIsJSON(t *testing.T) {
	out, err := run(t, "schema")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}
	if v["additionalProperties"] != false {
		t.Error("root schema must be closed")
	}
}

func TestProcessRecordWithMocks(t *testing.T) {
	logger.SetOutput(&bytes.Buffer{})
	t.Setenv("USE_MOCK_TRANSCRIBE", "true")
	t.Setenv("USE_MOCK_TRANSLATE", "true")
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CALLINTEL_CONFIG", "")

	dir := t.TempDir()
	recPath := filepath.Join(dir, "call.json")
	rec := `{"language_code":"hi-IN","transcript":"मैं अगले हफ्ते भुगतान करूंगा","diarized_transcript":{"entries":[{"speaker_id":"0","start_time_seconds":0,"end_time_seconds":2,"transcript":"मैं अगले हफ्ते भुगतान करूंगा"}]}}`
	if err := os.WriteFile(recPath, []byte(rec), 0o600); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "result.json")

	if _, err := run(t, "process", "--record", recPath, "--out", outPath, "--request-id", "cli-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var res map[string]any
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatal(err)
	}
	if res["request_id"] != "cli-1" || res["ui_spec"] == nil || res["insights"] == nil {
		t.Errorf("unexpected result %s", b)
	}
}

func TestProcessArgs(t *testing.T) {
	if _, err := run(t, "process"); err == nil {
		t.Error("expected error without audio or --record")
	}
	if _, err := run(t, "process", "a.wav", "--record", "r.json"); err == nil {
		t.Error("expected error with both audio and --record")
	}
}
