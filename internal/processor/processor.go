// Package processor owns the per-request artifacts around a pipeline run:
// request ids, spooled uploads and result publishing.
package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/publish"
	"call-insights-go/internal/types"
)

const publishTimeout = 10 * time.Second

type Runner interface {
	Run(ctx context.Context, reqID, audioPath string) (*pipeline.Result, error)
	RunRecord(ctx context.Context, reqID string, rec *types.CallRecord) (*pipeline.Result, error)
}

type Processor struct {
	runner  Runner
	pub     publish.Publisher
	tempDir string
	log     *logger.Logger
}

func New(r Runner, pub publish.Publisher, tempDir string, log *logger.Logger) *Processor {
	if pub == nil {
		pub = publish.Nop{}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if log == nil {
		log = logger.New()
	}
	return &Processor{runner: r, pub: pub, tempDir: tempDir, log: log.WithComponent("processor")}
}

// ProcessUpload spools body to a temp file, runs the pipeline on it and
// removes the file before returning.
func (p *Processor) ProcessUpload(ctx context.Context, reqID, filename string, body io.Reader) (*pipeline.Result, error) {
	reqID = ensureID(reqID)
	log := p.log.ForCall(reqID)

	path, err := p.spool(filename, body)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("failed to remove temp file")
		}
	}()
	log.WithField("upload", filename).WithField("path", path).Info("upload spooled")

	return p.finish(ctx, reqID, func() (*pipeline.Result, error) {
		return p.runner.Run(ctx, reqID, path)
	})
}

// ProcessFile runs the pipeline on a local audio file.
func (p *Processor) ProcessFile(ctx context.Context, reqID, path string) (*pipeline.Result, error) {
	reqID = ensureID(reqID)
	if _, err := os.Stat(path); err != nil {
		return nil, failure.Wrap(failure.MissingPrerequisite, "process", err)
	}
	return p.finish(ctx, reqID, func() (*pipeline.Result, error) {
		return p.runner.Run(ctx, reqID, path)
	})
}

// ProcessRecord runs the pipeline on an already transcribed call record.
func (p *Processor) ProcessRecord(ctx context.Context, reqID string, rec *types.CallRecord) (*pipeline.Result, error) {
	reqID = ensureID(reqID)
	return p.finish(ctx, reqID, func() (*pipeline.Result, error) {
		return p.runner.RunRecord(ctx, reqID, rec)
	})
}

func (p *Processor) finish(ctx context.Context, reqID string, run func() (*pipeline.Result, error)) (*pipeline.Result, error) {
	res, err := run()
	if err != nil {
		return nil, err
	}

	// Publishing outlives the request context.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.pub.Publish(pubCtx, reqID, res); err != nil {
		p.log.ForCall(reqID).WithError(err).Warn("publish result failed")
	}
	return res, nil
}

func (p *Processor) spool(filename string, body io.Reader) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "upload-*"+suffix(filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = failure.New(failure.MissingPrerequisite, "upload", "empty audio upload")
	}
	if err != nil {
		os.Remove(f.Name())
		if failure.KindOf(err) != "" {
			return "", err
		}
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return f.Name(), nil
}

func suffix(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		return ".bin"
	}
	return ext
}

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
