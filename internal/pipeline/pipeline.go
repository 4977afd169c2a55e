// Package pipeline runs one call record through transcription, translation,
// intent tagging and insight synthesis, in that order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/insights"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/types"
)

type Stage string

const (
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageIntent        Stage = "intent"
	StageSynthesis     Stage = "synthesis"
)

type State string

const (
	Ingested     State = "ingested"
	Transcribed  State = "transcribed"
	Translated   State = "translated"
	IntentTagged State = "intent_tagged"
	Synthesized  State = "synthesized"
	Done         State = "done"
	Aborted      State = "aborted"
)

// StageError is the single error a fatal stage failure surfaces as.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Kind reports the taxonomy kind of the underlying failure.
func (e *StageError) Kind() failure.Kind {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return failure.Canceled
	}
	return failure.KindOf(e.Err)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*types.CallRecord, error)
}

type Translator interface {
	Enrich(ctx context.Context, rec *types.CallRecord, sourceLang string) (*types.CallRecord, error)
}

type Tagger interface {
	Enrich(ctx context.Context, rec *types.CallRecord) (*types.CallRecord, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, rec *types.CallRecord) (*insights.Result, error)
}

// Stages bundles the collaborators. Tagger may be nil, in which case
// intent_output is always absent.
type Stages struct {
	Transcriber Transcriber
	Translator  Translator
	Tagger      Tagger
	Synthesizer Synthesizer
}

type Result struct {
	RequestID       string            `json:"request_id"`
	TranslateOutput *types.CallRecord `json:"translate_output"`
	IntentOutput    *types.CallRecord `json:"intent_output"`
	Insights        insights.Insights `json:"insights"`
	UISpec          insights.UISpec   `json:"ui_spec"`
	DurationMs      int64             `json:"duration_ms"`
	// Trace lists the states the run passed through.
	Trace []State `json:"-"`
}

type Orchestrator struct {
	stages  Stages
	metrics *metrics.Metrics
	log     *logger.Logger
}

func New(s Stages, m *metrics.Metrics, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.New()
	}
	return &Orchestrator{stages: s, metrics: m, log: log.WithComponent("pipeline")}
}

type run struct {
	o     *Orchestrator
	reqID string
	log   *logger.Logger
	trace []State
	start time.Time
}

func (o *Orchestrator) newRun(reqID string) *run {
	return &run{o: o, reqID: reqID, log: o.log.ForCall(reqID), trace: []State{Ingested}, start: time.Now()}
}

// Run processes an audio file from transcription onwards.
func (o *Orchestrator) Run(ctx context.Context, reqID, audioPath string) (*Result, error) {
	r := o.newRun(reqID)

	var rec *types.CallRecord
	err := r.stage(ctx, StageTranscription, func(ctx context.Context) error {
		var err error
		rec, err = o.stages.Transcriber.Transcribe(ctx, audioPath)
		return err
	})
	if err != nil {
		return nil, r.abort(err)
	}
	return r.fromTranscript(ctx, rec)
}

// RunRecord processes a record that is already transcribed.
func (o *Orchestrator) RunRecord(ctx context.Context, reqID string, rec *types.CallRecord) (*Result, error) {
	r := o.newRun(reqID)
	return r.fromTranscript(ctx, rec)
}

func (r *run) fromTranscript(ctx context.Context, rec *types.CallRecord) (*Result, error) {
	o := r.o
	if rec == nil || rec.LanguageCode == "" {
		err := &StageError{
			Stage: StageTranscription,
			Err:   failure.New(failure.MissingPrerequisite, "transcribe", "language_code missing in transcription output"),
		}
		o.metrics.StageFailed(string(StageTranscription), string(err.Kind()))
		return nil, r.abort(err)
	}
	if rec.RequestID == "" {
		rec = rec.Clone()
		rec.RequestID = r.reqID
	}
	r.advance(Transcribed)

	var translated *types.CallRecord
	err := r.stage(ctx, StageTranslation, func(ctx context.Context) error {
		var err error
		translated, err = o.stages.Translator.Enrich(ctx, rec, rec.LanguageCode)
		return err
	})
	if err != nil {
		return nil, r.abort(err)
	}
	r.advance(Translated)

	intentOut := r.tagIntents(ctx, translated)
	if ctx.Err() != nil {
		return nil, r.abort(&StageError{Stage: StageIntent, Err: ctx.Err()})
	}

	var synth *insights.Result
	err = r.stage(ctx, StageSynthesis, func(ctx context.Context) error {
		var err error
		synth, err = o.stages.Synthesizer.Synthesize(ctx, translated)
		return err
	})
	if err != nil {
		return nil, r.abort(err)
	}
	r.advance(Synthesized)

	res := &Result{
		RequestID:       r.reqID,
		TranslateOutput: translated,
		IntentOutput:    intentOut,
		Insights:        synth.Insights,
		UISpec:          synth.UISpec,
		DurationMs:      time.Since(r.start).Milliseconds(),
	}
	r.advance(Done)
	res.Trace = r.trace
	o.metrics.RunFinished("done")
	r.log.WithField("duration_ms", res.DurationMs).
		WithField("intent_output", intentOut != nil).
		Info("pipeline complete")
	return res, nil
}

// tagIntents never fails the run. A missing tagger or a tagger error means
// no intent output.
func (r *run) tagIntents(ctx context.Context, rec *types.CallRecord) *types.CallRecord {
	if r.o.stages.Tagger == nil {
		r.log.WithField("stage", StageIntent).Warn("intent classification unavailable; skipping")
		return nil
	}
	start := time.Now()
	out, err := r.o.stages.Tagger.Enrich(ctx, rec)
	r.o.metrics.ObserveStage(string(StageIntent), time.Since(start))
	if err != nil {
		r.o.metrics.StageFailed(string(StageIntent), string((&StageError{Stage: StageIntent, Err: err}).Kind()))
		r.log.WithError(err).WithField("stage", StageIntent).Warn("intent tagging failed; continuing without intent output")
		return nil
	}
	r.advance(IntentTagged)
	return out
}

func (r *run) stage(ctx context.Context, s Stage, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	r.o.metrics.ObserveStage(string(s), d)
	if err == nil {
		r.log.WithField("stage", s).WithField("duration_ms", d.Milliseconds()).Info("stage complete")
		return nil
	}
	se := &StageError{Stage: s, Err: err}
	r.o.metrics.StageFailed(string(s), string(se.Kind()))
	return se
}

func (r *run) advance(s State) {
	r.trace = append(r.trace, s)
}

func (r *run) abort(err error) error {
	r.advance(Aborted)
	var se *StageError
	outcome := "aborted"
	if errors.As(err, &se) && se.Kind() == failure.Canceled {
		outcome = "canceled"
	}
	r.o.metrics.RunFinished(outcome)
	r.log.WithError(err).WithField("stage", stageOf(err)).WithField("kind", kindOf(err)).Error("pipeline aborted")
	return err
}

func stageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func kindOf(err error) failure.Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind()
	}
	return failure.KindOf(err)
}
