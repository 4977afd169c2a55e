// Package translation adds English fields to a call record: the full
// transcript, the word-level timestamp tokens, and every diarized entry.
package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/langdetect"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/types"
)

// DefaultTarget is the translation backend's tag for English.
const DefaultTarget = "en-IN"

// Service translates a single piece of text.
type Service interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

type Enricher struct {
	svc         Service
	target      string
	concurrency int
	metrics     *metrics.Metrics
	log         *logger.Logger
}

type Option func(*Enricher)

func WithTarget(lang string) Option { return func(e *Enricher) { e.target = lang } }

func WithConcurrency(n int) Option { return func(e *Enricher) { e.concurrency = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Enricher) { e.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(e *Enricher) { e.log = l } }

func NewEnricher(svc Service, opts ...Option) *Enricher {
	e := &Enricher{svc: svc, target: DefaultTarget, concurrency: 4}
	for _, o := range opts {
		o(e)
	}
	if e.target == "" {
		e.target = DefaultTarget
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	if e.log == nil {
		e.log = logger.New()
	}
	e.log = e.log.WithComponent("translation")
	return e
}

// Enrich returns a copy of rec with transcript_english, words_english and
// per-entry transcript_english filled in where they are missing. sourceLang
// overrides the record's language_code when set. rec itself is never
// modified; on error no partial English fields escape.
func (e *Enricher) Enrich(ctx context.Context, rec *types.CallRecord, sourceLang string) (*types.CallRecord, error) {
	if sourceLang == "" {
		sourceLang = rec.LanguageCode
	}
	if sourceLang == "" {
		return nil, failure.New(failure.MissingPrerequisite, "translate", "no source language for call record")
	}

	// Collect every unit still missing its English text into one list so the
	// whole record shares one concurrency budget. Fields already present are
	// kept as they are.
	out := rec.Clone()
	var units []unit
	if out.TranscriptEnglish == nil {
		out.TranscriptEnglish = new(string)
		units = append(units, unit{text: out.Transcript, dst: out.TranscriptEnglish})
	}
	words := 0
	if ts := out.Timestamps; ts != nil && len(ts.WordsEnglish) != len(ts.Words) {
		ts.WordsEnglish = make([]string, len(ts.Words))
		for i := range ts.Words {
			units = append(units, unit{text: ts.Words[i], dst: &ts.WordsEnglish[i]})
		}
		words = len(ts.Words)
	}
	entries := out.Entries()
	for i := range entries {
		if entries[i].TranscriptEnglish == nil {
			entries[i].TranscriptEnglish = new(string)
			units = append(units, unit{text: entries[i].Transcript, dst: entries[i].TranscriptEnglish})
		}
	}

	start := time.Now()
	if err := e.translateAll(ctx, units, sourceLang); err != nil {
		return nil, err
	}

	e.log.WithFields(map[string]any{
		"source_lang": sourceLang,
		"target_lang": e.target,
		"units":       len(units),
		"words":       words,
		"entries":     len(entries),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("translation complete")
	return out, nil
}

// unit is one piece of text and the field its translation goes to.
type unit struct {
	text string
	dst  *string
}

func (e *Enricher) translateAll(ctx context.Context, units []unit, sourceLang string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, u := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := e.translateUnit(gctx, u.text, sourceLang)
			if err != nil {
				return fmt.Errorf("unit %d: %w", i, err)
			}
			*u.dst = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return failure.Wrap(failure.UpstreamUnavailable, "translate", err)
	}
	return nil
}

// translateUnit detects the source script of each unit on its own text.
// Silent units and units already in the target language are copied through.
func (e *Enricher) translateUnit(ctx context.Context, text, sourceLang string) (string, error) {
	if types.IsSilent(text) {
		return text, nil
	}
	lang := langdetect.Detect(text, sourceLang)
	if sameLanguage(lang, e.target) {
		return text, nil
	}
	s, err := e.svc.Translate(ctx, text, lang, e.target)
	e.metrics.Call("translate", err)
	if err != nil {
		e.log.WithError(err).WithField("source_lang", lang).Warn("unit translation failed")
		return "", err
	}
	return s, nil
}

// sameLanguage compares the base language of two tags, so en-IN matches en.
func sameLanguage(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ta, err := language.Parse(a)
	if err != nil {
		return false
	}
	tb, err := language.Parse(b)
	if err != nil {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
