package intent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"call-insights-go/internal/types"
)

type Enricher struct {
	classifier  *Classifier
	concurrency int
}

func NewEnricher(c *Classifier, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{classifier: c, concurrency: concurrency}
}

// Enrich returns a copy of rec with intent_classification set on every
// diarized entry that lacks one; existing classifications are kept.
// Per-utterance failures are folded into the fallback label; the only error
// is cancellation of ctx.
func (e *Enricher) Enrich(ctx context.Context, rec *types.CallRecord) (*types.CallRecord, error) {
	out := rec.Clone()
	entries := out.Entries()
	start := time.Now()

	results := make([]types.IntentClassification, len(entries))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, en := range entries {
		if en.IntentClassification != nil {
			results[i] = *en.IntentClassification
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = e.classifier.Classify(ctx, en.Utterance())
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range entries {
		if entries[i].IntentClassification == nil {
			ic := results[i]
			entries[i].IntentClassification = &ic
		}
		counts[entries[i].IntentClassification.Label]++
	}
	e.classifier.log.WithField("entries", len(entries)).
		WithField("labels", counts).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("intent tagging complete")
	return out, nil
}
