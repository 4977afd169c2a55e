package dataset

import (
	"context"

	"call-insights-go/internal/aggregator"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
)

type FileProcessor interface {
	ProcessFile(ctx context.Context, reqID, path string) (*pipeline.Result, error)
}

// RunBatch processes calls one at a time. A failed call is recorded and the
// batch moves on; only cancellation stops it early, marking the remaining
// calls failed.
func RunBatch(ctx context.Context, p FileProcessor, calls []Call, log *logger.Logger) []aggregator.Outcome {
	if log == nil {
		log = logger.New()
	}
	log = log.WithComponent("dataset.batch")

	out := make([]aggregator.Outcome, 0, len(calls))
	for i, c := range calls {
		o := aggregator.Outcome{CallID: c.CallID, AudioPath: c.AudioPath}
		if err := ctx.Err(); err != nil {
			o.Err = err
			out = append(out, o)
			continue
		}
		entry := log.WithField("call_id", c.CallID).WithField("progress", i+1).WithField("total", len(calls))
		entry.Info("processing call")

		res, err := p.ProcessFile(ctx, "", c.AudioPath)
		if err != nil {
			entry.WithError(err).Warn("call failed")
			o.Err = err
		} else {
			o.Result = res
		}
		out = append(out, o)
	}
	return out
}
