// Package aggregator rolls per-call batch outcomes up into distributions.
package aggregator

import (
	"errors"

	"call-insights-go/internal/failure"
	"call-insights-go/internal/intent"
	"call-insights-go/internal/pipeline"
	"call-insights-go/internal/types"
)

// Outcome is one manifest row after its pipeline run. Exactly one of Result
// and Err is set.
type Outcome struct {
	CallID    string
	AudioPath string
	Result    *pipeline.Result
	Err       error
}

// Status is "ok" or "failed".
func (o Outcome) Status() string {
	if o.Err != nil {
		return "failed"
	}
	return "ok"
}

// FailedStage and FailedKind describe Err; both are empty on success.
func (o Outcome) FailedStage() string {
	if se, ok := stageError(o.Err); ok {
		return string(se.Stage)
	}
	return ""
}

func (o Outcome) FailedKind() string {
	if o.Err == nil {
		return ""
	}
	if se, ok := stageError(o.Err); ok {
		return string(se.Kind())
	}
	if k := failure.KindOf(o.Err); k != "" {
		return string(k)
	}
	return "Internal"
}

// LabelCounts counts intent labels over spoken utterances. It is nil when the
// run produced no intent output.
func (o Outcome) LabelCounts() map[string]int {
	if o.Result == nil || o.Result.IntentOutput == nil {
		return nil
	}
	counts := map[string]int{}
	for _, e := range o.Result.IntentOutput.Entries() {
		if e.IntentClassification == nil || types.IsSilent(e.Transcript) {
			continue
		}
		counts[e.IntentClassification.Label]++
	}
	return counts
}

// Adverse labels signal collection risk.
var Adverse = []string{intent.Refusal, intent.Dispute, intent.DelayRequest}

type Insight struct {
	TotalCalls     int                `json:"total_calls"`
	Succeeded      int                `json:"succeeded"`
	Failed         int                `json:"failed"`
	IntentCounts   map[string]int     `json:"intent_counts"`
	IntentShare    map[string]float64 `json:"intent_share"`
	RiskLevels     map[string]int     `json:"risk_levels"`
	Sentiments     map[string]int     `json:"sentiments"`
	ReviewRate     float64            `json:"review_rate"`
	FailuresByKind map[string]int     `json:"failures_by_kind"`
	// DominantAdverse is the most frequent adverse label, "" if none occurred.
	DominantAdverse string  `json:"dominant_adverse"`
	AdverseShare    float64 `json:"adverse_share"`
}

func Aggregate(outcomes []Outcome) Insight {
	ins := Insight{
		TotalCalls:     len(outcomes),
		IntentCounts:   map[string]int{},
		IntentShare:    map[string]float64{},
		RiskLevels:     map[string]int{},
		Sentiments:     map[string]int{},
		FailuresByKind: map[string]int{},
	}
	reviewed := 0
	utterances := 0
	for _, o := range outcomes {
		if o.Err != nil {
			ins.Failed++
			ins.FailuresByKind[o.FailedKind()]++
			continue
		}
		ins.Succeeded++
		r := o.Result
		if r.Insights.RiskLevel != "" {
			ins.RiskLevels[r.Insights.RiskLevel]++
		}
		if r.Insights.Sentiment != "" {
			ins.Sentiments[r.Insights.Sentiment]++
		}
		if r.Insights.Review.NeedsHumanReview {
			reviewed++
		}
		for label, n := range o.LabelCounts() {
			ins.IntentCounts[label] += n
			utterances += n
		}
	}
	if ins.Succeeded > 0 {
		ins.ReviewRate = float64(reviewed) / float64(ins.Succeeded)
	}
	if utterances > 0 {
		for label, n := range ins.IntentCounts {
			ins.IntentShare[label] = float64(n) / float64(utterances)
		}
	}

	// Ties go to the earlier label in Adverse.
	for _, label := range Adverse {
		if s := ins.IntentShare[label]; s > ins.AdverseShare {
			ins.AdverseShare = s
			ins.DominantAdverse = label
		}
	}
	return ins
}

func stageError(err error) (*pipeline.StageError, bool) {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
