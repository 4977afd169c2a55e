package actionable

import (
	"fmt"

	"call-insights-go/internal/aggregator"
	"call-insights-go/internal/intent"
)

const (
	adverseThreshold = 0.35
	reviewThreshold  = 0.5
)

type ActionCard struct {
	Kind    string `json:"kind"`
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

func Generate(ins aggregator.Insight) ActionCard {
	if ins.DominantAdverse != "" && ins.AdverseShare >= adverseThreshold {
		return ActionCard{
			Kind:    "escalation",
			Insight: fmt.Sprintf("%s dominates the batch (%.0f%% of utterances)", ins.DominantAdverse, ins.AdverseShare*100),
			Action:  escalationAction(ins.DominantAdverse),
			Impact:  "Protect recoveries on at-risk accounts",
		}
	}
	if ins.Succeeded > 0 && ins.ReviewRate >= reviewThreshold {
		return ActionCard{
			Kind:    "qa_capacity",
			Insight: fmt.Sprintf("%.0f%% of calls need human review", ins.ReviewRate*100),
			Action:  "Add QA reviewer capacity and audit low-confidence transcripts",
			Impact:  "Shorten the correction queue before insights are acted on",
		}
	}
	return ActionCard{
		Kind:    "monitor",
		Insight: "No strong adverse pattern detected",
		Action:  "Monitor and collect more calls",
		Impact:  "Low immediate intervention",
	}
}

func escalationAction(label string) string {
	switch label {
	case intent.Refusal:
		return "Route refusing customers to senior collections with hardship options"
	case intent.Dispute:
		return "Open a dispute review and reconcile account statements before the next call"
	default:
		return "Offer structured payment plans and schedule follow-ups on promised dates"
	}
}
