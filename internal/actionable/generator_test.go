package actionable

import (
	"testing"

	"call-insights-go/internal/aggregator"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   aggregator.Insight
		want string
	}{
		{"adverse share at threshold", aggregator.Insight{Succeeded: 4, DominantAdverse: "DISPUTE", AdverseShare: 0.35, ReviewRate: 0.9}, "escalation"},
		{"adverse below threshold, heavy review", aggregator.Insight{Succeeded: 4, DominantAdverse: "REFUSAL", AdverseShare: 0.34, ReviewRate: 0.5}, "qa_capacity"},
		{"quiet batch", aggregator.Insight{Succeeded: 4, ReviewRate: 0.25}, "monitor"},
		{"all failed", aggregator.Insight{Failed: 3}, "monitor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			card := Generate(tc.in)
			if card.Kind != tc.want {
				t.Fatalf("kind = %s, want %s (%+v)", card.Kind, tc.want, card)
			}
			if card.Insight == "" || card.Action == "" || card.Impact == "" {
				t.Errorf("incomplete card %+v", card)
			}
		})
	}
}

func TestEscalationActionPerLabel(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, label := range aggregator.Adverse {
		seen[escalationAction(label)] = true
	}
	if len(seen) != len(aggregator.Adverse) {
		t.Fatal("each adverse label should get its own action")
	}
}
