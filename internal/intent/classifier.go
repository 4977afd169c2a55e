// Package intent labels each diarized utterance of a call with the
// customer's payment intent.
package intent

import (
	"context"
	"fmt"
	"strings"

	"call-insights-go/internal/extractor"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/metrics"
	"call-insights-go/internal/types"
)

const (
	Agreement            = "AGREEMENT"
	ConditionalAgreement = "CONDITIONAL_AGREEMENT"
	DelayRequest         = "DELAY_REQUEST"
	Refusal              = "REFUSAL"
	Dispute              = "DISPUTE"
	InformationSeeking   = "INFORMATION_SEEKING"
	NoCommitment         = "NO_COMMITMENT"
)

// Labels lists every valid label in prompt order.
var Labels = []string{
	Agreement,
	ConditionalAgreement,
	DelayRequest,
	Refusal,
	Dispute,
	InformationSeeking,
	NoCommitment,
}

func ValidLabel(s string) bool {
	for _, l := range Labels {
		if s == l {
			return true
		}
	}
	return false
}

const noSpeechReason = "No speech detected"

// Session answers a single prompt. Sessions never share history.
type Session interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Backend opens a fresh Session for every utterance.
type Backend interface {
	NewSession(ctx context.Context) (Session, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context) (Session, error)

func (f BackendFunc) NewSession(ctx context.Context) (Session, error) { return f(ctx) }

type Classifier struct {
	backend Backend
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewClassifier(b Backend, m *metrics.Metrics, log *logger.Logger) *Classifier {
	if log == nil {
		log = logger.New()
	}
	return &Classifier{backend: b, metrics: m, log: log.WithComponent("intent")}
}

// Classify never fails: backend or parse errors come back as NO_COMMITMENT
// with the error text in the reason.
func (c *Classifier) Classify(ctx context.Context, utterance string) types.IntentClassification {
	if types.IsSilent(utterance) {
		c.metrics.IntentClassified(NoCommitment, false)
		return types.IntentClassification{Label: NoCommitment, Reason: noSpeechReason}
	}

	ic, err := c.classify(ctx, utterance)
	c.metrics.Call("intent", err)
	if err != nil {
		c.log.WithError(err).WithField("utterance", preview(utterance)).Warn("intent classification failed")
		c.metrics.IntentClassified(NoCommitment, true)
		return types.IntentClassification{Label: NoCommitment, Reason: "Classification error: " + err.Error()}
	}
	c.metrics.IntentClassified(ic.Label, false)
	return ic
}

func (c *Classifier) classify(ctx context.Context, utterance string) (types.IntentClassification, error) {
	session, err := c.backend.NewSession(ctx)
	if err != nil {
		return types.IntentClassification{}, fmt.Errorf("open session: %w", err)
	}
	raw, err := session.Ask(ctx, Prompt(utterance))
	if err != nil {
		return types.IntentClassification{}, err
	}

	var ic types.IntentClassification
	if err := extractor.DecodeObject(raw, &ic); err != nil {
		return types.IntentClassification{}, err
	}
	ic.Label = strings.TrimSpace(ic.Label)
	if ic.Label == "" {
		return types.IntentClassification{}, fmt.Errorf("response has no label")
	}
	if !ValidLabel(ic.Label) {
		return types.IntentClassification{}, fmt.Errorf("unknown label %q", ic.Label)
	}
	return ic, nil
}

// Prompt builds the classification request for one utterance.
func Prompt(utterance string) string {
	var b strings.Builder
	b.WriteString("You are classifying customer intent in a financial call.\n\n")
	b.WriteString("Choose EXACTLY ONE label from:\n")
	b.WriteString(strings.Join(Labels, ",\n"))
	b.WriteString("\n\nRules:\n")
	b.WriteString("- If payment depends on time or condition -> CONDITIONAL_AGREEMENT\n")
	b.WriteString("- If customer asks for more time -> DELAY_REQUEST\n")
	b.WriteString("- If customer refuses or cannot pay -> REFUSAL\n")
	b.WriteString("- If customer disputes loan or payment -> DISPUTE\n")
	b.WriteString("- If asking questions -> INFORMATION_SEEKING\n")
	b.WriteString("- If vague or evasive -> NO_COMMITMENT\n\n")
	b.WriteString("Return JSON only. No explanation.\n")
	b.WriteString(`JSON Format: {"label": "LABEL", "reason": "Brief explanation"}`)
	b.WriteString("\n\nText:\n")
	b.WriteString(`"` + utterance + `"`)
	return b.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 30 {
		return string(r[:30]) + "..."
	}
	return s
}
