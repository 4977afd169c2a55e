package intent

import (
	"context"
	"encoding/json"
	"strings"
)

// KeywordBackend classifies with fixed phrase lists instead of a model. It
// answers in a fenced JSON block, like the hosted model usually does.
type KeywordBackend struct{}

func (KeywordBackend) NewSession(context.Context) (Session, error) { return keywordSession{}, nil }

type keywordSession struct{}

type keywordRule struct {
	label   string
	reason  string
	phrases []string
}

// Rules are checked in order; the first hit wins.
var keywordRules = []keywordRule{
	{ConditionalAgreement, "Payment depends on a condition", []string{"if i get", "if i receive", "once i get", "once my", "after i get", "after my salary", "when i get", "provided", "as soon as"}},
	{DelayRequest, "Customer asked for more time", []string{"more time", "next week", "next month", "extension", "few days", "postpone", "give me time", "later"}},
	{Refusal, "Customer refused or cannot pay", []string{"cannot pay", "can't pay", "won't pay", "will not pay", "not going to pay", "unable to pay", "refuse", "no money"}},
	{Dispute, "Customer disputes the loan or payment", []string{"never took", "not my loan", "dispute", "wrong amount", "already paid", "fraud", "incorrect"}},
	{InformationSeeking, "Customer is asking a question", []string{"?", "what is", "how much", "why ", "when is", "which ", "can you tell", "could you"}},
	{Agreement, "Customer agreed to pay", []string{"i will pay", "i'll pay", "will pay today", "agree", "okay", "yes", "sure"}},
}

func (keywordSession) Ask(_ context.Context, prompt string) (string, error) {
	return KeywordBackend{}.answer(prompt)
}

func (KeywordBackend) answer(prompt string) (string, error) {
	text := strings.ToLower(utteranceFromPrompt(prompt))
	label, reason := NoCommitment, "Vague or evasive response"
	for _, r := range keywordRules {
		if containsAny(text, r.phrases) {
			label, reason = r.label, r.reason
			break
		}
	}
	b, err := json.Marshal(map[string]string{"label": label, "reason": reason})
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

// utteranceFromPrompt recovers the quoted text after the final "Text:" line.
func utteranceFromPrompt(prompt string) string {
	i := strings.LastIndex(prompt, "Text:")
	if i == -1 {
		return prompt
	}
	return strings.Trim(strings.TrimSpace(prompt[i+len("Text:"):]), `"`)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
