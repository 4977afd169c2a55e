package dataset

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"call-insights-go/internal/actionable"
	"call-insights-go/internal/aggregator"
	"call-insights-go/internal/intent"
	"call-insights-go/internal/logger"
)

const (
	CallsSheet   = "Calls"
	SummarySheet = "Summary"
)

// WriteReport writes one row per call to the Calls sheet and the aggregate
// with its action card to the Summary sheet.
func WriteReport(path string, outcomes []aggregator.Outcome, ins aggregator.Insight, card actionable.ActionCard) error {
	log := logger.New().WithComponent("dataset.report").WithField("path", path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CallsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}

	if err := writeCalls(f, outcomes, bold); err != nil {
		return err
	}
	if err := writeSummary(f, ins, card, bold); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	log.WithField("calls", len(outcomes)).WithField("failed", ins.Failed).Info("batch report written")
	return nil
}

func writeCalls(f *excelize.File, outcomes []aggregator.Outcome, bold int) error {
	header := []any{"call_id", "audio_path", "status", "failed_stage", "failed_kind", "error",
		"language", "primary_intent", "risk_level", "sentiment", "needs_review"}
	for _, l := range intent.Labels {
		header = append(header, l)
	}
	if err := setRow(f, CallsSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(CallsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, o := range outcomes {
		row := []any{o.CallID, o.AudioPath, o.Status(), o.FailedStage(), o.FailedKind()}
		if o.Err != nil {
			row = append(row, o.Err.Error(), "", "", "", "", "")
		} else {
			r := o.Result
			lang := ""
			if r.TranslateOutput != nil {
				lang = r.TranslateOutput.LanguageCode
			}
			row = append(row, "", lang, r.Insights.PrimaryIntent, r.Insights.RiskLevel,
				r.Insights.Sentiment, r.Insights.Review.NeedsHumanReview)
		}
		counts := o.LabelCounts()
		for _, l := range intent.Labels {
			if counts == nil {
				row = append(row, "")
				continue
			}
			row = append(row, counts[l])
		}
		if err := setRow(f, CallsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, ins aggregator.Insight, card actionable.ActionCard, bold int) error {
	rows := [][]any{
		{"metric", "value"},
		{"total_calls", ins.TotalCalls},
		{"succeeded", ins.Succeeded},
		{"failed", ins.Failed},
		{"review_rate", ins.ReviewRate},
		{"dominant_adverse", ins.DominantAdverse},
		{"adverse_share", ins.AdverseShare},
	}
	for _, l := range intent.Labels {
		rows = append(rows, []any{"intent:" + l, ins.IntentCounts[l]})
	}
	for _, k := range sortedKeys(ins.RiskLevels) {
		rows = append(rows, []any{"risk:" + k, ins.RiskLevels[k]})
	}
	for _, k := range sortedKeys(ins.Sentiments) {
		rows = append(rows, []any{"sentiment:" + k, ins.Sentiments[k]})
	}
	for _, k := range sortedKeys(ins.FailuresByKind) {
		rows = append(rows, []any{"failures:" + k, ins.FailuresByKind[k]})
	}
	rows = append(rows,
		[]any{"action_kind", card.Kind},
		[]any{"action_insight", card.Insight},
		[]any{"action", card.Action},
		[]any{"action_impact", card.Impact},
	)
	for i, r := range rows {
		if err := setRow(f, SummarySheet, i+1, r); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cellName, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
