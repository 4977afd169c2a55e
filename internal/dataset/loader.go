package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Call is one manifest row to run through the pipeline.
type Call struct {
	Row       int    `json:"row"`
	CallID    string `json:"call_id"`
	AudioPath string `json:"audio_path"`
}

// Load reads the first sheet of an xlsx manifest. Columns are found by
// header heuristics; rows without an audio path are skipped. Relative audio
// paths resolve against the manifest's directory.
func Load(path string) ([]Call, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	audioIdx, callIDIdx := columns(rows[0])
	if audioIdx == -1 {
		return nil, fmt.Errorf("no audio column in header %q", rows[0])
	}

	base := filepath.Dir(path)
	var out []Call
	for i, r := range rows[1:] {
		rowNum := i + 2
		audio := cell(r, audioIdx)
		if audio == "" {
			continue
		}
		if !filepath.IsAbs(audio) && !strings.Contains(audio, "://") {
			audio = filepath.Join(base, audio)
		}
		id := cell(r, callIDIdx)
		if id == "" {
			id = fmt.Sprintf("row-%d", rowNum)
		}
		out = append(out, Call{Row: rowNum, CallID: id, AudioPath: audio})
	}
	return out, nil
}

func columns(header []string) (audioIdx, callIDIdx int) {
	audioIdx, callIDIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "recording") || strings.Contains(l, "file") || strings.Contains(l, "path"):
			if audioIdx == -1 {
				audioIdx = i
			}
		case strings.Contains(l, "call id") || strings.Contains(l, "call_id") || strings.Contains(l, "callid") || l == "id":
			if callIDIdx == -1 {
				callIDIdx = i
			}
		}
	}
	return audioIdx, callIDIdx
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}
