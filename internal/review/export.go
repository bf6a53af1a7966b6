package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"relabel/internal/dataset"
	"relabel/internal/services"
)

// Record is one Label Studio pre-annotation task. The field layout is the
// import format the annotation tool expects and must not change shape.
type Record struct {
	Data        Data         `json:"data"`
	Predictions []Prediction `json:"predictions"`
}

// Data carries the raw review text.
type Data struct {
	Text string `json:"text"`
}

// Prediction wraps the single pre-annotated result for a task.
type Prediction struct {
	Result []Result `json:"result"`
}

// Result is one choice annotation.
type Result struct {
	Value    Value  `json:"value"`
	ID       string `json:"id"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	Type     string `json:"type"`
}

// Value holds the sentiment choice.
type Value struct {
	Choices []string `json:"choices"`
}

const (
	choicePositive = "Positive"
	choiceNegative = "Negative"
)

// Records builds one pre-annotation per flagged row, in the ranked order of
// the issue list. The sentiment choice reflects the row's current (already
// corrected) label.
func Records(ds *dataset.Dataset, issues []int) ([]Record, error) {
	records := make([]Record, 0, len(issues))
	for _, idx := range issues {
		if idx < 0 || idx >= ds.Len() {
			return nil, services.Wrap(services.ErrDataShape, "review", "export",
				fmt.Sprintf("issue index %d out of range [0, %d)", idx, ds.Len()), nil)
		}
		row := ds.Rows[idx]
		choice := choiceNegative
		if row.Label == 1 {
			choice = choicePositive
		}
		records = append(records, Record{
			Data: Data{Text: row.Text},
			Predictions: []Prediction{{
				Result: []Result{{
					Value:    Value{Choices: []string{choice}},
					ID:       fmt.Sprintf("data-%d", idx),
					FromName: "sentiment",
					ToName:   "text",
					Type:     "choices",
				}},
			}},
		})
	}
	return records, nil
}

// Write persists the records as a JSON array under reviewDir and returns the
// artifact path. This is the pipeline's terminal output; it is never read back.
func Write(reviewDir string, records []Record) (string, error) {
	path := filepath.Join(reviewDir, "pre-annotations.json")
	if records == nil {
		records = []Record{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "review", "encode pre-annotations", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrArtifact, "review", "write pre-annotations", path, err)
	}
	return path, nil
}
