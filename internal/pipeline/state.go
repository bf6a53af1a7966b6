package pipeline

import (
	"encoding/json"
	"fmt"

	"relabel/internal/classifier"
	"relabel/internal/dataset"
	"relabel/internal/services"
)

// State is the explicit snapshot record each step receives from its
// predecessor and hands to its successor. Only fields written here survive
// across steps; it is persisted as JSON after every completed step so a
// failed run can resume without re-running prior work.
type State struct {
	// Seed is the process-wide random seed fixed by the start step.
	Seed int64 `json:"seed"`

	// Splits are the loaded train/dev/test datasets.
	Splits *dataset.Splits `json:"splits,omitempty"`

	// CheckpointPath points at the best weights from the initial fit.
	CheckpointPath string `json:"checkpoint_path,omitempty"`

	// PreResults holds test metrics before any label correction.
	PreResults *classifier.TestResults `json:"pre_results,omitempty"`

	// Combined is the concatenated dataset with out-of-sample probabilities
	// (and, after inspect, corrected labels).
	Combined *dataset.Dataset `json:"combined,omitempty"`

	// Issues is the ranked label-issue index list into Combined.
	Issues []int `json:"issues,omitempty"`

	// ReviewPath is the exported pre-annotations artifact.
	ReviewPath string `json:"review_path,omitempty"`

	// PostResults holds test metrics after label correction and retraining.
	PostResults *classifier.TestResults `json:"post_results,omitempty"`
}

// Clone returns an independent copy of the state so each step owns its
// working snapshot instead of sharing one under mutation.
func (s *State) Clone() *State {
	cp := *s
	if s.Splits != nil {
		cp.Splits = &dataset.Splits{}
		if s.Splits.Train != nil {
			cp.Splits.Train = s.Splits.Train.Clone()
		}
		if s.Splits.Dev != nil {
			cp.Splits.Dev = s.Splits.Dev.Clone()
		}
		if s.Splits.Test != nil {
			cp.Splits.Test = s.Splits.Test.Clone()
		}
	}
	if s.Combined != nil {
		cp.Combined = s.Combined.Clone()
	}
	if s.Issues != nil {
		cp.Issues = append([]int(nil), s.Issues...)
	}
	if s.PreResults != nil {
		pre := *s.PreResults
		cp.PreResults = &pre
	}
	if s.PostResults != nil {
		post := *s.PostResults
		cp.PostResults = &post
	}
	return &cp
}

// Marshal encodes the state for snapshot persistence.
func (s *State) Marshal() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, services.Wrap(services.ErrArtifact, "pipeline", "encode state", "", err)
	}
	return payload, nil
}

// UnmarshalState decodes a persisted snapshot payload.
func UnmarshalState(payload []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, services.Wrap(services.ErrArtifact, "pipeline", "decode state",
			fmt.Sprintf("%d byte payload", len(payload)), err)
	}
	return &state, nil
}
