package conflearn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"relabel/internal/dataset"
	"relabel/internal/services"
)

// ProbMatrix expands positive-class probabilities into the n x 2 class
// probability matrix the detector consumes (columns: P(0), P(1)).
func ProbMatrix(probs []float64) *mat.Dense {
	m := mat.NewDense(len(probs), 2, nil)
	for i, p := range probs {
		m.Set(i, 0, 1-p)
		m.Set(i, 1, p)
	}
	return m
}

// FindLabelIssues ranks likely-mislabeled rows by ascending self-confidence:
// the probability the model assigns to each row's given label. A row is
// flagged when its self-confidence falls below the confident threshold of its
// class (the mean self-confidence of rows sharing that given label) and the
// predicted class disagrees with the given label. The returned indices are a
// duplicate-free subset of 0..n-1, most suspicious first.
func FindLabelIssues(labels []int, probs *mat.Dense) ([]int, error) {
	n, classes := probs.Dims()
	if classes != 2 {
		return nil, services.Wrap(services.ErrDataShape, "inspect", "rank",
			fmt.Sprintf("probability matrix has %d classes, expected 2", classes), nil)
	}
	if n != len(labels) {
		return nil, services.Wrap(services.ErrDataShape, "inspect", "rank",
			fmt.Sprintf("%d probability rows but %d labels", n, len(labels)), nil)
	}

	selfConfidence := make([]float64, n)
	classSum := [2]float64{}
	classCount := [2]int{}
	for i, label := range labels {
		if label != 0 && label != 1 {
			return nil, services.Wrap(services.ErrDataShape, "inspect", "rank",
				fmt.Sprintf("row %d has non-binary label %d", i, label), nil)
		}
		rowSum := probs.At(i, 0) + probs.At(i, 1)
		if math.Abs(rowSum-1) > 1e-6 {
			return nil, services.Wrap(services.ErrDataShape, "inspect", "rank",
				fmt.Sprintf("row %d probabilities sum to %g", i, rowSum), nil)
		}
		selfConfidence[i] = probs.At(i, label)
		classSum[label] += selfConfidence[i]
		classCount[label]++
	}

	var thresholds [2]float64
	for c := 0; c < 2; c++ {
		if classCount[c] > 0 {
			thresholds[c] = classSum[c] / float64(classCount[c])
		}
	}

	issues := make([]int, 0)
	for i, label := range labels {
		predicted := 0
		if probs.At(i, 1) >= probs.At(i, 0) {
			predicted = 1
		}
		if predicted != label && selfConfidence[i] < thresholds[label] {
			issues = append(issues, i)
		}
	}

	sort.SliceStable(issues, func(a, b int) bool {
		return selfConfidence[issues[a]] < selfConfidence[issues[b]]
	})
	return issues, nil
}

// FlipLabels overwrites each flagged row's label with its binary complement.
// Applying it twice with the same issue list restores the original labels.
func FlipLabels(ds *dataset.Dataset, issues []int) error {
	for _, idx := range issues {
		if idx < 0 || idx >= ds.Len() {
			return services.Wrap(services.ErrDataShape, "inspect", "flip",
				fmt.Sprintf("issue index %d out of range [0, %d)", idx, ds.Len()), nil)
		}
		ds.Rows[idx].Label = 1 - ds.Rows[idx].Label
	}
	return nil
}
