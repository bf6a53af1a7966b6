package crossval

import (
	"fmt"

	"relabel/internal/services"
)

// KFold partitions row indices 0..n-1 into k contiguous test blocks whose
// sizes differ by at most one. The blocks are exhaustive and pairwise
// disjoint: every index lands in test position exactly once.
func KFold(n, k int) ([][]int, error) {
	if k < 2 {
		return nil, services.Wrap(services.ErrValidation, "crossval", "kfold",
			fmt.Sprintf("fold count must be at least 2, got %d", k), nil)
	}
	if n < k {
		return nil, services.Wrap(services.ErrValidation, "crossval", "kfold",
			fmt.Sprintf("cannot split %d rows into %d folds", n, k), nil)
	}

	folds := make([][]int, k)
	base := n / k
	remainder := n % k
	start := 0
	for f := 0; f < k; f++ {
		size := base
		if f < remainder {
			size++
		}
		fold := make([]int, size)
		for i := 0; i < size; i++ {
			fold[i] = start + i
		}
		folds[f] = fold
		start += size
	}
	return folds, nil
}

// Complement returns all indices in 0..n-1 not present in the fold, in order.
func Complement(n int, fold []int) []int {
	inFold := make(map[int]struct{}, len(fold))
	for _, idx := range fold {
		inFold[idx] = struct{}{}
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if _, ok := inFold[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
