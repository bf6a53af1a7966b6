package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"relabel/internal/services"
)

// ProbUnset marks a row whose out-of-sample probability has not been computed
// yet. Probabilities are in [0, 1], so a negative value can never collide with
// a real estimate.
const ProbUnset = -1.0

// Row is a single labeled review with its precomputed embedding.
type Row struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
	Label     int       `json:"label"`
	Prob      float64   `json:"prob"`
}

// Dataset is an ordered collection of rows with stable indices. Indices are
// always 0..Len()-1 in row order so derived artifacts can be scattered back by
// position.
type Dataset struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Dim returns the embedding width, or 0 for an empty dataset.
func (d *Dataset) Dim() int {
	if d.Len() == 0 {
		return 0
	}
	return len(d.Rows[0].Embedding)
}

// Labels returns the label column in row order.
func (d *Dataset) Labels() []int {
	labels := make([]int, d.Len())
	for i, row := range d.Rows {
		labels[i] = row.Label
	}
	return labels
}

// Probs returns the probability column in row order.
func (d *Dataset) Probs() []float64 {
	probs := make([]float64, d.Len())
	for i, row := range d.Rows {
		probs[i] = row.Prob
	}
	return probs
}

// Matrix returns the embeddings as a dense n x dim matrix.
func (d *Dataset) Matrix() *mat.Dense {
	n := d.Len()
	dim := d.Dim()
	if n == 0 || dim == 0 {
		return mat.NewDense(1, 1, nil)
	}
	m := mat.NewDense(n, dim, nil)
	for i, row := range d.Rows {
		m.SetRow(i, row.Embedding)
	}
	return m
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Rows: make([]Row, d.Len())}
	for i, row := range d.Rows {
		cp := row
		cp.Embedding = append([]float64(nil), row.Embedding...)
		out.Rows[i] = cp
	}
	return out
}

// Subset returns a new dataset containing the given row positions, re-indexed
// 0..len(indices)-1.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	out := &Dataset{Rows: make([]Row, 0, len(indices))}
	for _, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, services.Wrap(services.ErrDataShape, "dataset", "subset",
				fmt.Sprintf("index %d out of range [0, %d)", idx, d.Len()), nil)
		}
		row := d.Rows[idx]
		row.Embedding = append([]float64(nil), row.Embedding...)
		row.Index = len(out.Rows)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Concat joins datasets in order, re-basing indices 0..n-1 so fold results can
// be scattered back by position. Embedding widths must agree.
func Concat(sets ...*Dataset) (*Dataset, error) {
	out := &Dataset{}
	dim := -1
	for _, set := range sets {
		for _, row := range set.Rows {
			if dim == -1 {
				dim = len(row.Embedding)
			} else if len(row.Embedding) != dim {
				return nil, services.Wrap(services.ErrDataShape, "dataset", "concat",
					fmt.Sprintf("embedding width %d does not match %d", len(row.Embedding), dim), nil)
			}
			cp := row
			cp.Embedding = append([]float64(nil), row.Embedding...)
			cp.Index = len(out.Rows)
			out.Rows = append(out.Rows, cp)
		}
	}
	return out, nil
}

// Batches splits 0..n-1 into consecutive index batches of at most batchSize.
func Batches(n, batchSize int) [][]int {
	if n <= 0 || batchSize <= 0 {
		return nil
	}
	batches := make([][]int, 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, i)
		}
		batches = append(batches, batch)
	}
	return batches
}
