package testsupport

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"relabel/internal/dataset"
)

// ToyDataset builds a linearly separable dataset of n rows with alternating
// labels. Positive rows sit near (1, 0) in embedding space, negative rows near
// (0, 1), so a logistic model fits them in a handful of epochs.
func ToyDataset(n int) *dataset.Dataset {
	ds := &dataset.Dataset{Rows: make([]dataset.Row, n)}
	for i := 0; i < n; i++ {
		label := (i + 1) % 2
		jitter := 0.01 * float64(i)
		embedding := []float64{jitter, 1 - jitter}
		if label == 1 {
			embedding = []float64{1 - jitter, jitter}
		}
		ds.Rows[i] = dataset.Row{
			Index:     i,
			Text:      fmt.Sprintf("review %d", i),
			Embedding: embedding,
			Label:     label,
			Prob:      dataset.ProbUnset,
		}
	}
	return ds
}

// ToyDatasetWithLabels builds rows whose embeddings match the given labels.
func ToyDatasetWithLabels(labels []int) *dataset.Dataset {
	ds := &dataset.Dataset{Rows: make([]dataset.Row, len(labels))}
	for i, label := range labels {
		embedding := []float64{0, 1}
		if label == 1 {
			embedding = []float64{1, 0}
		}
		ds.Rows[i] = dataset.Row{
			Index:     i,
			Text:      fmt.Sprintf("review %d", i),
			Embedding: embedding,
			Label:     label,
			Prob:      dataset.ProbUnset,
		}
	}
	return ds
}

// WriteSplits persists train/dev/test splits into dataDir in the on-disk CSV
// layout the data module loads.
func WriteSplits(t testing.TB, dataDir string, splits *dataset.Splits) {
	t.Helper()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	sets := map[string]*dataset.Dataset{
		"train": splits.Train,
		"dev":   splits.Dev,
		"test":  splits.Test,
	}
	for name, ds := range sets {
		writeSplit(t, dataDir, name, ds)
	}
}

func writeSplit(t testing.TB, dataDir, name string, ds *dataset.Dataset) {
	t.Helper()

	reviews, err := os.Create(filepath.Join(dataDir, name+".csv"))
	if err != nil {
		t.Fatalf("create %s.csv: %v", name, err)
	}
	defer reviews.Close()

	writer := csv.NewWriter(reviews)
	if err := writer.Write([]string{"review", "label"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, row := range ds.Rows {
		if err := writer.Write([]string{row.Text, strconv.Itoa(row.Label)}); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		t.Fatalf("flush %s.csv: %v", name, err)
	}

	embeddings, err := os.Create(filepath.Join(dataDir, name+".embeddings.csv"))
	if err != nil {
		t.Fatalf("create %s.embeddings.csv: %v", name, err)
	}
	defer embeddings.Close()

	embWriter := csv.NewWriter(embeddings)
	for _, row := range ds.Rows {
		record := make([]string, len(row.Embedding))
		for j, v := range row.Embedding {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := embWriter.Write(record); err != nil {
			t.Fatalf("write embedding row: %v", err)
		}
	}
	embWriter.Flush()
	if err := embWriter.Error(); err != nil {
		t.Fatalf("flush %s.embeddings.csv: %v", name, err)
	}
}
