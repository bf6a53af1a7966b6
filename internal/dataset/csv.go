package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"relabel/internal/services"
)

// Splits holds the three dataset partitions produced by the data module.
type Splits struct {
	Train *Dataset `json:"train"`
	Dev   *Dataset `json:"dev"`
	Test  *Dataset `json:"test"`
}

// SplitNames is the fixed on-disk naming for dataset partitions.
var SplitNames = []string{"train", "dev", "test"}

// Load reads all three splits from dataDir. Each split consists of
// <name>.csv (header: review,label) and <name>.embeddings.csv holding one
// comma-separated float vector per review, in the same row order.
func Load(dataDir string) (*Splits, error) {
	splits := &Splits{}
	targets := map[string]**Dataset{
		"train": &splits.Train,
		"dev":   &splits.Dev,
		"test":  &splits.Test,
	}
	dim := -1
	for _, name := range SplitNames {
		ds, err := loadSplit(dataDir, name)
		if err != nil {
			return nil, err
		}
		if dim == -1 {
			dim = ds.Dim()
		} else if ds.Dim() != dim {
			return nil, services.Wrap(services.ErrDataShape, "dataset", "load",
				fmt.Sprintf("split %s embedding width %d does not match %d", name, ds.Dim(), dim), nil)
		}
		*targets[name] = ds
	}
	return splits, nil
}

func loadSplit(dataDir, name string) (*Dataset, error) {
	reviewsPath := filepath.Join(dataDir, name+".csv")
	embeddingsPath := filepath.Join(dataDir, name+".embeddings.csv")

	texts, labels, err := readReviews(reviewsPath)
	if err != nil {
		return nil, err
	}
	embeddings, err := readEmbeddings(embeddingsPath)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, services.Wrap(services.ErrDataShape, "dataset", "load",
			fmt.Sprintf("%s: %d reviews but %d embedding rows", name, len(texts), len(embeddings)), nil)
	}

	ds := &Dataset{Rows: make([]Row, len(texts))}
	for i := range texts {
		ds.Rows[i] = Row{
			Index:     i,
			Text:      texts[i],
			Embedding: embeddings[i],
			Label:     labels[i],
			Prob:      ProbUnset,
		}
	}
	return ds, nil
}

func readReviews(path string) ([]string, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open reviews: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read reviews %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, services.Wrap(services.ErrDataShape, "dataset", "load",
			fmt.Sprintf("%s: empty file", path), nil)
	}

	// Header row is required: review,label.
	header := records[0]
	if strings.ToLower(strings.TrimSpace(header[0])) != "review" ||
		strings.ToLower(strings.TrimSpace(header[1])) != "label" {
		return nil, nil, services.Wrap(services.ErrDataShape, "dataset", "load",
			fmt.Sprintf("%s: expected header review,label, got %s,%s", path, header[0], header[1]), nil)
	}

	texts := make([]string, 0, len(records)-1)
	labels := make([]int, 0, len(records)-1)
	for i, record := range records[1:] {
		label, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || (label != 0 && label != 1) {
			return nil, nil, services.Wrap(services.ErrDataShape, "dataset", "load",
				fmt.Sprintf("%s: row %d has non-binary label %q", path, i+1, record[1]), nil)
		}
		texts = append(texts, record[0])
		labels = append(labels, label)
	}
	return texts, labels, nil
}

func readEmbeddings(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read embeddings %s: %w", path, err)
	}

	embeddings := make([][]float64, 0, len(records))
	for i, record := range records {
		vector := make([]float64, len(record))
		for j, field := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, services.Wrap(services.ErrDataShape, "dataset", "load",
					fmt.Sprintf("%s: row %d column %d is not a float: %q", path, i, j, field), nil)
			}
			vector[j] = value
		}
		embeddings = append(embeddings, vector)
	}
	return embeddings, nil
}

// SaveProbCSV writes the combined dataset with its probability column as
// review,label,prob. Written after cross-validation; never read back.
func SaveProbCSV(path string, ds *Dataset) error {
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrArtifact, "crossval", "write prob csv", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"review", "label", "prob"}); err != nil {
		return services.Wrap(services.ErrArtifact, "crossval", "write prob csv", path, err)
	}
	for _, row := range ds.Rows {
		record := []string{
			row.Text,
			strconv.Itoa(row.Label),
			strconv.FormatFloat(row.Prob, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return services.Wrap(services.ErrArtifact, "crossval", "write prob csv", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return services.Wrap(services.ErrArtifact, "crossval", "write prob csv", path, err)
	}
	return nil
}
