package pipeline

import (
	"encoding/json"
	"os"

	"relabel/internal/services"
)

// writeJSON persists an artifact that is written once and never read back by
// the pipeline (pre/post metrics, for operator inspection).
func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrArtifact, "pipeline", "encode artifact", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return services.Wrap(services.ErrArtifact, "pipeline", "write artifact", path, err)
	}
	return nil
}
