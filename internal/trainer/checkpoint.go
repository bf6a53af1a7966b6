package trainer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"relabel/internal/classifier"
	"relabel/internal/services"
)

// saveCheckpoint writes the current parameters to the checkpoint directory.
// The first save for a fit allocates a unique file; later saves overwrite it,
// keeping exactly one (the best) checkpoint per fit.
func (t *Trainer) saveCheckpoint(sys *classifier.System, existing string) (string, error) {
	path := existing
	if path == "" {
		path = filepath.Join(t.cfg.Paths.CheckpointDir, "best-"+uuid.NewString()+".json")
	}

	payload, err := json.Marshal(sys.Params())
	if err != nil {
		return "", services.Wrap(services.ErrArtifact, "trainer", "save checkpoint", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrArtifact, "trainer", "save checkpoint", path, err)
	}
	return path, nil
}

func (t *Trainer) restoreCheckpoint(sys *classifier.System, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "trainer", "restore checkpoint", path, err)
	}
	var params classifier.Params
	if err := json.Unmarshal(payload, &params); err != nil {
		return services.Wrap(services.ErrArtifact, "trainer", "restore checkpoint", path, err)
	}
	return sys.SetParams(params)
}
