package revlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sprint-history/internal/sprint"
)

func iterationPath(cacheDir, sourceID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s_iteration.json", sourceID))
}

// SaveIteration stores the iteration a cache partition belongs to, so the
// partition can be replayed without Azure DevOps.
func SaveIteration(cacheDir, sourceID string, it sprint.Iteration) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(it, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode iteration: %w", err)
	}

	path := iterationPath(cacheDir, sourceID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write iteration: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename iteration file: %w", err)
	}
	return nil
}

// LoadIteration reads the iteration stored next to a cache partition.
func LoadIteration(cacheDir, sourceID string) (sprint.Iteration, error) {
	var it sprint.Iteration
	data, err := os.ReadFile(iterationPath(cacheDir, sourceID))
	if err != nil {
		return it, fmt.Errorf("failed to read iteration of %s: %w", sourceID, err)
	}
	if err := json.Unmarshal(data, &it); err != nil {
		return it, fmt.Errorf("failed to decode iteration of %s: %w", sourceID, err)
	}
	return it, nil
}
