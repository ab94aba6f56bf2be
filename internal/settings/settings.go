package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/rs/zerolog/log"
)

// DefaultType is the only work item type analyzed unless others are enabled.
const DefaultType = "User Story"

// Settings are the per-project preferences for sprint analysis.
type Settings struct {
	ShowAdditionalWorkItemTypes bool     `json:"showAdditionalWorkItemTypes"`
	AdditionalWorkItemTypes     []string `json:"additionalWorkItemTypes"`
	SelectedTeam                string   `json:"selectedTeam,omitempty"`
}

// IncludedTypes returns the work item types to query.
func (s Settings) IncludedTypes() []string {
	if s.ShowAdditionalWorkItemTypes && len(s.AdditionalWorkItemTypes) > 0 {
		return slices.Clone(s.AdditionalWorkItemTypes)
	}
	return []string{DefaultType}
}

// Validate reports additional types that are not among the valid choices.
func (s Settings) Validate(valid []string) error {
	for _, t := range s.AdditionalWorkItemTypes {
		if !slices.Contains(valid, t) {
			return fmt.Errorf("work item type %q has no story points field", t)
		}
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func path(dir, project string) string {
	name := unsafeChars.ReplaceAllString(project, "_")
	return filepath.Join(dir, fmt.Sprintf("%s-settings.json", name))
}

// Load reads the settings of a project. A missing file yields defaults.
func Load(dir, project string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path(dir, project))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// Save writes the settings of a project atomically.
func Save(dir, project string, s Settings) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	target := path(dir, project)
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}

	log.Info().Str("project", project).Strs("types", s.IncludedTypes()).Msg("Settings saved")
	return nil
}
