package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kiracore/jiraflow/internal/config"
)

func TestGenerateConfig(t *testing.T) {
	for _, preset := range []string{"minimal", "standard", "full"} {
		t.Run(preset, func(t *testing.T) {
			content, err := generateConfig(preset, "sp")
			if err != nil {
				t.Fatalf("generateConfig() error = %v", err)
			}

			path := filepath.Join(t.TempDir(), ".jiraflow.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}

			result := cfg.Validate()
			if !result.IsValid() {
				t.Errorf("%s preset has errors: %v", preset, result.Errors)
			}
			if cfg.Projects[0].FilePrefix != "sp" {
				t.Errorf("FilePrefix = %q, want %q", cfg.Projects[0].FilePrefix, "sp")
			}
		})
	}
}

func TestGenerateConfig_UnknownPreset(t *testing.T) {
	if _, err := generateConfig("huge", "sp"); err == nil {
		t.Error("generateConfig() expected error for unknown preset")
	}
}
