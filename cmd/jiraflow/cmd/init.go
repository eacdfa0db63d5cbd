package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	preset     string
	initPrefix string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize jiraflow configuration",
	Long: `Initialize a new .jiraflow.yaml configuration file.

Available presets:
  minimal  - One project with a cycle-time policy only
  standard - Adds expedited priorities, stalled threshold and history discarding (default)
  full     - Everything including holidays and custom WIP grouping rules`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&preset, "preset", "standard", "configuration preset (minimal|standard|full)")
	initCmd.Flags().StringVar(&initPrefix, "prefix", "", "download file prefix (default: your-project)")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := ".jiraflow.yaml"

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file %s already exists", configFile)
	}

	prefix := initPrefix
	if prefix == "" {
		prefix = "your-project"
	}

	content, err := generateConfig(preset, prefix)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	green.Printf("Created %s with %s preset\n", configFile, preset)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point data_dir at the downloaded issue files")
	fmt.Println("  2. Run: jiraflow config validate")
	fmt.Println("  3. Run: jiraflow quality")
	fmt.Println("  4. Run: jiraflow run")

	return nil
}

func generateConfig(preset, prefix string) (string, error) {
	switch preset {
	case "minimal":
		return generateMinimalConfig(prefix), nil
	case "standard", "":
		return generateStandardConfig(prefix), nil
	case "full":
		return generateFullConfig(prefix), nil
	}
	return "", fmt.Errorf("unknown preset %q (expected minimal, standard or full)", preset)
}

func generateMinimalConfig(prefix string) string {
	return fmt.Sprintf(`# Jiraflow Configuration (minimal preset)
version: "1"

data_dir: target

projects:
  - file_prefix: "%s"
    cycletime:
      start:
        kind: first_time_in_status_category
        args: ["In Progress"]
      stop:
        kind: still_in_status_category
        args: ["Done"]
`, prefix)
}

func generateStandardConfig(prefix string) string {
	return fmt.Sprintf(`# Jiraflow Configuration (standard preset)
version: "1"

timezone_offset: "+00:00"
data_dir: target

projects:
  - name: "%[1]s"
    file_prefix: "%[1]s"
    cycletime:
      start:
        kind: first_time_in_status_category
        args: ["In Progress"]
      stop:
        kind: still_in_status_category
        args: ["Done"]
    expedited_priority_names: ["Highest", "Critical"]
    stalled_threshold_days: 5
    discard_changes_before:
      status_becomes: [":backlog"]

settings:
  workers: 8
`, prefix)
}

func generateFullConfig(prefix string) string {
	return fmt.Sprintf(`# Jiraflow Configuration (full preset)
version: "1"

timezone_offset: "+00:00"
data_dir: target
holiday_dates:
  - "2024-12-24..2024-12-26"
  - "2025-01-01"

projects:
  - name: "%[1]s"
    file_prefix: "%[1]s"
    board_id: 0
    cycletime:
      start:
        kind: first_time_in_status_category
        args: ["In Progress"]
      stop:
        kind: still_in_status_category
        args: ["Done"]
    expedited_priority_names: ["Highest", "Critical"]
    stalled_threshold_days: 5
    customfield_parent_links: []
    discard_changes_before:
      status_becomes: [":backlog"]
    grouping_rules:
      - when: completed
        ignore: true
      - when: expedited
        label: Expedited
        color: red
        group_priority: 1
      - when: blocked
        label: Blocked
        color: "#FF7400"
        group_priority: 2
      - when: stalled
        label: Stalled
        color: orange
        group_priority: 3
      - when: started
        label: Active
        color: lightgray
        group_priority: 4
      - when: any
        label: Start date unknown
        color: white
        group_priority: 5

settings:
  workers: 8
  database: ""
`, prefix)
}
