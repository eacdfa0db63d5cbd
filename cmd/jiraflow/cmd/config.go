package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiracore/jiraflow/internal/config"
	"github.com/kiracore/jiraflow/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for managing jiraflow configuration files.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate configuration file",
	Long: `Validate the configuration file for errors and warnings.

Examples:
  jiraflow config validate
  jiraflow config validate .jiraflow.yaml
  jiraflow config validate --config myconfig.yaml`,
	RunE: runValidate,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration that would be used, after defaults.`,
	RunE:  runShowConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := cfgFile
	if len(args) > 0 {
		configFile = args[0]
	}
	if configFile == "" {
		configFile = viper.ConfigFileUsed()
	}
	if configFile == "" {
		configFile = ".jiraflow.yaml"
	}

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Validating: %s\n\n", configFile)

	result := cfg.Validate()

	if len(result.Errors) > 0 {
		red.Printf("✗ %d error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			red.Printf("  • %s\n", e.Error())
		}
		fmt.Println()
	}

	if len(result.Warnings) > 0 {
		yellow.Printf("⚠ %d warning(s):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			yellow.Printf("  • %s\n", w.Error())
		}
		fmt.Println()
	}

	fmt.Printf("Configuration summary:\n")
	fmt.Printf("  Data dir: %s\n", paths.DownloadDir(configFile, cfg.DataDir))
	fmt.Printf("  Timezone: %s\n", orDefault(cfg.TimezoneOffset, "UTC"))
	fmt.Printf("  Projects: %d\n", len(cfg.Projects))
	for _, p := range cfg.Projects {
		fmt.Printf("    %s: %s → %s\n", p.Label(), p.CycleTime.Start, p.CycleTime.Stop)
	}
	fmt.Printf("  Holidays: %d entries\n", len(cfg.HolidayDates))
	fmt.Println()

	if result.IsValid() {
		green.Println("✓ Configuration is valid")
		return nil
	}

	red.Println("✗ Configuration has errors")
	os.Exit(1)
	return nil
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if format == "json" {
		return printJSON(cfg)
	}

	fmt.Printf("Config file: %s\n", orDefault(viper.ConfigFileUsed(), "(none)"))
	fmt.Printf("Version: %s\n", cfg.Version)
	fmt.Printf("Data dir: %s\n", paths.DownloadDir(viper.ConfigFileUsed(), cfg.DataDir))
	fmt.Printf("Timezone: %s\n", orDefault(cfg.TimezoneOffset, "UTC"))
	if len(cfg.HolidayDates) > 0 {
		fmt.Printf("Holidays: %v\n", cfg.HolidayDates)
	}
	fmt.Println()

	fmt.Println("Projects:")
	for _, p := range cfg.Projects {
		fmt.Printf("  %s (prefix %s", p.Label(), p.FilePrefix)
		if p.BoardID != 0 {
			fmt.Printf(", board %d", p.BoardID)
		}
		fmt.Println(")")
		fmt.Printf("    Cycle time: %s → %s\n", p.CycleTime.Start, p.CycleTime.Stop)
		fmt.Printf("    Stalled after: %d days\n", p.StalledThreshold())
		if len(p.ExpeditedPriorityNames) > 0 {
			fmt.Printf("    Expedited: %v\n", p.ExpeditedPriorityNames)
		}
		if d := p.DiscardChangesBefore; d != nil {
			if d.Date != "" {
				fmt.Printf("    Discard before: %s\n", d.Date)
			} else {
				fmt.Printf("    Discard before status: %v\n", d.StatusBecomes)
			}
		}
		if len(p.GroupingRules) > 0 {
			fmt.Printf("    Grouping rules: %d\n", len(p.GroupingRules))
		}
	}
	fmt.Println()

	fmt.Println("Settings:")
	fmt.Printf("  Workers: %d\n", cfg.Workers())
	fmt.Printf("  Database: %s\n", orDefault(cfg.Settings.Database, paths.DatabasePath()))

	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
