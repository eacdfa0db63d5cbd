package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiracore/jiraflow/internal/logging"
	"github.com/kiracore/jiraflow/internal/paths"
)

var (
	// Version info (set by ldflags)
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile     string
	projectName string
	verbose     bool
	logFormat   string

	// Shared command flags
	format string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jiraflow",
	Short: "Flow analytics over downloaded Jira data",
	Long: `Jiraflow analyses issue histories downloaded from Jira.

It reconstructs cycle times, sprint burndowns and WIP over time, and
flags data quality problems that would distort those reports.

Example:
  jiraflow init --preset standard
  jiraflow quality --project SP
  jiraflow burndown --sprint 42
  jiraflow run`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default .jiraflow.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project name or file prefix")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "log format (console|json)")

	// Bind flags to viper
	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig sets up logging and reads in the config file
func initConfig() {
	if _, err := logging.New(logFormat, verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.New(logging.FormatConsole, verbose)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search order:
		// 1. Current directory (.jiraflow.yaml) - project-specific config
		// 2. XDG config dir (config.yaml) - user default config
		viper.AddConfigPath(".")
		viper.AddConfigPath(paths.ConfigDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jiraflow")
	}

	viper.SetEnvPrefix("JIRAFLOW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
		return
	}

	// If .jiraflow.yaml not found, try config.yaml in XDG dir
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}
