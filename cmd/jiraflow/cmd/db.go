package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiracore/jiraflow/internal/db"
	"github.com/kiracore/jiraflow/internal/paths"
)

var (
	dbPath     string
	backupPath string
	runsLimit  int
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Results database commands",
	Long: `Manage the jiraflow SQLite results database.

The database stores the reports of each 'jiraflow run': cycle times,
data quality problems, burndown series and WIP transitions.

Examples:
  jiraflow db init                    # Initialize database
  jiraflow db status                  # Show database status
  jiraflow db runs                    # List stored runs
  jiraflow db runs show 3f2a          # Problem summary of one run
  jiraflow db backup --output b.db    # Backup database
  jiraflow db restore --input b.db    # Restore from backup
  jiraflow db export > data.json      # Export to JSON
  jiraflow db import < data.json      # Import from JSON`,
}

func openDB() (*db.DB, error) {
	database, err := db.Open(resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database",
	Long:  `Creates the results database with the required schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Init(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		green.Printf("✓ Database initialized at: %s\n", database.Path())
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := database.GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if format == "json" {
			return printJSON(stats)
		}

		fmt.Println("╔════════════════════════════════════════════════════════════╗")
		fmt.Println("║                    DATABASE STATUS                         ║")
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Path:           %-40s  ║\n", truncateStr(stats.Path, 40))
		fmt.Printf("║  Size:           %-40s  ║\n", formatBytes(stats.Size))
		fmt.Printf("║  Schema Version: %-40d  ║\n", stats.SchemaVersion)
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Projects:       %-40d  ║\n", stats.Projects)
		fmt.Printf("║  Runs:           %-40d  ║\n", stats.Runs)
		fmt.Printf("║  Statuses:       %-40d  ║\n", stats.Statuses)
		fmt.Printf("║  Cycle Times:    %-40d  ║\n", stats.CycleTimes)
		fmt.Printf("║  Problems:       %-40d  ║\n", stats.Problems)
		fmt.Printf("║  Burndown Rows:  %-40d  ║\n", stats.BurndownRows)
		fmt.Printf("║  WIP Rows:       %-40d  ║\n", stats.WIPRows)
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		lastRun := "Never"
		if !stats.LastRun.IsZero() {
			lastRun = stats.LastRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("║  Last Run:       %-40s  ║\n", lastRun)
		fmt.Println("╚════════════════════════════════════════════════════════════╝")

		return nil
	},
}

var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the database file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(resolveDBPath())
	},
}

var dbRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Long:  `List stored runs, newest first. --project limits the list to one project.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := database.ListRuns(viper.GetString("project"), runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if format == "json" {
			return printJSON(runs)
		}
		if len(runs) == 0 {
			dim.Println("No runs stored. Use 'jiraflow run' first.")
			return nil
		}

		fmt.Printf("%-10s %-20s %6s %-20s %7s\n", "ID", "PROJECT", "BOARD", "STARTED", "ISSUES")
		for _, r := range runs {
			issues := fmt.Sprintf("%7d", r.IssueCount)
			if r.FinishedAt == nil {
				issues = yellow.Sprintf("%7s", "partial")
			}
			fmt.Printf("%-10s %-20s %6d %-20s %s\n",
				shortID(r.ID), truncate(r.Project, 20), r.BoardID, r.StartedAt.Format("2006-01-02 15:04:05"), issues)
		}
		return nil
	},
}

var dbRunsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the problem summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := database.GetRun(args[0])
		if err != nil {
			return err
		}
		summary, err := database.GetProblemSummary(run.ID)
		if err != nil {
			return fmt.Errorf("failed to summarize problems: %w", err)
		}
		if format == "json" {
			return printJSON(struct {
				Run      *db.Run             `json:"run"`
				Problems []db.ProblemSummary `json:"problems"`
			}{run, summary})
		}

		printBanner(cyan, fmt.Sprintf("RUN %s: %s", shortID(run.ID), run.Project))
		dim.Printf("Board %d │ Started %s │ %d issues\n\n", run.BoardID, run.StartedAt.Format("2006-01-02 15:04:05"), run.IssueCount)
		if len(summary) == 0 {
			green.Println("✓ No data quality problems")
			return nil
		}
		for _, s := range summary {
			fmt.Printf("  %-40s %5d  %s\n", s.ProblemKey, s.Count, dim.Sprintf("(%d issues)", s.Issues))
		}
		fmt.Println()
		return nil
	},
}

var dbRunsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := database.GetRun(args[0])
		if err != nil {
			return err
		}
		if err := database.DeleteRun(run.ID); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		green.Printf("✓ Deleted run %s\n", run.ID)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup the database",
	Long: `Creates a backup copy of the database.

If no output path is specified, creates a timestamped backup in the
jiraflow data directory's backups folder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		dest := backupPath
		if dest == "" {
			timestamp := time.Now().Format("20060102-150405")
			dest = filepath.Join(paths.BackupDir(), fmt.Sprintf("jiraflow-%s.db", timestamp))
		}

		if err := database.Backup(dest); err != nil {
			return fmt.Errorf("failed to backup database: %w", err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return err
		}
		green.Printf("✓ Database backed up to: %s (%s)\n", dest, formatBytes(info.Size()))
		return nil
	},
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore database from backup",
	Long:  `Restores the database from a backup file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if backupPath == "" {
			return fmt.Errorf("backup path required: use --input")
		}
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			return fmt.Errorf("backup file not found: %s", backupPath)
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Restore(backupPath); err != nil {
			return fmt.Errorf("failed to restore database: %w", err)
		}

		green.Printf("✓ Database restored from: %s\n", backupPath)
		return nil
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export database to JSON",
	Long: `Exports all database data to JSON format.

Output goes to stdout by default. Redirect to a file:
  jiraflow db export > backup.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Export(os.Stdout); err != nil {
			return fmt.Errorf("failed to export database: %w", err)
		}
		return nil
	},
}

var dbImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import database from JSON",
	Long: `Imports data from JSON format.

Input comes from stdin by default:
  jiraflow db import < backup.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Init(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.Import(os.Stdin); err != nil {
			return fmt.Errorf("failed to import database: %w", err)
		}

		fmt.Fprintln(os.Stderr, "✓ Database imported successfully")
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destroys all data)",
	Long:  `Removes and reinitializes the database. All stored runs will be lost!`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveDBPath()

		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")

		database, err := db.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := database.Init(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		green.Printf("✓ Database reset at: %s\n", path)
		return nil
	},
}

var dbOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize database performance",
	Long: `Runs VACUUM and ANALYZE to optimize database performance.

VACUUM reclaims the space left by deleted runs.
ANALYZE updates statistics used by the query planner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		statsBefore, err := database.GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Println("Optimizing database...")
		fmt.Println("  Running VACUUM...")
		if err := database.Vacuum(); err != nil {
			return fmt.Errorf("VACUUM failed: %w", err)
		}
		fmt.Println("  Running ANALYZE...")
		if err := database.Analyze(); err != nil {
			return fmt.Errorf("ANALYZE failed: %w", err)
		}

		statsAfter, err := database.GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		if saved := statsBefore.Size - statsAfter.Size; saved > 0 {
			green.Printf("✓ Optimization complete. Reclaimed %s\n", formatBytes(saved))
		} else {
			green.Println("✓ Optimization complete. Database was already optimized.")
		}
		fmt.Printf("  Size: %s\n", formatBytes(statsAfter.Size))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbPathCmd)
	dbCmd.AddCommand(dbRunsCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbRestoreCmd)
	dbCmd.AddCommand(dbExportCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbResetCmd)
	dbCmd.AddCommand(dbOptimizeCmd)
	dbRunsCmd.AddCommand(dbRunsShowCmd)
	dbRunsCmd.AddCommand(dbRunsDeleteCmd)

	dbCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default ~/.local/share/jiraflow/jiraflow.db)")
	dbStatusCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	dbRunsCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	dbRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 for all)")
	dbBackupCmd.Flags().StringVar(&backupPath, "output", "", "backup output path")
	dbRestoreCmd.Flags().StringVar(&backupPath, "input", "", "backup input path")
}
