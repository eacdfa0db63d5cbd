package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/quality"
)

var qualityKey string

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Report data quality problems",
	Long: `Scan every issue on the project's board for data that would distort
flow reports:

  - completed without a start, or stopped before started
  - status changes after completion
  - statuses that are not on the board
  - movement backwards through columns or status categories
  - issues created in a status other than the backlog
  - unstarted parents whose subtasks have started
  - issues whose early history was discarded

Examples:
  jiraflow quality
  jiraflow quality --project SP --format json
  jiraflow quality --key status_not_on_board`,
	RunE: runQuality,
}

func init() {
	rootCmd.AddCommand(qualityCmd)
	qualityCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	qualityCmd.Flags().StringVarP(&qualityKey, "key", "k", "", "only show one problem key")
}

func scanQuality(cmd *cobra.Command, run *projectRun) (*quality.Report, error) {
	scanner := &quality.Scanner{
		Board:       run.board,
		Taxonomy:    run.taxonomy,
		Policy:      run.policy,
		Issues:      run.issues,
		Truncations: run.truncations,
		Workers:     run.cfg.Workers(),
	}
	return scanner.Scan(cmd.Context())
}

func runQuality(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	report, err := scanQuality(cmd, run)
	if err != nil {
		return err
	}

	entries := report.WithProblems()
	if qualityKey != "" {
		entries = filterEntries(entries, quality.Key(qualityKey))
	}

	if format == "json" {
		return printJSON(struct {
			Project string              `json:"project"`
			Board   int                 `json:"board_id"`
			Issues  int                 `json:"issues"`
			Counts  map[quality.Key]int `json:"counts"`
			Entries []*quality.Entry    `json:"entries"`
		}{run.project.Label(), run.board.ID, run.issues.Len(), report.Counts(), entries})
	}

	paint := statusPainter(run.taxonomy)
	printBanner(cyan, fmt.Sprintf("DATA QUALITY: %s (board %d)", run.project.Label(), run.board.ID))
	dim.Printf("%d issues scanned │ %d with problems\n\n", run.issues.Len(), len(report.WithProblems()))

	if len(entries) == 0 {
		green.Println("✓ No data quality problems found")
		return nil
	}

	for _, e := range entries {
		h := e.Issue
		fmt.Printf("%s %s %s\n", bold.Sprint(e.Key), paint(h.Status.Name), truncate(h.Summary, 50))
		dim.Printf("  %s\n", h.URL())
		for _, p := range e.Problems {
			if qualityKey != "" && string(p.Key) != qualityKey {
				continue
			}
			fmt.Printf("  %s %s\n", red.Sprint("⚠"), highlight(p.Detail, p.Statuses, paint))
		}
		fmt.Println()
	}

	printProblemCounts(report.Counts())
	return nil
}

func filterEntries(entries []*quality.Entry, key quality.Key) []*quality.Entry {
	var out []*quality.Entry
	for _, e := range entries {
		for _, p := range e.Problems {
			if p.Key == key {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func printProblemCounts(counts map[quality.Key]int) {
	keys := make([]quality.Key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	boxOpen(yellow, "SUMMARY")
	for _, k := range keys {
		fmt.Printf("│ %-40s %5d\n", k, counts[k])
	}
	boxClose(yellow)
}
