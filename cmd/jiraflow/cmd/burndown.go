package cmd

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/sprint"
)

var (
	sprintID   int
	allSprints bool
)

var burndownCmd = &cobra.Command{
	Use:   "burndown",
	Short: "Reconstruct sprint burndowns",
	Long: `Reconstruct story-point burndown series from issue histories.

Each series starts with the points in the sprint when it started and
records every addition, removal, estimate change and completion while
the sprint ran. Sprints are reconstructed concurrently.

By default only sprints overlapping the downloaded period are shown.

Examples:
  jiraflow burndown
  jiraflow burndown --sprint 42
  jiraflow burndown --all --format csv > burndown.csv`,
	RunE: runBurndown,
}

func init() {
	rootCmd.AddCommand(burndownCmd)
	burndownCmd.Flags().IntVar(&sprintID, "sprint", 0, "only this sprint id")
	burndownCmd.Flags().BoolVar(&allSprints, "all", false, "include sprints outside the downloaded period")
	burndownCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json|csv)")
}

// boardSprints returns the started sprints of the run's board ordered by start
func boardSprints(run *projectRun, id int, all bool) ([]sprint.Sprint, error) {
	from, to := run.reportRange()

	var out []sprint.Sprint
	for _, sp := range run.data.Sprints[run.board.ID] {
		if id != 0 {
			if sp.ID == id {
				out = append(out, sp)
			}
			continue
		}
		if !sp.Started() || (!all && !sp.Overlaps(from, to)) {
			continue
		}
		out = append(out, sp)
	}
	if id != 0 && len(out) == 0 {
		return nil, fmt.Errorf("sprint %d not found on board %d", id, run.board.ID)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func reconstructBurndowns(cmd *cobra.Command, run *projectRun, id int, all bool) ([]sprint.Series, error) {
	sprints, err := boardSprints(run, id, all)
	if err != nil {
		return nil, err
	}
	return sprint.ReconstructAll(cmd.Context(), run.issues.Issues(), sprints, run.policy, run.cfg.Workers())
}

func runBurndown(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	if !run.board.Scrum() && len(run.data.Sprints[run.board.ID]) == 0 {
		return fmt.Errorf("board %d is a %s board without sprints", run.board.ID, run.board.Type)
	}

	series, err := reconstructBurndowns(cmd, run, sprintID, allSprints)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return printJSON(series)
	case "csv":
		return writeBurndownCSV(series)
	}

	if len(series) == 0 {
		fmt.Println("No sprints in the downloaded period. Use --all to include older sprints.")
		return nil
	}
	for _, s := range series {
		printBurndown(s)
	}
	return nil
}

func writeBurndownCSV(series []sprint.Series) error {
	w := csv.NewWriter(os.Stdout)
	w.Write([]string{"sprint_id", "sprint", "time", "points", "label"})
	for _, s := range series {
		for _, p := range s.Points {
			w.Write([]string{
				strconv.Itoa(s.Sprint.ID),
				s.Sprint.Name,
				p.Time.Format("2006-01-02T15:04:05-07:00"),
				strconv.FormatFloat(p.Points, 'f', -1, 64),
				p.Label,
			})
		}
	}
	w.Flush()
	return w.Error()
}

func printBurndown(s sprint.Series) {
	sp := s.Sprint
	printBanner(cyan, fmt.Sprintf("SPRINT %d: %s (%s)", sp.ID, sp.Name, sp.State))
	end := "running"
	if sp.Closed() {
		end = sp.Completed.Format("2006-01-02 15:04")
	}
	dim.Printf("Started: %s │ Completed: %s\n\n", sp.Start.Format("2006-01-02 15:04"), end)

	if len(s.Points) == 0 {
		dim.Println("No data")
		return
	}

	maxPoints := 0.0
	for _, p := range s.Points {
		maxPoints = math.Max(maxPoints, p.Points)
	}

	chartWidth := 30
	for _, p := range s.Points {
		width := 0
		if maxPoints > 0 && p.Points > 0 {
			width = int(p.Points / maxPoints * float64(chartWidth))
			if width == 0 {
				width = 1
			}
		}
		fmt.Printf("%s │%-*s│ %6s  %s\n",
			p.Time.Format("01-02 15:04"),
			chartWidth, strings.Repeat("█", width),
			strconv.FormatFloat(p.Points, 'f', -1, 64),
			p.Label)
	}
	fmt.Println()
}
