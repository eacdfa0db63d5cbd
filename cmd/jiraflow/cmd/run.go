package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kiracore/jiraflow/internal/db"
	"github.com/kiracore/jiraflow/internal/quality"
	"github.com/kiracore/jiraflow/internal/sprint"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute every report and store it",
	Long: `Load the project, compute cycle times, data quality problems, sprint
burndowns and WIP transitions, and store them in the results database as
one run.

Stored runs can be listed with 'jiraflow db runs'.

Examples:
  jiraflow run
  jiraflow run --project SP --db ./results.db`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&dbPath, "db", "", "database path (default from settings.database)")
}

// resolveDBPath prefers --db, then settings.database, then the default
func resolveDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if p := viper.GetString("settings.database"); p != "" {
		return p
	}
	return db.DefaultDBPath()
}

// runResults holds everything one run stores
type runResults struct {
	report   *quality.Report
	series   []sprint.Series
	wip      []wipPoint
	cycles   []db.CycleTime
	statuses []db.StatusRow
}

func runRun(cmd *cobra.Command, args []string) error {
	started := time.Now()
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}

	res := &runResults{
		cycles:   cycleTimeRows(run),
		statuses: statusRows(run),
	}

	var g errgroup.Group
	g.Go(func() error {
		report, err := scanQuality(cmd, run)
		res.report = report
		return err
	})
	g.Go(func() error {
		if len(run.data.Sprints[run.board.ID]) == 0 {
			return nil
		}
		series, err := reconstructBurndowns(cmd, run, 0, true)
		res.series = series
		return err
	})
	g.Go(func() error {
		points, err := wipPoints(run)
		res.wip = points
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	database, err := db.Open(resolveDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.Init(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	stored, err := saveRun(database, run.project.Label(), run.board.ID, started, res)
	if err != nil {
		return err
	}
	if err := database.FinishRun(stored.ID, run.issues.Len(), time.Now()); err != nil {
		return err
	}

	log.Info().
		Str("run", stored.ID).
		Str("db", database.Path()).
		Dur("took", time.Since(started)).
		Msg("run stored")

	printBanner(green, fmt.Sprintf("RUN %s: %s", shortID(stored.ID), run.project.Label()))
	fmt.Printf("  Issues:        %d\n", run.issues.Len())
	fmt.Printf("  Cycle times:   %d\n", len(res.cycles))
	fmt.Printf("  Problems:      %d on %d issues\n", len(problemRows("", res.report)), len(res.report.WithProblems()))
	fmt.Printf("  Sprints:       %d\n", len(res.series))
	fmt.Printf("  WIP changes:   %d\n", len(res.wip))
	fmt.Printf("  Database:      %s\n\n", database.Path())
	return nil
}

// saveRun creates the run row and stores each report against it
func saveRun(database *db.DB, project string, boardID int, started time.Time, res *runResults) (*db.Run, error) {
	stored, err := database.CreateRun(project, boardID, started)
	if err != nil {
		return nil, err
	}

	for i := range res.cycles {
		res.cycles[i].RunID = stored.ID
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"statuses", func() error { return database.SaveStatuses(res.statuses) }},
		{"cycle times", func() error { return database.SaveCycleTimes(res.cycles) }},
		{"problems", func() error { return database.SaveProblems(problemRows(stored.ID, res.report)) }},
		{"burndown", func() error { return database.SaveBurndown(burndownRows(stored.ID, res.series)) }},
		{"wip", func() error { return database.SaveWIP(wipRows(stored.ID, res.wip)) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", s.name, err)
		}
	}
	return stored, nil
}

func statusRows(run *projectRun) []db.StatusRow {
	var rows []db.StatusRow
	for _, s := range run.taxonomy.All() {
		rows = append(rows, db.StatusRow{
			Project:      run.project.Label(),
			StatusID:     s.ID,
			Name:         s.Name,
			CategoryName: s.CategoryName,
			CategoryID:   s.CategoryID,
			ProjectID:    s.ProjectID,
		})
	}
	return rows
}

func cycleTimeRows(run *projectRun) []db.CycleTime {
	var rows []db.CycleTime
	for _, h := range run.issues.SortedByKeyNumber() {
		row := db.CycleTime{IssueKey: h.Key}
		if t, ok := run.policy.Started(h); ok {
			row.Started = &t
		}
		if t, ok := run.policy.Stopped(h); ok {
			row.Stopped = &t
		}
		if pct, ok := h.BlockedPercentage(run.policy.Started, run.policy.Stopped); ok {
			row.BlockedPercent = &pct
		}
		rows = append(rows, row)
	}
	return rows
}

func problemRows(runID string, report *quality.Report) []db.Problem {
	if report == nil {
		return nil
	}
	var rows []db.Problem
	for _, e := range report.WithProblems() {
		for _, p := range e.Problems {
			rows = append(rows, db.Problem{
				RunID:      runID,
				IssueKey:   e.Issue.Key,
				ProblemKey: string(p.Key),
				Detail:     p.Detail,
			})
		}
	}
	return rows
}

func burndownRows(runID string, series []sprint.Series) []db.BurndownPoint {
	var rows []db.BurndownPoint
	for _, s := range series {
		for i, p := range s.Points {
			rows = append(rows, db.BurndownPoint{
				RunID:      runID,
				SprintID:   s.Sprint.ID,
				SprintName: s.Sprint.Name,
				Seq:        i,
				At:         p.Time,
				Points:     p.Points,
				Label:      p.Label,
			})
		}
	}
	return rows
}

func wipRows(runID string, points []wipPoint) []db.WIPPoint {
	rows := make([]db.WIPPoint, 0, len(points))
	for i, p := range points {
		rows = append(rows, db.WIPPoint{
			RunID:       runID,
			Seq:         i,
			At:          p.Time,
			ActiveCount: p.Count,
			ActiveKeys:  p.Active,
			RemovedKeys: p.Removed,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
