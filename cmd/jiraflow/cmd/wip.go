package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/wip"
)

var wipCmd = &cobra.Command{
	Use:   "wip",
	Short: "Work in progress over time",
	Long:  `Reports on how many issues were in progress, and which, over time.`,
}

var wipTotalCmd = &cobra.Command{
	Use:   "total",
	Short: "WIP at every start and stop",
	Long: `Replay every cycle-time start and stop in time order and show the
active set after each instant.

Examples:
  jiraflow wip total
  jiraflow wip total --format csv > wip.csv`,
	RunE: runWIPTotal,
}

var wipDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily WIP grouped by condition",
	Long: `For each day of the downloaded period, group active issues by the
first grouping rule that holds: expedited, blocked, stalled and so on.

Rules come from grouping_rules in the project configuration, or the
built in expedited/blocked/stalled/active set when none are given.

Examples:
  jiraflow wip daily
  jiraflow wip daily --format json`,
	RunE: runWIPDaily,
}

func init() {
	rootCmd.AddCommand(wipCmd)
	wipCmd.AddCommand(wipTotalCmd)
	wipCmd.AddCommand(wipDailyCmd)

	wipTotalCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json|csv)")
	wipDailyCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
}

// wipPoint is the printable form of a transition
type wipPoint struct {
	Time    time.Time `json:"time"`
	Count   int       `json:"count"`
	Active  []string  `json:"active"`
	Removed []string  `json:"removed,omitempty"`
}

func wipPoints(run *projectRun) ([]wipPoint, error) {
	transitions, err := wip.Sweep(wip.BuildSequence(run.issues.SortedByKeyNumber(), run.policy))
	if err != nil {
		return nil, err
	}
	points := make([]wipPoint, 0, len(transitions))
	for _, t := range transitions {
		points = append(points, wipPoint{
			Time:    t.Time,
			Count:   len(t.Active),
			Active:  keysOf(t.Active),
			Removed: keysOf(t.Removed),
		})
	}
	return points, nil
}

func runWIPTotal(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	points, err := wipPoints(run)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return printJSON(points)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		w.Write([]string{"time", "count", "active", "removed"})
		for _, p := range points {
			w.Write([]string{
				p.Time.Format(time.RFC3339),
				strconv.Itoa(p.Count),
				strings.Join(p.Active, " "),
				strings.Join(p.Removed, " "),
			})
		}
		w.Flush()
		return w.Error()
	}

	printBanner(cyan, fmt.Sprintf("WIP: %s (board %d)", run.project.Label(), run.board.ID))
	if len(points) == 0 {
		dim.Println("No issues have started")
		return nil
	}

	maxCount := 0
	for _, p := range points {
		if p.Count > maxCount {
			maxCount = p.Count
		}
	}
	chartWidth := 40
	for _, p := range points {
		width := 0
		if maxCount > 0 {
			width = p.Count * chartWidth / maxCount
			if width == 0 && p.Count > 0 {
				width = 1
			}
		}
		removed := ""
		if len(p.Removed) > 0 {
			removed = dim.Sprintf(" -%s", strings.Join(p.Removed, ","))
		}
		fmt.Printf("%s │%-*s│ %3d%s\n", p.Time.Format("2006-01-02 15:04"), chartWidth, strings.Repeat("▓", width), p.Count, removed)
	}
	fmt.Println()
	return nil
}

// dailyDay is the printable form of one day of groups
type dailyDay struct {
	Date   string         `json:"date"`
	Groups map[string]int `json:"groups"`
	Issues []dailyIssue   `json:"issues"`
}

type dailyIssue struct {
	Key   string `json:"key"`
	Group string `json:"group"`
}

func dailyGroups(run *projectRun) ([]wip.Day, error) {
	rules := run.project.GroupingRules
	if len(rules) == 0 {
		rules = wip.DefaultRules
	}
	fn, err := wip.Grouping(rules, wip.Env{
		Issues:           run.issues,
		Policy:           run.policy,
		ExpeditedNames:   run.project.ExpeditedPriorityNames,
		StalledThreshold: run.project.StalledThreshold(),
	})
	if err != nil {
		return nil, err
	}
	from, to := run.reportRange()
	return wip.DailyGroups(run.issues.SortedByKeyNumber(), run.policy, from, to, fn)
}

func runWIPDaily(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	days, err := dailyGroups(run)
	if err != nil {
		return err
	}
	groups := wip.PossibleGroups(days)

	if format == "json" {
		out := make([]dailyDay, 0, len(days))
		for _, d := range days {
			day := dailyDay{Date: d.Date.Format("2006-01-02"), Groups: make(map[string]int)}
			for _, g := range d.Issues {
				day.Groups[g.Rules.Label]++
				day.Issues = append(day.Issues, dailyIssue{Key: g.Issue.Key, Group: g.Rules.Label})
			}
			out = append(out, day)
		}
		return printJSON(struct {
			Groups []wip.Group `json:"groups"`
			Days   []dailyDay  `json:"days"`
		}{groups, out})
	}

	printBanner(cyan, fmt.Sprintf("DAILY WIP: %s (board %d)", run.project.Label(), run.board.ID))
	if len(days) == 0 {
		dim.Println("No active issues in the period")
		return nil
	}

	// header
	fmt.Printf("%-10s", "date")
	for _, g := range groups {
		fmt.Printf(" %s", groupColor(g.Color).Sprintf("%12s", truncate(g.Label, 12)))
	}
	fmt.Printf(" %6s\n", "total")
	fmt.Println(strings.Repeat("─", 10+13*len(groups)+7))

	for _, d := range days {
		counts := make(map[wip.Group]int)
		for _, g := range d.Issues {
			counts[g.Rules.Group()]++
		}
		fmt.Printf("%-10s", d.Date.Format("2006-01-02"))
		for _, g := range groups {
			fmt.Printf(" %12d", counts[g])
		}
		fmt.Printf(" %6d\n", len(d.Issues))
	}
	fmt.Println()
	return nil
}

func keysOf(issues []*issue.History) []string {
	keys := make([]string, 0, len(issues))
	for _, h := range issues {
		keys = append(keys, h.Key)
	}
	return keys
}
