package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

var cfdDays int

var cfdCmd = &cobra.Command{
	Use:   "cfd",
	Short: "Cumulative Flow Diagram data",
	Long: `Count issues per board column at the end of each day, replayed from
status history.

Examples:
  jiraflow cfd
  jiraflow cfd --days 90 --format csv > cfd.csv`,
	RunE: runCFD,
}

func init() {
	rootCmd.AddCommand(cfdCmd)
	cfdCmd.Flags().IntVar(&cfdDays, "days", 30, "days of history (0 for the whole download)")
	cfdCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json|csv)")
}

const backlogBucket = "Backlog"

// CFDDay is the column counts at the end of one day
type CFDDay struct {
	Date   time.Time      `json:"date"`
	Counts map[string]int `json:"counts"`
}

// cfdBuckets lists the backlog bucket, when the board has one, then columns
func cfdBuckets(b *board.Board) []string {
	var out []string
	if len(b.BacklogStatusIDs) > 0 {
		out = append(out, backlogBucket)
	}
	for _, c := range b.Columns {
		out = append(out, c.Name)
	}
	return out
}

// cumulativeFlow replays each issue's status at the end of every day in
// [from, to]. Statuses outside the board are not counted.
func cumulativeFlow(issues []*issue.History, b *board.Board, tax *status.Taxonomy, from, to time.Time, loc *time.Location) []CFDDay {
	if to.Before(from) {
		return nil
	}
	bucket := func(c issue.ChangeEvent) (string, bool) {
		id := c.ValueID
		if id == "" {
			s, ok := tax.Resolve(c.Value)
			if !ok {
				return "", false
			}
			id = s.ID
		}
		if b.InBacklog(id) {
			return backlogBucket, true
		}
		if idx, ok := b.ColumnIndex(id); ok {
			return b.Columns[idx].Name, true
		}
		return "", false
	}

	from, to = from.In(loc), to.In(loc)
	var out []CFDDay
	for d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc); !d.After(to); d = d.AddDate(0, 0, 1) {
		endOfDay := d.AddDate(0, 0, 1).Add(-time.Nanosecond)
		day := CFDDay{Date: issue.Date(d), Counts: make(map[string]int)}
		for _, h := range issues {
			c, ok := h.StatusAt(endOfDay)
			if !ok {
				continue
			}
			if name, ok := bucket(c); ok {
				day.Counts[name]++
			}
		}
		out = append(out, day)
	}
	return out
}

func runCFD(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	from, to := run.reportRange()
	if cfdDays > 0 {
		if start := to.AddDate(0, 0, -cfdDays+1); start.After(from) {
			from = start
		}
	}
	days := cumulativeFlow(run.issues.Issues(), run.board, run.taxonomy, from, to, run.loc)
	buckets := cfdBuckets(run.board)

	switch format {
	case "json":
		return printJSON(struct {
			Columns []string `json:"columns"`
			Days    []CFDDay `json:"days"`
		}{buckets, days})
	case "csv":
		w := csv.NewWriter(os.Stdout)
		w.Write([]string{"date", "column", "count"})
		for _, d := range days {
			for _, b := range buckets {
				w.Write([]string{d.Date.Format("2006-01-02"), b, strconv.Itoa(d.Counts[b])})
			}
		}
		w.Flush()
		return w.Error()
	}

	if len(days) == 0 {
		fmt.Println("No CFD data in the downloaded period.")
		return nil
	}

	printBanner(cyan, fmt.Sprintf("CUMULATIVE FLOW: %s (%d days)", run.project.Label(), len(days)))

	maxTotal := 0
	for _, d := range days {
		total := 0
		for _, c := range d.Counts {
			total += c
		}
		if total > maxTotal {
			maxTotal = total
		}
	}

	chartWidth := 40
	for _, d := range days {
		total := 0
		var bar strings.Builder
		for i, b := range buckets {
			count := d.Counts[b]
			total += count
			if count == 0 || maxTotal == 0 {
				continue
			}
			width := count * chartWidth / maxTotal
			if width == 0 {
				width = 1
			}
			bar.WriteString(strings.Repeat(bucketChar(i), width))
		}
		fmt.Printf("%s │%s│ %d\n", d.Date.Format("01-02"), bar.String(), total)
	}

	fmt.Println(strings.Repeat("─", 60))
	fmt.Print("Legend: ")
	for i, b := range buckets {
		fmt.Printf("%s=%s ", bucketChar(i), b)
	}
	fmt.Println()
	return nil
}

var bucketChars = []string{"░", "▒", "▓", "█", "▄", "●", "◆", "■"}

func bucketChar(i int) string {
	if i < len(bucketChars) {
		return bucketChars[i]
	}
	return "·"
}
