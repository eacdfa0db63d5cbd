package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/status"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the board layout",
	Long: `Show the selected board's columns with their statuses, column limits
and the number of issues currently in each column.

Examples:
  jiraflow board
  jiraflow board --format json`,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
}

type boardColumn struct {
	Name     string   `json:"name"`
	Statuses []string `json:"statuses"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
	Count    int      `json:"count"`
}

type boardView struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Columns  []boardColumn `json:"columns"`
	Backlog  []string      `json:"backlog"`
	InBoard  int           `json:"issues_on_board"`
	OffBoard int           `json:"issues_off_board"`
}

func buildBoardView(b *board.Board, tax *status.Taxonomy, statusIDs []string) boardView {
	v := boardView{ID: b.ID, Name: b.Name, Type: b.Type}
	for _, c := range b.Columns {
		v.Columns = append(v.Columns, boardColumn{
			Name:     c.Name,
			Statuses: statusNames(tax, c.StatusIDs),
			Min:      c.Min,
			Max:      c.Max,
		})
	}
	v.Backlog = statusNames(tax, b.BacklogStatusIDs)

	for _, id := range statusIDs {
		if idx, ok := b.ColumnIndex(id); ok {
			v.Columns[idx].Count++
			v.InBoard++
		} else {
			v.OffBoard++
		}
	}
	return v
}

// statusNames resolves ids, keeping the raw id when it is unknown
func statusNames(tax *status.Taxonomy, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := tax.Resolve(id); ok {
			names = append(names, s.Name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

func runBoard(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	var ids []string
	for _, h := range run.issues.Issues() {
		ids = append(ids, h.Status.ID)
	}
	v := buildBoardView(run.board, run.taxonomy, ids)

	if format == "json" {
		return printJSON(v)
	}

	paint := statusPainter(run.taxonomy)
	printBanner(cyan, fmt.Sprintf("BOARD %d: %s (%s)", v.ID, v.Name, v.Type))
	fmt.Println()
	for _, c := range v.Columns {
		limits := ""
		switch {
		case c.Min != nil && c.Max != nil:
			limits = dim.Sprintf(" [%d..%d]", *c.Min, *c.Max)
		case c.Max != nil:
			limits = dim.Sprintf(" [max %d]", *c.Max)
		case c.Min != nil:
			limits = dim.Sprintf(" [min %d]", *c.Min)
		}
		count := fmt.Sprintf("%3d", c.Count)
		if c.Max != nil && c.Count > *c.Max {
			count = red.Sprint(count)
		}
		painted := make([]string, 0, len(c.Statuses))
		for _, s := range c.Statuses {
			painted = append(painted, paint(s))
		}
		fmt.Printf("  %s %s%s\n", count, bold.Sprintf("%-20s", truncate(c.Name, 20)), limits)
		if len(painted) > 0 {
			fmt.Printf("      %s\n", strings.Join(painted, ", "))
		}
	}
	if len(v.Backlog) > 0 {
		fmt.Printf("\n  %s %s\n", dim.Sprint("backlog:"), strings.Join(v.Backlog, ", "))
	}
	fmt.Printf("\n  %d issues on the board", v.InBoard)
	if v.OffBoard > 0 {
		fmt.Printf(", %s", yellow.Sprintf("%d in statuses without a column", v.OffBoard))
	}
	fmt.Println()
	fmt.Println()
	return nil
}
