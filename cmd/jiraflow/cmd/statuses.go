package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/status"
)

var statusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "List the project's statuses",
	Long: `List every status known for the project with its category.
Project-specific statuses take precedence over global ones of the same name.`,
	RunE: runStatuses,
}

var statusesExpandCmd = &cobra.Command{
	Use:   "expand <name-or-id>...",
	Short: "Resolve status names and ids",
	Long: `Resolve each argument as a status id or name and print the result.
Unknown statuses are reported and skipped.

Examples:
  jiraflow statuses expand "In Progress" 10001`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatusesExpand,
}

func init() {
	rootCmd.AddCommand(statusesCmd)
	statusesCmd.AddCommand(statusesExpandCmd)
	statusesCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	statusesExpandCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
}

func runStatuses(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	all := run.taxonomy.All()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CategoryName != all[j].CategoryName {
			return categoryRank(all[i].CategoryName) < categoryRank(all[j].CategoryName)
		}
		return all[i].Name < all[j].Name
	})
	return printStatuses(run.taxonomy, all, fmt.Sprintf("STATUSES: %s", run.project.Label()))
}

func runStatusesExpand(cmd *cobra.Command, args []string) error {
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	found, err := run.taxonomy.Expand(args, func(name string) {
		log.Warn().Str("status", name).Msg("status not found")
	})
	if err != nil {
		return err
	}
	return printStatuses(run.taxonomy, found, "EXPANDED STATUSES")
}

func printStatuses(tax *status.Taxonomy, list []status.Status, title string) error {
	if format == "json" {
		return printJSON(list)
	}
	paint := statusPainter(tax)
	printBanner(cyan, title)
	fmt.Printf("%-10s %-28s %-14s %s\n", "ID", "NAME", "CATEGORY", "SCOPE")
	for _, s := range list {
		scope := "global"
		if !s.Global() {
			scope = "project " + s.ProjectID
		}
		name := truncate(s.Name, 28)
		pad := strings.Repeat(" ", 28-len([]rune(name)))
		fmt.Printf("%-10s %s%s %-14s %s\n", s.ID, paint(name), pad, s.CategoryName, dim.Sprint(scope))
	}
	fmt.Printf("\n%d statuses\n\n", len(list))
	return nil
}

func categoryRank(c string) int {
	switch c {
	case status.CategoryToDo:
		return 0
	case status.CategoryInProgress:
		return 1
	case status.CategoryDone:
		return 2
	}
	return 3
}
