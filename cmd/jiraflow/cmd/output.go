package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/kiracore/jiraflow/internal/status"
)

const boxWidth = 62

var (
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
	cyan   = color.New(color.FgCyan, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
)

func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

func printBanner(c *color.Color, title string) {
	line := strings.Repeat("═", boxWidth)
	fmt.Println()
	c.Println(line)
	c.Printf("  %s\n", title)
	c.Println(line)
}

func boxOpen(c *color.Color, title string) {
	head := "┌─ " + title + " "
	pad := boxWidth - len([]rune(head)) - 1
	if pad < 0 {
		pad = 0
	}
	c.Println(head + strings.Repeat("─", pad) + "┐")
}

func boxClose(c *color.Color) {
	c.Println("└" + strings.Repeat("─", boxWidth-2) + "┘")
	fmt.Println()
}

// statusPainter colours status names by category: to do faint, in
// progress blue, done green, unknown red
func statusPainter(tax *status.Taxonomy) func(name string) string {
	todo := color.New(color.Faint).SprintFunc()
	progress := color.New(color.FgBlue).SprintFunc()
	done := color.New(color.FgGreen).SprintFunc()
	unknown := color.New(color.FgRed).SprintFunc()

	return func(name string) string {
		s, ok := tax.Resolve(name)
		if !ok {
			return unknown(name)
		}
		switch s.CategoryName {
		case status.CategoryToDo:
			return todo(name)
		case status.CategoryInProgress:
			return progress(name)
		case status.CategoryDone:
			return done(name)
		default:
			return unknown(name)
		}
	}
}

// highlight paints each mention of names in text
func highlight(text string, names []string, paint func(string) string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		text = strings.ReplaceAll(text, n, paint(n))
	}
	return text
}

var groupColors = map[string]color.Attribute{
	"red":       color.FgRed,
	"orange":    color.FgYellow,
	"#ff7400":   color.FgHiRed,
	"yellow":    color.FgHiYellow,
	"green":     color.FgGreen,
	"blue":      color.FgBlue,
	"lightgray": color.FgHiBlack,
	"gray":      color.FgHiBlack,
	"white":     color.FgWhite,
}

// groupColor maps a grouping rule colour to the closest terminal colour
func groupColor(name string) *color.Color {
	if attr, ok := groupColors[strings.ToLower(name)]; ok {
		return color.New(attr)
	}
	return color.New(color.Reset)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
