package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/issue"
)

var days int

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display flow metrics",
	Long: `Display flow metrics computed from the cycle-time policy:

FLOW METRICS:
  - Lead Time: Time from creation to stop
  - Cycle Time: Time from start to stop
  - Throughput: Issues stopped per time period
  - Flow Efficiency: Share of cycle time not spent flagged

WIP METRICS:
  - Work In Progress per board column, against column limits
  - WIP Age: Age of started issues that have not stopped
  - Little's Law: WIP = Throughput × Cycle Time

The period ends at the end of the download and covers --days days.

Examples:
  jiraflow metrics
  jiraflow metrics --days 90
  jiraflow metrics --aging --sort assignee`,
	RunE: runMetrics,
}

var (
	metricsSortBy   string
	metricsAssignee string
	showAgingOnly   bool
)

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().IntVar(&days, "days", 30, "time period in days")
	metricsCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	metricsCmd.Flags().StringVarP(&metricsSortBy, "sort", "s", "age", "sort aging issues by: age, assignee, status")
	metricsCmd.Flags().StringVarP(&metricsAssignee, "assignee", "a", "", "filter aging issues by assignee")
	metricsCmd.Flags().BoolVar(&showAgingOnly, "aging", false, "show only aging issues (skip other metrics)")
}

// FlowMetrics holds the flow metrics of one board
type FlowMetrics struct {
	Project   string    `json:"project"`
	Board     int       `json:"board_id"`
	Generated time.Time `json:"generated"`
	Period    int       `json:"period_days"`

	// Flow Metrics
	LeadTime       TimeStats `json:"lead_time"`
	CycleTime      TimeStats `json:"cycle_time"`
	Throughput     RateStats `json:"throughput"`
	FlowEfficiency float64   `json:"flow_efficiency_percent"`

	// WIP Metrics
	WIP        []ColumnWIP `json:"wip"`
	WIPAge     TimeStats   `json:"wip_age"`
	LittlesLaw LittlesLaw  `json:"littles_law"`

	// Rate Metrics
	ArrivalRate   float64 `json:"arrival_rate_per_day"`
	DepartureRate float64 `json:"departure_rate_per_day"`

	AgingIssues []AgingIssue `json:"aging_issues"`
	Bottlenecks []string     `json:"bottlenecks"`
}

type TimeStats struct {
	Average float64 `json:"average_days"`
	Median  float64 `json:"median_days"`
	P85     float64 `json:"p85_days"`
	Min     float64 `json:"min_days"`
	Max     float64 `json:"max_days"`
	StdDev  float64 `json:"std_dev_days"`
	Count   int     `json:"sample_count"`
}

type RateStats struct {
	Total   int     `json:"total"`
	PerDay  float64 `json:"per_day"`
	PerWeek float64 `json:"per_week"`
}

type LittlesLaw struct {
	CalculatedWIP float64 `json:"calculated_wip"`
	ActualWIP     int     `json:"actual_wip"`
	Variance      float64 `json:"variance_percent"`
}

// ColumnWIP counts started, unstopped issues whose status maps to a column
type ColumnWIP struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
	Min    *int   `json:"min,omitempty"`
	Max    *int   `json:"max,omitempty"`
}

type AgingIssue struct {
	Key            string    `json:"key"`
	Summary        string    `json:"summary"`
	Status         string    `json:"status"`
	Assignee       string    `json:"assignee,omitempty"`
	AgeDays        float64   `json:"age_days"`
	LastActivity   time.Time `json:"last_activity,omitempty"`
	BlockedPercent float64   `json:"blocked_percent,omitempty"`
	IsBlocked      bool      `json:"is_blocked,omitempty"`
}

func runMetrics(cmd *cobra.Command, args []string) error {
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	run, err := loadProjectRun(cmd.Context())
	if err != nil {
		return err
	}
	_, end := run.reportRange()
	m := collectFlowMetrics(run.issues, run.board, run.policy, end, days)
	m.Project = run.project.Label()

	if metricsAssignee != "" {
		var filtered []AgingIssue
		for _, a := range m.AgingIssues {
			if strings.EqualFold(a.Assignee, metricsAssignee) {
				filtered = append(filtered, a)
			}
		}
		m.AgingIssues = filtered
	}
	sortAgingIssues(m.AgingIssues, metricsSortBy)

	if format == "json" {
		return printJSON(m)
	}
	if showAgingOnly {
		printAgingIssuesOnly(m)
		return nil
	}
	printFlowMetrics(m)
	return nil
}

// cyclePolicy is the part of a cycle-time policy metrics needs
type cyclePolicy interface {
	Started(h *issue.History) (time.Time, bool)
	Stopped(h *issue.History) (time.Time, bool)
}

// collectFlowMetrics computes metrics for the days days ending at end
func collectFlowMetrics(arena *issue.Arena, b *board.Board, policy cyclePolicy, end time.Time, days int) FlowMetrics {
	m := FlowMetrics{
		Board:     b.ID,
		Generated: end,
		Period:    days,
	}
	periodStart := end.AddDate(0, 0, -days)
	inPeriod := func(t time.Time) bool { return t.After(periodStart) && !t.After(end) }
	at := func(t time.Time) issue.TimeFunc {
		return func(*issue.History) (time.Time, bool) { return t, true }
	}

	m.WIP = make([]ColumnWIP, len(b.Columns))
	for i, c := range b.Columns {
		m.WIP[i] = ColumnWIP{Column: c.Name, Min: c.Min, Max: c.Max}
	}

	var leadTimes, cycleTimes, ages, blocked []float64
	arrivals := 0
	for _, h := range arena.SortedByKeyNumber() {
		started, hasStart := policy.Started(h)
		stopped, hasStop := policy.Stopped(h)

		if hasStart && inPeriod(started) {
			arrivals++
		}

		if hasStop && inPeriod(stopped) {
			m.Throughput.Total++
			leadTimes = append(leadTimes, stopped.Sub(h.Created).Hours()/24)
			if hasStart && !stopped.Before(started) {
				cycleTimes = append(cycleTimes, stopped.Sub(started).Hours()/24)
				if pct, ok := h.BlockedPercentage(policy.Started, policy.Stopped); ok {
					blocked = append(blocked, pct)
				}
			}
			continue
		}

		if !hasStart || started.After(end) || (hasStop && !stopped.After(end)) {
			continue
		}

		// still in progress at end
		if idx, ok := b.ColumnIndex(h.Status.ID); ok {
			m.WIP[idx].Count++
		}
		m.LittlesLaw.ActualWIP++
		age := end.Sub(started).Hours() / 24
		ages = append(ages, age)

		a := AgingIssue{
			Key:       h.Key,
			Summary:   truncate(h.Summary, 35),
			Status:    h.Status.Name,
			Assignee:  h.Assignee,
			AgeDays:   math.Round(age*10) / 10,
			IsBlocked: h.BlockedOnDate(end),
		}
		if last, ok := arena.LastActivity(h.Key, end); ok {
			a.LastActivity = last
		}
		if pct, ok := h.BlockedPercentage(policy.Started, at(end)); ok {
			a.BlockedPercent = math.Round(pct*10) / 10
		}
		m.AgingIssues = append(m.AgingIssues, a)
	}

	m.Throughput.PerDay = float64(m.Throughput.Total) / float64(days)
	m.Throughput.PerWeek = m.Throughput.PerDay * 7
	m.DepartureRate = m.Throughput.PerDay
	m.ArrivalRate = float64(arrivals) / float64(days)

	m.LeadTime = calculateTimeStats(leadTimes)
	m.CycleTime = calculateTimeStats(cycleTimes)
	m.WIPAge = calculateTimeStats(ages)

	if len(blocked) > 0 {
		sum := 0.0
		for _, v := range blocked {
			sum += v
		}
		m.FlowEfficiency = math.Round(100 - sum/float64(len(blocked)))
	}

	if m.CycleTime.Count > 0 && m.Throughput.PerDay > 0 {
		m.LittlesLaw.CalculatedWIP = math.Round(m.Throughput.PerDay*m.CycleTime.Average*10) / 10
		m.LittlesLaw.Variance = math.Round((float64(m.LittlesLaw.ActualWIP) - m.LittlesLaw.CalculatedWIP) / m.LittlesLaw.CalculatedWIP * 100)
	}

	sort.SliceStable(m.AgingIssues, func(i, j int) bool {
		return m.AgingIssues[i].AgeDays > m.AgingIssues[j].AgeDays
	})
	m.Bottlenecks = identifyBottlenecks(m)
	if len(m.AgingIssues) > 10 {
		m.AgingIssues = m.AgingIssues[:10]
	}
	return m
}

func sortAgingIssues(issues []AgingIssue, sortMethod string) {
	switch sortMethod {
	case "assignee":
		sort.SliceStable(issues, func(i, j int) bool {
			if issues[i].Assignee == issues[j].Assignee {
				return issues[i].AgeDays > issues[j].AgeDays
			}
			// unassigned last
			if issues[i].Assignee == "" {
				return false
			}
			if issues[j].Assignee == "" {
				return true
			}
			return issues[i].Assignee < issues[j].Assignee
		})
	case "status":
		sort.SliceStable(issues, func(i, j int) bool {
			if issues[i].Status == issues[j].Status {
				return issues[i].AgeDays > issues[j].AgeDays
			}
			return issues[i].Status < issues[j].Status
		})
	default:
		sort.SliceStable(issues, func(i, j int) bool {
			return issues[i].AgeDays > issues[j].AgeDays
		})
	}
}

func calculateTimeStats(values []float64) TimeStats {
	if len(values) == 0 {
		return TimeStats{}
	}

	sort.Float64s(values)
	n := len(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	sumSquares := 0.0
	for _, v := range values {
		sumSquares += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(sumSquares / float64(n))

	p50idx := n / 2
	p85idx := int(float64(n) * 0.85)
	if p85idx >= n {
		p85idx = n - 1
	}

	stats := TimeStats{
		Count:   n,
		Average: round1(mean),
		Min:     round1(values[0]),
		Max:     round1(values[n-1]),
		StdDev:  round1(stdDev),
		P85:     round1(values[p85idx]),
	}
	if n%2 == 0 {
		stats.Median = round1((values[p50idx-1] + values[p50idx]) / 2)
	} else {
		stats.Median = round1(values[p50idx])
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func identifyBottlenecks(m FlowMetrics) []string {
	var bottlenecks []string

	for _, c := range m.WIP {
		if c.Max != nil && c.Count > *c.Max {
			bottlenecks = append(bottlenecks, fmt.Sprintf("WIP LIMIT: %s has %d issues (limit: %d)", c.Column, c.Count, *c.Max))
		}
	}

	if m.ArrivalRate > m.DepartureRate*1.5 && m.ArrivalRate > 0.5 {
		bottlenecks = append(bottlenecks, fmt.Sprintf("OVERLOAD: Arrival rate (%.1f/day) > Departure rate (%.1f/day)", m.ArrivalRate, m.DepartureRate))
	}

	staleCount, blockedCount := 0, 0
	for _, a := range m.AgingIssues {
		if a.AgeDays > 14 {
			staleCount++
		}
		if a.IsBlocked {
			blockedCount++
		}
	}
	if staleCount > 0 {
		bottlenecks = append(bottlenecks, fmt.Sprintf("STALE ITEMS: %d issues in progress >14 days", staleCount))
	}
	if blockedCount > 0 {
		bottlenecks = append(bottlenecks, fmt.Sprintf("BLOCKED: %d issues currently flagged", blockedCount))
	}

	if math.Abs(m.LittlesLaw.Variance) > 50 {
		bottlenecks = append(bottlenecks, fmt.Sprintf("FLOW INSTABILITY: Actual WIP deviates %.0f%% from predicted", m.LittlesLaw.Variance))
	}

	return bottlenecks
}

func printAgingIssuesOnly(m FlowMetrics) {
	printBanner(yellow, fmt.Sprintf("AGING ISSUES: %s (board %d)", m.Project, m.Board))
	if len(m.AgingIssues) == 0 {
		green.Println("✓ Nothing in progress")
		return
	}
	for _, a := range m.AgingIssues {
		printAgingLine(a)
	}
	fmt.Println()
}

func printAgingLine(a AgingIssue) {
	assignee := ""
	if a.Assignee != "" {
		assignee = dim.Sprintf(" @%s", a.Assignee)
	}
	blockedStr := ""
	switch {
	case a.IsBlocked:
		blockedStr = red.Sprintf(" ⛔ %.0f%%", a.BlockedPercent)
	case a.BlockedPercent > 0:
		blockedStr = yellow.Sprintf(" ⚠ %.0f%%", a.BlockedPercent)
	}
	fmt.Printf("│ %-10s %s %-14s %-35s%s%s\n",
		a.Key, ageColor(a.AgeDays).Sprintf("%5.1fd", a.AgeDays),
		truncate(a.Status, 14), a.Summary, blockedStr, assignee)
}

func printFlowMetrics(m FlowMetrics) {
	printBanner(cyan, fmt.Sprintf("FLOW METRICS: %s (board %d)", m.Project, m.Board))
	dim.Printf("Period end: %s │ Period: %d days\n\n", m.Generated.Format("2006-01-02 15:04 MST"), m.Period)

	boxOpen(cyan, "FLOW METRICS")
	fmt.Printf("│ %s (creation → stop):\n", bold.Sprint("Lead Time"))
	if m.LeadTime.Count > 0 {
		fmt.Printf("│   Average: %s  Median: %.1f  P85: %.1f  (n=%d)\n",
			bold.Sprintf("%.1f days", m.LeadTime.Average), m.LeadTime.Median, m.LeadTime.P85, m.LeadTime.Count)
	} else {
		fmt.Printf("│   %s\n", dim.Sprint("No issues stopped in period"))
	}

	fmt.Printf("│ %s (start → stop):\n", bold.Sprint("Cycle Time"))
	if m.CycleTime.Count > 0 {
		fmt.Printf("│   Average: %s  Median: %.1f  P85: %.1f\n",
			bold.Sprintf("%.1f days", m.CycleTime.Average), m.CycleTime.Median, m.CycleTime.P85)
	} else {
		fmt.Printf("│   %s\n", dim.Sprint("No data"))
	}

	fmt.Printf("│ %s:\n", bold.Sprint("Throughput"))
	fmt.Printf("│   %s stopped │ %.2f/day │ %.1f/week\n",
		bold.Sprintf("%d issues", m.Throughput.Total), m.Throughput.PerDay, m.Throughput.PerWeek)

	if m.CycleTime.Count > 0 {
		fmt.Printf("│ %s: %s\n", bold.Sprint("Flow Efficiency"), bold.Sprintf("%.0f%%", m.FlowEfficiency))
	} else {
		fmt.Printf("│ %s: %s (need cycle time data)\n", bold.Sprint("Flow Efficiency"), dim.Sprint("N/A"))
	}
	boxClose(cyan)

	boxOpen(yellow, "WORK IN PROGRESS (WIP)")
	total := 0
	for _, c := range m.WIP {
		total += c.Count
		barColor := color.New(color.Reset)
		limitStr := ""
		if c.Max != nil {
			if c.Count > *c.Max {
				barColor = red
				limitStr = red.Sprintf(" ⚠ OVER LIMIT (%d)", *c.Max)
			} else {
				limitStr = dim.Sprintf(" (limit: %d)", *c.Max)
			}
		}
		if c.Min != nil && c.Count < *c.Min {
			limitStr += yellow.Sprintf(" below min (%d)", *c.Min)
		}
		bar := strings.Repeat("█", minInt(c.Count, 20))
		fmt.Printf("│ %-16s %s %s%s\n",
			truncate(c.Column, 16), barColor.Sprintf("%3d", c.Count), barColor.Sprintf("%-20s", bar), limitStr)
	}
	fmt.Printf("│ %s\n", bold.Sprintf("%-16s %3d", "TOTAL", total))
	if m.WIPAge.Count > 0 {
		fmt.Printf("│\n│ %s: avg %.1f days │ median %.1f │ max %.1f\n",
			bold.Sprint("WIP Age"), m.WIPAge.Average, m.WIPAge.Median, m.WIPAge.Max)
	}
	boxClose(yellow)

	boxOpen(green, "RATE METRICS")
	fmt.Printf("│ %s:   %.2f issues/day (started)\n", bold.Sprint("Arrival Rate"), m.ArrivalRate)
	fmt.Printf("│ %s: %.2f issues/day (stopped)\n", bold.Sprint("Departure Rate"), m.DepartureRate)
	if m.ArrivalRate > 0 || m.DepartureRate > 0 {
		balance := m.DepartureRate - m.ArrivalRate
		switch {
		case balance > 0.1:
			green.Println("│ → System draining")
		case balance < -0.1:
			yellow.Println("│ → System accumulating (watch WIP)")
		default:
			fmt.Println("│ → System balanced")
		}
	}
	boxClose(green)

	if m.LittlesLaw.CalculatedWIP > 0 {
		boxOpen(cyan, "LITTLE'S LAW")
		fmt.Println("│ WIP = Throughput × Cycle Time")
		fmt.Printf("│ Predicted WIP: %.1f │ Actual WIP: %d │ Variance: %s\n",
			m.LittlesLaw.CalculatedWIP, m.LittlesLaw.ActualWIP,
			varianceColor(m.LittlesLaw.Variance).Sprintf("%.0f%%", m.LittlesLaw.Variance))
		boxClose(cyan)
	}

	if len(m.AgingIssues) > 0 {
		boxOpen(yellow, "AGING ISSUES (oldest first)")
		for _, a := range m.AgingIssues {
			printAgingLine(a)
		}
		boxClose(yellow)
	}

	if len(m.Bottlenecks) > 0 {
		boxOpen(red, "⚠ BOTTLENECKS & WARNINGS")
		for _, b := range m.Bottlenecks {
			fmt.Printf("│ %s %s\n", red.Sprint("⚠"), b)
		}
		boxClose(red)
	} else {
		green.Println("✓ No bottlenecks detected - flow is healthy")
		fmt.Println()
	}
}

func ageColor(days float64) *color.Color {
	switch {
	case days > 14:
		return color.New(color.FgRed)
	case days > 7:
		return color.New(color.FgYellow)
	}
	return color.New(color.Reset)
}

func varianceColor(variance float64) *color.Color {
	switch {
	case math.Abs(variance) > 50:
		return color.New(color.FgRed)
	case math.Abs(variance) > 25:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgGreen)
}
