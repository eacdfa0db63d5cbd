package db

import (
	"time"
)

// Run is one persisted report run
type Run struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	BoardID    int        `json:"board_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	IssueCount int        `json:"issue_count"`
}

// StatusRow is one taxonomy entry of a project
type StatusRow struct {
	Project      string `json:"project"`
	StatusID     string `json:"status_id"`
	Name         string `json:"name"`
	CategoryName string `json:"category_name"`
	CategoryID   string `json:"category_id,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
}

// CycleTime is the start and stop of one issue in a run
type CycleTime struct {
	RunID          string     `json:"run_id"`
	IssueKey       string     `json:"issue_key"`
	Started        *time.Time `json:"started,omitempty"`
	Stopped        *time.Time `json:"stopped,omitempty"`
	BlockedPercent *float64   `json:"blocked_percent,omitempty"`
}

// Problem is one data quality finding
type Problem struct {
	RunID      string `json:"run_id"`
	IssueKey   string `json:"issue_key"`
	ProblemKey string `json:"problem_key"`
	Detail     string `json:"detail"`
}

// BurndownPoint is one point of a sprint's burndown series
type BurndownPoint struct {
	RunID      string    `json:"run_id"`
	SprintID   int       `json:"sprint_id"`
	SprintName string    `json:"sprint_name"`
	Seq        int       `json:"seq"`
	At         time.Time `json:"at"`
	Points     float64   `json:"points"`
	Label      string    `json:"label"`
}

// WIPPoint is one WIP transition
type WIPPoint struct {
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	At          time.Time `json:"at"`
	ActiveCount int       `json:"active_count"`
	ActiveKeys  []string  `json:"active_keys"`
	RemovedKeys []string  `json:"removed_keys"`
}

// ProblemSummary counts problems per key in a run
type ProblemSummary struct {
	RunID      string `json:"run_id"`
	Project    string `json:"project"`
	ProblemKey string `json:"problem_key"`
	Count      int    `json:"count"`
	Issues     int    `json:"issues"`
}
