package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateRun records the start of a report run and returns it with a new id
func (db *DB) CreateRun(project string, boardID int, startedAt time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Project:   project,
		BoardID:   boardID,
		StartedAt: startedAt,
	}
	_, err := db.Exec("INSERT INTO runs (id, project, board_id, started_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Project, run.BoardID, formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run as complete
func (db *DB) FinishRun(runID string, issueCount int, finishedAt time.Time) error {
	result, err := db.Exec("UPDATE runs SET finished_at = ?, issue_count = ? WHERE id = ?",
		formatTime(finishedAt), issueCount, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun returns one run by id. Unique prefixes are accepted.
func (db *DB) GetRun(id string) (*Run, error) {
	rows, err := db.Query(`SELECT id, project, board_id, started_at, finished_at, issue_count
		FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("run %s not found", id)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("run id %s is ambiguous", id)
	}
}

// ListRuns returns runs newest first. Empty project lists all, limit 0 is unbounded.
func (db *DB) ListRuns(project string, limit int) ([]Run, error) {
	query := "SELECT id, project, board_id, started_at, finished_at, issue_count FROM runs"
	var args []interface{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Project, &r.BoardID, &started, &finished, &r.IssueCount); err != nil {
			return nil, err
		}
		r.StartedAt, _ = parseTime(started)
		r.FinishedAt = parseTimePtr(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything recorded for it
func (db *DB) DeleteRun(runID string) error {
	_, err := db.Exec("DELETE FROM runs WHERE id = ?", runID)
	return err
}

// SaveStatuses replaces the stored taxonomy of each project in rows
func (db *DB) SaveStatuses(rows []StatusRow) error {
	return db.Transaction(func(tx *Tx) error {
		seen := make(map[string]bool)
		for _, r := range rows {
			if seen[r.Project] {
				continue
			}
			seen[r.Project] = true
			if _, err := tx.Exec("DELETE FROM statuses WHERE project = ?", r.Project); err != nil {
				return err
			}
		}
		return tx.saveStatuses(rows)
	})
}

// GetStatuses returns the stored taxonomy. Empty project returns all.
func (db *DB) GetStatuses(project string) ([]StatusRow, error) {
	query := "SELECT project, status_id, name, category_name, category_id, project_id FROM statuses"
	var args []interface{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY project, name, status_id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusRow
	for rows.Next() {
		var s StatusRow
		var categoryID sql.NullString
		if err := rows.Scan(&s.Project, &s.StatusID, &s.Name, &s.CategoryName, &categoryID, &s.ProjectID); err != nil {
			return nil, err
		}
		s.CategoryID = categoryID.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveCycleTimes stores the cycle times of a run
func (db *DB) SaveCycleTimes(cts []CycleTime) error {
	return db.Transaction(func(tx *Tx) error { return tx.saveCycleTimes(cts) })
}

// GetCycleTimes returns the cycle times of a run ordered by issue key
func (db *DB) GetCycleTimes(runID string) ([]CycleTime, error) {
	rows, err := db.Query(`SELECT run_id, issue_key, started, stopped, blocked_percent
		FROM cycle_times WHERE run_id = ? ORDER BY issue_key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleTime
	for rows.Next() {
		var c CycleTime
		var started, stopped sql.NullString
		var blocked sql.NullFloat64
		if err := rows.Scan(&c.RunID, &c.IssueKey, &started, &stopped, &blocked); err != nil {
			return nil, err
		}
		c.Started = parseTimePtr(started)
		c.Stopped = parseTimePtr(stopped)
		if blocked.Valid {
			v := blocked.Float64
			c.BlockedPercent = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveProblems stores data quality findings of a run
func (db *DB) SaveProblems(problems []Problem) error {
	return db.Transaction(func(tx *Tx) error { return tx.saveProblems(problems) })
}

// GetProblems returns the findings of a run in insertion order
func (db *DB) GetProblems(runID string) ([]Problem, error) {
	rows, err := db.Query(`SELECT run_id, issue_key, problem_key, detail
		FROM quality_problems WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.RunID, &p.IssueKey, &p.ProblemKey, &p.Detail); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProblemSummary counts findings per problem key for a run
func (db *DB) GetProblemSummary(runID string) ([]ProblemSummary, error) {
	rows, err := db.Query(`SELECT run_id, project, problem_key, count, issues
		FROM v_problem_summary WHERE run_id = ? ORDER BY count DESC, problem_key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProblemSummary
	for rows.Next() {
		var s ProblemSummary
		if err := rows.Scan(&s.RunID, &s.Project, &s.ProblemKey, &s.Count, &s.Issues); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveBurndown stores burndown series points
func (db *DB) SaveBurndown(points []BurndownPoint) error {
	return db.Transaction(func(tx *Tx) error { return tx.saveBurndown(points) })
}

// GetBurndown returns burndown points of a run. sprintID 0 returns every sprint.
func (db *DB) GetBurndown(runID string, sprintID int) ([]BurndownPoint, error) {
	query := `SELECT run_id, sprint_id, sprint_name, seq, at, points, label
		FROM burndown_points WHERE run_id = ?`
	args := []interface{}{runID}
	if sprintID != 0 {
		query += " AND sprint_id = ?"
		args = append(args, sprintID)
	}
	query += " ORDER BY sprint_id, seq"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BurndownPoint
	for rows.Next() {
		var p BurndownPoint
		var at sql.NullString
		if err := rows.Scan(&p.RunID, &p.SprintID, &p.SprintName, &p.Seq, &at, &p.Points, &p.Label); err != nil {
			return nil, err
		}
		p.At, _ = parseTime(at)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveWIP stores WIP transitions
func (db *DB) SaveWIP(points []WIPPoint) error {
	return db.Transaction(func(tx *Tx) error { return tx.saveWIP(points) })
}

// GetWIP returns the WIP transitions of a run in order
func (db *DB) GetWIP(runID string) ([]WIPPoint, error) {
	rows, err := db.Query(`SELECT run_id, seq, at, active_count, active_keys, removed_keys
		FROM wip_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WIPPoint
	for rows.Next() {
		var p WIPPoint
		var at sql.NullString
		var active, removed string
		if err := rows.Scan(&p.RunID, &p.Seq, &at, &p.ActiveCount, &active, &removed); err != nil {
			return nil, err
		}
		p.At, _ = parseTime(at)
		p.ActiveKeys = splitKeys(active)
		p.RemovedKeys = splitKeys(removed)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Transaction wraps a function in a database transaction
func (db *DB) Transaction(fn func(tx *Tx) error) error {
	sqlTx, err := db.Begin()
	if err != nil {
		return err
	}

	tx := &Tx{Tx: sqlTx}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}

	return sqlTx.Commit()
}

// Tx wraps sql.Tx with helper methods
type Tx struct {
	*sql.Tx
}

func (tx *Tx) saveStatuses(rows []StatusRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO statuses
		(project, status_id, name, category_name, category_id, project_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.Project, r.StatusID, r.Name, r.CategoryName, nullString(r.CategoryID), r.ProjectID); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) saveCycleTimes(cts []CycleTime) error {
	if len(cts) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO cycle_times
		(run_id, issue_key, started, stopped, blocked_percent) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cts {
		var blocked interface{}
		if c.BlockedPercent != nil {
			blocked = *c.BlockedPercent
		}
		if _, err := stmt.Exec(c.RunID, c.IssueKey, formatTimePtr(c.Started), formatTimePtr(c.Stopped), blocked); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) saveProblems(problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO quality_problems (run_id, issue_key, problem_key, detail) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range problems {
		if _, err := stmt.Exec(p.RunID, p.IssueKey, p.ProblemKey, p.Detail); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) saveBurndown(points []BurndownPoint) error {
	if len(points) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO burndown_points
		(run_id, sprint_id, sprint_name, seq, at, points, label) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.RunID, p.SprintID, p.SprintName, p.Seq, formatTime(p.At), p.Points, p.Label); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) saveWIP(points []WIPPoint) error {
	if len(points) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO wip_points
		(run_id, seq, at, active_count, active_keys, removed_keys) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.Exec(p.RunID, p.Seq, formatTime(p.At), p.ActiveCount,
			strings.Join(p.ActiveKeys, ","), strings.Join(p.RemovedKeys, ","))
		if err != nil {
			return err
		}
	}
	return nil
}

// Vacuum optimizes the database file
func (db *DB) Vacuum() error {
	_, err := db.Exec("VACUUM")
	return err
}

// Analyze updates query planner statistics
func (db *DB) Analyze() error {
	_, err := db.Exec("ANALYZE")
	return err
}

// Optimize runs both VACUUM and ANALYZE
func (db *DB) Optimize() error {
	if err := db.Vacuum(); err != nil {
		return err
	}
	return db.Analyze()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
