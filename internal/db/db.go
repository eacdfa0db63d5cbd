package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kiracore/jiraflow/internal/paths"
	_ "modernc.org/sqlite"
)

// DB represents the results database
type DB struct {
	*sql.DB
	path string
}

// DefaultDBPath returns the default database path.
// Uses XDG_DATA_HOME/jiraflow/jiraflow.db or ~/.local/share/jiraflow/jiraflow.db
func DefaultDBPath() string {
	return paths.DatabasePath()
}

// Open opens or creates the database
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultDBPath()
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Performance-optimized connection string
	connStr := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-64000)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection open indefinitely

	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Init initializes the database schema
func (db *DB) Init() error {
	// Check if already initialized
	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == nil && version >= SchemaVersion {
		return nil // Already up to date
	}

	// Create schema
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Create views
	if _, err := db.Exec(Views); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}

	// Record schema version
	_, err = db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// Backup copies the database to the specified path
func (db *DB) Backup(destPath string) error {
	// Close WAL checkpoint first
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}

	src, err := os.Open(db.path)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}

	return nil
}

// Restore closes the database and overwrites its file with a backup.
// The DB must be reopened afterwards.
func (db *DB) Restore(srcPath string) error {
	// Close the current database
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer src.Close()

	// stale WAL files would be replayed over the restored file
	os.Remove(db.path + "-wal")
	os.Remove(db.path + "-shm")

	dst, err := os.Create(db.path)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}

	return nil
}

// Stats returns database statistics
type Stats struct {
	Path          string    `json:"path"`
	Size          int64     `json:"size_bytes"`
	Runs          int       `json:"runs"`
	Projects      int       `json:"projects"`
	Statuses      int       `json:"statuses"`
	CycleTimes    int       `json:"cycle_times"`
	Problems      int       `json:"problems"`
	BurndownRows  int       `json:"burndown_points"`
	WIPRows       int       `json:"wip_points"`
	LastRun       time.Time `json:"last_run"`
	SchemaVersion int       `json:"schema_version"`
}

// GetStats returns database statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{Path: db.path}

	// File size
	info, err := os.Stat(db.path)
	if err == nil {
		stats.Size = info.Size()
	}

	// Counts
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &stats.Runs},
		{"SELECT COUNT(DISTINCT project) FROM runs", &stats.Projects},
		{"SELECT COUNT(*) FROM statuses", &stats.Statuses},
		{"SELECT COUNT(*) FROM cycle_times", &stats.CycleTimes},
		{"SELECT COUNT(*) FROM quality_problems", &stats.Problems},
		{"SELECT COUNT(*) FROM burndown_points", &stats.BurndownRows},
		{"SELECT COUNT(*) FROM wip_points", &stats.WIPRows},
	}
	for _, c := range counts {
		if err := db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion)

	// Last run - scan as string since SQLite stores as TEXT
	var lastRun sql.NullString
	db.QueryRow("SELECT MAX(started_at) FROM runs").Scan(&lastRun)
	if t, ok := parseTime(lastRun); ok {
		stats.LastRun = t
	}

	return stats, nil
}

// ExportData is the JSON form of the whole database
type ExportData struct {
	ExportedAt    time.Time       `json:"exported_at"`
	SchemaVersion int             `json:"schema_version"`
	Runs          []Run           `json:"runs"`
	Statuses      []StatusRow     `json:"statuses"`
	CycleTimes    []CycleTime     `json:"cycle_times"`
	Problems      []Problem       `json:"problems"`
	Burndown      []BurndownPoint `json:"burndown"`
	WIP           []WIPPoint      `json:"wip"`
}

// Export exports the database to JSON
func (db *DB) Export(w io.Writer) error {
	data := ExportData{
		ExportedAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}

	var err error
	if data.Runs, err = db.ListRuns("", 0); err != nil {
		return err
	}
	if data.Statuses, err = db.GetStatuses(""); err != nil {
		return err
	}
	for _, r := range data.Runs {
		cts, err := db.GetCycleTimes(r.ID)
		if err != nil {
			return err
		}
		data.CycleTimes = append(data.CycleTimes, cts...)

		problems, err := db.GetProblems(r.ID)
		if err != nil {
			return err
		}
		data.Problems = append(data.Problems, problems...)

		points, err := db.GetBurndown(r.ID, 0)
		if err != nil {
			return err
		}
		data.Burndown = append(data.Burndown, points...)

		wip, err := db.GetWIP(r.ID)
		if err != nil {
			return err
		}
		data.WIP = append(data.WIP, wip...)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Import imports data from JSON
func (db *DB) Import(r io.Reader) error {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return db.Transaction(func(tx *Tx) error {
		for _, run := range data.Runs {
			_, err := tx.Exec(`INSERT OR REPLACE INTO runs
				(id, project, board_id, started_at, finished_at, issue_count) VALUES (?, ?, ?, ?, ?, ?)`,
				run.ID, run.Project, run.BoardID, formatTime(run.StartedAt), formatTimePtr(run.FinishedAt), run.IssueCount)
			if err != nil {
				return fmt.Errorf("failed to import run: %w", err)
			}
		}
		if err := tx.saveStatuses(data.Statuses); err != nil {
			return fmt.Errorf("failed to import statuses: %w", err)
		}
		if err := tx.saveCycleTimes(data.CycleTimes); err != nil {
			return fmt.Errorf("failed to import cycle times: %w", err)
		}
		if err := tx.saveProblems(data.Problems); err != nil {
			return fmt.Errorf("failed to import problems: %w", err)
		}
		if err := tx.saveBurndown(data.Burndown); err != nil {
			return fmt.Errorf("failed to import burndown: %w", err)
		}
		if err := tx.saveWIP(data.WIP); err != nil {
			return fmt.Errorf("failed to import wip: %w", err)
		}
		return nil
	})
}

// times are stored as RFC 3339 text with their original offset
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseTimePtr(s sql.NullString) *time.Time {
	t, ok := parseTime(s)
	if !ok {
		return nil
	}
	return &t
}
