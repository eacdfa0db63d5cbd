package db

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

var runStart = time.Date(2022, 3, 1, 9, 0, 0, 0, time.FixedZone("-05:00", -5*3600))

// seedRun stores one run with a little of every report
func seedRun(t *testing.T, db *DB) *Run {
	t.Helper()

	run, err := db.CreateRun("SP", 1, runStart)
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	started := runStart.Add(-48 * time.Hour)
	blocked := 12.5
	if err := db.SaveCycleTimes([]CycleTime{
		{RunID: run.ID, IssueKey: "SP-1", Started: &started, BlockedPercent: &blocked},
		{RunID: run.ID, IssueKey: "SP-2"},
	}); err != nil {
		t.Fatalf("SaveCycleTimes() error: %v", err)
	}
	if err := db.SaveProblems([]Problem{
		{RunID: run.ID, IssueKey: "SP-1", ProblemKey: "status_not_on_board", Detail: "Status Archived is not on the board"},
		{RunID: run.ID, IssueKey: "SP-2", ProblemKey: "status_not_on_board", Detail: "Status Archived is not on the board"},
		{RunID: run.ID, IssueKey: "SP-2", ProblemKey: "created_in_wrong_status", Detail: "Created in Doing"},
	}); err != nil {
		t.Fatalf("SaveProblems() error: %v", err)
	}
	if err := db.SaveBurndown([]BurndownPoint{
		{RunID: run.ID, SprintID: 7, SprintName: "Sprint 7", Seq: 0, At: runStart, Points: 8, Label: "Sprint started with 8 points"},
		{RunID: run.ID, SprintID: 7, SprintName: "Sprint 7", Seq: 1, At: runStart.Add(time.Hour), Points: 3, Label: "SP-1 completed"},
	}); err != nil {
		t.Fatalf("SaveBurndown() error: %v", err)
	}
	if err := db.SaveWIP([]WIPPoint{
		{RunID: run.ID, Seq: 0, At: started, ActiveCount: 1, ActiveKeys: []string{"SP-1"}},
		{RunID: run.ID, Seq: 1, At: runStart, ActiveCount: 0, RemovedKeys: []string{"SP-1"}},
	}); err != nil {
		t.Fatalf("SaveWIP() error: %v", err)
	}
	return run
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
}

func TestOpen_DefaultPath(t *testing.T) {
	defaultPath := DefaultDBPath()
	if defaultPath == "" {
		t.Error("DefaultDBPath() returned empty string")
	}
	if !filepath.IsAbs(defaultPath) {
		t.Error("DefaultDBPath() should return absolute path")
	}
}

func TestInit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tables := []string{"runs", "statuses", "cycle_times", "quality_problems", "burndown_points", "wip_points", "v_problem_summary"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("Table %q should exist: %v", table, err)
		}
	}

	// second Init is a no-op
	if err := db.Init(); err != nil {
		t.Errorf("Init() on initialized database error: %v", err)
	}
}

func TestCreateAndFinishRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	run, err := db.CreateRun("SP", 1, runStart)
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	if len(run.ID) != 36 {
		t.Errorf("run.ID = %q, want a uuid", run.ID)
	}

	finished := runStart.Add(time.Minute)
	if err := db.FinishRun(run.ID, 42, finished); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err := db.GetRun(run.ID[:8])
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.IssueCount != 42 || got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("GetRun() = %+v", got)
	}
	if !got.StartedAt.Equal(runStart) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, runStart)
	}

	if err := db.FinishRun("missing", 0, finished); err == nil {
		t.Error("FinishRun() expected error for unknown run")
	}
	if _, err := db.GetRun("missing"); err == nil {
		t.Error("GetRun() expected error for unknown run")
	}
}

func TestListRuns(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i, project := range []string{"SP", "OPS", "SP"} {
		if _, err := db.CreateRun(project, 0, runStart.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
	}

	tests := []struct {
		project  string
		limit    int
		expected int
	}{
		{"", 0, 3},
		{"SP", 0, 2},
		{"", 1, 1},
		{"NONE", 0, 0},
	}
	for _, tc := range tests {
		runs, err := db.ListRuns(tc.project, tc.limit)
		if err != nil {
			t.Fatalf("ListRuns() error: %v", err)
		}
		if len(runs) != tc.expected {
			t.Errorf("ListRuns(%q, %d) returned %d runs, want %d", tc.project, tc.limit, len(runs), tc.expected)
		}
	}

	runs, _ := db.ListRuns("SP", 0)
	if len(runs) == 2 && !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("ListRuns() should return newest first")
	}
}

func TestSaveStatuses(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rows := []StatusRow{
		{Project: "SP", StatusID: "10000", Name: "Backlog", CategoryName: "To Do", CategoryID: "2"},
		{Project: "SP", StatusID: "3", Name: "Doing", CategoryName: "In Progress", CategoryID: "4"},
	}
	if err := db.SaveStatuses(rows); err != nil {
		t.Fatalf("SaveStatuses() error: %v", err)
	}

	// saving again replaces the project's taxonomy
	if err := db.SaveStatuses(rows[:1]); err != nil {
		t.Fatalf("SaveStatuses() error on replace: %v", err)
	}

	got, err := db.GetStatuses("SP")
	if err != nil {
		t.Fatalf("GetStatuses() error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Backlog" || got[0].CategoryID != "2" {
		t.Errorf("GetStatuses() = %+v", got)
	}
}

func TestReports(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	run := seedRun(t, db)

	cts, err := db.GetCycleTimes(run.ID)
	if err != nil {
		t.Fatalf("GetCycleTimes() error: %v", err)
	}
	if len(cts) != 2 {
		t.Fatalf("GetCycleTimes() returned %d rows, want 2", len(cts))
	}
	if cts[0].Started == nil || cts[0].BlockedPercent == nil || *cts[0].BlockedPercent != 12.5 {
		t.Errorf("cts[0] = %+v", cts[0])
	}
	if cts[1].Started != nil || cts[1].Stopped != nil || cts[1].BlockedPercent != nil {
		t.Errorf("cts[1] should have no times, got %+v", cts[1])
	}

	summary, err := db.GetProblemSummary(run.ID)
	if err != nil {
		t.Fatalf("GetProblemSummary() error: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("GetProblemSummary() returned %d rows, want 2", len(summary))
	}
	if summary[0].ProblemKey != "status_not_on_board" || summary[0].Count != 2 || summary[0].Issues != 2 {
		t.Errorf("summary[0] = %+v", summary[0])
	}

	points, err := db.GetBurndown(run.ID, 7)
	if err != nil {
		t.Fatalf("GetBurndown() error: %v", err)
	}
	if len(points) != 2 || points[1].Points != 3 || points[1].Label != "SP-1 completed" {
		t.Errorf("GetBurndown() = %+v", points)
	}
	if none, _ := db.GetBurndown(run.ID, 8); len(none) != 0 {
		t.Errorf("GetBurndown(8) = %+v, want none", none)
	}

	wip, err := db.GetWIP(run.ID)
	if err != nil {
		t.Fatalf("GetWIP() error: %v", err)
	}
	if len(wip) != 2 || wip[0].ActiveKeys[0] != "SP-1" || len(wip[0].RemovedKeys) != 0 || wip[1].RemovedKeys[0] != "SP-1" {
		t.Errorf("GetWIP() = %+v", wip)
	}
}

func TestDeleteRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	run := seedRun(t, db)
	if err := db.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun() error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM quality_problems").Scan(&count)
	if count != 0 {
		t.Errorf("problems left after DeleteRun() = %d, want 0", count)
	}
}

func TestBackupAndRestore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedRun(t, db)

	tmpDir := t.TempDir()
	backupPath := filepath.Join(tmpDir, "backup.db")
	err := db.Backup(backupPath)
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		t.Error("Backup file was not created")
	}

	// Restore overwrites the current DB, so we need to reopen after restore
	restorePath := filepath.Join(tmpDir, "restored.db")
	db2, err := Open(restorePath)
	if err != nil {
		t.Fatalf("Failed to open restore DB: %v", err)
	}

	err = db2.Restore(backupPath)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	db3, err := Open(restorePath)
	if err != nil {
		t.Fatalf("Failed to reopen after restore: %v", err)
	}
	defer db3.Close()

	var count int
	err = db3.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query restored DB: %v", err)
	}
	if count != 1 {
		t.Errorf("Restored DB has %d runs, want 1", count)
	}
}

func TestExportAndImport(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	run := seedRun(t, db)
	db.SaveStatuses([]StatusRow{{Project: "SP", StatusID: "3", Name: "Doing", CategoryName: "In Progress"}})

	tmpDir := t.TempDir()
	exportPath := filepath.Join(tmpDir, "export.json")
	exportFile, err := os.Create(exportPath)
	if err != nil {
		t.Fatalf("Failed to create export file: %v", err)
	}

	err = db.Export(exportFile)
	exportFile.Close()
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	exportData, _ := os.ReadFile(exportPath)
	var exported map[string]interface{}
	if err := json.Unmarshal(exportData, &exported); err != nil {
		t.Fatalf("Export produced invalid JSON: %v", err)
	}

	importDBPath := filepath.Join(tmpDir, "import.db")
	db2, _ := Open(importDBPath)
	defer db2.Close()
	db2.Init()

	importFile, _ := os.Open(exportPath)
	defer importFile.Close()

	err = db2.Import(importFile)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	checks := []struct {
		table    string
		expected int
	}{
		{"runs", 1},
		{"statuses", 1},
		{"cycle_times", 2},
		{"quality_problems", 3},
		{"burndown_points", 2},
		{"wip_points", 2},
	}
	for _, c := range checks {
		var count int
		db2.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(&count)
		if count != c.expected {
			t.Errorf("Imported DB has %d rows in %s, want %d", count, c.table, c.expected)
		}
	}

	if _, err := db2.GetRun(run.ID); err != nil {
		t.Errorf("imported run %s missing: %v", run.ID, err)
	}
}

func TestGetStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedRun(t, db)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}

	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
	if stats.Problems != 3 {
		t.Errorf("Problems = %d, want 3", stats.Problems)
	}
	if stats.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", stats.SchemaVersion, SchemaVersion)
	}
	if !stats.LastRun.Equal(runStart) {
		t.Errorf("LastRun = %v, want %v", stats.LastRun, runStart)
	}
}

func TestOptimize(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedRun(t, db)
	if err := db.Optimize(); err != nil {
		t.Errorf("Optimize() error: %v", err)
	}
}
