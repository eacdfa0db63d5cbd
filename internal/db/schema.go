package db

// Schema version for migrations
// Version 1: runs, statuses and the per-run report tables
const SchemaVersion = 1

// Schema contains the database schema
const Schema = `
-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- ═══════════════════════════════════════════════════════════════
-- RUNS
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    project         TEXT NOT NULL,
    board_id        INTEGER NOT NULL DEFAULT 0,
    started_at      TEXT NOT NULL,
    finished_at     TEXT,
    issue_count     INTEGER DEFAULT 0
);

-- ═══════════════════════════════════════════════════════════════
-- STATUS TAXONOMY
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS statuses (
    project         TEXT NOT NULL,
    status_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    category_name   TEXT NOT NULL,
    category_id     TEXT,
    project_id      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project, status_id, project_id)
);

-- ═══════════════════════════════════════════════════════════════
-- REPORTS
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS cycle_times (
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    issue_key       TEXT NOT NULL,
    started         TEXT,
    stopped         TEXT,
    blocked_percent REAL,
    PRIMARY KEY (run_id, issue_key)
);

CREATE TABLE IF NOT EXISTS quality_problems (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    issue_key       TEXT NOT NULL,
    problem_key     TEXT NOT NULL,
    detail          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS burndown_points (
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    sprint_id       INTEGER NOT NULL,
    sprint_name     TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    at              TEXT NOT NULL,
    points          REAL NOT NULL,
    label           TEXT NOT NULL,
    PRIMARY KEY (run_id, sprint_id, seq)
);

CREATE TABLE IF NOT EXISTS wip_points (
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq             INTEGER NOT NULL,
    at              TEXT NOT NULL,
    active_count    INTEGER NOT NULL,
    active_keys     TEXT NOT NULL,
    removed_keys    TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);

-- ═══════════════════════════════════════════════════════════════
-- INDEXES
-- ═══════════════════════════════════════════════════════════════

CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, started_at);
CREATE INDEX IF NOT EXISTS idx_problems_run ON quality_problems(run_id, problem_key);
CREATE INDEX IF NOT EXISTS idx_problems_issue ON quality_problems(issue_key);
`

// Views contains the database views
const Views = `
CREATE VIEW IF NOT EXISTS v_problem_summary AS
SELECT
    r.id as run_id,
    r.project,
    p.problem_key,
    COUNT(*) as count,
    COUNT(DISTINCT p.issue_key) as issues
FROM quality_problems p
JOIN runs r ON p.run_id = r.id
GROUP BY r.id, r.project, p.problem_key;
`
