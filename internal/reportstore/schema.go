package reportstore

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    started_at TIMESTAMP,
    completed_at TIMESTAMP,
    duration_seconds REAL,
    total INTEGER DEFAULT 0,
    passed INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

CREATE TABLE IF NOT EXISTS results (
    request_id TEXT NOT NULL,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    worktree_id TEXT,
    worker_id TEXT,
    status TEXT NOT NULL,
    tasks_passed INTEGER DEFAULT 0,
    tasks_failed INTEGER DEFAULT 0,
    started_at TIMESTAMP,
    completed_at TIMESTAMP,
    error_message TEXT,
    report_path TEXT,
    PRIMARY KEY (session_id, request_id)
);

CREATE INDEX IF NOT EXISTS idx_results_session_id ON results(session_id);

CREATE TABLE IF NOT EXISTS warnings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_warnings_session_id ON warnings(session_id);
`
