package ledger

const schemaVersionV1 = 1

const currentSchemaVersion = schemaVersionV1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	outcome TEXT,
	failed_stage TEXT,
	error TEXT,
	f2 REAL,
	recall REAL,
	precision_score REAL,
	threshold REAL,
	report_path TEXT,
	artifact_dir TEXT,
	promoted INTEGER NOT NULL DEFAULT 0,
	published_to TEXT
);
CREATE TABLE IF NOT EXISTS transitions (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	stage TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT,
	at TEXT NOT NULL,
	PRIMARY KEY (run_id, seq),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
