package store

// schemaVersionV1 is the first result-index schema.
const schemaVersionV1 = 1

// schemaV1 creates the result index. List columns hold JSON arrays.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS executions (
	id          TEXT PRIMARY KEY,
	artifact    TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	runs        INTEGER NOT NULL,
	scenarios   INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	mean_score  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	execution_id         TEXT NOT NULL REFERENCES executions(id),
	seq                  INTEGER NOT NULL,
	run                  INTEGER NOT NULL,
	scenario             TEXT NOT NULL,
	question             TEXT NOT NULL,
	mode                 TEXT NOT NULL,
	answer               TEXT NOT NULL,
	expected_answer      TEXT NOT NULL,
	interp_jira          TEXT NOT NULL,
	expected_interp_jira TEXT NOT NULL,
	impl_jira            TEXT NOT NULL,
	expected_impl_jira   TEXT NOT NULL,
	impl_pr              TEXT NOT NULL,
	expected_impl_pr     TEXT NOT NULL,
	score                REAL NOT NULL,
	pass                 INTEGER NOT NULL,
	PRIMARY KEY (execution_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_records_scenario ON records(scenario);
`
