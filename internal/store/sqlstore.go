package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"regeval/internal/artifact"
	"regeval/internal/regression"
)

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SqlStore is the SQLite result index.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Save indexes a persisted regression result. It implements regression.Sink.
func (s *SqlStore) Save(ctx context.Context, res *regression.Result) error {
	exec := Execution{
		ID:         res.ExecutionID,
		Artifact:   filepath.Base(res.Path),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Runs:       res.Runs,
		Scenarios:  res.Scenarios,
		Records:    len(res.Records),
		Passed:     res.Passed(),
		Errors:     len(res.Errors),
	}
	if len(res.Records) > 0 {
		var sum float64
		for _, r := range res.Records {
			sum += r.Score
		}
		exec.MeanScore = sum / float64(len(res.Records))
	}
	return s.SaveExecution(ctx, exec, res.Records)
}

// SaveExecution writes one execution and its records in a single transaction.
func (s *SqlStore) SaveExecution(ctx context.Context, exec Execution, records []artifact.Record) error {
	if exec.ID == "" {
		return fmt.Errorf("save execution: empty id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO executions(id, artifact, started_at, finished_at, runs, scenarios, records, passed, errors, mean_score)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.Artifact, exec.StartedAt.UTC().Format(timeLayout), exec.FinishedAt.UTC().Format(timeLayout),
		exec.Runs, exec.Scenarios, exec.Records, exec.Passed, exec.Errors, exec.MeanScore)
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", exec.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records(execution_id, seq, run, scenario, question, mode, answer, expected_answer,
			interp_jira, expected_interp_jira, impl_jira, expected_impl_jira, impl_pr, expected_impl_pr, score, pass)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		lists, err := encodeLists(r.InterpJira, r.ExpectedInterpJira, r.ImplJira, r.ExpectedImplJira, r.ImplPR, r.ExpectedImplPR)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		_, err = stmt.ExecContext(ctx, exec.ID, i, r.Run, r.Scenario, r.Question, r.Mode, r.Answer, r.ExpectedAnswer,
			lists[0], lists[1], lists[2], lists[3], lists[4], lists[5], r.Score, r.Pass)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit execution %s: %w", exec.ID, err)
	}
	return nil
}

func encodeLists(lists ...[]string) ([]string, error) {
	out := make([]string, len(lists))
	for i, l := range lists {
		if l == nil {
			l = []string{}
		}
		data, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("marshal list: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return out, nil
}

// ListExecutions returns every indexed execution, oldest first.
func (s *SqlStore) ListExecutions(ctx context.Context) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artifact, started_at, finished_at, runs, scenarios, records, passed, errors, mean_score
		 FROM executions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var started, finished string
		if err := rows.Scan(&e.ID, &e.Artifact, &started, &finished, &e.Runs, &e.Scenarios, &e.Records, &e.Passed, &e.Errors, &e.MeanScore); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if e.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("execution %s started_at: %w", e.ID, err)
		}
		if e.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("execution %s finished_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Records returns the records of one execution in artifact order.
func (s *SqlStore) Records(ctx context.Context, executionID string) ([]artifact.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run, scenario, question, mode, answer, expected_answer,
			interp_jira, expected_interp_jira, impl_jira, expected_impl_jira, impl_pr, expected_impl_pr, score, pass
		 FROM records WHERE execution_id = ? ORDER BY seq`, executionID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []artifact.Record{}
	for rows.Next() {
		var r artifact.Record
		var lists [6]string
		if err := rows.Scan(&r.Run, &r.Scenario, &r.Question, &r.Mode, &r.Answer, &r.ExpectedAnswer,
			&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5], &r.Score, &r.Pass); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		targets := []*[]string{&r.InterpJira, &r.ExpectedInterpJira, &r.ImplJira, &r.ExpectedImplJira, &r.ImplPR, &r.ExpectedImplPR}
		for i, target := range targets {
			if *target, err = decodeList(lists[i]); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScenarioTrend returns the per-execution aggregate of one scenario, oldest first.
func (s *SqlStore) ScenarioTrend(ctx context.Context, scenario string) ([]TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.started_at, COUNT(*), AVG(r.score), AVG(r.pass)
		 FROM records r JOIN executions e ON e.id = r.execution_id
		 WHERE r.scenario = ?
		 GROUP BY e.id, e.started_at
		 ORDER BY e.started_at, e.id`, scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario trend: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var started string
		if err := rows.Scan(&p.ExecutionID, &started, &p.Records, &p.MeanScore, &p.PassRate); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		if p.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("execution %s started_at: %w", p.ExecutionID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ regression.Sink = (*SqlStore)(nil)
