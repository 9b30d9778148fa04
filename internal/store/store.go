// Package store keeps an optional SQLite index of regression executions
// next to the CSV artifacts, for trend queries across executions.
package store

import "time"

// DefaultDBPath is the default relative path for the SQLite DB.
const DefaultDBPath = "data/regeval.db"

// Execution is one persisted regression execution.
type Execution struct {
	ID         string
	Artifact   string // artifact file name at persist time
	StartedAt  time.Time
	FinishedAt time.Time
	Runs       int
	Scenarios  int
	Records    int
	Passed     int
	Errors     int
	MeanScore  float64
}

// TrendPoint is one scenario's aggregate within one execution.
type TrendPoint struct {
	ExecutionID string
	StartedAt   time.Time
	Records     int
	MeanScore   float64
	PassRate    float64
}
