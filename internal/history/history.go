// Package history aggregates persisted artifacts into trend summaries: mean
// score and pass ratio per run, and a score/pass-rate quadrant per scenario.
package history

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"regeval/internal/artifact"
	"regeval/internal/logging"
)

// Quadrant thresholds for ByScenario.
const (
	ScoreThreshold    = 0.8
	PassRateThreshold = 0.8
)

// Quadrant places a scenario by mean score against pass rate.
type Quadrant string

const (
	Stable  Quadrant = "stable"  // high score, high pass rate
	Lucky   Quadrant = "lucky"   // low score, high pass rate
	Close   Quadrant = "close"   // high score, low pass rate
	Failing Quadrant = "failing" // low score, low pass rate
)

// Classify returns the quadrant for a mean score and pass rate.
func Classify(meanScore, passRate float64) Quadrant {
	highScore := meanScore >= ScoreThreshold
	highPass := passRate >= PassRateThreshold
	switch {
	case highScore && highPass:
		return Stable
	case highPass:
		return Lucky
	case highScore:
		return Close
	default:
		return Failing
	}
}

// Band buckets a single score the way the result table colors it.
type Band string

const (
	BandLow  Band = "low"  // < 0.7
	BandWeak Band = "weak" // < 0.8
	BandNear Band = "near" // < 0.9
	BandPass Band = "pass"
)

// BandOf returns the display band of score.
func BandOf(score float64) Band {
	switch {
	case score < 0.7:
		return BandLow
	case score < 0.8:
		return BandWeak
	case score < 0.9:
		return BandNear
	default:
		return BandPass
	}
}

// Entry is a record tagged with the artifact file it came from.
type Entry struct {
	Artifact string
	artifact.Record
}

// Corpus is every record of a set of artifacts.
type Corpus struct {
	Artifacts []string
	Entries   []Entry
}

// LoadDir reads every artifact in dir. A missing directory is an empty
// corpus; an unreadable artifact is an error.
func LoadDir(dir string) (*Corpus, error) {
	paths, err := artifact.List(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Corpus{}, nil
		}
		return nil, err
	}
	c := &Corpus{}
	for _, p := range paths {
		records, err := artifact.Read(p)
		if err != nil {
			return nil, err
		}
		c.Add(filepath.Base(p), records)
	}
	logging.New("history").Debug("loaded corpus", "dir", dir, "artifacts", len(c.Artifacts), "records", len(c.Entries))
	return c, nil
}

// Add appends the records of one artifact.
func (c *Corpus) Add(name string, records []artifact.Record) {
	c.Artifacts = append(c.Artifacts, name)
	for _, r := range records {
		c.Entries = append(c.Entries, Entry{Artifact: name, Record: r})
	}
}

// Len returns the number of records.
func (c *Corpus) Len() int { return len(c.Entries) }

// RunStats aggregates one run id across the corpus.
type RunStats struct {
	Run       int     `json:"run"`
	Records   int     `json:"records"`
	Passed    int     `json:"passed"`
	MeanScore float64 `json:"mean_score"`
	PassRatio float64 `json:"pass_ratio"`
}

// ScenarioStats aggregates one scenario across the corpus.
type ScenarioStats struct {
	Scenario  string   `json:"scenario"`
	Records   int      `json:"records"`
	MeanScore float64  `json:"mean_score"`
	PassRate  float64  `json:"pass_rate"`
	Quadrant  Quadrant `json:"quadrant"`
}

type acc struct {
	n, passed int
	sum       float64
}

func (a *acc) add(r *artifact.Record) {
	a.n++
	a.sum += r.Score
	if r.Pass {
		a.passed++
	}
}

func (a acc) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

func (a acc) ratio() float64 {
	if a.n == 0 {
		return 0
	}
	return float64(a.passed) / float64(a.n)
}

// ByRun groups records by run id, ascending.
func (c *Corpus) ByRun() []RunStats {
	groups := map[int]*acc{}
	for i := range c.Entries {
		r := &c.Entries[i].Record
		if groups[r.Run] == nil {
			groups[r.Run] = &acc{}
		}
		groups[r.Run].add(r)
	}
	out := make([]RunStats, 0, len(groups))
	for run, a := range groups {
		out = append(out, RunStats{Run: run, Records: a.n, Passed: a.passed, MeanScore: a.mean(), PassRatio: a.ratio()})
	}
	slices.SortFunc(out, func(a, b RunStats) int { return cmp.Compare(a.Run, b.Run) })
	return out
}

// ByScenario groups records by scenario id, sorted by id.
func (c *Corpus) ByScenario() []ScenarioStats {
	records := make([]artifact.Record, len(c.Entries))
	for i := range c.Entries {
		records[i] = c.Entries[i].Record
	}
	return Summarize(records)
}

// Summarize groups records by scenario id, sorted by id, with a quadrant per
// scenario. It is used for the current artifact as well as the corpus.
func Summarize(records []artifact.Record) []ScenarioStats {
	groups := map[string]*acc{}
	for i := range records {
		r := &records[i]
		if groups[r.Scenario] == nil {
			groups[r.Scenario] = &acc{}
		}
		groups[r.Scenario].add(r)
	}
	out := make([]ScenarioStats, 0, len(groups))
	for id, a := range groups {
		out = append(out, ScenarioStats{
			Scenario:  id,
			Records:   a.n,
			MeanScore: a.mean(),
			PassRate:  a.ratio(),
			Quadrant:  Classify(a.mean(), a.ratio()),
		})
	}
	slices.SortFunc(out, func(a, b ScenarioStats) int { return compareIDs(a.Scenario, b.Scenario) })
	return out
}

// compareIDs orders numeric ids numerically and everything else lexically,
// numbers first.
func compareIDs(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// Summary is the whole-corpus view returned by the CLI and MCP surfaces.
type Summary struct {
	Artifacts int             `json:"artifacts"`
	Records   int             `json:"records"`
	MeanScore float64         `json:"mean_score"`
	PassRatio float64         `json:"pass_ratio"`
	Runs      []RunStats      `json:"runs"`
	Scenarios []ScenarioStats `json:"scenarios"`
}

// Summary aggregates the corpus.
func (c *Corpus) Summary() Summary {
	var total acc
	for i := range c.Entries {
		total.add(&c.Entries[i].Record)
	}
	return Summary{
		Artifacts: len(c.Artifacts),
		Records:   total.n,
		MeanScore: total.mean(),
		PassRatio: total.ratio(),
		Runs:      c.ByRun(),
		Scenarios: c.ByScenario(),
	}
}

// String is a one-line overview.
func (s Summary) String() string {
	return fmt.Sprintf("%d artifacts, %d records, mean score %.3f, pass ratio %.3f", s.Artifacts, s.Records, s.MeanScore, s.PassRatio)
}
