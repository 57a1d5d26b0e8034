package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

// RunLog collects run diagnostics: exclusions, skipped signals, stage
// timings. Written as an artifact at the end of every run so exclusion
// counts are reported, never silent. Safe for concurrent era stages.
type RunLog struct {
	id    string
	start time.Time

	mu      sync.Mutex
	entries [][]string // stage, metric, value
}

// NewRunLog starts a run log with a fresh run ID.
func NewRunLog() *RunLog {
	return &RunLog{id: uuid.NewString(), start: time.Now()}
}

// ID returns the run identifier.
func (l *RunLog) ID() string { return l.id }

// Record appends one diagnostic metric.
func (l *RunLog) Record(stage, metric string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, []string{stage, metric, fmt.Sprintf("%v", value)})
}

// StageDone records the wall time of a completed stage.
func (l *RunLog) StageDone(stage string, started time.Time) {
	elapsed := time.Since(started)
	l.Record(stage, "elapsed", elapsed.Round(time.Millisecond).String())
	zap.L().Info("pipeline: stage complete",
		zap.String("run_id", l.id),
		zap.String("stage", stage),
		zap.Duration("elapsed", elapsed))
}

// Write persists the diagnostics artifact.
func (l *RunLog) Write(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := make([][]string, 0, len(l.entries)+1)
	rows = append(rows, []string{"pipeline", "total_elapsed", time.Since(l.start).Round(time.Millisecond).String()})
	rows = append(rows, l.entries...)

	header := []string{"stage", "metric", "value"}
	for i := range rows {
		rows[i] = append([]string{l.id}, rows[i]...)
	}
	return tabular.Write(path, append([]string{"run_id"}, header...), rows)
}
