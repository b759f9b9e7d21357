// Package report writes the matching audit trail: one JSONL line per
// evaluated record, split by outcome, plus a per-run summary JSON.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"game-catalog-pipeline/internal/domain"
)

// Kind names one audit stream; each kind appends to its own file.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindPending  Kind = "pending"
	KindRejected Kind = "rejected"
	KindErrors   Kind = "errors"
)

const appendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// fileName returns the JSONL file for a kind.
func (k Kind) fileName() string {
	return "matching." + string(k) + ".jsonl"
}

// KindForStatus maps a matching outcome to its audit stream.
func KindForStatus(status domain.MatchStatus) Kind {
	switch status {
	case domain.MatchAuto:
		return KindAuto
	case domain.MatchPending:
		return KindPending
	default:
		return KindRejected
	}
}

// Record is one audit line.
type Record struct {
	Kind       Kind                     `json:"kind"`
	Time       time.Time                `json:"time"`
	RunID      string                   `json:"runId,omitempty"`
	Source     domain.DataSource        `json:"source"`
	TargetID   string                   `json:"targetId"`
	Name       string                   `json:"name,omitempty"`
	Slug       string                   `json:"slug,omitempty"`
	Decision   *domain.MatchingDecision `json:"decision,omitempty"`
	Error      string                   `json:"error,omitempty"`
	FailReason domain.SaveFailureReason `json:"failReason,omitempty"`
}

// Summary accumulates per-run matching statistics.
type Summary struct {
	Processed    int            `json:"processed"`
	Auto         int            `json:"auto"`
	Pending      int            `json:"pending"`
	Rejected     int            `json:"rejected"`
	Errors       int            `json:"errors"`
	AvgScore     float64        `json:"avgScore"`
	MaxScore     float64        `json:"maxScore"`
	MinScore     float64        `json:"minScore"`
	ScoreBuckets map[string]int `json:"scoreBuckets"`
	TopReasons   []ReasonCount  `json:"topReasons"`
	FinishedAt   time.Time      `json:"finishedAt"`

	scoreSum float64
	reasons  map[string]int
}

// ReasonCount is one entry of the reason histogram.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Writer appends audit records under a base directory. Safe for
// concurrent use; file handles are opened lazily and guarded by a mutex.
type Writer struct {
	fs      afero.Fs
	baseDir string
	clock   clockwork.Clock

	mu      sync.Mutex
	files   map[Kind]afero.File
	summary Summary
}

// Option configures a Writer.
type Option func(*Writer)

// WithFs replaces the filesystem, e.g. afero.NewMemMapFs() in tests.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) {
		w.fs = fs
	}
}

// WithClock injects the clock used for record timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Writer) {
		w.clock = clock
	}
}

// NewWriter creates a Writer rooted at baseDir; the directory is
// created on first append.
func NewWriter(baseDir string, opts ...Option) *Writer {
	w := &Writer{
		fs:      afero.NewOsFs(),
		baseDir: baseDir,
		clock:   clockwork.NewRealClock(),
		files:   make(map[Kind]afero.File),
	}
	w.summary.MinScore = math.Inf(1)
	w.summary.ScoreBuckets = make(map[string]int)
	w.summary.reasons = make(map[string]int)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteDecision appends one line for an evaluated record and folds it
// into the summary.
func (w *Writer) WriteDecision(runID string, rec *domain.ProcessedGame, decision domain.MatchingDecision) error {
	line := Record{
		Kind:     KindForStatus(decision.Status),
		RunID:    runID,
		Source:   rec.DataSource,
		TargetID: rec.TargetID(),
		Name:     rec.Name,
		Slug:     rec.SlugCandidate,
		Decision: &decision,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.summary.Processed++
	switch decision.Status {
	case domain.MatchAuto:
		w.summary.Auto++
	case domain.MatchPending:
		w.summary.Pending++
	default:
		w.summary.Rejected++
	}
	w.summary.scoreSum += decision.Score
	w.summary.MaxScore = math.Max(w.summary.MaxScore, decision.Score)
	w.summary.MinScore = math.Min(w.summary.MinScore, decision.Score)
	w.summary.ScoreBuckets[scoreBucket(decision.Score)]++
	if decision.Reason != "" {
		w.summary.reasons[decision.Reason]++
	}

	return w.appendLocked(line)
}

// WriteError appends one line to the error stream.
func (w *Writer) WriteError(runID string, rec *domain.ProcessedGame, reason domain.SaveFailureReason, err error) error {
	line := Record{
		Kind:       KindErrors,
		RunID:      runID,
		FailReason: reason,
	}
	if rec != nil {
		line.Source = rec.DataSource
		line.TargetID = rec.TargetID()
		line.Name = rec.Name
	}
	if err != nil {
		line.Error = err.Error()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.summary.Errors++
	w.summary.reasons[string(reason)]++
	return w.appendLocked(line)
}

// Snapshot returns a copy of the running summary.
func (w *Writer) Snapshot() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summaryLocked()
}

// Flush writes summary.json (overwritten per run) and syncs the streams.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, f := range w.files {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync audit file: %w", err)
		}
	}

	summary := w.summaryLocked()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := w.ensureDirLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, "summary.json")
	if err := afero.WriteFile(w.fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Close flushes and closes all audit streams.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for kind, f := range w.files {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close audit file %s: %w", kind, err)
		}
		delete(w.files, kind)
	}
	return nil
}

func (w *Writer) summaryLocked() Summary {
	s := w.summary
	if s.Processed > 0 {
		s.AvgScore = s.scoreSum / float64(s.Processed)
	}
	if math.IsInf(s.MinScore, 1) {
		s.MinScore = 0
	}
	s.FinishedAt = w.clock.Now().UTC()

	s.ScoreBuckets = make(map[string]int, len(w.summary.ScoreBuckets))
	for k, v := range w.summary.ScoreBuckets {
		s.ScoreBuckets[k] = v
	}
	s.TopReasons = topReasons(w.summary.reasons, 10)
	return s
}

func (w *Writer) appendLocked(line Record) error {
	line.Time = w.clock.Now().UTC()

	f, err := w.fileLocked(line.Kind)
	if err != nil {
		return err
	}
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal audit line: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit line: %w", err)
	}
	return nil
}

func (w *Writer) fileLocked(kind Kind) (afero.File, error) {
	if f, ok := w.files[kind]; ok {
		return f, nil
	}
	if err := w.ensureDirLocked(); err != nil {
		return nil, err
	}
	path := filepath.Join(w.baseDir, kind.fileName())
	f, err := w.fs.OpenFile(path, appendFlags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file %s: %w", kind, err)
	}
	w.files[kind] = f
	return f, nil
}

func (w *Writer) ensureDirLocked() error {
	if err := w.fs.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return nil
}

func scoreBucket(score float64) string {
	low := math.Floor(score*10) / 10
	if low >= 1.0 {
		low = 0.9
	}
	if low < 0 {
		low = 0
	}
	return fmt.Sprintf("%.1f-%.1f", low, low+0.1)
}

func topReasons(reasons map[string]int, n int) []ReasonCount {
	out := make([]ReasonCount, 0, len(reasons))
	for reason, count := range reasons {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
