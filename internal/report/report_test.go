package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
)

func i64(v int64) *int64 { return &v }

func newTestWriter(t *testing.T) (*Writer, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewWriter("/logs", WithFs(fs), WithClock(clock)), fs
}

func readLines(t *testing.T, fs afero.Fs, name string) []Record {
	t.Helper()
	data, err := afero.ReadFile(fs, "/logs/"+name)
	require.NoError(t, err)

	var out []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuto, KindForStatus(domain.MatchAuto))
	assert.Equal(t, KindPending, KindForStatus(domain.MatchPending))
	assert.Equal(t, KindRejected, KindForStatus(domain.MatchRejected))
}

func TestWriteDecisionSplitsStreamsByOutcome(t *testing.T) {
	w, fs := newTestWriter(t)

	rec := &domain.ProcessedGame{
		StoreID:       i64(620),
		Name:          "Portal 2",
		SlugCandidate: "portal-2",
		DataSource:    domain.DataSourceStore,
	}
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{
		Status: domain.MatchAuto,
		Score:  0.85,
		Reason: "slug+release",
	}))
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{
		Status: domain.MatchPending,
		Score:  0.55,
		Reason: "name-only",
	}))
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{
		Status: domain.MatchRejected,
		Score:  0.1,
	}))
	require.NoError(t, w.Close())

	auto := readLines(t, fs, "matching.auto.jsonl")
	require.Len(t, auto, 1)
	assert.Equal(t, KindAuto, auto[0].Kind)
	assert.Equal(t, "run-1", auto[0].RunID)
	assert.Equal(t, "620", auto[0].TargetID)
	assert.Equal(t, "portal-2", auto[0].Slug)
	require.NotNil(t, auto[0].Decision)
	assert.InDelta(t, 0.85, auto[0].Decision.Score, 1e-9)

	assert.Len(t, readLines(t, fs, "matching.pending.jsonl"), 1)
	assert.Len(t, readLines(t, fs, "matching.rejected.jsonl"), 1)
}

func TestWriteErrorStreamAndNilRecord(t *testing.T) {
	w, fs := newTestWriter(t)

	rec := &domain.ProcessedGame{
		MetaID:     i64(9767),
		Name:       "Hades",
		DataSource: domain.DataSourceMeta,
	}
	require.NoError(t, w.WriteError("run-1", rec, domain.FailureValidationFailed, errors.New("empty name")))
	require.NoError(t, w.WriteError("run-1", nil, domain.FailureUnknown, nil))
	require.NoError(t, w.Close())

	lines := readLines(t, fs, "matching.errors.jsonl")
	require.Len(t, lines, 2)
	assert.Equal(t, "9767", lines[0].TargetID)
	assert.Equal(t, domain.FailureValidationFailed, lines[0].FailReason)
	assert.Equal(t, "empty name", lines[0].Error)
	assert.Empty(t, lines[1].TargetID)
	assert.Empty(t, lines[1].Error)
}

func TestSummaryAggregation(t *testing.T) {
	w, fs := newTestWriter(t)

	rec := &domain.ProcessedGame{StoreID: i64(1), Name: "G", DataSource: domain.DataSourceStore}
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{Status: domain.MatchAuto, Score: 0.9, Reason: "slug+release"}))
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{Status: domain.MatchAuto, Score: 0.7, Reason: "slug+release"}))
	require.NoError(t, w.WriteDecision("run-1", rec, domain.MatchingDecision{Status: domain.MatchPending, Score: 0.5, Reason: "name-only"}))
	require.NoError(t, w.WriteError("run-1", rec, domain.FailureRateLimit, errors.New("429")))

	s := w.Snapshot()
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Auto)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 0, s.Rejected)
	assert.Equal(t, 1, s.Errors)
	assert.InDelta(t, 0.7, s.AvgScore, 1e-9)
	assert.InDelta(t, 0.9, s.MaxScore, 1e-9)
	assert.InDelta(t, 0.5, s.MinScore, 1e-9)
	assert.Equal(t, 1, s.ScoreBuckets["0.9-1.0"])
	assert.Equal(t, 1, s.ScoreBuckets["0.7-0.8"])
	assert.Equal(t, 1, s.ScoreBuckets["0.5-0.6"])
	require.NotEmpty(t, s.TopReasons)
	assert.Equal(t, ReasonCount{Reason: "slug+release", Count: 2}, s.TopReasons[0])

	require.NoError(t, w.Flush())
	data, err := afero.ReadFile(fs, "/logs/summary.json")
	require.NoError(t, err)
	var onDisk Summary
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, s.Processed, onDisk.Processed)
	assert.Equal(t, s.TopReasons, onDisk.TopReasons)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), onDisk.FinishedAt)
}

func TestEmptyWriterSummaryHasZeroScores(t *testing.T) {
	w, _ := newTestWriter(t)

	s := w.Snapshot()
	assert.Zero(t, s.Processed)
	assert.Zero(t, s.AvgScore)
	assert.Zero(t, s.MinScore, "the +Inf sentinel never leaks out")
	assert.Zero(t, s.MaxScore)
}

func TestScoreBucketEdges(t *testing.T) {
	assert.Equal(t, "0.0-0.1", scoreBucket(0))
	assert.Equal(t, "0.0-0.1", scoreBucket(0.05))
	assert.Equal(t, "0.4-0.5", scoreBucket(0.45))
	assert.Equal(t, "0.9-1.0", scoreBucket(0.95))
	assert.Equal(t, "0.9-1.0", scoreBucket(1.0), "a perfect score stays in the top bucket")
	assert.Equal(t, "0.0-0.1", scoreBucket(-0.2), "negative scores clamp to zero")
}
