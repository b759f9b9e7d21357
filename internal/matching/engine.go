// Package matching decides whether an incoming record from one source
// corresponds to a game already persisted from the other source. The
// decision is a weighted similarity score gated by strong signals; every
// evaluation is reported to the audit stream by the caller.
package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/observability"
)

// Component weights. Genre is reported but carries no weight.
const (
	weightName    = 0.45
	weightRelease = 0.35
	weightCompany = 0.20
	weightGenre   = 0.00
	weightPCBonus = 0.05
)

// Decision thresholds.
const (
	autoScoreThreshold    = 0.5
	pendingScoreThreshold = 0.3
	autoNameScoreFloor    = 0.35
)

// pcBonusMaxDateDiff bounds the release-date gap for the aligned-PC bonus.
const pcBonusMaxDateDiff = 365

// dateSteps maps |Δdays| to the release-date component score.
var dateSteps = []struct {
	maxDays int
	score   float64
}{
	{0, 1.0},
	{1, 0.95},
	{3, 0.9},
	{7, 0.8},
	{14, 0.7},
	{30, 0.6},
	{90, 0.5},
	{180, 0.4},
	{365, 0.3},
	{730, 0.2},
	{1825, 0.1},
}

// Engine scores record/candidate pairs and applies the decision rule.
type Engine struct {
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger injects the engine's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a matching engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: log.Logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores the record against every candidate and returns the
// decision for the best-scoring pair. No candidates means rejected.
func (e *Engine) Evaluate(rec *domain.ProcessedGame, cands []domain.MatchCandidate) domain.MatchingDecision {
	if len(cands) == 0 {
		decision := domain.MatchingDecision{
			Status: domain.MatchRejected,
			Reason: "no-candidates",
		}
		observability.RecordMatchOutcome(string(decision.Status), 0)
		return decision
	}

	recProfile := ProfileFromRecord(rec)

	best := domain.MatchingDecision{Status: domain.MatchRejected, Reason: "score-below-threshold"}
	bestRank := -1
	for i := range cands {
		cand := &cands[i]
		decision := e.decide(recProfile, ProfileFromCandidate(cand))
		if decision.Status != domain.MatchRejected || decision.Flags.SequelConflict {
			id := cand.GameID
			decision.MatchedGameID = &id
		}
		rank := statusRank(decision.Status)
		if rank > bestRank || (rank == bestRank && decision.Score > best.Score) {
			best = decision
			bestRank = rank
		}
	}

	e.logger.Debug().
		Str("name", rec.Name).
		Str("status", string(best.Status)).
		Float64("score", best.Score).
		Int("candidates", len(cands)).
		Msg("matching decision")
	observability.RecordMatchOutcome(string(best.Status), best.Score)
	return best
}

// ScorePair exposes the symmetric pair scorer: breakdown, flags and the
// weighted total for two profiles.
func ScorePair(a, b Profile) (domain.ScoreBreakdown, domain.MatchFlags, float64) {
	flags := domain.MatchFlags{}

	// Slug comparison over both slug columns of both sides.
	outcome := slugNoMatch
	for _, pair := range [][2]string{
		{a.Slug, b.Slug},
		{a.Slug, b.OriginalSlug},
		{a.OriginalSlug, b.Slug},
		{a.OriginalSlug, b.OriginalSlug},
	} {
		o := compareSlugs(pair[0], pair[1], a.OriginalName, b.OriginalName)
		if o > outcome {
			outcome = o
		}
	}
	switch outcome {
	case slugExact, slugCollision:
		flags.SlugMatch = true
	case slugSequelConflict:
		flags.SequelConflict = true
	}

	nameScore := scoreName(a, b, flags.SlugMatch)
	flags.NameExact = namesEqual(a, b)
	if flags.NameExact {
		nameScore = 1.0
	}

	dateScore, dateDiff := scoreReleaseDate(a.ReleaseDate, b.ReleaseDate)
	flags.ReleaseWithinYear = dateDiff != nil && *dateDiff <= 365

	companies := overlap(a.CompanySlugs, b.CompanySlugs)
	companyScore := 0.0
	if n := max(len(a.CompanySlugs), len(b.CompanySlugs)); n > 0 {
		companyScore = float64(len(companies)) / float64(n)
	}
	flags.CompanyOverlap = len(companies) >= 1

	genreScore := 0.0
	if n := max(len(a.Genres), len(b.Genres)); n > 0 {
		genreScore = float64(len(overlap(a.Genres, b.Genres))) / float64(n)
	}

	pcBonus := 0.0
	if a.HasPC && b.HasPC && dateDiff != nil && *dateDiff <= pcBonusMaxDateDiff {
		pcBonus = 1.0
	}

	breakdown := domain.ScoreBreakdown{
		Name:        nameScore,
		ReleaseDate: dateScore,
		Company:     companyScore,
		Genre:       genreScore,
		PCBonus:     pcBonus,
	}

	total := weightName*nameScore +
		weightRelease*dateScore +
		weightCompany*companyScore +
		weightGenre*genreScore +
		weightPCBonus*pcBonus
	total = math.Min(total, 1.0)

	return breakdown, flags, total
}

// Compare applies the full decision rule to two prepared profiles. The
// duplicate-merge scan uses this to judge stored pairs directly.
func (e *Engine) Compare(a, b Profile) domain.MatchingDecision {
	return e.decide(a, b)
}

// decide applies the decision thresholds to one pair.
func (e *Engine) decide(a, b Profile) domain.MatchingDecision {
	breakdown, flags, total := ScorePair(a, b)
	_, dateDiff := scoreReleaseDate(a.ReleaseDate, b.ReleaseDate)

	decision := domain.MatchingDecision{
		Score:          round3(total),
		NameScore:      round3(breakdown.Name),
		SignalCount:    flags.SignalCount(),
		Breakdown:      breakdown,
		Flags:          flags,
		CompanyOverlap: overlap(a.CompanySlugs, b.CompanySlugs),
		GenreOverlap:   overlap(a.Genres, b.Genres),
		DateDiffDays:   dateDiff,
	}

	switch {
	case flags.SequelConflict:
		decision.Status = domain.MatchRejected
		decision.Reason = "sequel-conflict"
	case total >= autoScoreThreshold &&
		(flags.SignalCount() >= 2 || (breakdown.Name >= autoNameScoreFloor && flags.SignalCount() >= 1)):
		decision.Status = domain.MatchAuto
		decision.Reason = fmt.Sprintf("auto: %d signals", flags.SignalCount())
	case total >= pendingScoreThreshold && total < autoScoreThreshold && flags.SignalCount() >= 1:
		decision.Status = domain.MatchPending
		decision.Reason = "pending-review"
	default:
		decision.Status = domain.MatchRejected
		decision.Reason = "score-below-threshold"
	}
	return decision
}

// scoreName blends token Jaccard with Jaro-Winkler over the lowercase
// and compact renditions. A slug match floors the component at 0.95.
func scoreName(a, b Profile, slugMatch bool) float64 {
	jaccard := tokenJaccard(a.norm.Tokens, b.norm.Tokens)
	jwLower := float64(edlib.JaroWinklerSimilarity(a.norm.Joined, b.norm.Joined))
	jwCompact := float64(edlib.JaroWinklerSimilarity(a.norm.Compact, b.norm.Compact))

	score := 0.5*jaccard + 0.3*jwLower + 0.2*jwCompact
	if slugMatch && score < 0.95 {
		score = 0.95
	}
	return score
}

func namesEqual(a, b Profile) bool {
	return equalFoldNonEmpty(a.Name, b.Name) ||
		equalFoldNonEmpty(a.OriginalName, b.OriginalName) ||
		equalFoldNonEmpty(a.Name, b.OriginalName) ||
		equalFoldNonEmpty(a.OriginalName, b.Name)
}

func equalFoldNonEmpty(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// scoreReleaseDate maps the day gap onto the step table and returns the
// absolute gap in days for the audit record.
func scoreReleaseDate(a, b *time.Time) (float64, *int) {
	if a == nil || b == nil {
		return 0, nil
	}
	diff := int(math.Abs(a.Sub(*b).Hours()) / 24)
	for _, step := range dateSteps {
		if diff <= step.maxDays {
			return step.score, &diff
		}
	}
	return 0, &diff
}

func statusRank(s domain.MatchStatus) int {
	switch s {
	case domain.MatchAuto:
		return 2
	case domain.MatchPending:
		return 1
	}
	return 0
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
