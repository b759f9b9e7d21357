package domain

import "time"

// MatchStatus is the terminal outcome of a matching evaluation. Only auto
// results in cross-source linkage; pending is surfaced for human review.
type MatchStatus string

const (
	MatchAuto     MatchStatus = "auto"
	MatchPending  MatchStatus = "pending"
	MatchRejected MatchStatus = "rejected"
)

// String returns the string representation of MatchStatus.
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is a valid value.
func (s MatchStatus) IsValid() bool {
	return s == MatchAuto || s == MatchPending || s == MatchRejected
}

// ScoreBreakdown carries the weighted component scores of one evaluation.
// Weights: name 0.45, release date 0.35, company 0.20, genre 0.00
// (reported only), PC bonus 0.05.
type ScoreBreakdown struct {
	Name        float64 `json:"name"`
	ReleaseDate float64 `json:"releaseDate"`
	Company     float64 `json:"company"`
	Genre       float64 `json:"genre"`
	PCBonus     float64 `json:"pcBonus"`
}

// MatchFlags are the boolean signals observed during an evaluation. The
// first four are the strong signals counted by the decision rule.
type MatchFlags struct {
	SlugMatch         bool `json:"slugMatch"`
	NameExact         bool `json:"nameExact"`
	ReleaseWithinYear bool `json:"releaseWithinYear"`
	CompanyOverlap    bool `json:"companyOverlap"`
	SequelConflict    bool `json:"sequelConflict"`
}

// SignalCount returns the number of strong signals set.
func (f MatchFlags) SignalCount() int {
	n := 0
	if f.SlugMatch {
		n++
	}
	if f.NameExact {
		n++
	}
	if f.ReleaseWithinYear {
		n++
	}
	if f.CompanyOverlap {
		n++
	}
	return n
}

// MatchCandidate is the DB-side view of a game offered to the matching
// engine. Built from the games row plus its companies and releases.
type MatchCandidate struct {
	GameID       int64
	StoreID      *int64
	MetaID       *int64
	Name         string
	OriginalName string
	Slug         string
	OriginalSlug string
	ReleaseDate  *time.Time
	CompanySlugs []string
	Genres       []string
	HasPCRelease bool
	IsDLC        bool
}

// MatchingDecision is the outcome of evaluating one ProcessedGame against
// the candidates from the opposite source. Every decision is also appended
// to the JSONL audit stream.
type MatchingDecision struct {
	Status         MatchStatus    `json:"status"`
	MatchedGameID  *int64         `json:"matchedGameId,omitempty"`
	Score          float64        `json:"score"`
	NameScore      float64        `json:"nameScore"`
	SignalCount    int            `json:"signalCount"`
	Reason         string         `json:"reason"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Flags          MatchFlags     `json:"flags"`
	CompanyOverlap []string       `json:"companyOverlap,omitempty"`
	GenreOverlap   []string       `json:"genreOverlap,omitempty"`
	DateDiffDays   *int           `json:"dateDiffDays,omitempty"`
}
