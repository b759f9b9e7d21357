package domain

import "time"

// GameType classifies a catalog entry as a base game or downloadable content.
type GameType string

const (
	GameTypeGame GameType = "game"
	GameTypeDLC  GameType = "dlc"
)

// String returns the string representation of GameType.
func (t GameType) String() string {
	return string(t)
}

// IsValid checks if the game type is a valid value.
func (t GameType) IsValid() bool {
	return t == GameTypeGame || t == GameTypeDLC
}

// ReleaseStatus describes where a game sits in its release lifecycle.
type ReleaseStatus string

const (
	ReleaseStatusReleased ReleaseStatus = "released"
	ReleaseStatusUpcoming ReleaseStatus = "upcoming"
	ReleaseStatusUnknown  ReleaseStatus = "unknown"
)

// String returns the string representation of ReleaseStatus.
func (s ReleaseStatus) String() string {
	return string(s)
}

// IsValid checks if the release status is a valid value.
func (s ReleaseStatus) IsValid() bool {
	return s == ReleaseStatusReleased || s == ReleaseStatusUpcoming || s == ReleaseStatusUnknown
}

// PlatformSummary is the denormalized platform view stored on the game row.
// Console families are folded (all PlayStation generations collapse to one
// entry); PC is tracked separately because it drives the matching bonus.
type PlatformSummary struct {
	PC       bool       `json:"pc"`
	Consoles []Platform `json:"consoles"`
}

// HasConsole reports whether the summary contains the given console family.
func (p PlatformSummary) HasConsole(platform Platform) bool {
	for _, c := range p.Consoles {
		if c == platform {
			return true
		}
	}
	return false
}

// Game is a unique title reconciled across the Store and Meta sources.
// Corresponds to games table in PostgreSQL.
type Game struct {
	ID                 int64
	StoreID            *int64 // unique where not null
	MetaID             *int64 // unique where not null
	Name               string
	OriginalName       string
	Slug               string // unique, case-insensitive, <=120 chars
	OriginalSlug       string // unique, case-insensitive, <=120 chars
	GameType           GameType
	ParentStoreID      *int64 // DLC parent reference on the Store side
	ParentMetaID       *int64 // DLC parent reference on the Meta side
	ReleaseDate        *time.Time
	ReleaseDateRaw     string
	ReleaseStatus      ReleaseStatus
	ComingSoon         bool
	PopularityScore    int // 0..100
	FollowersCache     *int64
	Platforms          PlatformSummary
	StoreLastRefreshAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsDLC reports whether the game is downloadable content.
func (g *Game) IsDLC() bool {
	return g.GameType == GameTypeDLC
}

// HasIdentifier reports whether at least one external identifier is set.
// Every persisted game must satisfy this.
func (g *Game) HasIdentifier() bool {
	return g.StoreID != nil || g.MetaID != nil
}
