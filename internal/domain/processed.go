package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned by ProcessedGame.Validate for records that
// must not reach storage.
var ErrInvalidRecord = errors.New("invalid processed game")

// ReleaseInput is a per-platform SKU carried on a ProcessedGame before it
// becomes a game_releases row.
type ReleaseInput struct {
	Platform    Platform
	Store       Storefront
	StoreAppID  *string
	ReleaseDate *time.Time
	Status      ReleaseStatus
	PriceCents  *int64
	IsFree      bool
	Followers   *int64
}

// ProcessedGame is the canonical record emitted by the normalizer. It is the
// only shape the matcher and the persistence layer accept; raw source DTOs
// never travel past the normalizer.
type ProcessedGame struct {
	StoreID *int64
	MetaID  *int64

	Name          string // translated/display name
	OriginalName  string // untranslated name; equals Name when the source has no variant
	SlugCandidate string // normalized, pre-uniqueness
	OriginalSlugCandidate string

	GameType      GameType
	ParentStoreID *int64
	ParentMetaID  *int64

	ReleaseDate    *time.Time
	ReleaseDateRaw string
	ReleaseStatus  ReleaseStatus
	ComingSoon     bool

	PopularityScore int // 0..100
	Followers       *int64

	Platforms PlatformSummary
	Companies []CompanyRef
	Releases  []ReleaseInput

	Genres      []string
	Tags        []string
	Screenshots []string

	VideoURL           *string
	Description        *string
	Website            *string
	HeaderImage        *string
	SupportedLanguages *string
	MetacriticScore    *int
	OpencriticScore    *int
	ReviewCount        *int
	Rating             *float64

	DataSource DataSource
}

// IsDLC reports whether the record describes downloadable content.
func (p *ProcessedGame) IsDLC() bool {
	return p.GameType == GameTypeDLC
}

// WantsDetail reports whether the record qualifies for a game_details row.
func (p *ProcessedGame) WantsDetail() bool {
	return p.GameType == GameTypeGame && p.PopularityScore >= DetailPopularityThreshold
}

// DetailPopularityThreshold is the minimum popularity for detail creation.
const DetailPopularityThreshold = 40

// Validate checks the invariants every record must satisfy before a save
// is attempted. Violations classify as ValidationFailed downstream.
func (p *ProcessedGame) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRecord)
	}
	if p.StoreID == nil && p.MetaID == nil {
		return fmt.Errorf("%w: no external identifier", ErrInvalidRecord)
	}
	if !p.GameType.IsValid() {
		return fmt.Errorf("%w: game type %q", ErrInvalidRecord, p.GameType)
	}
	if !p.ReleaseStatus.IsValid() {
		return fmt.Errorf("%w: release status %q", ErrInvalidRecord, p.ReleaseStatus)
	}
	if p.PopularityScore < 0 || p.PopularityScore > 100 {
		return fmt.Errorf("%w: popularity %d out of range", ErrInvalidRecord, p.PopularityScore)
	}
	if !p.DataSource.IsValid() {
		return fmt.Errorf("%w: data source %q", ErrInvalidRecord, p.DataSource)
	}
	for _, r := range p.Releases {
		if !r.Platform.IsValid() {
			return fmt.Errorf("%w: release platform %q", ErrInvalidRecord, r.Platform)
		}
		if !r.Store.IsValid() {
			return fmt.Errorf("%w: release store %q", ErrInvalidRecord, r.Store)
		}
	}
	for _, c := range p.Companies {
		if c.Name == "" || c.Slug == "" {
			return fmt.Errorf("%w: company with empty name or slug", ErrInvalidRecord)
		}
		if !c.Role.IsValid() {
			return fmt.Errorf("%w: company role %q", ErrInvalidRecord, c.Role)
		}
	}
	return nil
}

// TargetType maps the record's source to the pipeline item target type.
func (p *ProcessedGame) TargetType() TargetType {
	if p.DataSource == DataSourceMeta {
		return TargetMetaGame
	}
	return TargetStoreApp
}

// TargetID returns the external identifier string for run bookkeeping.
func (p *ProcessedGame) TargetID() string {
	switch {
	case p.DataSource == DataSourceMeta && p.MetaID != nil:
		return fmt.Sprintf("%d", *p.MetaID)
	case p.StoreID != nil:
		return fmt.Sprintf("%d", *p.StoreID)
	case p.MetaID != nil:
		return fmt.Sprintf("%d", *p.MetaID)
	}
	return ""
}
