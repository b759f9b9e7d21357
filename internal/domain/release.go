package domain

import "time"

// GameRelease is one store SKU of a game on one platform. Unique per
// (game_id, platform, store, coalesce(store_app_id, '')). Releases are
// never deleted by the pipeline; superseded rows keep their history.
// Corresponds to game_releases table in PostgreSQL.
type GameRelease struct {
	ID          int64
	GameID      int64
	Platform    Platform
	Store       Storefront
	StoreAppID  *string
	ReleaseDate *time.Time
	Status      ReleaseStatus
	PriceCents  *int64
	IsFree      bool
	Followers   *int64
	DataSource  DataSource
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReleaseKey is the logical unique key of a release row.
func (r *GameRelease) ReleaseKey() string {
	appID := ""
	if r.StoreAppID != nil {
		appID = *r.StoreAppID
	}
	return string(r.Platform) + "|" + string(r.Store) + "|" + appID
}
