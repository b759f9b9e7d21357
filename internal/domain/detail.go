package domain

import "time"

// GameDetail holds the heavy editorial payload for a game. At most one row
// per game; created only for base games with popularity >= 40, never for DLC.
// Corresponds to game_details table in PostgreSQL.
type GameDetail struct {
	ID                 int64
	GameID             int64
	Screenshots        []string
	VideoURL           *string
	Description        *string
	Website            *string
	Genres             []string
	Tags               []string
	SupportedLanguages *string
	HeaderImage        *string
	MetacriticScore    *int
	OpencriticScore    *int
	ReviewCount        *int
	Rating             *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
