// Package meta is the client for the aggregator catalog source. The
// payload shapes follow the aggregator's REST API: detail objects and
// paginated result envelopes.
package meta

// Descriptor is the aggregator's generic named entity: platform,
// genre, tag, company.
type Descriptor struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// PlatformEntry nests the platform descriptor next to the per-platform
// release date.
type PlatformEntry struct {
	Platform   Descriptor `json:"platform"`
	ReleasedAt string     `json:"released_at"`
}

type Screenshot struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

type Clip struct {
	Clip  string `json:"clip"`
	Video string `json:"video"`
}

// GameRef is a shallow reference to another game, used for parent
// links on DLC and editions.
type GameRef struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Game is the aggregator's game object. List endpoints return a
// trimmed version of the same shape; absent fields decode to zero
// values.
type Game struct {
	ID               int64           `json:"id"`
	Slug             string          `json:"slug"`
	Name             string          `json:"name"`
	NameOriginal     string          `json:"name_original"`
	Released         string          `json:"released"`
	TBA              bool            `json:"tba"`
	Rating           float64         `json:"rating"`
	RatingsCount     int             `json:"ratings_count"`
	ReviewsCount     int             `json:"reviews_count"`
	Added            int             `json:"added"`
	Metacritic       *int            `json:"metacritic"`
	Website          string          `json:"website"`
	DescriptionRaw   string          `json:"description_raw"`
	BackgroundImage  string          `json:"background_image"`
	Platforms        []PlatformEntry `json:"platforms"`
	Genres           []Descriptor    `json:"genres"`
	Tags             []Descriptor    `json:"tags"`
	Developers       []Descriptor    `json:"developers"`
	Publishers       []Descriptor    `json:"publishers"`
	ShortScreenshots []Screenshot    `json:"short_screenshots"`
	Clip             *Clip           `json:"clip"`
	ParentGames      []GameRef       `json:"parent_games"`
}

// page is the paginated list envelope.
type page struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Game  `json:"results"`
}
