// Package store is the client for the storefront catalog source. The
// payload shapes follow the storefront's public app index and
// appdetails endpoints.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// AppID decodes the storefront's inconsistent appid encoding, which is
// a number in most payloads but a quoted string inside fullgame
// references.
type AppID int64

func (a *AppID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse appid %q: %w", s, err)
	}
	*a = AppID(n)
	return nil
}

// AppEntry is one row of the public app index.
type AppEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

type appListResponse struct {
	AppList struct {
		Apps []AppEntry `json:"apps"`
	} `json:"applist"`
}

// AppDetails is the full appdetails payload for one product.
type AppDetails struct {
	Type                string              `json:"type"`
	Name                string              `json:"name"`
	AppID               int64               `json:"steam_appid"`
	IsFree              bool                `json:"is_free"`
	DetailedDescription string              `json:"detailed_description"`
	ShortDescription    string              `json:"short_description"`
	SupportedLanguages  string              `json:"supported_languages"`
	HeaderImage         string              `json:"header_image"`
	Website             string              `json:"website"`
	Developers          []string            `json:"developers"`
	Publishers          []string            `json:"publishers"`
	Platforms           AppPlatforms        `json:"platforms"`
	Categories          []AppCategory       `json:"categories"`
	Genres              []AppGenre          `json:"genres"`
	Screenshots         []AppScreenshot     `json:"screenshots"`
	Movies              []AppMovie          `json:"movies"`
	Recommendations     AppRecommendations  `json:"recommendations"`
	ReleaseDate         AppReleaseDate      `json:"release_date"`
	Metacritic          *AppMetacritic      `json:"metacritic"`
	PriceOverview       *AppPrice           `json:"price_overview"`
	FullGame            *AppFullGameRef     `json:"fullgame"`
}

// AppPlatforms flags the operating systems a product ships on.
type AppPlatforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

// AppCategory is a storefront feature tag (single-player, co-op, ...).
type AppCategory struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// AppGenre carries the genre id as a quoted number, matching the wire
// format.
type AppGenre struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type AppScreenshot struct {
	ID            int    `json:"id"`
	PathThumbnail string `json:"path_thumbnail"`
	PathFull      string `json:"path_full"`
}

type AppMovie struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Thumbnail string      `json:"thumbnail"`
	Webm      MovieFormat `json:"webm"`
	MP4       MovieFormat `json:"mp4"`
	Highlight bool        `json:"highlight"`
}

type MovieFormat struct {
	Low string `json:"480"`
	Max string `json:"max"`
}

type AppRecommendations struct {
	Total int `json:"total"`
}

// AppReleaseDate carries the raw display date; parsing happens during
// normalization.
type AppReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

type AppMetacritic struct {
	Score int    `json:"score"`
	URL   string `json:"url"`
}

// AppPrice amounts are in minor currency units.
type AppPrice struct {
	Currency        string `json:"currency"`
	Initial         int64  `json:"initial"`
	Final           int64  `json:"final"`
	DiscountPercent int    `json:"discount_percent"`
	FinalFormatted  string `json:"final_formatted"`
}

// AppFullGameRef points a DLC at its base game.
type AppFullGameRef struct {
	AppID AppID  `json:"appid"`
	Name  string `json:"name"`
}

type appDetailsEnvelope struct {
	Success bool        `json:"success"`
	Data    *AppDetails `json:"data"`
}

// TrailerURL picks the best playable trailer, preferring mp4.
func (d *AppDetails) TrailerURL() string {
	for _, m := range d.Movies {
		if m.Highlight {
			if m.MP4.Max != "" {
				return m.MP4.Max
			}
			if m.Webm.Max != "" {
				return m.Webm.Max
			}
		}
	}
	for _, m := range d.Movies {
		if m.MP4.Max != "" {
			return m.MP4.Max
		}
		if m.Webm.Max != "" {
			return m.Webm.Max
		}
	}
	return ""
}
