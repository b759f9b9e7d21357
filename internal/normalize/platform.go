package normalize

import (
	"sort"
	"strings"

	"game-catalog-pipeline/internal/domain"
)

// platformFolds maps source platform identifiers (Meta slugs, Store
// category names) onto console families. Checked after exact lookup by
// prefix so generation suffixes fold away (playstation5 -> playstation).
var platformFolds = map[string]domain.Platform{
	"pc":              domain.PlatformPC,
	"windows":         domain.PlatformPC,
	"macos":           domain.PlatformPC,
	"mac":             domain.PlatformPC,
	"linux":           domain.PlatformPC,
	"steam-os":        domain.PlatformPC,
	"ps":              domain.PlatformPlayStation,
	"psx":             domain.PlatformPlayStation,
	"ps-vita":         domain.PlatformPlayStation,
	"psp":             domain.PlatformPlayStation,
	"xbox":            domain.PlatformXbox,
	"xbox360":         domain.PlatformXbox,
	"switch":          domain.PlatformNintendo,
	"wii":             domain.PlatformNintendo,
	"wii-u":           domain.PlatformNintendo,
	"gamecube":        domain.PlatformNintendo,
	"3ds":             domain.PlatformNintendo,
	"nintendo":        domain.PlatformNintendo,
	"gameboy":         domain.PlatformNintendo,
	"nes":             domain.PlatformNintendo,
	"snes":            domain.PlatformNintendo,
	"game-boy":        domain.PlatformNintendo,
	"nintendo-switch": domain.PlatformNintendo,
}

var platformPrefixFolds = []struct {
	prefix string
	family domain.Platform
}{
	{"playstation", domain.PlatformPlayStation},
	{"ps", domain.PlatformPlayStation},
	{"xbox", domain.PlatformXbox},
	{"nintendo", domain.PlatformNintendo},
	{"wii", domain.PlatformNintendo},
	{"switch", domain.PlatformNintendo},
}

// FoldPlatform maps a source platform identifier to its family. Unsupported
// platforms (mobile, web, legacy systems not carried by any family) report
// false and are dropped silently by callers.
func FoldPlatform(s string) (domain.Platform, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	if family, ok := platformFolds[key]; ok {
		return family, true
	}
	for _, pf := range platformPrefixFolds {
		if strings.HasPrefix(key, pf.prefix) {
			return pf.family, true
		}
	}
	return "", false
}

// FoldPlatforms builds a PlatformSummary from raw platform identifiers.
// Console generations collapse to one family entry; consoles are sorted
// for deterministic storage.
func FoldPlatforms(raw []string) domain.PlatformSummary {
	var summary domain.PlatformSummary
	seen := map[domain.Platform]struct{}{}
	for _, s := range raw {
		family, ok := FoldPlatform(s)
		if !ok {
			continue
		}
		if family == domain.PlatformPC {
			summary.PC = true
			continue
		}
		if _, dup := seen[family]; dup {
			continue
		}
		seen[family] = struct{}{}
		summary.Consoles = append(summary.Consoles, family)
	}
	sort.Slice(summary.Consoles, func(i, j int) bool {
		return summary.Consoles[i] < summary.Consoles[j]
	})
	return summary
}
