package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"game-catalog-pipeline/internal/domain"
)

func TestFoldPlatform(t *testing.T) {
	tests := []struct {
		in     string
		family domain.Platform
		ok     bool
	}{
		{"pc", domain.PlatformPC, true},
		{"windows", domain.PlatformPC, true},
		{"macos", domain.PlatformPC, true},
		{"linux", domain.PlatformPC, true},
		{"playstation5", domain.PlatformPlayStation, true},
		{"playstation4", domain.PlatformPlayStation, true},
		{"PlayStation 5", domain.PlatformPlayStation, true},
		{"ps4", domain.PlatformPlayStation, true},
		{"ps-vita", domain.PlatformPlayStation, true},
		{"xbox-series-x", domain.PlatformXbox, true},
		{"xbox360", domain.PlatformXbox, true},
		{"xbox-one", domain.PlatformXbox, true},
		{"nintendo-switch", domain.PlatformNintendo, true},
		{"switch", domain.PlatformNintendo, true},
		{"wii-u", domain.PlatformNintendo, true},
		{"3ds", domain.PlatformNintendo, true},
		{"ios", "", false},
		{"android", "", false},
		{"web", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		family, ok := FoldPlatform(tt.in)
		assert.Equal(t, tt.ok, ok, "FoldPlatform(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.family, family, "FoldPlatform(%q)", tt.in)
		}
	}
}

func TestFoldPlatformsCollapsesGenerations(t *testing.T) {
	summary := FoldPlatforms([]string{"playstation5", "playstation4", "pc"})

	assert.True(t, summary.PC)
	assert.Equal(t, []domain.Platform{domain.PlatformPlayStation}, summary.Consoles)
}

func TestFoldPlatformsDropsUnsupported(t *testing.T) {
	summary := FoldPlatforms([]string{"ios", "android", "web"})

	assert.False(t, summary.PC)
	assert.Empty(t, summary.Consoles)
}

func TestFoldPlatformsSortsConsoles(t *testing.T) {
	summary := FoldPlatforms([]string{"xbox-one", "nintendo-switch", "playstation5"})

	assert.Equal(t, []domain.Platform{
		domain.PlatformNintendo,
		domain.PlatformPlayStation,
		domain.PlatformXbox,
	}, summary.Consoles)
}
