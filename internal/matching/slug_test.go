package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareSlugs(t *testing.T) {
	tests := []struct {
		name  string
		slugA string
		slugB string
		nameA string
		nameB string
		want  slugPairOutcome
	}{
		{"exact", "hollow-knight", "hollow-knight", "Hollow Knight", "Hollow Knight", slugExact},
		{"unrelated", "hollow-knight", "celeste", "Hollow Knight", "Celeste", slugNoMatch},
		{"empty side", "", "celeste", "", "Celeste", slugNoMatch},
		{
			"collision suffix without sequel token",
			"stellar-blade", "stellar-blade-2",
			"Stellar Blade", "Stellar Blade",
			slugCollision,
		},
		{
			"genuine sequel",
			"subnautica", "subnautica-2",
			"Subnautica", "Subnautica 2",
			slugSequelConflict,
		},
		{
			"roman sequel",
			"final-fantasy", "final-fantasy-iv",
			"Final Fantasy", "Final Fantasy IV",
			slugSequelConflict,
		},
		{
			"both suffixed within delta",
			"warframe-2", "warframe-4",
			"Warframe", "Warframe",
			slugCollision,
		},
		{
			"both suffixed beyond delta",
			"warframe-2", "warframe-9",
			"Warframe", "Warframe",
			slugNoMatch,
		},
		{
			"both suffixed sequel token wins",
			"crusader-kings-2", "crusader-kings-3",
			"Crusader Kings II", "Crusader Kings III",
			slugSequelConflict,
		},
		{
			"different bases with suffixes",
			"portal-2", "half-life-2",
			"Portal 2", "Half-Life 2",
			slugNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareSlugs(tt.slugA, tt.slugB, tt.nameA, tt.nameB)
			assert.Equal(t, tt.want, got)

			// Comparison must be order-independent.
			mirror := compareSlugs(tt.slugB, tt.slugA, tt.nameB, tt.nameA)
			assert.Equal(t, got, mirror)
		})
	}
}

func TestSplitNumericSuffix(t *testing.T) {
	tests := []struct {
		slug     string
		wantBase string
		wantNum  int
		wantOK   bool
	}{
		{"stellar-blade-2", "stellar-blade", 2, true},
		{"final-fantasy-xiv", "final-fantasy", 14, true},
		{"hollow-knight", "hollow-knight", 0, false},
		{"2", "2", 0, false},
		{"area-51", "area", 51, true},
		{"trailing-", "trailing-", 0, false},
	}

	for _, tt := range tests {
		base, num, ok := splitNumericSuffix(tt.slug)
		assert.Equal(t, tt.wantOK, ok, tt.slug)
		if tt.wantOK {
			assert.Equal(t, tt.wantBase, base, tt.slug)
			assert.Equal(t, tt.wantNum, num, tt.slug)
		}
	}
}

func TestHasSequelToken(t *testing.T) {
	assert.True(t, hasSequelToken("Subnautica 2"))
	assert.True(t, hasSequelToken("Final Fantasy IV"))
	assert.True(t, hasSequelToken("Civilization V"))
	assert.False(t, hasSequelToken("Stellar Blade"))
	assert.False(t, hasSequelToken("Area 51 Defense"))   // 51 > 50
	assert.False(t, hasSequelToken("Ixion"))             // not a standalone numeral
	assert.False(t, hasSequelToken("Civilization VI"))   // above the Roman I..V window
}
