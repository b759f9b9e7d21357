package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pokémon", "Pokemon"},
		{"Café Crème", "Cafe Creme"},
		{"Ōkami", "Okami"},
		{"검은사막", "검은사막"},
		{"ＦＩＮＡＬ", "FINAL"},
		{"plain ascii", "plain ascii"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StripDiacritics(tt.in), "StripDiacritics(%q)", tt.in)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hollow Knight: Silksong", []string{"hollow", "knight", "silksong"}},
		{"S.T.A.L.K.E.R. 2", []string{"s", "t", "a", "l", "k", "e", "r", "2"}},
		{"NieR: Automata", []string{"nier", "automata"}},
		// NFKD expands the trademark sign to the letters "tm".
		{"Automata™", []string{"automatatm"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.in), "Tokenize(%q)", tt.in)
	}

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("---"))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		tokens []string
		joined string
	}{
		{
			name:   "stopwords dropped",
			in:     "The Witcher 3: Wild Hunt",
			tokens: []string{"witcher", "3", "wild", "hunt"},
			joined: "witcher 3 wild hunt",
		},
		{
			name:   "edition markers dropped",
			in:     "Dark Souls Remastered Definitive Edition",
			tokens: []string{"dark", "souls"},
			joined: "dark souls",
		},
		{
			name:   "roman numerals converted",
			in:     "Final Fantasy VII",
			tokens: []string{"final", "fantasy", "7"},
			joined: "final fantasy 7",
		},
		{
			name:   "non-canonical roman untouched",
			in:     "World IIII",
			tokens: []string{"world", "iiii"},
			joined: "world iiii",
		},
		{
			name:   "diacritics and case",
			in:     "Pokémon LEGENDS",
			tokens: []string{"pokemon", "legends"},
			joined: "pokemon legends",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.in)
			assert.Equal(t, tt.tokens, got.Tokens)
			assert.Equal(t, tt.joined, got.Joined)
		})
	}
}

func TestNormalizeNameForms(t *testing.T) {
	got := NormalizeName("The Elder Scrolls V: Skyrim")

	assert.Equal(t, []string{"elder", "scrolls", "5", "skyrim"}, got.Tokens)
	assert.Equal(t, "elder scrolls 5 skyrim", got.Joined)
	assert.Equal(t, "elderscrolls5skyrim", got.Compact)
	assert.Equal(t, "elder-scrolls-5-skyrim", got.LooseSlug)
}
