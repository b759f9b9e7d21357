package normalize

// excludedTokens mark products that are never games: tooling, media and
// test entries that pollute the store catalog. Matched as whole tokens,
// case-insensitively.
var excludedTokens = map[string]struct{}{
	"soundtrack":  {},
	"wallpaper":   {},
	"screensaver": {},
	"sdk":         {},
	"server":      {},
	"benchmark":   {},
	"test":        {},
	"sample":      {},
	"trailer":     {},
	"video":       {},
	"playtest":    {},
}

// IsExcludedName reports whether the product name contains an excluded
// token as a whole word. Returns the offending token for audit output.
func IsExcludedName(name string) (string, bool) {
	for _, tok := range Tokenize(name) {
		if _, hit := excludedTokens[tok]; hit {
			return tok, true
		}
	}
	return "", false
}
