package normalize

import "errors"

// Normalization errors. Both classify as per-record failures downstream;
// neither ever aborts a batch.
var (
	// ErrExcludedProduct is returned for products the catalog never wants:
	// soundtracks, SDKs, servers and similar non-game entries.
	ErrExcludedProduct = errors.New("excluded product")

	// ErrMalformedRecord is returned when a raw record cannot be mapped to
	// a ProcessedGame. Malformed fields never propagate past this package.
	ErrMalformedRecord = errors.New("malformed record")
)
