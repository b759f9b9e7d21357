// Package slugs assigns globally unique, URL-safe slugs to games.
// Uniqueness is checked against storage case-insensitively on both slug
// columns; collisions are resolved with a numeric suffix.
package slugs

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"game-catalog-pipeline/internal/normalize"
	"game-catalog-pipeline/internal/observability"
)

// maxSuffixAttempts bounds the "-2", "-3", ... collision walk before
// falling back to an epoch-based slug.
const maxSuffixAttempts = 9999

// Checker answers whether a slug is already in use. The games store
// satisfies this; excludeID skips the row being updated (0 checks all).
type Checker interface {
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// Request carries the inputs of one slug resolution.
type Request struct {
	// SelfID is the internal game ID to exclude from uniqueness checks,
	// nil for rows not yet inserted.
	SelfID *int64
	// NameCandidate is the preferred, already-normalized slug candidate.
	NameCandidate string
	// OriginalNameCandidate is the untranslated-name variant.
	OriginalNameCandidate string
	// Fallbacks are identifier-derived candidates, e.g. "store-570",
	// tried in order when the name candidates are empty.
	Fallbacks []string
}

// Resolver resolves slug and original slug for one game. Both sides are
// resolved independently; each must be globally unique.
type Resolver struct {
	checker Checker
	clock   clockwork.Clock
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock injects the clock used for the epoch fallback.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Resolver) {
		r.clock = clock
	}
}

// NewResolver creates a Resolver over the given uniqueness checker.
func NewResolver(checker Checker, opts ...Option) *Resolver {
	r := &Resolver{
		checker: checker,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a unique (slug, originalSlug) pair for the request.
// The original side additionally avoids the just-resolved slug so the
// two never collide with each other.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, string, error) {
	selfID := int64(0)
	if req.SelfID != nil {
		selfID = *req.SelfID
	}

	slug, err := r.resolveSide(ctx, req.NameCandidate, req.Fallbacks, selfID, "")
	if err != nil {
		return "", "", fmt.Errorf("resolve slug: %w", err)
	}

	original := req.OriginalNameCandidate
	if original == "" || normalize.Slugify(original) == normalize.Slugify(req.NameCandidate) {
		// Same display and original name: share the slug.
		return slug, slug, nil
	}

	originalSlug, err := r.resolveSide(ctx, original, req.Fallbacks, selfID, slug)
	if err != nil {
		return "", "", fmt.Errorf("resolve original slug: %w", err)
	}
	return slug, originalSlug, nil
}

// resolveSide picks the first non-empty candidate, normalizes it and
// walks collision suffixes until the slug is free.
func (r *Resolver) resolveSide(ctx context.Context, preferred string, fallbacks []string, selfID int64, avoid string) (string, error) {
	base := normalize.Slugify(preferred)
	for _, fb := range fallbacks {
		if base != "" {
			break
		}
		base = normalize.Slugify(fb)
	}
	if base == "" {
		return "", fmt.Errorf("no usable slug candidate")
	}

	candidate := base
	for attempt := 2; ; attempt++ {
		taken := candidate == avoid
		if !taken {
			var err error
			taken, err = r.checker.SlugTaken(ctx, candidate, selfID)
			if err != nil {
				return "", err
			}
		}
		if !taken {
			return candidate, nil
		}

		observability.RecordSlugCollision()
		if attempt > maxSuffixAttempts {
			return r.epochFallback(base), nil
		}
		candidate = suffixed(base, attempt)
	}
}

// suffixed appends "-<n>", trimming the base so the result stays within
// the slug length cap.
func suffixed(base string, n int) string {
	suffix := fmt.Sprintf("-%d", n)
	trimmed := normalize.TruncateSlug(base, normalize.MaxSlugLen-len(suffix))
	return trimmed + suffix
}

// epochFallback is the last resort after exhausting numeric suffixes.
func (r *Resolver) epochFallback(base string) string {
	suffix := fmt.Sprintf("-%d", r.clock.Now().UnixMilli())
	trimmed := normalize.TruncateSlug(base, normalize.MaxSlugLen-len(suffix))
	return trimmed + suffix
}
