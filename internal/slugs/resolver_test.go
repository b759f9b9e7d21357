package slugs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/normalize"
)

// fakeChecker marks a set of slugs as taken and records lookups.
type fakeChecker struct {
	taken   map[string]bool
	queries []string
	err     error
}

func (c *fakeChecker) SlugTaken(_ context.Context, slug string, _ int64) (bool, error) {
	c.queries = append(c.queries, slug)
	if c.err != nil {
		return false, c.err
	}
	return c.taken[slug], nil
}

func newResolver(taken ...string) (*Resolver, *fakeChecker) {
	c := &fakeChecker{taken: make(map[string]bool)}
	for _, s := range taken {
		c.taken[s] = true
	}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	return NewResolver(c, WithClock(clock)), c
}

func TestResolveFreeSlug(t *testing.T) {
	r, _ := newResolver()

	slug, original, err := r.Resolve(context.Background(), Request{
		NameCandidate:         "Hollow Knight: Silksong",
		OriginalNameCandidate: "Hollow Knight: Silksong",
	})
	require.NoError(t, err)
	assert.Equal(t, "hollow-knight-silksong", slug)
	assert.Equal(t, slug, original, "identical names share one slug")
}

func TestResolveWalksSuffixesOnCollision(t *testing.T) {
	r, c := newResolver("stellar-blade", "stellar-blade-2")

	slug, _, err := r.Resolve(context.Background(), Request{NameCandidate: "Stellar Blade"})
	require.NoError(t, err)
	assert.Equal(t, "stellar-blade-3", slug)
	assert.Equal(t, []string{"stellar-blade", "stellar-blade-2", "stellar-blade-3"}, c.queries)
}

func TestResolveOriginalSideAvoidsResolvedSlug(t *testing.T) {
	// Distinct display and original names that normalize to the same slug
	// are shared; genuinely distinct originals must not collide with the
	// just-resolved display slug even before storage knows it.
	r, _ := newResolver()

	slug, original, err := r.Resolve(context.Background(), Request{
		NameCandidate:         "Black Desert",
		OriginalNameCandidate: "black desert",
	})
	require.NoError(t, err)
	assert.Equal(t, "black-desert", slug)
	assert.Equal(t, "black-desert", original)

	r2, _ := newResolver()
	slug, original, err = r2.Resolve(context.Background(), Request{
		NameCandidate:         "검은사막",
		OriginalNameCandidate: "검은사막 온라인",
	})
	require.NoError(t, err)
	assert.Equal(t, "검은사막", slug)
	assert.Equal(t, "검은사막-온라인", original)
}

func TestResolveFallsBackToIdentifierCandidates(t *testing.T) {
	r, _ := newResolver()

	slug, original, err := r.Resolve(context.Background(), Request{
		NameCandidate: "™®", // slugifies to nothing
		Fallbacks:     []string{"", "store-570"},
	})
	require.NoError(t, err)
	assert.Equal(t, "store-570", slug)
	assert.Equal(t, "store-570", original)
}

func TestResolveNoUsableCandidate(t *testing.T) {
	r, _ := newResolver()

	_, _, err := r.Resolve(context.Background(), Request{NameCandidate: "™®"})
	assert.Error(t, err)
}

func TestResolvePropagatesCheckerError(t *testing.T) {
	c := &fakeChecker{err: assert.AnError}
	r := NewResolver(c)

	_, _, err := r.Resolve(context.Background(), Request{NameCandidate: "Hades"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSuffixedTrimsToLengthCap(t *testing.T) {
	base := strings.Repeat("a", normalize.MaxSlugLen)
	got := suffixed(base, 42)
	assert.LessOrEqual(t, len([]rune(got)), normalize.MaxSlugLen)
	assert.True(t, strings.HasSuffix(got, "-42"))
}

func TestEpochFallbackAfterExhaustingSuffixes(t *testing.T) {
	// Every suffix up to the cap is taken; the resolver must not loop
	// forever and instead falls back to an epoch-stamped slug.
	c := &fakeChecker{taken: map[string]bool{}}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	r := NewResolver(c, WithClock(clock))

	c.taken["hades"] = true
	for i := 2; i <= maxSuffixAttempts+1; i++ {
		c.taken[suffixed("hades", i)] = true
	}

	slug, _, err := r.Resolve(context.Background(), Request{NameCandidate: "Hades"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slug, "hades-"))
	assert.Contains(t, slug, "1717200000000", "epoch millis of the fake clock")
}
