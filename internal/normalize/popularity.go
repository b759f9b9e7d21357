package normalize

import "math"

// followerSteps maps follower counts to popularity, descending. Monotone
// by construction; the matching threshold for detail creation sits at 40.
var followerSteps = []struct {
	min   int64
	score int
}{
	{500_000, 100},
	{200_000, 95},
	{100_000, 90},
	{50_000, 80},
	{20_000, 70},
	{10_000, 60},
	{5_000, 50},
	{2_000, 40},
	{1_000, 30},
	{500, 20},
	{100, 10},
	{1, 5},
}

// PopularityFromFollowers maps a follower count to 0..100 via a monotone
// step function. Negative input clamps to zero.
func PopularityFromFollowers(followers int64) int {
	for _, step := range followerSteps {
		if followers >= step.min {
			return step.score
		}
	}
	return 0
}

// PopularityFromMeta derives popularity from Meta editorial signals when no
// follower count is known. Weighted sum of three 0..100 components:
// 0.5 * library-adds step, 0.3 * review-count step, 0.2 * rating scaled
// from the 0..5 scale. Result clamps to [0, 100].
func PopularityFromMeta(added, reviews int, rating float64) int {
	addedScore := PopularityFromFollowers(int64(added))
	reviewScore := PopularityFromFollowers(int64(reviews))

	ratingScore := 0.0
	if rating > 0 {
		ratingScore = math.Min(rating, 5.0) * 20.0
	}

	score := 0.5*float64(addedScore) + 0.3*float64(reviewScore) + 0.2*ratingScore
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
