package source

import "time"

// WindowFilter bounds a windowed catalog crawl: records whose release
// date falls inside [From, To], ordered by the source's notion of
// Ordering, at most Limit records.
type WindowFilter struct {
	From     time.Time
	To       time.Time
	Ordering string
	Limit    int
}

// ReleaseWindow builds the default refresh window around now: released
// in the last `back` or due within the next `ahead`.
func ReleaseWindow(now time.Time, back, ahead time.Duration) WindowFilter {
	return WindowFilter{
		From: now.Add(-back),
		To:   now.Add(ahead),
	}
}
