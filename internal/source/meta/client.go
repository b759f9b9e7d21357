package meta

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"game-catalog-pipeline/internal/source"
)

const (
	// SourceName labels meta calls in errors, logs and metrics.
	SourceName = "meta"

	// DefaultPageSize is the aggregator's sweet spot: large enough to
	// keep call counts down, small enough to stay under payload caps.
	DefaultPageSize = 40

	defaultOrdering = "-added"
	searchPageSize  = 20
)

// Client fetches the aggregator catalog. All calls go through the
// shared source.Caller, so the meta rate gate and breaker apply.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	callerOpts []source.CallerOption
	caller     *source.Caller
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize overrides the window crawl page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithCallerOptions forwards options to the underlying caller.
func WithCallerOptions(opts ...source.CallerOption) Option {
	return func(c *Client) {
		c.callerOpts = append(c.callerOpts, opts...)
	}
}

// NewClient creates an aggregator client rooted at baseURL. The API
// key is mandatory for this source and rides on every request.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.caller = source.NewCaller(SourceName, c.callerOpts...)
	return c
}

// FetchGame returns the full detail object for one game id.
func (c *Client) FetchGame(ctx context.Context, id int64) (*Game, error) {
	u := fmt.Sprintf("%s/games/%d?%s", c.baseURL, id, c.query(nil).Encode())

	var game Game
	if err := c.caller.GetJSON(ctx, u, &game); err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", id, err)
	}
	return &game, nil
}

// SearchByName returns the first page of precise-search results for a
// display name, best matches first.
func (c *Client) SearchByName(ctx context.Context, name string) ([]Game, error) {
	q := c.query(map[string]string{
		"search":         name,
		"search_precise": "true",
		"page_size":      strconv.Itoa(searchPageSize),
	})
	u := c.baseURL + "/games?" + q.Encode()

	var p page
	if err := c.caller.GetJSON(ctx, u, &p); err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}
	return p.Results, nil
}

// FetchWindow crawls the paginated list of games released inside the
// filter's date range, following next links until the limit is reached
// or the listing ends.
func (c *Client) FetchWindow(ctx context.Context, filter source.WindowFilter) ([]Game, error) {
	ordering := filter.Ordering
	if ordering == "" {
		ordering = defaultOrdering
	}

	var games []Game
	for pageNum := 1; ; pageNum++ {
		q := c.query(map[string]string{
			"dates":     filter.From.Format("2006-01-02") + "," + filter.To.Format("2006-01-02"),
			"ordering":  ordering,
			"page_size": strconv.Itoa(c.pageSize),
			"page":      strconv.Itoa(pageNum),
		})
		u := c.baseURL + "/games?" + q.Encode()

		var p page
		if err := c.caller.GetJSON(ctx, u, &p); err != nil {
			return games, fmt.Errorf("fetch window page %d: %w", pageNum, err)
		}

		games = append(games, p.Results...)
		if filter.Limit > 0 && len(games) >= filter.Limit {
			return games[:filter.Limit], nil
		}
		if p.Next == nil || *p.Next == "" || len(p.Results) == 0 {
			return games, nil
		}
	}
}

// query builds the common query set with the API key applied.
func (c *Client) query(extra map[string]string) url.Values {
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	for k, v := range extra {
		q.Set(k, v)
	}
	return q
}
