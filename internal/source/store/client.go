package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"game-catalog-pipeline/internal/source"
)

const (
	// SourceName labels store calls in errors, logs and metrics.
	SourceName = "store"

	appListPath    = "/ISteamApps/GetAppList/v2/"
	appDetailsPath = "/api/appdetails"
)

// Client fetches the storefront catalog. All calls go through the
// shared source.Caller, so the store rate gate and breaker apply.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	callerOpts []source.CallerOption
	caller     *source.Caller
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey attaches the optional storefront key to index requests.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLanguage sets the description language, default en.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithCallerOptions forwards options to the underlying caller.
func WithCallerOptions(opts ...source.CallerOption) Option {
	return func(c *Client) {
		c.callerOpts = append(c.callerOpts, opts...)
	}
}

// NewClient creates a storefront client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: "en",
	}

	for _, opt := range opts {
		opt(c)
	}

	c.caller = source.NewCaller(SourceName, c.callerOpts...)
	return c
}

// ListApps returns the public app index: every sellable appid with its
// display name. The index is a single large response, not paginated.
func (c *Client) ListApps(ctx context.Context) ([]AppEntry, error) {
	u := c.baseURL + appListPath
	if c.apiKey != "" {
		q := url.Values{}
		q.Set("key", c.apiKey)
		u += "?" + q.Encode()
	}

	var resp appListResponse
	if err := c.caller.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return resp.AppList.Apps, nil
}

// FetchApp returns details for one app. Delisted or region-locked
// products come back with success=false and surface as not-found.
func (c *Client) FetchApp(ctx context.Context, appID int64) (*AppDetails, error) {
	q := url.Values{}
	q.Set("appids", strconv.FormatInt(appID, 10))
	q.Set("l", c.language)
	u := c.baseURL + appDetailsPath + "?" + q.Encode()

	resp := make(map[string]appDetailsEnvelope)
	if err := c.caller.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("fetch app %d: %w", appID, err)
	}

	env, ok := resp[strconv.FormatInt(appID, 10)]
	if !ok {
		return nil, c.caller.NewError(source.KindMalformed, 0,
			fmt.Errorf("appdetails response missing app %d", appID))
	}
	if !env.Success || env.Data == nil {
		return nil, c.caller.NewError(source.KindNotFound, 0,
			fmt.Errorf("app %d not available", appID))
	}

	if env.Data.AppID == 0 {
		env.Data.AppID = appID
	}
	return env.Data, nil
}
