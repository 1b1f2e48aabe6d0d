// Package discourse indexes a DAO's Discourse forum: topics, posts, users,
// and the inline diff markup Discourse embeds in edited post bodies.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"daoindexer/internal/errs"
	"daoindexer/internal/ratelimit"
)

// MaxPagesPerRun bounds how many listing pages one indexing pass will walk,
// so a forum migration or bug can't turn a single pass into an unbounded
// crawl.
const MaxPagesPerRun = 1000

// RecentLookbackHours re-reads topics updated in the last window every
// pass, catching posts edited after their topic first appeared.
const RecentLookbackHours = 2

// Client fetches JSON resources from a Discourse instance through a shared
// rate limited Dispatcher.
type Client struct {
	baseURL    string
	dispatcher *ratelimit.Dispatcher
	httpClient *http.Client
}

// NewClient builds a Client against one forum's base URL.
func NewClient(baseURL string, dispatcher *ratelimit.Dispatcher) *Client {
	return &Client{baseURL: baseURL, dispatcher: dispatcher, httpClient: http.DefaultClient}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := c.baseURL + path
	resp, err := c.dispatcher.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return errs.Wrap(errs.KindTransientNetwork, "discourse.getJSON.do", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errs.Wrap(errs.KindTransientNetwork, "discourse.getJSON.read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindRPCError, "discourse.getJSON", fmt.Sprintf("%s: status %d", path, resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindDecode, "discourse.getJSON.unmarshal", err)
	}
	return nil
}
