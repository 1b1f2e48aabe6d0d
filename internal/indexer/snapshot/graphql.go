// Package snapshot indexes the off-chain Snapshot voting service, fetching
// proposals and votes through its GraphQL API behind the shared rate
// limited dispatcher.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"daoindexer/internal/errs"
	"daoindexer/internal/ratelimit"
)

const defaultEndpoint = "https://hub.snapshot.org/graphql"

// Client executes GraphQL queries against the Snapshot hub through a
// shared Dispatcher, the same queue-plus-backoff shape used for Discourse.
type Client struct {
	endpoint   string
	dispatcher *ratelimit.Dispatcher
	httpClient *http.Client
}

// NewClient builds a Client. endpoint defaults to the public hub if empty.
func NewClient(endpoint string, dispatcher *ratelimit.Dispatcher) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{endpoint: endpoint, dispatcher: dispatcher, httpClient: http.DefaultClient}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// query issues a single GraphQL request and decodes its data field into out.
func (c *Client) query(ctx context.Context, q string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(gqlRequest{Query: q, Variables: vars})
	if err != nil {
		return errs.Wrap(errs.KindBadConfig, "snapshot.query.marshal", err)
	}

	resp, err := c.dispatcher.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return errs.Wrap(errs.KindTransientNetwork, "snapshot.query.do", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errs.Wrap(errs.KindTransientNetwork, "snapshot.query.read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errs.New(errs.KindRPCError, "snapshot.query", fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw)))
	}

	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return errs.Wrap(errs.KindDecode, "snapshot.query.unmarshal", err)
	}
	if len(gr.Errors) > 0 {
		return errs.New(errs.KindRPCError, "snapshot.query", gr.Errors[0].Message)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return errs.Wrap(errs.KindDecode, "snapshot.query.data", err)
	}
	return nil
}
