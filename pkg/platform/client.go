// pkg/platform/client.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one instance's GraphQL endpoint with that instance's
// stored token. The dashboard origin rides along as Origin/Referer because
// the instance gates on it; dropping those headers breaks every call.
type Client struct {
	endpoint string
	token    string
	origin   string
	http     *http.Client
}

func NewClient(instanceURL, token, dashboardURL string) *Client {
	return &Client{
		endpoint: instanceURL,
		token:    token,
		origin:   originFor(dashboardURL),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Endpoint returns the instance URL this client is bound to.
func (c *Client) Endpoint() string { return c.endpoint }

func originFor(dashboardURL string) string {
	d := strings.TrimSpace(dashboardURL)
	if d == "" {
		return ""
	}
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	return "https://" + strings.TrimRight(d, "/")
}

type envelope struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type reply struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// RemoteError reports a failed call to the instance API.
type RemoteError struct {
	Status   int
	Messages []string
}

func (e *RemoteError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("instance api error (status %d): %s", e.Status, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("instance api error: status %d", e.Status)
}

// Do posts a GraphQL document and returns the raw data payload.
func (c *Client) Do(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(envelope{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Referer", c.origin)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(buf))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &RemoteError{Status: resp.StatusCode, Messages: []string{msg}}
	}
	var out reply
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Messages: msgs}
	}
	return out.Data, nil
}

// Query runs a document and decodes the data payload into out (out may be
// nil when the caller only cares about success).
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, out any) error {
	data, err := c.Do(ctx, query, vars)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// QueryPath runs a document and extracts the value at a JMESPath
// expression from the data payload into out.
func (c *Client) QueryPath(ctx context.Context, query string, vars map[string]any, path string, out any) error {
	data, err := c.Do(ctx, query, vars)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return Extract(doc, path, out)
}
