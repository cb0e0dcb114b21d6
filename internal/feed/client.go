// Package feed polls the marketplace GraphQL endpoint for new listing
// events and maps response edges onto feed events via configurable field
// paths.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/opencompute/supersea/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches listing events from the marketplace feed.
type Client struct {
	endpoint   string
	selectors  *Selectors
	httpClient HTTPClient
}

// NewClient creates a feed client for the given endpoint and selectors.
func NewClient(endpoint string, selectors *Selectors, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, selectors: selectors, httpClient: httpClient}
}

// FetchListings queries listing events for the collection created after the
// given window lower bound (exclusive). Edges missing the asset node are
// skipped; structural validation of the mapped events is the pipeline's
// responsibility.
func (c *Client) FetchListings(ctx context.Context, collectionSlug, since string) ([]model.FeedEvent, error) {
	api := c.selectors.API

	variables := make(map[string]any, len(api.StaticVariables)+2)
	for k, v := range api.StaticVariables {
		variables[k] = v
	}
	variables[api.VariablePaths.CollectionSlug] = []string{collectionSlug}
	variables[api.VariablePaths.Timestamp] = since

	body, err := json.Marshal(map[string]any{
		"query":     api.Query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal feed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, value := range api.Headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   map[string]any `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	edges, ok := lookup(envelope.Data, api.ResultPaths.Edges).([]any)
	if !ok {
		return nil, fmt.Errorf("edges missing at %q", api.ResultPaths.Edges)
	}

	events := make([]model.FeedEvent, 0, len(edges))
	for _, edge := range edges {
		if lookup(edge, api.ResultPaths.Asset) == nil {
			continue
		}
		name := stringAt(edge, api.ResultPaths.Name)
		if name == "" {
			name = stringAt(edge, api.ResultPaths.CollectionName)
		}
		events = append(events, model.FeedEvent{
			ListingID:       stringAt(edge, api.ResultPaths.ListingID),
			TokenID:         stringAt(edge, api.ResultPaths.TokenID),
			ContractAddress: stringAt(edge, api.ResultPaths.ContractAddress),
			Name:            name,
			Image:           stringAt(edge, api.ResultPaths.Image),
			Price:           stringAt(edge, api.ResultPaths.Price),
			Currency:        stringAt(edge, api.ResultPaths.Currency),
			Timestamp:       stringAt(edge, api.ResultPaths.Timestamp),
		})
	}
	return events, nil
}

// lookup walks a dot-separated path through nested maps and slices, returning
// nil when any segment is absent.
func lookup(v any, path string) any {
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			v = node[i]
		default:
			return nil
		}
	}
	return v
}

// stringAt normalizes the value at path to a string. Numeric ids and prices
// arrive as either strings or JSON numbers depending on the schema.
func stringAt(v any, path string) string {
	switch val := lookup(v, path).(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
