// Package rarity resolves per-collection rank mappings and trait vocabulary
// from the rarity GraphQL source, caching results for the session lifetime.
package rarity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/opencompute/supersea/internal/model"
)

// ResolutionError wraps a network or parse failure from the rarity source.
// Callers treat absence of data as "rule cannot yet evaluate traits".
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("rarity: %s: %v", e.Op, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the rarity GraphQL source.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient HTTPClient

	mu        sync.Mutex
	rarities  map[string]*model.RarityData
	addresses map[string]string
}

// NewClient creates a rarity client for the given GraphQL endpoint.
func NewClient(graphqlURL, apiKey string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
		rarities:   make(map[string]*model.RarityData),
		addresses:  make(map[string]string),
	}
}

const collectionAddressQuery = `
	query CollectionAddressQuery($slug: String!) {
		collection(slug: $slug) {
			contractAddress
		}
	}
`

// CollectionAddress resolves a collection slug to its contract address,
// cached for the session lifetime.
func (c *Client) CollectionAddress(ctx context.Context, slug string) (string, error) {
	c.mu.Lock()
	if addr, ok := c.addresses[slug]; ok {
		c.mu.Unlock()
		return addr, nil
	}
	c.mu.Unlock()

	respData, err := c.doQuery(ctx, collectionAddressQuery, map[string]any{"slug": slug})
	if err != nil {
		return "", &ResolutionError{Op: "collection address", Err: err}
	}

	var result struct {
		Collection struct {
			ContractAddress string `json:"contractAddress"`
		} `json:"collection"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return "", &ResolutionError{Op: "decode collection address", Err: err}
	}
	if result.Collection.ContractAddress == "" {
		return "", &ResolutionError{Op: "collection address", Err: fmt.Errorf("no contract for slug %q", slug)}
	}

	c.mu.Lock()
	c.addresses[slug] = result.Collection.ContractAddress
	c.mu.Unlock()
	return result.Collection.ContractAddress, nil
}

const rarityQueryAllTokens = `
	query RarityQueryAllTokens($address: String!) {
		contract(address: $address) {
			contractAddress
			tokenCount
			traits {
				count
				trait_type
				value
			}
			tokens {
				iteratorID
				rank
			}
		}
	}
`

const rarityTraitQuery = `
	query RarityTraitQuery($address: String!, $input: TokenInputType) {
		contract(address: $address) {
			contractAddress
			tokenCount
			tokens(input: $input) {
				iteratorID
				rank
			}
		}
	}
`

const isRankedQuery = `
	query IsRankedQuery($address: String!) {
		contract(address: $address) {
			contractAddress
			isRanked
		}
	}
`

type contractPayload struct {
	TokenCount int  `json:"tokenCount"`
	IsRanked   bool `json:"isRanked"`
	Traits     []struct {
		Count     int    `json:"count"`
		TraitType string `json:"trait_type"`
		Value     string `json:"value"`
	} `json:"traits"`
	Tokens []struct {
		IteratorID any `json:"iteratorID"`
		Rank       int `json:"rank"`
	} `json:"tokens"`
}

// Resolve fetches the rank mapping and trait vocabulary for a collection,
// idempotent per address. Without elevated access it returns a degraded
// RarityData with empty ranks and traits but a correct IsRanked flag, so
// rarity-tier evaluation degrades to a pass-through instead of an error.
func (c *Client) Resolve(ctx context.Context, address string, elevated bool) (*model.RarityData, error) {
	c.mu.Lock()
	if data, ok := c.rarities[address]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	var data *model.RarityData
	if elevated {
		contract, err := c.fetchContract(ctx, rarityQueryAllTokens, map[string]any{"address": address})
		if err != nil {
			return nil, err
		}
		ranks := make(map[string]int, len(contract.Tokens))
		for _, t := range contract.Tokens {
			ranks[tokenID(t.IteratorID)] = t.Rank
		}
		traits := make([]model.Trait, 0, len(contract.Traits))
		for _, t := range contract.Traits {
			traits = append(traits, model.Trait{TraitType: t.TraitType, Value: t.Value, Count: t.Count})
		}
		data = &model.RarityData{
			TokenRanks: ranks,
			TokenCount: contract.TokenCount,
			IsRanked:   contract.TokenCount > 0,
			Traits:     traits,
		}
	} else {
		contract, err := c.fetchContract(ctx, isRankedQuery, map[string]any{"address": address})
		if err != nil {
			return nil, err
		}
		data = &model.RarityData{
			TokenRanks: map[string]int{},
			IsRanked:   contract.IsRanked,
		}
	}

	c.mu.Lock()
	c.rarities[address] = data
	c.mu.Unlock()
	return data, nil
}

// MatchingTokenIDs queries the trait-aware rarity source and returns the ids
// of tokens satisfying an AND over the given (group, value) pairs. Called
// once at rule-add time, not per poll.
func (c *Client) MatchingTokenIDs(ctx context.Context, address string, selectors []model.TraitSelector) (map[string]struct{}, error) {
	traits := make([]map[string]string, 0, len(selectors))
	for _, sel := range selectors {
		traits = append(traits, map[string]string{"key": sel.Group, "value": sel.Value})
	}
	variables := map[string]any{
		"address": address,
		"input":   map[string]any{"traits": traits},
	}

	contract, err := c.fetchContract(ctx, rarityTraitQuery, variables)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(contract.Tokens))
	for _, t := range contract.Tokens {
		ids[tokenID(t.IteratorID)] = struct{}{}
	}
	return ids, nil
}

func (c *Client) fetchContract(ctx context.Context, query string, variables map[string]any) (*contractPayload, error) {
	respData, err := c.doQuery(ctx, query, variables)
	if err != nil {
		return nil, &ResolutionError{Op: "fetch contract", Err: err}
	}

	var result struct {
		Contract *contractPayload `json:"contract"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, &ResolutionError{Op: "decode contract", Err: err}
	}
	if result.Contract == nil {
		return nil, &ResolutionError{Op: "fetch contract", Err: fmt.Errorf("contract missing from response")}
	}
	return result.Contract, nil
}

// tokenID normalizes an iteratorID, which the source returns as either a
// JSON number or a string.
func tokenID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprintf("%v", id)
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
