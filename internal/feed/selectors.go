package feed

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Selectors describe how to talk to the marketplace feed endpoint: the query
// to post, the variables to inject, and the field paths that map response
// edges onto feed events. A bundled copy ships with the binary; deployments
// can override it from disk when the marketplace schema shifts.
type Selectors struct {
	API struct {
		// Query is the GraphQL document posted on every poll.
		Query string `json:"query"`
		// StaticVariables are merged into every request unchanged.
		StaticVariables map[string]any `json:"staticVariables"`
		// VariablePaths name the variables carrying the collection slug and
		// the window lower bound.
		VariablePaths struct {
			CollectionSlug string `json:"collectionSlug"`
			Timestamp      string `json:"timestamp"`
		} `json:"variablePaths"`
		// ResultPaths are dot-separated paths into the response, relative to
		// the GraphQL data field. Edges missing the asset path are skipped.
		ResultPaths struct {
			Edges           string `json:"edges"`
			Asset           string `json:"asset"`
			ListingID       string `json:"listingId"`
			TokenID         string `json:"tokenId"`
			ContractAddress string `json:"contractAddress"`
			Name            string `json:"name"`
			CollectionName  string `json:"collectionName"`
			Image           string `json:"image"`
			Price           string `json:"price"`
			Currency        string `json:"currency"`
			Timestamp       string `json:"timestamp"`
		} `json:"resultPaths"`
		Headers map[string]string `json:"headers"`
	} `json:"api"`
}

//go:embed selectors.json
var bundledSelectors []byte

// LoadSelectors returns the selectors config from path, or the bundled copy
// when path is empty.
func LoadSelectors(path string) (*Selectors, error) {
	raw := bundledSelectors
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read selectors: %w", err)
		}
	}
	var s Selectors
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse selectors: %w", err)
	}
	if s.API.ResultPaths.Edges == "" || s.API.ResultPaths.ListingID == "" {
		return nil, fmt.Errorf("selectors missing result paths")
	}
	return &s, nil
}
