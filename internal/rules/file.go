package rules

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/opencompute/supersea/internal/eth"
	"github.com/opencompute/supersea/internal/model"
)

// fileRule is the on-disk form of a rule definition. Prices are decimal ETH
// strings; an empty rarity means no rarity filter.
type fileRule struct {
	IncludeAuctions bool   `json:"includeAuctions"`
	MinPrice        string `json:"minPrice"`
	MaxPrice        string `json:"maxPrice"`
	LowestRarity    string `json:"lowestRarity"`
	Traits          []struct {
		Group string `json:"group"`
		Value string `json:"value"`
	} `json:"traits"`
}

// LoadFile reads rule definitions from a JSON file. Ids and creation times
// are assigned by the engine when the rules are added, so the same file can
// seed any fresh session.
func LoadFile(path string) ([]model.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var defs []fileRule
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	out := make([]model.Rule, 0, len(defs))
	for i, def := range defs {
		rule := model.Rule{IncludeAuctions: def.IncludeAuctions}
		if def.MinPrice != "" {
			rule.MinPrice, err = eth.ParseEth(def.MinPrice)
			if err != nil {
				return nil, fmt.Errorf("rule %d: min price: %w", i, err)
			}
		}
		if def.MaxPrice != "" {
			rule.MaxPrice, err = eth.ParseEth(def.MaxPrice)
			if err != nil {
				return nil, fmt.Errorf("rule %d: max price: %w", i, err)
			}
		}
		rule.LowestRarity, err = parseTier(def.LowestRarity)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		for _, t := range def.Traits {
			rule.Traits = append(rule.Traits, model.TraitSelector{Group: t.Group, Value: t.Value})
		}
		out = append(out, rule)
	}
	return out, nil
}

func parseTier(s string) (model.RarityTier, error) {
	if s == "" {
		return model.TierCommon, nil
	}
	switch tier := model.RarityTier(s); tier {
	case model.TierLegendary, model.TierEpic, model.TierRare, model.TierUncommon, model.TierCommon:
		return tier, nil
	}
	return "", fmt.Errorf("unknown rarity tier %q", s)
}
