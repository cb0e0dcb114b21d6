// Package filter implements the listing matching engine.
package filter

import (
	"github.com/opencompute/supersea/internal/eth"
	"github.com/opencompute/supersea/internal/model"
	"github.com/opencompute/supersea/internal/rarity"
)

// auctionCurrency is the alternate payment token used for auction-style
// listings. Listings priced in it are gated by Rule.IncludeAuctions.
const auctionCurrency = "WETH"

// MatchIndex maps rule id to the set of token ids known to satisfy that
// rule's trait predicate.
type MatchIndex map[string]map[string]struct{}

// Match checks whether a feed event passes a single rule. All four
// predicates must pass: auction gate, price bounds, rarity floor, and trait
// filter. rarities may be nil when resolution has not completed; the rarity
// predicate then passes vacuously.
func Match(event model.FeedEvent, rule model.Rule, rarities *model.RarityData, index MatchIndex) bool {
	// Auctions
	if !rule.IncludeAuctions && event.Currency == auctionCurrency {
		return false
	}

	// Price bounds, inclusive, in exact wei arithmetic.
	if rule.MinPrice != nil || rule.MaxPrice != nil {
		wei, err := eth.ParseWei(event.Price)
		if err != nil {
			return false
		}
		price := eth.WeiToEth(wei)
		if rule.MinPrice != nil && price.Cmp(rule.MinPrice) < 0 {
			return false
		}
		if rule.MaxPrice != nil && price.Cmp(rule.MaxPrice) > 0 {
			return false
		}
	}

	// Rarity floor. No rarity data, or no rank for this token, means the
	// predicate passes rather than rejects.
	if rule.LowestRarity != model.TierCommon && rarities != nil {
		if rank, ok := rarities.TokenRanks[event.TokenID]; ok {
			tier := rarity.TierForRank(rank, rarities.TokenCount)
			if rarity.TierIndex(tier) > rarity.TierIndex(rule.LowestRarity) {
				return false
			}
		}
	}

	// Traits. A rule with selectors matches nothing until its index entry
	// has been built.
	if rule.HasTraits() {
		tokens, ok := index[rule.ID]
		if !ok {
			return false
		}
		if _, ok := tokens[event.TokenID]; !ok {
			return false
		}
	}

	return true
}

// MatchAny reports whether the event satisfies at least one of the rules.
func MatchAny(event model.FeedEvent, rules []model.Rule, rarities *model.RarityData, index MatchIndex) bool {
	for _, rule := range rules {
		if Match(event, rule, rarities, index) {
			return true
		}
	}
	return false
}
