package rarity

import "github.com/opencompute/supersea/internal/model"

// tierBoundary pairs a tier with the top fraction of the collection it
// covers. A token in the top 1% of ranks is Legendary, top 5% Epic, and so
// on. The same boundaries drive both display and rule evaluation.
type tierBoundary struct {
	Tier model.RarityTier
	Top  float64
}

// Tiers lists the rarity buckets rarest first. The last entry catches
// everything and is also the "no rarity filter" sentinel on rules.
var Tiers = []tierBoundary{
	{model.TierLegendary, 0.01},
	{model.TierEpic, 0.05},
	{model.TierRare, 0.15},
	{model.TierUncommon, 0.5},
	{model.TierCommon, 1},
}

// TierForRank buckets a token rank into a rarity tier. Rank 1 is the rarest
// token. Out-of-range input falls through to the most common tier.
func TierForRank(rank, tokenCount int) model.RarityTier {
	if rank <= 0 || tokenCount <= 0 {
		return model.TierCommon
	}
	ratio := float64(rank) / float64(tokenCount)
	for _, b := range Tiers {
		if ratio <= b.Top {
			return b.Tier
		}
	}
	return model.TierCommon
}

// TierIndex returns the position of a tier in Tiers; higher index means more
// common. Unknown tiers map to the most common bucket.
func TierIndex(tier model.RarityTier) int {
	for i, b := range Tiers {
		if b.Tier == tier {
			return i
		}
	}
	return len(Tiers) - 1
}
