package rarity

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opencompute/supersea/internal/model"
)

func TestTierForRank(t *testing.T) {
	tests := []struct {
		name       string
		rank       int
		tokenCount int
		want       model.RarityTier
	}{
		{name: "top rank is legendary", rank: 1, tokenCount: 10000, want: model.TierLegendary},
		{name: "exactly one percent is legendary", rank: 100, tokenCount: 10000, want: model.TierLegendary},
		{name: "just past one percent is epic", rank: 101, tokenCount: 10000, want: model.TierEpic},
		{name: "exactly five percent is epic", rank: 500, tokenCount: 10000, want: model.TierEpic},
		{name: "fifteen percent is rare", rank: 1500, tokenCount: 10000, want: model.TierRare},
		{name: "half is uncommon", rank: 5000, tokenCount: 10000, want: model.TierUncommon},
		{name: "bottom is common", rank: 9999, tokenCount: 10000, want: model.TierCommon},
		{name: "last rank is common", rank: 10000, tokenCount: 10000, want: model.TierCommon},
		{name: "zero rank falls through to common", rank: 0, tokenCount: 10000, want: model.TierCommon},
		{name: "zero token count falls through to common", rank: 5, tokenCount: 0, want: model.TierCommon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TierForRank(tt.rank, tt.tokenCount)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TierForRank(%d, %d) mismatch (-want +got):\n%s", tt.rank, tt.tokenCount, diff)
			}
		})
	}
}

func TestTierIndexOrdering(t *testing.T) {
	if TierIndex(model.TierLegendary) >= TierIndex(model.TierRare) {
		t.Error("legendary should sort before rare")
	}
	if TierIndex(model.TierRare) >= TierIndex(model.TierCommon) {
		t.Error("rare should sort before common")
	}
	if got := TierIndex("Unheard-of"); got != len(Tiers)-1 {
		t.Errorf("unknown tier index = %d, want most common bucket %d", got, len(Tiers)-1)
	}
}
