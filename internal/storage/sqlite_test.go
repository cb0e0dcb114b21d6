package storage

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/opencompute/supersea/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestSaveAndListRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rules := []model.Rule{
		{
			ID:              "r1",
			IncludeAuctions: true,
			MinPrice:        big.NewRat(1, 2),
			MaxPrice:        big.NewRat(3, 1),
			LowestRarity:    model.TierRare,
			Traits:          []model.TraitSelector{{Group: "Fur", Value: "Gold"}},
			CreatedAt:       created,
		},
		{
			ID:           "r2",
			LowestRarity: model.TierCommon,
			CreatedAt:    created.Add(time.Minute),
		},
	}
	for _, r := range rules {
		if err := s.SaveRule(ctx, "cool-cats", r); err != nil {
			t.Fatalf("save rule %s: %v", r.ID, err)
		}
	}

	got, err := s.ListRules(ctx, "cool-cats")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if diff := cmp.Diff(rules, got, cmp.Comparer(func(a, b *big.Rat) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	})); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	other, err := s.ListRules(ctx, "bored-apes")
	if err != nil {
		t.Fatalf("list rules for other collection: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no rules for other collection, got %d", len(other))
	}
}

func TestSaveRuleReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rule := model.Rule{ID: "r1", LowestRarity: model.TierCommon, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := s.SaveRule(ctx, "cool-cats", rule); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	// Writing the same id again (e.g. a rule restored at startup) replaces
	// the row instead of failing or duplicating.
	rule.LowestRarity = model.TierRare
	if err := s.SaveRule(ctx, "cool-cats", rule); err != nil {
		t.Fatalf("re-save rule: %v", err)
	}

	got, err := s.ListRules(ctx, "cool-cats")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rule count = %d, want 1", len(got))
	}
	if got[0].LowestRarity != model.TierRare {
		t.Errorf("rarity = %s, want replaced value", got[0].LowestRarity)
	}
}

func TestDeleteRule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rule := model.Rule{ID: "r1", LowestRarity: model.TierCommon, CreatedAt: time.Now()}
	if err := s.SaveRule(ctx, "cool-cats", rule); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	if err := s.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("delete rule: %v", err)
	}

	got, err := s.ListRules(ctx, "cool-cats")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rules after delete, got %d", len(got))
	}

	// Deleting an unknown id is not an error.
	if err := s.DeleteRule(ctx, "missing"); err != nil {
		t.Errorf("delete unknown rule: %v", err)
	}
}

func TestSaveMatchedAssetIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	asset := model.MatchedAsset{
		FeedEvent: model.FeedEvent{
			ListingID:       "l1",
			TokenID:         "42",
			ContractAddress: "0xabc",
			Name:            "Cat #42",
			Image:           "https://img.example/42.png",
			Price:           "1500000000000000000",
			Currency:        "ETH",
			Timestamp:       "2024-05-01T12:00:00",
		},
		NotifiedAt: time.Date(2024, 5, 1, 12, 0, 3, 0, time.UTC),
	}

	if err := s.SaveMatchedAsset(ctx, "cool-cats", asset); err != nil {
		t.Fatalf("save asset: %v", err)
	}
	// Second save of the same listing must not duplicate the row.
	if err := s.SaveMatchedAsset(ctx, "cool-cats", asset); err != nil {
		t.Fatalf("save asset again: %v", err)
	}

	got, err := s.ListMatchedAssets(ctx, "cool-cats", 0)
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	if diff := cmp.Diff([]model.MatchedAsset{asset}, got); diff != "" {
		t.Errorf("assets mismatch (-want +got):\n%s", diff)
	}
}

func TestListMatchedAssetsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"l1", "l2", "l3"} {
		asset := model.MatchedAsset{
			FeedEvent: model.FeedEvent{
				ListingID:       id,
				TokenID:         id,
				ContractAddress: "0xabc",
				Name:            "Token " + id,
				Price:           "1000000000000000000",
				Currency:        "ETH",
				Timestamp:       "2024-05-01T12:00:00",
			},
			NotifiedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveMatchedAsset(ctx, "cool-cats", asset); err != nil {
			t.Fatalf("save asset %s: %v", id, err)
		}
	}

	got, err := s.ListMatchedAssets(ctx, "cool-cats", 2)
	if err != nil {
		t.Fatalf("list assets: %v", err)
	}
	var ids []string
	for _, a := range got {
		ids = append(ids, a.ListingID)
	}
	if diff := cmp.Diff([]string{"l3", "l2"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
