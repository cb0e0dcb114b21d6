// Package model defines the domain types used across the application.
package model

import (
	"math/big"
	"time"
)

// RarityTier is a discrete rarity bucket derived from a token's rank and the
// collection's total token count.
type RarityTier string

// Rarity tiers, rarest first. TierCommon doubles as the "no rarity filter"
// sentinel on a Rule.
const (
	TierLegendary RarityTier = "Legendary"
	TierEpic      RarityTier = "Epic"
	TierRare      RarityTier = "Rare"
	TierUncommon  RarityTier = "Uncommon"
	TierCommon    RarityTier = "Common"
)

// TraitSelector identifies a required metadata attribute as a (group, value)
// pair. A rule with selectors matches only tokens carrying every pair.
type TraitSelector struct {
	Group string
	Value string
}

// Rule is a user-defined subscription filter describing which listings should
// trigger a notification. Rules are immutable once added except for deletion.
type Rule struct {
	ID string
	// IncludeAuctions controls whether auction-style (alternate-currency)
	// listings pass the auction gate.
	IncludeAuctions bool
	// MinPrice and MaxPrice are inclusive bounds in ETH. Nil means unbounded.
	MinPrice *big.Rat
	MaxPrice *big.Rat
	// LowestRarity is the minimum rarity tier required. TierCommon means no
	// rarity filter.
	LowestRarity RarityTier
	// Traits is the AND-ed set of required trait selectors. Empty means no
	// trait filter. A rule with selectors matches nothing until its match
	// index has been built.
	Traits    []TraitSelector
	CreatedAt time.Time
}

// HasTraits reports whether the rule carries a trait filter.
func (r Rule) HasTraits() bool {
	return len(r.Traits) > 0
}

// FeedEvent is one observed listing from the marketplace feed.
type FeedEvent struct {
	ListingID       string
	TokenID         string
	ContractAddress string
	Name            string
	Image           string
	// Price is the listing price as an integer wei string.
	Price     string
	Currency  string
	Timestamp string
}

// Valid reports whether the event carries every field the pipeline requires.
func (e FeedEvent) Valid() bool {
	return e.ListingID != "" && e.TokenID != "" && e.ContractAddress != "" && e.Price != "" && e.Currency != ""
}

// MatchedAsset is a feed event that satisfied at least one active rule and
// was promoted to the display list.
type MatchedAsset struct {
	FeedEvent
	NotifiedAt time.Time
}

// Trait is one entry of a collection's trait vocabulary.
type Trait struct {
	TraitType string
	Value     string
	Count     int
}

// RarityData is the per-collection rank mapping and trait vocabulary used by
// rule predicates. Immutable once fetched for a given collection.
type RarityData struct {
	// TokenRanks maps token id to numeric rank (1 = rarest). Empty under
	// degraded (non-elevated) access.
	TokenRanks map[string]int
	TokenCount int
	IsRanked   bool
	Traits     []Trait
}

// PollStatus describes the poll scheduler's state machine.
type PollStatus string

// Poll scheduler states. StatusFailed is terminal for the session.
const (
	StatusStarting PollStatus = "starting"
	StatusActive   PollStatus = "active"
	StatusFailed   PollStatus = "failed"
)
