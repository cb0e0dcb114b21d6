// Package storage defines the persistence interface and its implementations.
// The store is the durable counterpart of the in-memory session state: rules
// and matched assets survive daemon restarts.
package storage

import (
	"context"

	"github.com/opencompute/supersea/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	SaveRule(ctx context.Context, collectionSlug string, rule model.Rule) error
	ListRules(ctx context.Context, collectionSlug string) ([]model.Rule, error)
	DeleteRule(ctx context.Context, id string) error

	SaveMatchedAsset(ctx context.Context, collectionSlug string, asset model.MatchedAsset) error
	ListMatchedAssets(ctx context.Context, collectionSlug string, limit int) ([]model.MatchedAsset, error)

	Close() error
}
