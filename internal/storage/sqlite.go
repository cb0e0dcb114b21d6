package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/opencompute/supersea/internal/model"
	"github.com/opencompute/supersea/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveRule persists a rule for the given collection. Saving an id that is
// already stored replaces the row, so rules restored at startup can be
// written back through the same path.
func (s *SQLite) SaveRule(ctx context.Context, collectionSlug string, rule model.Rule) error {
	traits, err := json.Marshal(rule.Traits)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rules (id, collection_slug, include_auctions, min_price, max_price, lowest_rarity, traits, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, collectionSlug, boolToInt(rule.IncludeAuctions),
		ratToString(rule.MinPrice), ratToString(rule.MaxPrice),
		string(rule.LowestRarity), string(traits),
		rule.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// ListRules returns the rules persisted for a collection in insertion order.
func (s *SQLite) ListRules(ctx context.Context, collectionSlug string) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, include_auctions, min_price, max_price, lowest_rarity, traits, created_at
		 FROM rules WHERE collection_slug = ? ORDER BY created_at, id`, collectionSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Rule
	for rows.Next() {
		var r model.Rule
		var includeAuctions int
		var minPrice, maxPrice sql.NullString
		var rarityStr, traitsStr, createdStr string
		if err := rows.Scan(&r.ID, &includeAuctions, &minPrice, &maxPrice, &rarityStr, &traitsStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.IncludeAuctions = includeAuctions == 1
		r.MinPrice = ratFromNullString(minPrice)
		r.MaxPrice = ratFromNullString(maxPrice)
		r.LowestRarity = model.RarityTier(rarityStr)
		if err := json.Unmarshal([]byte(traitsStr), &r.Traits); err != nil {
			return nil, fmt.Errorf("unmarshal traits: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRule removes a rule by its ID.
func (s *SQLite) DeleteRule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// SaveMatchedAsset records a delivered listing. Saving the same listing
// twice is a no-op, mirroring the engine's dedup.
func (s *SQLite) SaveMatchedAsset(ctx context.Context, collectionSlug string, asset model.MatchedAsset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO matched_assets
		 (listing_id, collection_slug, token_id, contract_address, name, image_url, price_wei, currency, event_timestamp, notified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ListingID, collectionSlug, asset.TokenID, asset.ContractAddress,
		asset.Name, asset.Image, asset.Price, asset.Currency, asset.Timestamp,
		asset.NotifiedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert matched asset: %w", err)
	}
	return nil
}

// ListMatchedAssets returns recorded listings for a collection, newest
// first. A non-positive limit returns all rows.
func (s *SQLite) ListMatchedAssets(ctx context.Context, collectionSlug string, limit int) ([]model.MatchedAsset, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT listing_id, token_id, contract_address, name, image_url, price_wei, currency, event_timestamp, notified_at
		 FROM matched_assets WHERE collection_slug = ?
		 ORDER BY notified_at DESC, listing_id DESC LIMIT ?`, collectionSlug, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query matched assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.MatchedAsset
	for rows.Next() {
		var a model.MatchedAsset
		var notifiedStr string
		if err := rows.Scan(&a.ListingID, &a.TokenID, &a.ContractAddress, &a.Name, &a.Image, &a.Price, &a.Currency, &a.Timestamp, &notifiedStr); err != nil {
			return nil, fmt.Errorf("scan matched asset: %w", err)
		}
		a.NotifiedAt, _ = time.Parse(timeLayout, notifiedStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ratToString(r *big.Rat) any {
	if r == nil {
		return nil
	}
	return r.RatString()
}

func ratFromNullString(s sql.NullString) *big.Rat {
	if !s.Valid || s.String == "" {
		return nil
	}
	r, ok := new(big.Rat).SetString(s.String)
	if !ok {
		return nil
	}
	return r
}
