// Package notifier implements the listing notifier engine: a polling loop
// over the marketplace feed that matches new listings against the active
// rule set, deduplicates them, and delivers notifications.
package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opencompute/supersea/internal/filter"
	"github.com/opencompute/supersea/internal/model"
	"github.com/opencompute/supersea/internal/notify"
	"github.com/opencompute/supersea/internal/rules"
	"github.com/opencompute/supersea/internal/session"
)

const (
	// DefaultPollInterval is the fixed tick spacing of the poll loop.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxRetries is the failed-fetch threshold after which polling
	// stops permanently for the session.
	DefaultMaxRetries = 15
	// startBuffer is subtracted from the initial poll cursor so events
	// created between session start and the first tick are not missed.
	startBuffer = 5 * time.Second
	// pollTimeLayout is ISO-8601 with millisecond precision and the
	// trailing Z stripped, as the feed endpoint expects.
	pollTimeLayout = "2006-01-02T15:04:05.000"
)

// FeedClient fetches listing events for a collection created after the
// given window lower bound.
type FeedClient interface {
	FetchListings(ctx context.Context, collectionSlug, since string) ([]model.FeedEvent, error)
}

// Resolver provides rarity and trait data for rule evaluation.
type Resolver interface {
	CollectionAddress(ctx context.Context, slug string) (string, error)
	Resolve(ctx context.Context, address string, elevated bool) (*model.RarityData, error)
	MatchingTokenIDs(ctx context.Context, address string, selectors []model.TraitSelector) (map[string]struct{}, error)
}

// Deliverer dispatches a notification, best-effort.
type Deliverer interface {
	Send(ctx context.Context, n notify.Notification)
}

// SoundPlayer plays the audio cue for a matched listing.
type SoundPlayer interface {
	Play()
}

// Config holds the per-session engine settings.
type Config struct {
	CollectionSlug string
	// MarketplaceURL is the base URL used for notification click-throughs.
	MarketplaceURL string
	PollInterval   time.Duration
	MaxRetries     int
	// Elevated enables the full rank/trait rarity queries. Without it the
	// resolver returns degraded data and rarity predicates pass through.
	Elevated bool
}

// Engine drives one collection session. All state is owned by the session;
// construct a new Engine when the collection changes.
type Engine struct {
	cfg      Config
	feed     FeedClient
	resolver Resolver
	deliver  Deliverer
	sound    SoundPlayer
	cache    *session.Cache
	log      *slog.Logger

	// Audio cues fire at most once per second regardless of batch size.
	soundLimiter *rate.Limiter

	mu               sync.Mutex
	rules            *rules.Store
	rarities         *model.RarityData
	cursor           string
	seen             map[string]bool
	matched          []model.MatchedAsset
	retries          int
	status           model.PollStatus
	playSound        bool
	sendNotification bool
	// gen tags in-flight polls; results arriving after the session has
	// moved on are discarded.
	gen uint64

	onMatched     func(model.MatchedAsset)
	onRuleAdded   func(model.Rule)
	onRuleRemoved func(id string)

	wake chan struct{}
	now  func() time.Time
}

// New creates an engine for the given collection. If the session cache holds
// a snapshot for the same collection it is restored; otherwise the engine
// starts from default empty state. The cache may be nil for a throwaway
// session.
func New(cfg Config, feed FeedClient, resolver Resolver, deliver Deliverer, sound SoundPlayer, cache *session.Cache, log *slog.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	e := &Engine{
		cfg:              cfg,
		feed:             feed,
		resolver:         resolver,
		deliver:          deliver,
		sound:            sound,
		cache:            cache,
		log:              log,
		soundLimiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		rules:            rules.NewStore(),
		seen:             make(map[string]bool),
		status:           model.StatusStarting,
		playSound:        true,
		sendNotification: true,
		wake:             make(chan struct{}, 1),
		now:              time.Now,
	}

	if cache != nil {
		if snap, ok := cache.Restore(cfg.CollectionSlug); ok {
			e.rules.Replace(snap.Rules, snap.MatchIndex)
			e.rarities = snap.Rarities
			e.cursor = snap.PollCursor
			e.seen = copySeen(snap.Seen)
			e.matched = copyMatched(snap.MatchedAssets)
			e.playSound = snap.PlaySound
			e.sendNotification = snap.SendNotification
		}
	}
	return e
}

// Run drives the poll loop, blocking until ctx is cancelled. The timer only
// runs while at least one rule is active and the engine has not failed; it
// re-arms when a rule is added.
func (e *Engine) Run(ctx context.Context) {
	go e.resolveRarities(ctx)

	var ticker *time.Ticker
	var tickC <-chan time.Time

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		// Late in-flight results must not mutate state after teardown.
		e.mu.Lock()
		e.gen++
		e.mu.Unlock()
		e.snapshot()
	}()

	for {
		if e.shouldPoll() {
			if ticker == nil {
				e.ensureCursor()
				ticker = time.NewTicker(e.cfg.PollInterval)
				tickC = ticker.C
			}
		} else if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-tickC:
			// A slow fetch must not block the timer; overlapping polls
			// are absorbed by dedup.
			go e.poll(ctx)
		}
	}
}

func (e *Engine) shouldPoll() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status != model.StatusFailed && e.rules.Len() > 0
}

func (e *Engine) ensureCursor() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor == "" {
		e.cursor = e.pollTime(startBuffer)
	}
}

// pollTime formats now minus buffer as a feed window bound.
func (e *Engine) pollTime(buffer time.Duration) string {
	return e.now().Add(-buffer).UTC().Format(pollTimeLayout)
}

func (e *Engine) poll(ctx context.Context) {
	e.mu.Lock()
	if e.status == model.StatusFailed || e.rules.Len() == 0 {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	cursor := e.cursor
	activeRules := e.rules.List()
	index := e.rules.MatchIndex()
	rarities := e.rarities
	e.mu.Unlock()

	// The next cursor is fixed before the fetch so a slow response cannot
	// shift the window. The half-interval overlap trades duplicate delivery
	// (absorbed by dedup) for completeness under feed propagation delay.
	nextCursor := e.pollTime(e.cfg.PollInterval / 2)

	events, err := e.feed.FetchListings(ctx, e.cfg.CollectionSlug, cursor)
	if err != nil {
		e.recordFailure(gen, err)
		return
	}
	e.processBatch(ctx, gen, nextCursor, events, activeRules, rarities, index)
}

func (e *Engine) recordFailure(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.retries++
	retries := e.retries
	failed := false
	if e.retries >= e.cfg.MaxRetries && e.status != model.StatusFailed {
		e.status = model.StatusFailed
		failed = true
	}
	e.mu.Unlock()

	e.log.Error("poll failed", "collection", e.cfg.CollectionSlug, "attempt", retries, "error", err)
	if failed {
		e.log.Error("poll failure threshold reached, stopping", "collection", e.cfg.CollectionSlug)
		e.wakeLoop()
	}
}

func (e *Engine) processBatch(ctx context.Context, gen uint64, nextCursor string, events []model.FeedEvent, activeRules []model.Rule, rarities *model.RarityData, index filter.MatchIndex) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	// Any single success clears accumulated failures.
	e.retries = 0
	if e.status == model.StatusStarting {
		e.status = model.StatusActive
	}
	// The cursor never moves backwards; an overlapping slow poll may land
	// after a faster one.
	if nextCursor > e.cursor {
		e.cursor = nextCursor
	}

	var batch []model.MatchedAsset
	for _, ev := range events {
		if e.seen[ev.ListingID] {
			continue
		}
		if !ev.Valid() {
			e.log.Warn("dropping malformed feed event", "listing_id", ev.ListingID)
			continue
		}
		if !filter.MatchAny(ev, activeRules, rarities, index) {
			continue
		}
		e.seen[ev.ListingID] = true
		batch = append(batch, model.MatchedAsset{FeedEvent: ev, NotifiedAt: e.now()})
	}
	if len(batch) > 0 {
		// Prepend, newest batch first, batch-internal order preserved.
		e.matched = append(copyMatched(batch), e.matched...)
	}
	sendNotification := e.sendNotification
	playSound := e.playSound
	onMatched := e.onMatched
	e.mu.Unlock()

	// Delivery is best-effort and happens outside the lock; a channel
	// failure never rolls back the seen-set or the display list.
	for _, asset := range batch {
		if sendNotification {
			e.deliver.Send(ctx, notify.ForListing(asset.FeedEvent, e.cfg.MarketplaceURL))
		}
		if playSound && e.sound != nil && e.soundLimiter.Allow() {
			e.sound.Play()
		}
		if onMatched != nil {
			onMatched(asset)
		}
	}

	if len(batch) > 0 {
		e.log.Info("matched listings", "collection", e.cfg.CollectionSlug, "count", len(batch))
	}
	e.snapshot()
}

// resolveRarities performs the one-shot rank/trait resolution. The poll loop
// never waits on it: until it completes, rarity predicates pass vacuously.
func (e *Engine) resolveRarities(ctx context.Context) {
	e.mu.Lock()
	if e.rarities != nil {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	e.mu.Unlock()

	address, err := e.resolver.CollectionAddress(ctx, e.cfg.CollectionSlug)
	if err != nil {
		e.log.Warn("collection address resolution failed", "collection", e.cfg.CollectionSlug, "error", err)
		return
	}
	data, err := e.resolver.Resolve(ctx, address, e.cfg.Elevated)
	if err != nil {
		e.log.Warn("rarity resolution failed", "collection", e.cfg.CollectionSlug, "error", err)
		return
	}

	e.mu.Lock()
	if gen == e.gen && e.rarities == nil {
		e.rarities = data
	}
	e.mu.Unlock()
	e.snapshot()
}

// AddRule adds a rule to the active set and arms the poll loop. For a rule
// with trait selectors the matching token-id set is resolved now; if that
// resolution fails the rule stays in the set but matches nothing until a
// session restart.
func (e *Engine) AddRule(ctx context.Context, rule model.Rule) model.Rule {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}
	if rule.LowestRarity == "" {
		rule.LowestRarity = model.TierCommon
	}

	var tokens map[string]struct{}
	if rule.HasTraits() {
		address, err := e.resolver.CollectionAddress(ctx, e.cfg.CollectionSlug)
		if err == nil {
			tokens, err = e.resolver.MatchingTokenIDs(ctx, address, rule.Traits)
		}
		if err != nil {
			e.log.Warn("trait match set unresolved, rule inert", "rule_id", rule.ID, "error", err)
		}
	}

	e.mu.Lock()
	e.rules.Add(rule)
	if tokens != nil {
		e.rules.SetMatchIndex(rule.ID, tokens)
	}
	added := e.onRuleAdded
	e.mu.Unlock()

	if added != nil {
		added(rule)
	}
	e.wakeLoop()
	e.snapshot()
	return rule
}

// RemoveRule deletes a rule and its match index entry. When the last rule is
// removed the poll timer is cancelled.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	removed := e.rules.Remove(id)
	fn := e.onRuleRemoved
	e.mu.Unlock()

	if removed && fn != nil {
		fn(id)
	}
	e.wakeLoop()
	e.snapshot()
}

// Rules returns the active rules in insertion order.
func (e *Engine) Rules() []model.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.List()
}

// MatchedAssets returns the display list, newest first.
func (e *Engine) MatchedAssets() []model.MatchedAsset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyMatched(e.matched)
}

// Status returns the poll scheduler state.
func (e *Engine) Status() model.PollStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetPlaySound toggles the audio cue.
func (e *Engine) SetPlaySound(v bool) {
	e.mu.Lock()
	e.playSound = v
	e.mu.Unlock()
	e.snapshot()
}

// SetSendNotification toggles notification delivery. Matching and the
// display list are unaffected.
func (e *Engine) SetSendNotification(v bool) {
	e.mu.Lock()
	e.sendNotification = v
	e.mu.Unlock()
	e.snapshot()
}

// OnMatched registers a callback invoked for every listing promoted to the
// display list, independent of the notification toggle. The daemon uses it
// to persist matched assets.
func (e *Engine) OnMatched(fn func(model.MatchedAsset)) {
	e.mu.Lock()
	e.onMatched = fn
	e.mu.Unlock()
}

// OnRuleAdded registers a callback invoked with the finalized rule (id and
// creation time assigned) for every rule that enters the active set. The
// daemon uses it to persist rules.
func (e *Engine) OnRuleAdded(fn func(model.Rule)) {
	e.mu.Lock()
	e.onRuleAdded = fn
	e.mu.Unlock()
}

// OnRuleRemoved registers a callback invoked when a rule leaves the active
// set. It does not fire for unknown ids.
func (e *Engine) OnRuleRemoved(fn func(id string)) {
	e.mu.Lock()
	e.onRuleRemoved = fn
	e.mu.Unlock()
}

func (e *Engine) wakeLoop() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// snapshot captures the full session state into the cache, whole-swap.
func (e *Engine) snapshot() {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	snap := &session.Snapshot{
		CollectionSlug:   e.cfg.CollectionSlug,
		Rules:            e.rules.List(),
		MatchIndex:       e.rules.MatchIndex(),
		Rarities:         e.rarities,
		PollCursor:       e.cursor,
		Seen:             copySeen(e.seen),
		MatchedAssets:    copyMatched(e.matched),
		PlaySound:        e.playSound,
		SendNotification: e.sendNotification,
	}
	e.mu.Unlock()
	e.cache.Store(snap)
}

func copySeen(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyMatched(in []model.MatchedAsset) []model.MatchedAsset {
	out := make([]model.MatchedAsset, len(in))
	copy(out, in)
	return out
}
