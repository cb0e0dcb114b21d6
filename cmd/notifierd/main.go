// Command notifierd watches a marketplace collection for new listings
// matching the configured rules and delivers notifications.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/opencompute/supersea/internal/config"
	"github.com/opencompute/supersea/internal/feed"
	"github.com/opencompute/supersea/internal/model"
	"github.com/opencompute/supersea/internal/notifier"
	"github.com/opencompute/supersea/internal/notify"
	"github.com/opencompute/supersea/internal/rarity"
	"github.com/opencompute/supersea/internal/rules"
	"github.com/opencompute/supersea/internal/session"
	"github.com/opencompute/supersea/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	selectors, err := feed.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		log.Error("load selectors", "error", err)
		os.Exit(1)
	}

	var senders []notify.Sender
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Error("create telegram sender", "error", err)
			os.Exit(1)
		}
		senders = append(senders, tg)
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		log.Warn("no notification channels configured, matches will only be recorded")
	}

	var sound notifier.SoundPlayer
	if cfg.PlaySound {
		sound = notify.NewBellPlayer()
	}

	engine := notifier.New(
		notifier.Config{
			CollectionSlug: cfg.CollectionSlug,
			MarketplaceURL: cfg.MarketplaceURL,
			PollInterval:   cfg.PollInterval,
			Elevated:       cfg.Elevated,
		},
		feed.NewClient(cfg.FeedEndpoint, selectors, nil),
		rarity.NewClient(cfg.RarityEndpoint, cfg.RarityAPIKey, nil),
		notify.NewDispatcher(senders, log),
		sound,
		session.NewCache(),
		log,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine.OnMatched(func(asset model.MatchedAsset) {
		if err := store.SaveMatchedAsset(ctx, cfg.CollectionSlug, asset); err != nil {
			log.Error("save matched asset", "listing_id", asset.ListingID, "error", err)
		}
	})
	engine.OnRuleAdded(func(rule model.Rule) {
		if err := store.SaveRule(ctx, cfg.CollectionSlug, rule); err != nil {
			log.Error("save rule", "rule_id", rule.ID, "error", err)
		}
	})
	engine.OnRuleRemoved(func(id string) {
		if err := store.DeleteRule(ctx, id); err != nil {
			log.Error("delete rule", "rule_id", id, "error", err)
		}
	})

	saved, err := store.ListRules(ctx, cfg.CollectionSlug)
	if err != nil {
		log.Error("load rules", "error", err)
		os.Exit(1)
	}
	for _, rule := range saved {
		engine.AddRule(ctx, rule)
	}

	// A fresh database can be seeded from a rules file; once rules are
	// persisted the database is authoritative.
	if len(saved) == 0 && cfg.RulesPath != "" {
		seed, err := rules.LoadFile(cfg.RulesPath)
		if err != nil {
			log.Error("load rules file", "path", cfg.RulesPath, "error", err)
			os.Exit(1)
		}
		for _, rule := range seed {
			engine.AddRule(ctx, rule)
		}
		log.Info("seeded rules", "path", cfg.RulesPath, "count", len(seed))
	}

	recent, err := store.ListMatchedAssets(ctx, cfg.CollectionSlug, 1)
	if err != nil {
		log.Error("load match history", "error", err)
		os.Exit(1)
	}
	if len(recent) > 0 {
		log.Info("resuming watch", "last_match", recent[0].ListingID, "notified_at", recent[0].NotifiedAt)
	}

	log.Info("starting notifier", "collection", cfg.CollectionSlug, "rules", len(engine.Rules()))

	engine.Run(ctx)

	log.Info("notifier stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
