// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	// CollectionSlug is the marketplace collection the notifier watches.
	CollectionSlug string
	FeedEndpoint   string
	RarityEndpoint string
	RarityAPIKey   string
	MarketplaceURL string
	SelectorsPath  string
	// RulesPath points at an optional JSON file of rule definitions used to
	// seed a database that holds no rules for the collection yet.
	RulesPath string

	PollInterval time.Duration
	Elevated     bool

	TelegramBotToken  string
	TelegramChatID    int64
	DiscordWebhookURL string

	DatabasePath string
	LogLevel     string
	PlaySound    bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	slug := os.Getenv("COLLECTION_SLUG")
	if slug == "" {
		return nil, fmt.Errorf("COLLECTION_SLUG is required")
	}

	feedEndpoint := os.Getenv("FEED_ENDPOINT")
	if feedEndpoint == "" {
		return nil, fmt.Errorf("FEED_ENDPOINT is required")
	}

	rarityEndpoint := os.Getenv("RARITY_ENDPOINT")
	if rarityEndpoint == "" {
		return nil, fmt.Errorf("RARITY_ENDPOINT is required")
	}

	marketplaceURL := os.Getenv("MARKETPLACE_URL")
	if marketplaceURL == "" {
		marketplaceURL = "https://opensea.io"
	}

	pollInterval := 3 * time.Second
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", raw)
		}
		pollInterval = d
	}

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		chatID = id
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token != "" && chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/notifier.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		CollectionSlug:    slug,
		FeedEndpoint:      feedEndpoint,
		RarityEndpoint:    rarityEndpoint,
		RarityAPIKey:      os.Getenv("RARITY_API_KEY"),
		MarketplaceURL:    marketplaceURL,
		SelectorsPath:     os.Getenv("SELECTORS_PATH"),
		RulesPath:         os.Getenv("RULES_PATH"),
		PollInterval:      pollInterval,
		Elevated:          boolEnv("ELEVATED_ACCESS"),
		TelegramBotToken:  token,
		TelegramChatID:    chatID,
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		DatabasePath:      dbPath,
		LogLevel:          logLevel,
		PlaySound:         !boolEnv("DISABLE_SOUND"),
	}, nil
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	}
	return false
}
