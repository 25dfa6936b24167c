package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Token of the Telegram bot
	Token string
	// Chat that receives reminder notifications, 0 disables them
	ChatID int64
	// Users allowed to run admin commands such as /import
	AdminUserIDs map[int64]bool
	// Long polling timeout in seconds
	UpdateTimeout int
	// How long an unfinished quiz or card session is kept
	SessionTTL time.Duration
	// Number of cards per /cards session
	CardsPerSession int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		AdminUserIDs:    make(map[int64]bool),
		UpdateTimeout:   60,
		SessionTTL:      time.Hour * 1,
		CardsPerSession: 10,
	}
}

// NewConfig returns the default configuration for the given token, chat and admins
func NewConfig(token string, chatID int64, adminIDs []int64) *BotConfig {
	cfg := DefaultConfig()
	cfg.Token = token
	cfg.ChatID = chatID
	for _, id := range adminIDs {
		cfg.AdminUserIDs[id] = true
	}
	return cfg
}
