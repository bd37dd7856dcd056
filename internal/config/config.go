package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the application
type Config struct {
	// Root directory for saves, logs and the history database
	DataDir string
	SaveDir string
	LogDir  string
	// Number of save slots offered to the player
	MaxSaveSlots int

	// Answer history database
	HistoryEnabled bool
	DBType         string // "sqlite" or "postgres"
	DBPath         string // sqlite file
	DatabaseURL    string // postgres DSN

	// Scheduled jobs
	AutosaveInterval      time.Duration
	ReminderInterval      time.Duration
	NotificationStartHour int
	NotificationEndHour   int

	// Review reminders over Telegram
	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

// DefaultConfig returns the configuration used when no environment is set
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir:               dataDir,
		SaveDir:               filepath.Join(dataDir, "saves"),
		LogDir:                filepath.Join(dataDir, "logs"),
		MaxSaveSlots:          6,
		HistoryEnabled:        true,
		DBType:                "sqlite",
		DBPath:                filepath.Join(dataDir, "history.db"),
		AutosaveInterval:      5 * time.Minute,
		ReminderInterval:      time.Hour,
		NotificationStartHour: 8,
		NotificationEndHour:   22,
		LogLevel:              "info",
	}
}

// Load reads .env (if present) and the process environment on top of the defaults
func Load() *Config {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if dir := os.Getenv("NQ_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
		cfg.SaveDir = filepath.Join(dir, "saves")
		cfg.LogDir = filepath.Join(dir, "logs")
		cfg.DBPath = filepath.Join(dir, "history.db")
	}
	if n := envInt("NQ_MAX_SAVE_SLOTS", 0); n > 0 {
		cfg.MaxSaveSlots = n
	}

	if v := os.Getenv("NQ_HISTORY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.HistoryEnabled = enabled
		}
	}
	if dbType := strings.ToLower(os.Getenv("DB_TYPE")); dbType != "" {
		cfg.DBType = dbType
	}
	if path := os.Getenv("NQ_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.AutosaveInterval = envDuration("NQ_AUTOSAVE_INTERVAL", cfg.AutosaveInterval)
	cfg.ReminderInterval = envDuration("NQ_REMINDER_INTERVAL", cfg.ReminderInterval)

	if h := envInt("NOTIFICATION_START_HOUR", -1); h >= 0 && h <= 23 {
		cfg.NotificationStartHour = h
	}
	if h := envInt("NOTIFICATION_END_HOUR", -1); h >= 0 && h <= 23 {
		cfg.NotificationEndHour = h
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg
}

// RemindersEnabled reports whether both Telegram settings are present
func (c *Config) RemindersEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "NihongoQuest")
	}
	return filepath.Join(home, ".local", "share", "NihongoQuest")
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
