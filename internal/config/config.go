package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	PollSchedule string // "hourly", "daily", or a 6-field cron expression
	TimeZone     string

	// Database configuration
	DatabaseDSN string

	// Outbound HTTP configuration
	HTTPTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Forum platform credentials
	ForumClientID     string
	ForumClientSecret string
	ForumTokenURL     string
	ForumAPIBase      string
	ForumCommunities  []string

	// Microblog platform credentials
	MicroblogClientID     string
	MicroblogClientSecret string
	MicroblogTokenURL     string
	MicroblogAPIBase      string
	MicroblogWindow       time.Duration

	// Video platform credentials
	VideoClientID     string
	VideoClientSecret string
	VideoRefreshToken string
	VideoTokenURL     string
	VideoAPIBase      string
	VideoAPIKey       string

	// Place review platform credentials
	PlaceAPIKey  string
	PlaceAPIBase string

	// Sentiment analysis
	OpenAIAPIKey     string
	SentimentModel   string
	SentimentTimeout time.Duration

	// Crisis scoring
	CrisisThreshold float64
	EngagementCap   float64
	VelocityCap     float64
	MinCrisisLength int

	// Polling cycle
	BatchSize            int
	BatchDelay           time.Duration
	MaxConcurrentFetches int
	MaxPages             int
	AlertBatchLimit      int
	CycleBudget          time.Duration

	// Alert delivery
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	AlertFromEmail  string
	SMSGatewayURL   string
	SMSGatewayToken string

	// Azure Storage configuration (cycle report archive)
	StorageAccount   string
	StorageContainer string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Debug:        getBoolEnv("DEBUG", false),
		PollSchedule: getEnv("POLL_SCHEDULE", "hourly"),
		TimeZone:     getEnv("TIMEZONE", "UTC"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		HTTPTimeout:    getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:     getIntEnv("HTTP_MAX_RETRIES", 3),
		RetryBaseDelay: getDurationEnv("HTTP_RETRY_BASE_DELAY", time.Second),

		ForumClientID:     getEnv("FORUM_CLIENT_ID", ""),
		ForumClientSecret: getEnv("FORUM_CLIENT_SECRET", ""),
		ForumTokenURL:     getEnv("FORUM_TOKEN_URL", "https://www.reddit.com/api/v1/access_token"),
		ForumAPIBase:      getEnv("FORUM_API_BASE", ""),
		ForumCommunities:  getSliceEnv("FORUM_COMMUNITIES", []string{"all"}),

		MicroblogClientID:     getEnv("MICROBLOG_CLIENT_ID", ""),
		MicroblogClientSecret: getEnv("MICROBLOG_CLIENT_SECRET", ""),
		MicroblogTokenURL:     getEnv("MICROBLOG_TOKEN_URL", "https://api.twitter.com/oauth2/token"),
		MicroblogAPIBase:      getEnv("MICROBLOG_API_BASE", ""),
		MicroblogWindow:       getDurationEnv("MICROBLOG_WINDOW", 24*time.Hour),

		VideoClientID:     getEnv("VIDEO_CLIENT_ID", ""),
		VideoClientSecret: getEnv("VIDEO_CLIENT_SECRET", ""),
		VideoRefreshToken: getEnv("VIDEO_REFRESH_TOKEN", ""),
		VideoTokenURL:     getEnv("VIDEO_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		VideoAPIBase:      getEnv("VIDEO_API_BASE", ""),
		VideoAPIKey:       getEnv("VIDEO_API_KEY", ""),

		PlaceAPIKey:  getEnv("PLACE_API_KEY", ""),
		PlaceAPIBase: getEnv("PLACE_API_BASE", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		SentimentModel:   getEnv("SENTIMENT_MODEL", "gpt-4o-mini"),
		SentimentTimeout: getDurationEnv("SENTIMENT_TIMEOUT", 10*time.Second),

		CrisisThreshold: getFloatEnv("CRISIS_THRESHOLD", 0.7),
		EngagementCap:   getFloatEnv("ENGAGEMENT_CAP", 500),
		VelocityCap:     getFloatEnv("VELOCITY_CAP", 100),
		MinCrisisLength: getIntEnv("MIN_CRISIS_LENGTH", 100),

		BatchSize:            getIntEnv("POLL_BATCH_SIZE", 10),
		BatchDelay:           getDurationEnv("POLL_BATCH_DELAY", time.Second),
		MaxConcurrentFetches: getIntEnv("POLL_MAX_CONCURRENT_FETCHES", 4),
		MaxPages:             getIntEnv("POLL_MAX_PAGES", 3),
		AlertBatchLimit:      getIntEnv("ALERT_BATCH_LIMIT", 20),
		CycleBudget:          getDurationEnv("POLL_CYCLE_BUDGET", 30*time.Minute),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getIntEnv("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		AlertFromEmail:  getEnv("ALERT_FROM_EMAIL", ""),
		SMSGatewayURL:   getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayToken: getEnv("SMS_GATEWAY_TOKEN", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "cycle-reports"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}

	if c.CrisisThreshold <= 0 || c.CrisisThreshold > 1 {
		return fmt.Errorf("CRISIS_THRESHOLD must be in (0, 1]")
	}

	switch c.PollSchedule {
	case "hourly", "daily":
	default:
		if len(strings.Fields(c.PollSchedule)) != 6 {
			return fmt.Errorf("POLL_SCHEDULE must be 'hourly', 'daily', or a 6-field cron expression")
		}
	}

	// Half-configured platform credentials are a deployment mistake, not
	// a disabled platform. Fail fast instead of silently skipping.
	if (c.ForumClientID == "") != (c.ForumClientSecret == "") {
		return fmt.Errorf("FORUM_CLIENT_ID and FORUM_CLIENT_SECRET must be set together")
	}
	if (c.MicroblogClientID == "") != (c.MicroblogClientSecret == "") {
		return fmt.Errorf("MICROBLOG_CLIENT_ID and MICROBLOG_CLIENT_SECRET must be set together")
	}
	if c.VideoEnabled() {
		if c.VideoClientID == "" || c.VideoClientSecret == "" || c.VideoRefreshToken == "" {
			return fmt.Errorf("VIDEO_CLIENT_ID, VIDEO_CLIENT_SECRET and VIDEO_REFRESH_TOKEN must be set together")
		}
	}

	if c.AlertFromEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_FROM_EMAIL is set")
		}
	}

	if !c.ForumEnabled() && !c.MicroblogEnabled() && !c.VideoEnabled() && !c.PlaceReviewEnabled() {
		return fmt.Errorf("at least one platform must be configured")
	}

	return nil
}

// ForumEnabled reports whether the forum platform is configured.
func (c *Config) ForumEnabled() bool {
	return c.ForumClientID != "" && c.ForumClientSecret != ""
}

// MicroblogEnabled reports whether the microblog platform is configured.
func (c *Config) MicroblogEnabled() bool {
	return c.MicroblogClientID != "" && c.MicroblogClientSecret != ""
}

// VideoEnabled reports whether the video platform is configured.
func (c *Config) VideoEnabled() bool {
	return c.VideoClientID != "" || c.VideoClientSecret != "" || c.VideoRefreshToken != ""
}

// PlaceReviewEnabled reports whether the place review platform is
// configured.
func (c *Config) PlaceReviewEnabled() bool {
	return c.PlaceAPIKey != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
