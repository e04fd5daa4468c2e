package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Canonical category names, in digest section order.
var CategoryOrder = []string{"technology", "business", "science", "world"}

// Default feed URLs per category.
var defaultFeeds = map[string][]string{
	"technology": {
		"https://rss.cnn.com/rss/edition_technology.rss",
		"https://feeds.feedburner.com/TechCrunch",
		"https://www.theverge.com/rss/index.xml",
	},
	"business": {
		"https://rss.cnn.com/rss/edition_business.rss",
		"https://feeds.feedburner.com/businessinsider",
		"https://www.ft.com/rss/home/uk",
	},
	"science": {
		"https://rss.cnn.com/rss/edition_space.rss",
		"https://www.sciencenews.org/feed",
		"https://www.nature.com/nature.rss",
	},
	"world": {
		"https://rss.cnn.com/rss/edition_world.rss",
		"https://feeds.bbci.co.uk/news/world/rss.xml",
		"https://www.aljazeera.com/xml/rss/all.xml",
	},
}

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Host string `json:"host"`
	Port string `json:"port"`

	// Ollama settings
	OllamaBaseURL     string        `json:"ollama_base_url"`
	OllamaModel       string        `json:"ollama_model"`
	OllamaTimeout     time.Duration `json:"ollama_timeout"`
	OllamaMaxTokens   int           `json:"ollama_max_tokens"`
	OllamaTemperature float64       `json:"ollama_temperature"`
	OllamaWarmup      bool          `json:"ollama_warmup"`

	// Twilio WhatsApp settings
	TwilioAccountSID        string `json:"-"` // Don't expose in JSON
	TwilioAuthToken         string `json:"-"` // Don't expose in JSON
	TwilioAPIBase           string `json:"twilio_api_base"`
	TwilioPhoneNumber       string `json:"twilio_phone_number"`
	WhatsAppRecipientNumber string `json:"whatsapp_recipient_number"`

	// Delivery schedule
	MorningDeliveryHour int    `json:"morning_delivery_hour"`
	EveningDeliveryHour int    `json:"evening_delivery_hour"`
	DeliveryTimezone    string `json:"delivery_timezone"`

	// RSS settings
	Feeds                  map[string][]string `json:"feeds"`
	RSSFetchTimeout        time.Duration       `json:"rss_fetch_timeout"`
	MaxArticlesPerCategory int                 `json:"max_articles_per_category"`
	MaxArticleAge          time.Duration       `json:"max_article_age"`
	ExtractContent         bool                `json:"extract_content"`

	// Summary and message limits
	MaxContentLength int `json:"max_content_length"`
	MaxSummaryLength int `json:"max_summary_length"`
	MaxMessageLength int `json:"max_message_length"`

	// Delivery extras
	DeliveryConfirmation bool          `json:"delivery_confirmation"`
	DedupeEnabled        bool          `json:"dedupe_enabled"`
	DedupeWindow         time.Duration `json:"dedupe_window"`

	// Supervisor settings
	OllamaServeCommand  string        `json:"ollama_serve_command"`
	WorkerCommand       string        `json:"worker_command"`
	HealthMaxRetries    int           `json:"health_max_retries"`
	HealthRetryInterval time.Duration `json:"health_retry_interval"`
	MonitorInterval     time.Duration `json:"monitor_interval"`
	LockFile            string        `json:"lock_file"`

	// Logging
	LogLevel string `json:"log_level"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              getEnvOrDefault("PORT", "8080"),
		OllamaBaseURL:     getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnvOrDefault("OLLAMA_MODEL", "gemma3:4b"),
		OllamaTimeout:     getEnvOrDefaultSeconds("OLLAMA_TIMEOUT_SECONDS", 60),
		OllamaMaxTokens:   getEnvOrDefaultInt("OLLAMA_MAX_TOKENS", 500),
		OllamaTemperature: getEnvOrDefaultFloat("OLLAMA_TEMPERATURE", 0.3),
		OllamaWarmup:      getEnvOrDefaultBool("OLLAMA_WARMUP", true),

		TwilioAccountSID:        getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioAPIBase:           getEnvOrDefault("TWILIO_API_BASE", "https://api.twilio.com"),
		TwilioPhoneNumber:       getEnvOrDefault("TWILIO_PHONE_NUMBER", ""),
		WhatsAppRecipientNumber: getEnvOrDefault("WHATSAPP_RECIPIENT_NUMBER", ""),

		MorningDeliveryHour: getEnvOrDefaultInt("MORNING_DELIVERY_HOUR", 8),
		EveningDeliveryHour: getEnvOrDefaultInt("EVENING_DELIVERY_HOUR", 18),
		DeliveryTimezone:    getEnvOrDefault("DELIVERY_TIMEZONE", "Asia/Calcutta"),

		Feeds:                  loadFeeds(),
		RSSFetchTimeout:        getEnvOrDefaultSeconds("RSS_FETCH_TIMEOUT_SECONDS", 30),
		MaxArticlesPerCategory: getEnvOrDefaultInt("RSS_MAX_ARTICLES_PER_CATEGORY", 10),
		MaxArticleAge:          getEnvOrDefaultHours("RSS_MAX_ARTICLE_AGE_HOURS", 36),
		ExtractContent:         getEnvOrDefaultBool("EXTRACT_CONTENT", false),

		MaxContentLength: getEnvOrDefaultInt("MAX_CONTENT_LENGTH", 2000),
		MaxSummaryLength: getEnvOrDefaultInt("MAX_SUMMARY_LENGTH", 200),
		MaxMessageLength: getEnvOrDefaultInt("MAX_MESSAGE_LENGTH", 4000),

		DeliveryConfirmation: getEnvOrDefaultBool("DELIVERY_CONFIRMATION", true),
		DedupeEnabled:        getEnvOrDefaultBool("DEDUPE_ENABLED", false),
		DedupeWindow:         getEnvOrDefaultHours("DEDUPE_WINDOW_HOURS", 24),

		OllamaServeCommand:  getEnvOrDefault("OLLAMA_SERVE_COMMAND", "ollama serve"),
		WorkerCommand:       getEnvOrDefault("WORKER_COMMAND", "news-agent-server"),
		HealthMaxRetries:    getEnvOrDefaultInt("HEALTH_MAX_RETRIES", 30),
		HealthRetryInterval: getEnvOrDefaultSeconds("HEALTH_RETRY_INTERVAL_SECONDS", 2),
		MonitorInterval:     getEnvOrDefaultSeconds("MONITOR_INTERVAL_SECONDS", 60),
		LockFile:            getEnvOrDefault("SUPERVISOR_LOCK_FILE", "/tmp/news-agent.lock"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return config, config.validate()
}

// loadFeeds builds the category -> feed URL map from defaults and
// FEEDS_<CATEGORY> environment overrides.
func loadFeeds() map[string][]string {
	feeds := make(map[string][]string, len(CategoryOrder))
	for _, category := range CategoryOrder {
		envKey := "FEEDS_" + strings.ToUpper(category)
		if value := os.Getenv(envKey); value != "" {
			feeds[category] = parseStringSlice(value)
		} else {
			feeds[category] = append([]string(nil), defaultFeeds[category]...)
		}
	}
	return feeds
}

// validate checks if required configuration values are present and sane
func (c *Config) validate() error {
	if c.MorningDeliveryHour < 0 || c.MorningDeliveryHour > 23 {
		return &ConfigError{Field: "MORNING_DELIVERY_HOUR", Message: "must be between 0 and 23"}
	}
	if c.EveningDeliveryHour < 0 || c.EveningDeliveryHour > 23 {
		return &ConfigError{Field: "EVENING_DELIVERY_HOUR", Message: "must be between 0 and 23"}
	}
	if c.MorningDeliveryHour >= c.EveningDeliveryHour {
		return &ConfigError{Field: "MORNING_DELIVERY_HOUR", Message: "morning hour must be before evening hour"}
	}
	if _, err := time.LoadLocation(c.DeliveryTimezone); err != nil {
		return &ConfigError{Field: "DELIVERY_TIMEZONE", Message: "unknown timezone " + c.DeliveryTimezone}
	}
	if c.OllamaModel == "" {
		return &ConfigError{Field: "OLLAMA_MODEL", Message: "model identifier is required"}
	}
	if c.MaxArticlesPerCategory <= 0 {
		return &ConfigError{Field: "RSS_MAX_ARTICLES_PER_CATEGORY", Message: "must be positive"}
	}
	if c.HealthMaxRetries <= 0 {
		return &ConfigError{Field: "HEALTH_MAX_RETRIES", Message: "must be positive"}
	}

	// Twilio settings are optional, but partial configuration is a mistake.
	twilioSet := 0
	for _, v := range []string{c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioPhoneNumber, c.WhatsAppRecipientNumber} {
		if v != "" {
			twilioSet++
		}
	}
	if twilioSet > 0 && twilioSet < 4 {
		return &ConfigError{Field: "TWILIO_ACCOUNT_SID", Message: "Twilio settings must be set together (account SID, auth token, phone number, recipient)"}
	}
	if c.TwilioPhoneNumber != "" && !phonePattern.MatchString(c.TwilioPhoneNumber) {
		return &ConfigError{Field: "TWILIO_PHONE_NUMBER", Message: "must be E.164 format, e.g. +14155551234"}
	}
	if c.WhatsAppRecipientNumber != "" && !phonePattern.MatchString(c.WhatsAppRecipientNumber) {
		return &ConfigError{Field: "WHATSAPP_RECIPIENT_NUMBER", Message: "must be E.164 format, e.g. +919876543210"}
	}

	return nil
}

// MessagingConfigured reports whether all Twilio settings are present.
func (c *Config) MessagingConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" &&
		c.TwilioPhoneNumber != "" && c.WhatsAppRecipientNumber != ""
}

// Location resolves the configured delivery timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DeliveryTimezone)
}

// ValidPhoneNumber reports whether a number is in E.164 format.
func ValidPhoneNumber(number string) bool {
	return phonePattern.MatchString(number)
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default if not set
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultBool returns environment variable value as bool or default if not set
func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultSeconds reads an integer number of seconds as a duration
func getEnvOrDefaultSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvOrDefaultInt(key, defaultSeconds)) * time.Second
}

// getEnvOrDefaultHours reads an integer number of hours as a duration
func getEnvOrDefaultHours(key string, defaultHours int) time.Duration {
	return time.Duration(getEnvOrDefaultInt(key, defaultHours)) * time.Hour
}

// parseStringSlice parses comma-separated string into slice
func parseStringSlice(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
