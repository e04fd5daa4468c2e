package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("Expected default Ollama base URL, got '%s'", cfg.OllamaBaseURL)
	}

	if cfg.OllamaModel != "gemma3:4b" {
		t.Errorf("Expected default model 'gemma3:4b', got '%s'", cfg.OllamaModel)
	}

	if cfg.MorningDeliveryHour != 8 || cfg.EveningDeliveryHour != 18 {
		t.Errorf("Expected delivery hours 8/18, got %d/%d", cfg.MorningDeliveryHour, cfg.EveningDeliveryHour)
	}

	if cfg.DeliveryTimezone != "Asia/Calcutta" {
		t.Errorf("Expected timezone 'Asia/Calcutta', got '%s'", cfg.DeliveryTimezone)
	}

	if cfg.MaxArticleAge != 36*time.Hour {
		t.Errorf("Expected max article age 36h, got %v", cfg.MaxArticleAge)
	}

	if cfg.TwilioAPIBase != "https://api.twilio.com" {
		t.Errorf("Expected default Twilio API base, got '%s'", cfg.TwilioAPIBase)
	}

	if cfg.MessagingConfigured() {
		t.Error("Expected messaging to be unconfigured by default")
	}

	for _, category := range CategoryOrder {
		if len(cfg.Feeds[category]) != 3 {
			t.Errorf("Expected 3 default feeds for %s, got %d", category, len(cfg.Feeds[category]))
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	os.Setenv("MORNING_DELIVERY_HOUR", "6")
	os.Setenv("EVENING_DELIVERY_HOUR", "20")
	os.Setenv("FEEDS_SCIENCE", "https://example.com/a.rss, https://example.com/b.rss")
	os.Setenv("OLLAMA_TEMPERATURE", "0.7")
	os.Setenv("EXTRACT_CONTENT", "true")
	defer os.Unsetenv("MORNING_DELIVERY_HOUR")
	defer os.Unsetenv("EVENING_DELIVERY_HOUR")
	defer os.Unsetenv("FEEDS_SCIENCE")
	defer os.Unsetenv("OLLAMA_TEMPERATURE")
	defer os.Unsetenv("EXTRACT_CONTENT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MorningDeliveryHour != 6 || cfg.EveningDeliveryHour != 20 {
		t.Errorf("Expected delivery hours 6/20, got %d/%d", cfg.MorningDeliveryHour, cfg.EveningDeliveryHour)
	}

	if len(cfg.Feeds["science"]) != 2 {
		t.Errorf("Expected 2 overridden science feeds, got %d", len(cfg.Feeds["science"]))
	}

	if cfg.OllamaTemperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", cfg.OllamaTemperature)
	}

	if !cfg.ExtractContent {
		t.Error("Expected content extraction to be enabled")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name       string
		setupEnv   map[string]string
		expectErr  bool
		errorField string
	}{
		{
			name:      "defaults are valid",
			setupEnv:  map[string]string{},
			expectErr: false,
		},
		{
			name:       "morning hour out of range",
			setupEnv:   map[string]string{"MORNING_DELIVERY_HOUR": "24"},
			expectErr:  true,
			errorField: "MORNING_DELIVERY_HOUR",
		},
		{
			name: "morning after evening",
			setupEnv: map[string]string{
				"MORNING_DELIVERY_HOUR": "20",
				"EVENING_DELIVERY_HOUR": "8",
			},
			expectErr:  true,
			errorField: "MORNING_DELIVERY_HOUR",
		},
		{
			name:       "bad timezone",
			setupEnv:   map[string]string{"DELIVERY_TIMEZONE": "Mars/Olympus"},
			expectErr:  true,
			errorField: "DELIVERY_TIMEZONE",
		},
		{
			name:       "partial twilio settings",
			setupEnv:   map[string]string{"TWILIO_ACCOUNT_SID": "AC123"},
			expectErr:  true,
			errorField: "TWILIO_ACCOUNT_SID",
		},
		{
			name: "complete twilio settings",
			setupEnv: map[string]string{
				"TWILIO_ACCOUNT_SID":        "AC123",
				"TWILIO_AUTH_TOKEN":         "token",
				"TWILIO_PHONE_NUMBER":       "+14155551234",
				"WHATSAPP_RECIPIENT_NUMBER": "+919876543210",
			},
			expectErr: false,
		},
		{
			name: "invalid recipient number",
			setupEnv: map[string]string{
				"TWILIO_ACCOUNT_SID":        "AC123",
				"TWILIO_AUTH_TOKEN":         "token",
				"TWILIO_PHONE_NUMBER":       "+14155551234",
				"WHATSAPP_RECIPIENT_NUMBER": "98765",
			},
			expectErr:  true,
			errorField: "WHATSAPP_RECIPIENT_NUMBER",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for key, value := range test.setupEnv {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range test.setupEnv {
					os.Unsetenv(key)
				}
			}()

			_, err := Load()
			if test.expectErr && err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !test.expectErr && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if test.expectErr {
				cfgErr, ok := err.(*ConfigError)
				if !ok {
					t.Fatalf("Expected *ConfigError, got %T", err)
				}
				if cfgErr.Field != test.errorField {
					t.Errorf("Expected error field '%s', got '%s'", test.errorField, cfgErr.Field)
				}
			}
		})
	}
}

func TestMessagingConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.MessagingConfigured() {
		t.Error("Expected empty config to report messaging unconfigured")
	}

	cfg.TwilioAccountSID = "AC123"
	cfg.TwilioAuthToken = "token"
	cfg.TwilioPhoneNumber = "+14155551234"
	cfg.WhatsAppRecipientNumber = "+919876543210"
	if !cfg.MessagingConfigured() {
		t.Error("Expected fully set config to report messaging configured")
	}
}

func TestValidPhoneNumber(t *testing.T) {
	tests := []struct {
		number   string
		expected bool
	}{
		{"+14155551234", true},
		{"+919876543210", true},
		{"14155551234", false},
		{"+0123456", false},
		{"+1", false},
		{"", false},
		{"whatsapp:+14155551234", false},
	}

	for _, test := range tests {
		if got := ValidPhoneNumber(test.number); got != test.expected {
			t.Errorf("ValidPhoneNumber(%q) = %v, expected %v", test.number, got, test.expected)
		}
	}
}

func TestParseStringSlice(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{"a, b , c ", []string{"a", "b", "c"}},
		{"a,,b", []string{"a", "b"}},
	}

	for _, test := range tests {
		result := parseStringSlice(test.input)
		if len(result) != len(test.expected) {
			t.Errorf("For input '%s', expected length %d, got %d", test.input, len(test.expected), len(result))
			continue
		}
		for i, expected := range test.expected {
			if result[i] != expected {
				t.Errorf("For input '%s', expected[%d] = '%s', got '%s'", test.input, i, expected, result[i])
			}
		}
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{DeliveryTimezone: "Asia/Calcutta"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Failed to resolve timezone: %v", err)
	}
	if loc.String() != "Asia/Calcutta" {
		t.Errorf("Expected 'Asia/Calcutta', got '%s'", loc.String())
	}
}
