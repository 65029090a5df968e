package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	STTProviderWhisper = "whisper"
	STTProviderOpenAI  = "openai"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		URL string
	}
	Redis struct {
		Addr       string
		Password   string
		DB         int
		SessionTTL time.Duration
	}
	Triage struct {
		RulesPath            string
		UrgentOnsetHours     float64
		SemiUrgentOnsetHours float64
	}
	Beds struct {
		Total           int
		LowThreshold    int
		RefreshInterval time.Duration
	}
	STT struct {
		Provider string
		URL      string
		Timeout  time.Duration
	}
	OpenAI struct {
		APIKey  string
		BaseURL string
		Model   string
	}
	Telegram struct {
		Token        string
		BaseURL      string
		DoctorChatID int64
	}
	MQTT struct {
		Broker   string
		ClientID string
		Username string
		Password string
		Topic    string
	}
	Report struct {
		FontPath string
	}
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Empty DATABASE_URL, REDIS_ADDR, MQTT_BROKER or
// TELEGRAM_BOT_TOKEN disable the matching integration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":"+getEnv("PORT", "8080"))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Database.URL = getEnv("DATABASE_URL", "")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.SessionTTL = getEnvDuration("CAPTURE_SESSION_TTL", 15*time.Minute)

	cfg.Triage.RulesPath = getEnv("TRIAGE_RULES_PATH", "")
	cfg.Triage.UrgentOnsetHours = getEnvFloat("TRIAGE_URGENT_ONSET_HOURS", 3)
	cfg.Triage.SemiUrgentOnsetHours = getEnvFloat("TRIAGE_SEMI_URGENT_ONSET_HOURS", 12)

	cfg.Beds.Total = getEnvInt("BEDS_TOTAL", 25)
	cfg.Beds.LowThreshold = getEnvInt("BEDS_LOW_THRESHOLD", 5)
	cfg.Beds.RefreshInterval = getEnvDuration("BEDS_REFRESH_INTERVAL", 5*time.Second)

	cfg.STT.Provider = getEnv("STT_PROVIDER", STTProviderWhisper)
	cfg.STT.URL = getEnv("STT_URL", "http://stt:8000/transcribe")
	cfg.STT.Timeout = getEnvDuration("STT_TIMEOUT", 60*time.Second)

	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", "")
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")

	cfg.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.BaseURL = getEnv("TELEGRAM_API_URL", "")
	cfg.Telegram.DoctorChatID = getEnvInt64("DOCTOR_CHAT_ID", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "neuro-triage")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_BEDS_TOPIC", "neuro-triage/beds")

	cfg.Report.FontPath = getEnv("REPORT_FONT_PATH", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.STT.Provider {
	case STTProviderWhisper:
	case STTProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("STT_PROVIDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STT.Provider)
	}
	if c.Triage.UrgentOnsetHours < 0 || c.Triage.SemiUrgentOnsetHours < 0 {
		return fmt.Errorf("triage onset thresholds must not be negative")
	}
	if c.Beds.Total <= 0 {
		return fmt.Errorf("BEDS_TOTAL must be positive, got %d", c.Beds.Total)
	}
	if c.Beds.LowThreshold < 0 {
		return fmt.Errorf("BEDS_LOW_THRESHOLD must not be negative, got %d", c.Beds.LowThreshold)
	}
	if c.Beds.RefreshInterval <= 0 {
		return fmt.Errorf("BEDS_REFRESH_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or bare seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
