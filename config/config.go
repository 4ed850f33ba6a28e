package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the API server and the clarification worker need
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	AI        AIConfig        `yaml:"ai"`
	Redis     RedisConfig     `yaml:"redis"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Worker    WorkerConfig    `yaml:"worker"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	GinMode     string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the libpq connection string used by both gorm and pq.Listener
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret              string `yaml:"jwt_secret"`
	AccessTokenExpireMin   int    `yaml:"access_token_expire_minutes"`
	RefreshTokenExpireDays int    `yaml:"refresh_token_expire_days"`
}

type AIConfig struct {
	// Provider is one of "openrouter", "gemini" or "none"
	Provider           string        `yaml:"provider"`
	OpenRouterAPIKey   string        `yaml:"openrouter_api_key"`
	OpenRouterModel    string        `yaml:"openrouter_model"`
	OpenRouterBaseURL  string        `yaml:"openrouter_base_url"`
	OpenRouterReferer  string        `yaml:"openrouter_referer"`
	OpenRouterTitle    string        `yaml:"openrouter_title"`
	GeminiAPIKey       string        `yaml:"gemini_api_key"`
	GeminiModel        string        `yaml:"gemini_model"`
	ClarifierTimeout   time.Duration `yaml:"clarifier_timeout"`
	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`
}

type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type TelephonyConfig struct {
	AccountSID    string `yaml:"account_sid"`
	AuthToken     string `yaml:"auth_token"`
	FromNumber    string `yaml:"from_number"`
	BaseURL       string `yaml:"base_url"`
	PublicBaseURL string `yaml:"public_base_url"`
	WebhookToken  string `yaml:"webhook_token"`
}

type WorkerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	Channel      string        `yaml:"channel"`
}

type AnalyticsConfig struct {
	MaxTrendDays int `yaml:"max_trend_days"`
}

// Defaults returns a Config populated with the values used when neither the
// YAML file nor the environment set a key
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8070",
			Name:        "Multilingual Survey API",
			Environment: "development",
			GinMode:     "release",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "survey",
			SSLMode: "disable",
		},
		Auth: AuthConfig{
			AccessTokenExpireMin:   30,
			RefreshTokenExpireDays: 7,
		},
		AI: AIConfig{
			Provider:           "",
			OpenRouterModel:    "openai/gpt-4o-mini",
			OpenRouterBaseURL:  "https://openrouter.ai/api/v1",
			OpenRouterReferer:  "https://survey.local",
			OpenRouterTitle:    "Multilingual Survey",
			GeminiModel:        "gemini-2.5-flash",
			ClarifierTimeout:   30 * time.Second,
			BreakerMaxFailures: 5,
			BreakerCooldown:    60 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 60 * time.Second,
		},
		Telephony: TelephonyConfig{
			BaseURL: "https://api.twilio.com/2010-04-01",
		},
		Worker: WorkerConfig{
			Enabled:      true,
			PollInterval: 2 * time.Second,
			StaleAfter:   10 * time.Minute,
			Channel:      "survey_responses_channel",
		},
		Analytics: AnalyticsConfig{
			MaxTrendDays: 365,
		},
	}
}

// Load reads .env, then an optional YAML file (CONFIG_FILE), then environment
// variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  [Config] No .env file found, using system environment variables")
	} else {
		log.Println("✅ [Config] .env file loaded successfully")
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		log.Printf("[Config] Loaded %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Name, "SERVER_NAME")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Server.GinMode, "GIN_MODE")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setInt(&c.Auth.AccessTokenExpireMin, "ACCESS_TOKEN_EXPIRE_MINUTES")
	setInt(&c.Auth.RefreshTokenExpireDays, "REFRESH_TOKEN_EXPIRE_DAYS")

	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setString(&c.AI.OpenRouterModel, "OPENROUTER_MODEL")
	setString(&c.AI.OpenRouterBaseURL, "OPENROUTER_BASE_URL")
	setString(&c.AI.OpenRouterReferer, "OPENROUTER_HTTP_REFERER")
	setString(&c.AI.OpenRouterTitle, "OPENROUTER_X_TITLE")
	setString(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.AI.GeminiModel, "GEMINI_MODEL")
	setMillis(&c.AI.ClarifierTimeout, "AI_TIMEOUT_MS")
	setInt(&c.AI.BreakerMaxFailures, "AI_BREAKER_MAX_FAILURES")
	setMillis(&c.AI.BreakerCooldown, "AI_BREAKER_COOLDOWN_MS")

	setString(&c.Redis.URL, "REDIS_URL")
	setMillis(&c.Redis.TTL, "REDIS_TTL_MS")

	setString(&c.Telephony.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&c.Telephony.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.Telephony.FromNumber, "TWILIO_PHONE_NUMBER")
	setString(&c.Telephony.BaseURL, "TWILIO_BASE_URL")
	setString(&c.Telephony.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.Telephony.WebhookToken, "VOICE_WEBHOOK_TOKEN")

	setBool(&c.Worker.Enabled, "WORKER_ENABLED")
	setMillis(&c.Worker.PollInterval, "WORKER_POLL_INTERVAL_MS")
	setMillis(&c.Worker.StaleAfter, "WORKER_STALE_AFTER_MS")
	setString(&c.Worker.Channel, "WORKER_CHANNEL")

	setInt(&c.Analytics.MaxTrendDays, "ANALYTICS_MAX_TREND_DAYS")
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.AI.ClarifierTimeout <= 0 {
		return fmt.Errorf("clarifier timeout must be positive")
	}
	switch strings.ToLower(c.AI.Provider) {
	case "", "none", "openrouter", "gemini":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER: %s (valid options: openrouter, gemini, none)", c.AI.Provider)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		} else {
			log.Printf("⚠️  [Config] Ignoring %s=%q: %v", key, v, err)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		} else {
			log.Printf("⚠️  [Config] Ignoring %s=%q: %v", key, v, err)
		}
	}
}

// setMillis mirrors the AI_TIMEOUT_MS convention: durations come in as
// integer milliseconds
func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(parsed) * time.Millisecond
		} else {
			log.Printf("⚠️  [Config] Ignoring %s=%q: %v", key, v, err)
		}
	}
}
