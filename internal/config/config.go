package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	RewardModeTable   = "table"
	RewardModeUniform = "uniform"
)

type Config struct {
	BotToken string
	AdminID  int64

	DBDriver   string
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
	SQLitePath string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	WebhookURL            string
	WebhookSecret         string
	// WebhookCheckIP restricts webhook callers to Telegram's subnets.
	WebhookCheckIP        bool
	// WebhookTrustedProxies may report the caller via X-Forwarded-For.
	WebhookTrustedProxies []string
	Port                  string

	Location         *time.Location
	RewardMode       string
	RewardMin        int64
	RewardMax        int64
	DailyBonus       int64
	MinWithdrawal    int64
	ReferralSpins    int64
	SpinAnimationURL string

	LogLevel string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg := &Config{
		BotToken:              getEnv("TELEGRAM_BOT_TOKEN", ""),
		DBDriver:              strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "spin_bot"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		SQLitePath:            getEnv("SQLITE_PATH", "spin_bot.db"),
		RedisEnabled:          getEnvBool("REDIS_ENABLED", true),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		WebhookURL:            getEnv("WEBHOOK_URL", ""),
		WebhookSecret:         getEnv("WEBHOOK_SECRET", ""),
		WebhookCheckIP:        getEnvBool("WEBHOOK_CHECK_IP", true),
		WebhookTrustedProxies: getEnvList("WEBHOOK_TRUSTED_PROXIES"),
		Port:                  getEnv("PORT", "10000"),
		RewardMode:            strings.ToLower(getEnv("REWARD_MODE", RewardModeTable)),
		RewardMin:             getEnvInt("REWARD_MIN", 1000),
		RewardMax:             getEnvInt("REWARD_MAX", 10000),
		DailyBonus:            getEnvInt("DAILY_BONUS", 5000),
		MinWithdrawal:         getEnvInt("MIN_WITHDRAWAL", 100000),
		ReferralSpins:         getEnvInt("REFERRAL_SPINS", 1),
		SpinAnimationURL:      getEnv("SPIN_ANIMATION_URL", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	adminID, err := strconv.ParseInt(getEnv("ADMIN_ID", ""), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_ID must be a numeric telegram id: %w", err)
	}
	cfg.AdminID = adminID

	tz := getEnv("TIMEZONE", "Asia/Tashkent")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.RewardMode {
	case RewardModeTable, RewardModeUniform:
	default:
		return nil, fmt.Errorf("unsupported REWARD_MODE %q", cfg.RewardMode)
	}
	if cfg.RewardMode == RewardModeUniform && cfg.RewardMin > cfg.RewardMax {
		return nil, fmt.Errorf("REWARD_MIN (%d) is greater than REWARD_MAX (%d)", cfg.RewardMin, cfg.RewardMax)
	}
	if cfg.RewardMode == RewardModeUniform && cfg.RewardMin < 0 {
		return nil, fmt.Errorf("REWARD_MIN must not be negative, got %d", cfg.RewardMin)
	}
	for key, v := range map[string]int64{
		"DAILY_BONUS":    cfg.DailyBonus,
		"MIN_WITHDRAWAL": cfg.MinWithdrawal,
		"REFERRAL_SPINS": cfg.ReferralSpins,
	} {
		if v < 0 {
			return nil, fmt.Errorf("%s must not be negative, got %d", key, v)
		}
	}

	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return nil, fmt.Errorf("WEBHOOK_URL must be an absolute https URL, got %q", cfg.WebhookURL)
		}
		if cfg.WebhookSecret == "" {
			return nil, fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
		}
	}

	return cfg, nil
}

// PostgresDSN builds the DSN used by the postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// WebhookPath is the URL path of WebhookURL, "/" when it has none.
func (c *Config) WebhookPath() string {
	u, err := url.Parse(c.WebhookURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warnf("Invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warnf("Invalid %s=%q, using default %t", key, raw, fallback)
		return fallback
	}
	return v
}
