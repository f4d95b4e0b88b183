package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Environment  string

	DiscordToken      string
	GuildID           string
	PostChannels      map[string]string
	ChannelCategory   string
	ReconcileDelay    time.Duration
	WatchInterval     time.Duration
	IdleGrace         time.Duration
	CandidateCap      int
	SweepSpec         string
	AdminEmail        string
	AdminPasswordHash string
}

// New sets up all config related services
func New() *Config {
	// .env is optional, the real environment wins
	_ = godotenv.Load()

	env := getEnvOrDefault("ENVIRONMENT", "production")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:               os.Getenv("DB_URI"),
		DatabaseName:      os.Getenv("DB_NAME"),
		BaseURL:           os.Getenv("BASE_URL"),
		Port:              getEnvOrDefault("PORT", "8080"),
		Environment:       env,
		DiscordToken:      os.Getenv("DISCORD_BOT_TOKEN"),
		GuildID:           os.Getenv("DISCORD_GUILD_ID"),
		PostChannels:      parseChannelMap(os.Getenv("LFG_POST_CHANNELS")),
		ChannelCategory:   os.Getenv("LFG_CATEGORY_ID"),
		ReconcileDelay:    getDurationOrDefault("LFG_RECONCILE_DELAY", 60*time.Second),
		WatchInterval:     getDurationOrDefault("LFG_WATCH_INTERVAL", 5*time.Second),
		IdleGrace:         getDurationOrDefault("LFG_IDLE_GRACE", 60*time.Second),
		CandidateCap:      getIntOrDefault("LFG_CANDIDATE_CAP", 100),
		SweepSpec:         getEnvOrDefault("LFG_SWEEP_SPEC", "@every 1m"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
}

// PostChannel returns the advertisement channel for a platform, falling back to "Other"
func (c *Config) PostChannel(platform string) (string, bool) {
	if id, ok := c.PostChannels[platform]; ok {
		return id, true
	}
	id, ok := c.PostChannels["Other"]
	return id, ok
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

// parseChannelMap reads "PC=123,Xbox=456" into a platform to channel map
func parseChannelMap(raw string) map[string]string {
	m := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		zap.S().Warnw("invalid duration, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return d
}

func getIntOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		zap.S().Warnw("invalid integer, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return n
}
