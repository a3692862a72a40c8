package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	LogLevel       string

	PhabricatorHost string // Conduit API root, e.g. http://ph.your.domain/api/
	PhabricatorUser string
	PhabricatorCert string

	SlackAPIBase      string // overridable for tests
	SlackAuthToken    string
	SlackCommandToken string // shared secret checked on /switch

	EmailDomain       string
	RefreshInterval   time.Duration // directory map staleness bound
	BotName           string
	BotAvatarURL      string
	DisabledUsersFile string

	// RS256 key pair for the admin API. Optional: when the files are missing
	// the admin routes are simply not mounted.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiryHours    int
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		PhabricatorHost: getEnv("PHABRICATOR_HOST", ""),
		PhabricatorUser: getEnv("PHABRICATOR_USER", ""),
		PhabricatorCert: getEnv("PHABRICATOR_CERT", ""),

		SlackAPIBase:      getEnv("SLACK_API_BASE", "https://slack.com/api"),
		SlackAuthToken:    getEnv("SLACK_AUTH_TOKEN", ""),
		SlackCommandToken: getEnv("SLACK_COMMAND_TOKEN", ""),

		EmailDomain:       getEnv("EMAIL_DOMAIN", ""),
		RefreshInterval:   time.Duration(getEnvInt("SLACK_EMAIL_REFRESH_INTERVAL", 3600)) * time.Second,
		BotName:           getEnv("SLACK_BOT_NAME", "Phabricator"),
		BotAvatarURL:      getEnv("SLACK_BOT_ICON", ""),
		DisabledUsersFile: getEnv("SLACK_DISABLED_USERS_FILE", "./disabled_users.txt"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiryHours:    getEnvInt("JWT_EXPIRY_HOURS", 24),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
