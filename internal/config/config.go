package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host         string
	Port         int
	DBPath       string
	UploadsDir   string
	ProcessedDir string
	OutputDir    string
	RawMailDir   string

	FileTTLMin       int
	SweepIntervalSec int
	MaxUploadMB      int
	AllowedOrigins   []string
	FrontendURL      string

	SourceTimeoutMs    int
	SourceRateLimitRPS int
	SourceMaxMB        int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnvInt("PORT", 8000),
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		UploadsDir:   getEnv("UPLOADS_DIR", filepath.Join(cwd, "data", "uploads")),
		ProcessedDir: getEnv("PROCESSED_DIR", filepath.Join(cwd, "data", "processed")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		RawMailDir:   getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),

		FileTTLMin:       getEnvInt("FILE_TTL_MIN", 60),
		SweepIntervalSec: getEnvInt("SWEEP_INTERVAL_SEC", 300),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 32),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{
			"https://tinashe-code.github.io",
			"http://localhost:8000",
			"http://localhost:3000",
			"*",
		}),
		FrontendURL: getEnv("FRONTEND_URL", "https://tinashe-code.github.io/KMLverification/"),

		SourceTimeoutMs:    getEnvInt("SOURCE_TIMEOUT_MS", 30000),
		SourceRateLimitRPS: getEnvInt("SOURCE_RATE_LIMIT_RPS", 2),
		SourceMaxMB:        getEnvInt("SOURCE_MAX_MB", 64),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) FileTTL() time.Duration {
	return time.Duration(c.FileTTLMin) * time.Minute
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
