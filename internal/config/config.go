package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"rebatedesk/internal"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	ExtractionAPIBaseURL   string
	ExtractionAPIKey       string
	ExtractionModel        string
	ExtractionTimeoutMs    int
	ExtractionRateLimitRPS int

	RefCodeColumn         string
	RefSubsidiaryColumn   string
	RefCompensationColumn string

	DetectThreshold float64
	KnownSenders    []string
	MailFromFilter  string

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
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ExtractionAPIBaseURL:   getEnv("EXTRACTION_API_BASE_URL", "https://api.openai.com/v1"),
		ExtractionAPIKey:       getEnv("EXTRACTION_API_KEY", ""),
		ExtractionModel:        getEnv("EXTRACTION_MODEL", "gpt-4o"),
		ExtractionTimeoutMs:    getEnvInt("EXTRACTION_TIMEOUT_MS", 60000),
		ExtractionRateLimitRPS: getEnvInt("EXTRACTION_RATE_LIMIT_RPS", 2),

		RefCodeColumn:         getEnv("REF_CODE_COLUMN", "manufacturer_product_code"),
		RefSubsidiaryColumn:   getEnv("REF_SUBSIDIARY_COLUMN", "subsidiary"),
		RefCompensationColumn: getEnv("REF_COMPENSATION_COLUMN", "compensation_required"),

		DetectThreshold: getEnvFloat("DETECT_THRESHOLD", 0.45),
		KnownSenders:    getEnvList("KNOWN_SENDERS"),
		MailFromFilter:  getEnv("MAIL_FROM_FILTER", ""),

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

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "gmail"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

// ReferenceColumns bundles the configured reference column names for the
// lookup builder.
func (c Config) ReferenceColumns() internal.ReferenceColumns {
	return internal.ReferenceColumns{
		Code:                 c.RefCodeColumn,
		Subsidiary:           c.RefSubsidiaryColumn,
		RequiredCompensation: c.RefCompensationColumn,
	}
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
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

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
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

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
