package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL          = "/chatkit"
	DefaultDomainKey       = "domain_pk_localhost_dev"
	DefaultThemeStorageKey = "chatkit-boilerplate-theme"
	DefaultBackendURL      = "http://127.0.0.1:8000"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

var defaultAllowedHosts = []string{
	"localhost",
	"127.0.0.1",
	".railway.app",
	".ngrok.io",
	".trycloudflare.com",
}

type Config struct {
	Port               string
	DevMode            bool
	LogLevel           slog.Level
	APIURL             string
	DomainKey          string
	BackendURL         string
	ThemeStorageKey    string
	PrefersDark        bool
	PreferencesBackend string
	DatabasePath       string
	PreferencesFile    string
	ContentPath        string
	AllowedHosts       []string
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

func Load() Config {
	devMode := os.Getenv("DEV_MODE") == "1"
	defaultDBPath := "db/dorthy.sqlite"
	defaultPrefsFile := "db/preferences.json"
	if devMode {
		defaultDBPath = filepath.Join(os.TempDir(), "dorthy.sqlite")
		defaultPrefsFile = filepath.Join(os.TempDir(), "dorthy-preferences.json")
	}

	cfg := Config{
		Port:               getenv("PORT", "5170"),
		DevMode:            devMode,
		LogLevel:           parseLevel(os.Getenv("LOG_LEVEL")),
		APIURL:             getenv("CHATKIT_API_URL", DefaultAPIURL),
		DomainKey:          getenv("CHATKIT_API_DOMAIN_KEY", DefaultDomainKey),
		BackendURL:         getenv("BACKEND_URL", DefaultBackendURL),
		ThemeStorageKey:    getenv("THEME_STORAGE_KEY", DefaultThemeStorageKey),
		PrefersDark:        getenvBool("PREFERS_DARK", false),
		PreferencesBackend: strings.ToLower(getenv("PREFERENCES_BACKEND", BackendSQLite)),
		DatabasePath:       getenv("DATABASE_PATH", defaultDBPath),
		PreferencesFile:    getenv("PREFERENCES_FILE", defaultPrefsFile),
		ContentPath:        os.Getenv("CONTENT_PATH"),
		AllowedHosts:       getenvList("ALLOWED_HOSTS", defaultAllowedHosts),
		CORSOrigins:        getenvList("CORS_ORIGINS", nil),
		ShutdownTimeout:    time.Duration(getenvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	switch cfg.PreferencesBackend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		cfg.PreferencesBackend = BackendSQLite
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

// ProxiesBackend reports whether the shell should forward the widget API
// path to BackendURL itself. Absolute API URLs are reached directly by the
// browser.
func (c Config) ProxiesBackend() bool {
	return c.BackendURL != "" && strings.HasPrefix(c.APIURL, "/")
}

func getenv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func getenvInt(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(name string, fallback bool) bool {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(name string, fallback []string) []string {
	value := os.Getenv(name)
	if value == "" {
		return append([]string(nil), fallback...)
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
