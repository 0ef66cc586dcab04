package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the backend origin for context, forge and proxy endpoints
	APIBaseURL string `json:"api_base_url"`

	// AppID is sent as X-App-ID on every backend request
	AppID string `json:"app_id"`

	// APITimeoutMillis bounds each individual backend call
	APITimeoutMillis int `json:"api_timeout_ms"`

	// PollIntervalMillis is the delay between forge status polls
	PollIntervalMillis int `json:"poll_interval_ms"`

	// MaxPollDurationMillis bounds the whole polling loop, measured from loop entry
	MaxPollDurationMillis int `json:"max_poll_duration_ms"`

	// DebounceMillis is the quiet period after the last year change before a fetch starts
	DebounceMillis int `json:"debounce_ms"`

	// ProxyHosts lists model hosts whose URLs are routed through /api/proxy-model.
	// A host matches itself and any of its subdomains.
	ProxyHosts []string `json:"proxy_hosts,omitempty"`

	// FallbackModelURL replaces an empty model URL in a real backend response
	FallbackModelURL string `json:"fallback_model_url,omitempty"`

	// UseMock skips the network and simulates generation locally
	UseMock bool `json:"use_mock,omitempty"`

	// SurfaceErrors turns recoverable failures into the ERROR state instead of
	// substituting mock data. Off by default so the UI always shows a capsule.
	SurfaceErrors bool `json:"surface_errors,omitempty"`

	// FutureSource is the context source for present and future years: daily or fossil
	FutureSource string `json:"future_source,omitempty"`

	// ForgeStyle is forwarded to forge create when set
	ForgeStyle string `json:"forge_style,omitempty"`

	// DefaultFilter is the style filter selected at startup
	DefaultFilter string `json:"default_filter,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open archive connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle archive connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultFallbackModelURL is the sample model shown when a real response has no model.
const DefaultFallbackModelURL = "https://raw.githubusercontent.com/KhronosGroup/glTF-Sample-Models/main/2.0/DamagedHelmet/glTF-Binary/DamagedHelmet.glb"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:            "https://api.sruim.xin",
		AppID:                 "vestige-web",
		APITimeoutMillis:      10000,
		PollIntervalMillis:    3000,
		MaxPollDurationMillis: 300000,
		DebounceMillis:        500,
		ProxyHosts:            []string{"tripo3d.com"},
		FallbackModelURL:      DefaultFallbackModelURL,
		FutureSource:          "daily",
		DefaultFilter:         "default",
		LogLevel:              "info",
	}
}

// APITimeout returns the per-call timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutMillis) * time.Millisecond
}

// PollInterval returns the forge polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// MaxPollDuration returns the bound on the whole polling loop.
func (c *Config) MaxPollDuration() time.Duration {
	return time.Duration(c.MaxPollDurationMillis) * time.Millisecond
}

// Debounce returns the year-change debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// Load loads configuration from baseDir/config.json, then applies environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.vestige.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return ApplyEnv(cfg, os.Getenv), nil
}

// LoadWithRepo loads configuration from both global (~/.vestige) and repo (.vestige) directories.
// Repo config is found by walking upward from startDir to find the nearest .vestige/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides win over both.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return ApplyEnv(Merge(Merge(DefaultConfig(), global), repo), os.Getenv), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .vestige/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".vestige", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path merged over defaults.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		APIBaseURL:            pickString(overlay.APIBaseURL, base.APIBaseURL),
		AppID:                 pickString(overlay.AppID, base.AppID),
		APITimeoutMillis:      pickInt(overlay.APITimeoutMillis, base.APITimeoutMillis),
		PollIntervalMillis:    pickInt(overlay.PollIntervalMillis, base.PollIntervalMillis),
		MaxPollDurationMillis: pickInt(overlay.MaxPollDurationMillis, base.MaxPollDurationMillis),
		DebounceMillis:        pickInt(overlay.DebounceMillis, base.DebounceMillis),
		FallbackModelURL:      pickString(overlay.FallbackModelURL, base.FallbackModelURL),
		FutureSource:          pickString(overlay.FutureSource, base.FutureSource),
		ForgeStyle:            pickString(overlay.ForgeStyle, base.ForgeStyle),
		DefaultFilter:         pickString(overlay.DefaultFilter, base.DefaultFilter),
		LogLevel:              pickString(overlay.LogLevel, base.LogLevel),
		DBMaxOpenConns:        pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:        pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.UseMock = base.UseMock || overlay.UseMock
	result.SurfaceErrors = base.SurfaceErrors || overlay.SurfaceErrors

	// Arrays: merge and deduplicate
	result.ProxyHosts = mergeStringSlice(base.ProxyHosts, overlay.ProxyHosts)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ApplyEnv overlays VESTIGE_* environment variables onto cfg.
// lookup is os.Getenv in production and a map in tests.
func ApplyEnv(cfg *Config, lookup func(string) string) *Config {
	out := *cfg
	out.APIBaseURL = getenv(lookup, "VESTIGE_API_BASE_URL", out.APIBaseURL)
	out.AppID = getenv(lookup, "VESTIGE_APP_ID", out.AppID)
	out.APITimeoutMillis = getenvInt(lookup, "VESTIGE_API_TIMEOUT_MS", out.APITimeoutMillis)
	out.PollIntervalMillis = getenvInt(lookup, "VESTIGE_POLL_INTERVAL_MS", out.PollIntervalMillis)
	out.MaxPollDurationMillis = getenvInt(lookup, "VESTIGE_MAX_POLL_DURATION_MS", out.MaxPollDurationMillis)
	out.DebounceMillis = getenvInt(lookup, "VESTIGE_DEBOUNCE_MS", out.DebounceMillis)
	out.UseMock = getenvBool(lookup, "VESTIGE_USE_MOCK", out.UseMock)
	out.SurfaceErrors = getenvBool(lookup, "VESTIGE_SURFACE_ERRORS", out.SurfaceErrors)
	out.FutureSource = getenv(lookup, "VESTIGE_FUTURE_SOURCE", out.FutureSource)
	out.LogLevel = getenv(lookup, "VESTIGE_LOG_LEVEL", out.LogLevel)
	return &out
}

func getenv(lookup func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(lookup(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(lookup func(string) string, key string, fallback int) int {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getenvBool(lookup func(string) string, key string, fallback bool) bool {
	v := strings.TrimSpace(lookup(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
