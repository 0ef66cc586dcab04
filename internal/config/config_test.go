package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.APIBaseURL != def.APIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, def.APIBaseURL)
	}
	if cfg.APITimeout() != 10*time.Second {
		t.Errorf("APITimeout() = %v, want 10s", cfg.APITimeout())
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Errorf("PollInterval() = %v, want 3s", cfg.PollInterval())
	}
	if cfg.MaxPollDuration() != 300*time.Second {
		t.Errorf("MaxPollDuration() = %v, want 300s", cfg.MaxPollDuration())
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce() = %v, want 500ms", cfg.Debounce())
	}
	if len(cfg.ProxyHosts) != 1 || cfg.ProxyHosts[0] != "tripo3d.com" {
		t.Errorf("ProxyHosts = %v, want [tripo3d.com]", cfg.ProxyHosts)
	}
	if cfg.UseMock || cfg.SurfaceErrors {
		t.Error("UseMock and SurfaceErrors should default to false")
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"api_base_url": "http://localhost:9000", "debounce_ms": 50, "surface_errors": true}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Debounce() != 50*time.Millisecond {
		t.Errorf("Debounce() = %v, want 50ms", cfg.Debounce())
	}
	if !cfg.SurfaceErrors {
		t.Error("SurfaceErrors should be true")
	}
	// Untouched scalars keep defaults
	if cfg.AppID != "vestige-web" {
		t.Errorf("AppID = %q, want default", cfg.AppID)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"api_base_url": "http://from-file"}`)
	t.Setenv("VESTIGE_API_BASE_URL", "http://from-env")
	t.Setenv("VESTIGE_USE_MOCK", "true")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://from-env" {
		t.Errorf("APIBaseURL = %q, want env value", cfg.APIBaseURL)
	}
	if !cfg.UseMock {
		t.Error("UseMock should come from env")
	}
}

func TestApplyEnv_IgnoresInvalidValues(t *testing.T) {
	env := map[string]string{
		"VESTIGE_API_TIMEOUT_MS":   "abc",
		"VESTIGE_POLL_INTERVAL_MS": "-5",
		"VESTIGE_SURFACE_ERRORS":   "maybe",
		"VESTIGE_DEBOUNCE_MS":      "25",
	}
	cfg := ApplyEnv(DefaultConfig(), func(k string) string { return env[k] })

	if cfg.APITimeoutMillis != 10000 {
		t.Errorf("APITimeoutMillis = %d, want default", cfg.APITimeoutMillis)
	}
	if cfg.PollIntervalMillis != 3000 {
		t.Errorf("PollIntervalMillis = %d, want default", cfg.PollIntervalMillis)
	}
	if cfg.SurfaceErrors {
		t.Error("SurfaceErrors should stay false for unparseable input")
	}
	if cfg.DebounceMillis != 25 {
		t.Errorf("DebounceMillis = %d, want 25", cfg.DebounceMillis)
	}
}

func TestApplyEnv_DoesNotMutateInput(t *testing.T) {
	base := DefaultConfig()
	_ = ApplyEnv(base, func(string) string { return "http://x" })
	if base.APIBaseURL != DefaultConfig().APIBaseURL {
		t.Error("ApplyEnv mutated its input")
	}
}

func TestMerge(t *testing.T) {
	base := &Config{
		APIBaseURL:     "http://base",
		DebounceMillis: 500,
		ProxyHosts:     []string{"tripo3d.com"},
		DisabledTools:  []string{"capsule_fetch"},
	}
	overlay := &Config{
		DebounceMillis: 100,
		UseMock:        true,
		ProxyHosts:     []string{" tripo3d.com ", "models.example.org"},
		DisabledTools:  []string{"filter_plan", ""},
	}

	got := Merge(base, overlay)

	if got.APIBaseURL != "http://base" {
		t.Errorf("APIBaseURL = %q, want base value", got.APIBaseURL)
	}
	if got.DebounceMillis != 100 {
		t.Errorf("DebounceMillis = %d, want overlay value", got.DebounceMillis)
	}
	if !got.UseMock {
		t.Error("UseMock should be true (OR)")
	}
	if len(got.ProxyHosts) != 2 || got.ProxyHosts[1] != "models.example.org" {
		t.Errorf("ProxyHosts = %v, want deduplicated merge", got.ProxyHosts)
	}
	if len(got.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 entries", got.DisabledTools)
	}
}

func TestLoadWithRepo_RepoWins(t *testing.T) {
	globalDir := t.TempDir()
	writeConfig(t, globalDir, `{"app_id": "global", "debounce_ms": 300}`)

	repoRoot := t.TempDir()
	writeConfig(t, filepath.Join(repoRoot, ".vestige"), `{"app_id": "repo"}`)
	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.AppID != "repo" {
		t.Errorf("AppID = %q, want repo", cfg.AppID)
	}
	if cfg.DebounceMillis != 300 {
		t.Errorf("DebounceMillis = %d, want global value", cfg.DebounceMillis)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		// A stray .vestige above the temp dir would make this flaky; only
		// assert when nothing is found on the way up.
		if _, err := os.Stat(got); err != nil {
			t.Errorf("FindRepoConfig returned a missing path %q", got)
		}
	}
}
