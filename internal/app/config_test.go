package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	p := cfg.Preferences()
	if p.CalorieTarget != 600 || !p.PrioritizeProtein || len(p.Flags) != 0 {
		t.Fatalf("unexpected default preferences %+v", p)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"calorie target": func(c *Config) { c.CalorieTarget = 0 },
		"negative limit": func(c *Config) { c.FetchAttempts = -1 },
		"radius":         func(c *Config) { c.RadiusMiles = -2 },
		"ocr model":      func(c *Config) { c.OCR = true; c.LLMModel = "" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := ValidateConfig(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApplyFileConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dinecoach.yaml")
	content := `
cache:
  dir: /tmp/dc
  maxAge: 48h
  redis: localhost:6379
fetch:
  timeout: 5s
  render: true
pdf:
  pageCap: 4
  ocr: true
llm:
  model: vision-small
preferences:
  calorieTarget: 750
  prioritizeProtein: false
  flags: [low_carb, no_fried]
nearby:
  radiusMiles: 1.5
server:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)

	if cfg.CacheDir != "/tmp/dc" || cfg.CacheMaxAge != 48*time.Hour || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("cache section not applied: %+v", cfg)
	}
	if cfg.FetchTimeout != 5*time.Second || !cfg.RenderBrowser || cfg.FetchAttempts != fetchAttemptsDef {
		t.Fatalf("fetch section not applied: %+v", cfg)
	}
	if cfg.PDFPageCap != 4 || !cfg.OCR || cfg.LLMModel != "vision-small" {
		t.Fatalf("pdf/llm section not applied: %+v", cfg)
	}
	p := cfg.Preferences()
	if p.CalorieTarget != 750 || p.PrioritizeProtein || len(p.Flags) != 2 {
		t.Fatalf("preferences not applied: %+v", p)
	}
	if cfg.RadiusMiles != 1.5 || cfg.ListenAddr != ":9090" {
		t.Fatalf("nearby/server not applied: %+v", cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("file config invalid: %v", err)
	}
}

func TestLoadConfigFile_JSONAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	if err := os.WriteFile(path, []byte(`{"preferences":{"calorieTarget":500}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil || fc.Preferences.CalorieTarget != 500 {
		t.Fatalf("json load: %+v %v", fc, err)
	}
	if _, err := LoadConfigFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("cache: [unclosed"), 0o600)
	if _, err := LoadConfigFile(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "/env/cache")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("PRIORITIZE_PROTEIN", "false")
	t.Setenv("CALORIE_TARGET", "800")
	t.Setenv("DIET_FLAGS", "dairy_mindful,bogus")
	t.Setenv("RADIUS_MILES", "2.5")
	t.Setenv("PORT", "7000")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := DefaultConfig()
	cfg.CacheDir = "/file/cache"
	ApplyEnvOverrides(&cfg)
	if cfg.CacheDir != "/env/cache" || cfg.FetchTimeout != 3*time.Second || cfg.ListenAddr != ":7000" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.LLMAPIKey != "sk-test" || cfg.RadiusMiles != 2.5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	p := cfg.Preferences()
	if p.PrioritizeProtein || p.CalorieTarget != 800 || len(p.Flags) != 1 || p.Flags[0] != "dairy_mindful" {
		t.Fatalf("preferences from env: %+v", p)
	}
}

func TestLoadEnvFiles_OverrideOrderAndMissing(t *testing.T) {
	t.Setenv("DINECOACH_K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("# comment\nDINECOACH_K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("DINECOACH_K=\"second\"\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, filepath.Join(dir, "missing"), "", b); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("DINECOACH_K"); got != "second" {
		t.Fatalf("override order failed: got %q", got)
	}
}
