package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/dinecoach/internal/app"
)

// options holds the persistent flags. Flag values only win over the config
// file and environment when the flag was set on the command line.
type options struct {
	flags      app.Config
	configPath string
	envFiles   []string
}

func newOptions() *options {
	return &options{flags: app.DefaultConfig(), envFiles: []string{".env"}}
}

func (o *options) bind(root *cobra.Command) {
	pf := root.PersistentFlags()
	f := &o.flags
	pf.StringVar(&o.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&o.envFiles, "env-file", o.envFiles, "Dotenv files to load; later files win")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose logging")

	pf.StringVar(&f.CacheDir, "cache.dir", f.CacheDir, "Cache directory path")
	pf.DurationVar(&f.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this (e.g. 72h); 0 disables")
	pf.BoolVar(&f.CacheClear, "cache.clear", false, "Clear the cache directory before running")
	pf.BoolVar(&f.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	pf.StringVar(&f.RedisAddr, "redis", "", "Redis address for the shared candidate cache")
	pf.StringVar(&f.StorePath, "store", f.StorePath, "SQLite path for resolved menus and discovery results")

	pf.StringVar(&f.UserAgent, "user-agent", f.UserAgent, "User-Agent sent to menu sites")
	pf.DurationVar(&f.FetchTimeout, "fetch.timeout", f.FetchTimeout, "Per-request fetch timeout")
	pf.IntVar(&f.FetchAttempts, "fetch.attempts", f.FetchAttempts, "Attempts per fetch including the first")
	pf.BoolVar(&f.RenderBrowser, "render", false, "Render script-heavy menu pages in headless Chrome")

	pf.BoolVar(&f.OCR, "ocr", false, "Recognize scanned PDF pages with a vision model")
	pf.StringVar(&f.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL for OCR")
	pf.StringVar(&f.LLMModel, "llm.model", "", "Vision model name for OCR")
	pf.StringVar(&f.LLMAPIKey, "llm.key", "", "API key for the OCR model")

	pf.IntVar(&f.CalorieTarget, "calorie-target", f.CalorieTarget, "Target calories for the meal")
	pf.BoolVar(&f.PrioritizeProtein, "prioritize-protein", f.PrioritizeProtein, "Weight protein above calorie closeness")
	pf.StringVar(&f.Flags, "flags", "", "Dietary flags: low_carb,gluten_mindful,dairy_mindful,no_fried")
}

// flagSetters copy one flag's value onto the resolved config.
var flagSetters = map[string]func(dst, src *app.Config){
	"verbose":            func(d, s *app.Config) { d.Verbose = s.Verbose },
	"cache.dir":          func(d, s *app.Config) { d.CacheDir = s.CacheDir },
	"cache.maxAge":       func(d, s *app.Config) { d.CacheMaxAge = s.CacheMaxAge },
	"cache.clear":        func(d, s *app.Config) { d.CacheClear = s.CacheClear },
	"cache.strictPerms":  func(d, s *app.Config) { d.CacheStrictPerms = s.CacheStrictPerms },
	"redis":              func(d, s *app.Config) { d.RedisAddr = s.RedisAddr },
	"store":              func(d, s *app.Config) { d.StorePath = s.StorePath },
	"user-agent":         func(d, s *app.Config) { d.UserAgent = s.UserAgent },
	"fetch.timeout":      func(d, s *app.Config) { d.FetchTimeout = s.FetchTimeout },
	"fetch.attempts":     func(d, s *app.Config) { d.FetchAttempts = s.FetchAttempts },
	"render":             func(d, s *app.Config) { d.RenderBrowser = s.RenderBrowser },
	"ocr":                func(d, s *app.Config) { d.OCR = s.OCR },
	"llm.base":           func(d, s *app.Config) { d.LLMBaseURL = s.LLMBaseURL },
	"llm.model":          func(d, s *app.Config) { d.LLMModel = s.LLMModel },
	"llm.key":            func(d, s *app.Config) { d.LLMAPIKey = s.LLMAPIKey },
	"calorie-target":     func(d, s *app.Config) { d.CalorieTarget = s.CalorieTarget },
	"prioritize-protein": func(d, s *app.Config) { d.PrioritizeProtein = s.PrioritizeProtein },
	"flags":              func(d, s *app.Config) { d.Flags = s.Flags },
}

// config resolves defaults, then the config file, then the environment,
// then explicitly set flags.
func (o *options) config(cmd *cobra.Command) (app.Config, error) {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return app.Config{}, err
	}
	cfg := app.DefaultConfig()
	if strings.TrimSpace(o.configPath) != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return app.Config{}, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	for name, set := range flagSetters {
		if cmd.Flags().Changed(name) {
			set(&cfg, &o.flags)
		}
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, err
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return cfg, nil
}

// open resolves the config and builds the app. Callers close it.
func (o *options) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}
	return a, nil
}

// writeJSON writes v indented to path, or to the command output when path
// is empty or "-".
func writeJSON(cmd *cobra.Command, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	b = append(b, '\n')
	if path == "" || path == "-" {
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}
	return writeFile(path, b)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("wrote output")
	return nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
