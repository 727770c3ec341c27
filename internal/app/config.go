package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/dinecoach/internal/document"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxEntries  int
	RedisAddr        string
	StorePath        string

	// Fetch
	UserAgent          string
	FetchTimeout       time.Duration
	FetchAttempts      int
	FetchMaxConcurrent int
	RenderBrowser      bool
	AllowPrivateHosts  bool

	// Documents and OCR
	PDFPageCap int
	OCR        bool
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Default preferences
	CalorieTarget     int
	PrioritizeProtein bool
	Flags             string

	// Nearby
	RadiusMiles       float64
	DiscoveryLimit    int
	NearbyConcurrency int
	NominatimURL      string
	OverpassURL       string
	FoodFactsURL      string

	// Server
	ListenAddr string

	Verbose bool
}

// Defaults mirrored by flags and by ApplyFileConfig.
const (
	cacheDirDefault     = ".dinecoach-cache"
	storePathDefault    = ".dinecoach-cache/dinecoach.db"
	fetchTimeoutDefault = 15 * time.Second
	fetchAttemptsDef    = 2
	fetchConcurrencyDef = 8
	nearbyConcurrency   = 4
	listenAddrDefault   = ":8000"
	discoveryLimitDef   = 25
	radiusMilesDefault  = 3.0
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	p := score.DefaultPreferences()
	return Config{
		CacheDir:           cacheDirDefault,
		StorePath:          storePathDefault,
		UserAgent:          fetch.DefaultUserAgent,
		FetchTimeout:       fetchTimeoutDefault,
		FetchAttempts:      fetchAttemptsDef,
		FetchMaxConcurrent: fetchConcurrencyDef,
		PDFPageCap:         document.DefaultPageCap,
		CalorieTarget:      p.CalorieTarget,
		PrioritizeProtein:  p.PrioritizeProtein,
		RadiusMiles:        radiusMilesDefault,
		DiscoveryLimit:     discoveryLimitDef,
		NearbyConcurrency:  nearbyConcurrency,
		ListenAddr:         listenAddrDefault,
	}
}

// Preferences returns the default diner preferences from the config.
func (c Config) Preferences() score.Preferences {
	return score.Preferences{
		CalorieTarget:     c.CalorieTarget,
		PrioritizeProtein: c.PrioritizeProtein,
		Flags:             score.SplitFlags(c.Flags),
	}
}

// ValidateConfig checks ranges and the settings OCR depends on.
func ValidateConfig(cfg Config) error {
	if cfg.CalorieTarget <= 0 {
		return fmt.Errorf("config: calorie target must be positive, got %d", cfg.CalorieTarget)
	}
	if cfg.FetchAttempts < 0 || cfg.FetchMaxConcurrent < 0 || cfg.PDFPageCap < 0 ||
		cfg.DiscoveryLimit < 0 || cfg.NearbyConcurrency < 0 || cfg.CacheMaxEntries < 0 || cfg.CacheMaxBytes < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.RadiusMiles < 0 {
		return errors.New("config: radius must not be negative")
	}
	if cfg.OCR && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: ocr requires llm.model (or set LLM_MODEL)")
	}
	return nil
}
