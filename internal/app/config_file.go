package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Nested sections map to
// the dotted flag names.
type FileConfig struct {
	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
		Redis       string        `yaml:"redis" json:"redis"`
		Store       string        `yaml:"store" json:"store"`
	} `yaml:"cache" json:"cache"`

	Fetch struct {
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		Attempts      int           `yaml:"attempts" json:"attempts"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
		Render        bool          `yaml:"render" json:"render"`
	} `yaml:"fetch" json:"fetch"`

	PDF struct {
		PageCap int  `yaml:"pageCap" json:"pageCap"`
		OCR     bool `yaml:"ocr" json:"ocr"`
	} `yaml:"pdf" json:"pdf"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
	} `yaml:"llm" json:"llm"`

	Preferences struct {
		CalorieTarget     int      `yaml:"calorieTarget" json:"calorieTarget"`
		PrioritizeProtein *bool    `yaml:"prioritizeProtein" json:"prioritizeProtein"`
		Flags             []string `yaml:"flags" json:"flags"`
	} `yaml:"preferences" json:"preferences"`

	Nearby struct {
		RadiusMiles  float64 `yaml:"radiusMiles" json:"radiusMiles"`
		Limit        int     `yaml:"limit" json:"limit"`
		Concurrency  int     `yaml:"concurrency" json:"concurrency"`
		NominatimURL string  `yaml:"nominatimURL" json:"nominatimURL"`
		OverpassURL  string  `yaml:"overpassURL" json:"overpassURL"`
		FoodFactsURL string  `yaml:"foodFactsURL" json:"foodFactsURL"`
	} `yaml:"nearby" json:"nearby"`

	Server struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"server" json:"server"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value present in fc onto cfg. Zero values in
// the file leave cfg unchanged.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if v {
			*dst = true
		}
	}

	str(&cfg.CacheDir, fc.Cache.Dir)
	if fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)
	if fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	num(&cfg.CacheMaxEntries, fc.Cache.MaxEntries)
	str(&cfg.RedisAddr, fc.Cache.Redis)
	str(&cfg.StorePath, fc.Cache.Store)

	str(&cfg.UserAgent, fc.Fetch.UserAgent)
	if fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = fc.Fetch.Timeout
	}
	num(&cfg.FetchAttempts, fc.Fetch.Attempts)
	num(&cfg.FetchMaxConcurrent, fc.Fetch.MaxConcurrent)
	flag(&cfg.RenderBrowser, fc.Fetch.Render)

	num(&cfg.PDFPageCap, fc.PDF.PageCap)
	flag(&cfg.OCR, fc.PDF.OCR)
	str(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	str(&cfg.LLMModel, fc.LLM.Model)
	str(&cfg.LLMAPIKey, fc.LLM.APIKey)

	num(&cfg.CalorieTarget, fc.Preferences.CalorieTarget)
	if fc.Preferences.PrioritizeProtein != nil {
		cfg.PrioritizeProtein = *fc.Preferences.PrioritizeProtein
	}
	if len(fc.Preferences.Flags) > 0 {
		cfg.Flags = strings.Join(fc.Preferences.Flags, ",")
	}

	if fc.Nearby.RadiusMiles > 0 {
		cfg.RadiusMiles = fc.Nearby.RadiusMiles
	}
	num(&cfg.DiscoveryLimit, fc.Nearby.Limit)
	num(&cfg.NearbyConcurrency, fc.Nearby.Concurrency)
	str(&cfg.NominatimURL, fc.Nearby.NominatimURL)
	str(&cfg.OverpassURL, fc.Nearby.OverpassURL)
	str(&cfg.FoodFactsURL, fc.Nearby.FoodFactsURL)

	str(&cfg.ListenAddr, fc.Server.Addr)
	flag(&cfg.Verbose, fc.Verbose)
}
